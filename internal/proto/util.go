package proto

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func NowTS() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func MakeRunID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UTC().UnixNano())
	}
	return "run-" + id.String()
}

// ToHex renders at most limit bytes of b as space-separated hex, marking
// truncation with "..". limit <= 0 means no limit.
func ToHex(b []byte, limit int) string {
	if len(b) == 0 {
		return ""
	}
	cut := false
	if limit > 0 && len(b) > limit {
		b, cut = b[:limit], true
	}
	var sb strings.Builder
	sb.Grow(len(b)*3 + 2)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	if cut {
		sb.WriteString(" ..")
	}
	return sb.String()
}

// Describe is a short, log-safe rendering of a command (names omitted).
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case Ping:
		return fmt.Sprintf("Ping seq=%d", c.Seq)
	case Ack:
		return fmt.Sprintf("Ack seq=%d", c.Seq)
	case Knock:
		return fmt.Sprintf("Knock version=%d name_len=%d", c.Version, len(c.Name))
	case Welcome:
		return fmt.Sprintf("Welcome slot=%d", c.Slot)
	case Players:
		n := 0
		for _, s := range c.Slots {
			if s.Active {
				n++
			}
		}
		return fmt.Sprintf("Players active=%d", n)
	case Error:
		return "Error code=" + c.Code.String()
	case GameStatus:
		return fmt.Sprintf("GameStatus players=%d hole=%d", c.NumPlayers, c.Hole)
	case nil:
		return "<nil>"
	default:
		return cmd.Tag().String()
	}
}
