package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrMalformedCommand is wrapped by every Decode failure. The datagram
	// must be discarded without a response.
	ErrMalformedCommand = errors.New("malformed command")

	ErrUnknownCommand = errors.New("unknown command type")
)

// Encoded sizes, tag byte included.
const (
	sizePing       = 1 + 4
	sizeAck        = 1 + 4
	sizeKnock      = 1 + 2 + NameSize
	sizeWelcome    = 1 + 1
	sizePlayers    = 1 + PlayerCount*(1+NameSize)
	sizeError      = 1 + 2
	sizeBye        = 1
	sizeQuery      = 1
	sizeGameStatus = 1 + 1 + 1 + NameSize

	// MaxCommandSize is the size of the largest variant.
	MaxCommandSize = sizePlayers
)

var be = binary.BigEndian

// SizeOf reports the encoded size for tag.
func SizeOf(t Tag) (int, bool) {
	switch t {
	case TagPing:
		return sizePing, true
	case TagAck:
		return sizeAck, true
	case TagKnock:
		return sizeKnock, true
	case TagWelcome:
		return sizeWelcome, true
	case TagPlayers:
		return sizePlayers, true
	case TagError:
		return sizeError, true
	case TagBye:
		return sizeBye, true
	case TagQuery:
		return sizeQuery, true
	case TagGameStatus:
		return sizeGameStatus, true
	}
	return 0, false
}

// NormalizeName returns the name exactly as it will survive a round trip:
// cut at the first NUL and truncated to NameSize bytes without splitting a
// UTF-8 sequence.
func NormalizeName(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > NameSize {
		n := NameSize
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}

func putName(dst []byte, s string) {
	n := copy(dst[:NameSize], NormalizeName(s))
	clear(dst[n:NameSize])
}

func getName(src []byte) string {
	src = src[:NameSize]
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}

func putBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Encode serializes cmd into a new datagram.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, ErrUnknownCommand
	}
	size, ok := SizeOf(cmd.Tag())
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, cmd.Tag())
	}
	b := make([]byte, size)
	b[0] = byte(cmd.Tag())
	p := b[1:]

	switch c := cmd.(type) {
	case Ping:
		be.PutUint32(p, c.Seq)
	case Ack:
		be.PutUint32(p, c.Seq)
	case Knock:
		be.PutUint16(p, c.Version)
		putName(p[2:], c.Name)
	case Welcome:
		p[0] = c.Slot
	case Players:
		for i, s := range c.Slots {
			off := i * (1 + NameSize)
			p[off] = putBool(s.Active)
			putName(p[off+1:], s.Name)
		}
	case Error:
		be.PutUint16(p, uint16(c.Code))
	case Bye, Query:
	case GameStatus:
		p[0] = c.NumPlayers
		p[1] = c.Hole
		putName(p[2:], c.Course)
	default:
		// A foreign type that happens to return a known tag.
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	return b, nil
}

// Decode parses one datagram. The length must match the tag's size exactly.
func Decode(b []byte) (Command, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrMalformedCommand)
	}
	tag := Tag(b[0])
	size, ok := SizeOf(tag)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformedCommand, b[0])
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: %v length %d, want %d", ErrMalformedCommand, tag, len(b), size)
	}
	p := b[1:]

	switch tag {
	case TagPing:
		return Ping{Seq: be.Uint32(p)}, nil
	case TagAck:
		return Ack{Seq: be.Uint32(p)}, nil
	case TagKnock:
		return Knock{Version: be.Uint16(p), Name: getName(p[2:])}, nil
	case TagWelcome:
		return Welcome{Slot: p[0]}, nil
	case TagPlayers:
		var out Players
		for i := range out.Slots {
			off := i * (1 + NameSize)
			out.Slots[i] = PlayerEntry{Active: p[off] != 0, Name: getName(p[off+1:])}
		}
		return out, nil
	case TagError:
		return Error{Code: ErrorCode(be.Uint16(p))}, nil
	case TagBye:
		return Bye{}, nil
	case TagQuery:
		return Query{}, nil
	case TagGameStatus:
		return GameStatus{NumPlayers: p[0], Hole: p[1], Course: getName(p[2:])}, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformedCommand, b[0])
}
