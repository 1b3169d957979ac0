package proto

import (
	"fmt"

	"lobbynet/internal/state"
)

// Tag is the leading byte of every datagram. Values are part of the wire
// format and must never be renumbered.
type Tag uint8

const (
	TagPing       Tag = 0
	TagAck        Tag = 1
	TagKnock      Tag = 2
	TagWelcome    Tag = 3
	TagPlayers    Tag = 4
	TagError      Tag = 5
	TagBye        Tag = 6
	TagQuery      Tag = 7
	TagGameStatus Tag = 8
)

func (t Tag) String() string {
	switch t {
	case TagPing:
		return "Ping"
	case TagAck:
		return "Ack"
	case TagKnock:
		return "Knock"
	case TagWelcome:
		return "Welcome"
	case TagPlayers:
		return "Players"
	case TagError:
		return "Error"
	case TagBye:
		return "Bye"
	case TagQuery:
		return "Query"
	case TagGameStatus:
		return "GameStatus"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// ErrorCode is carried by the Error command.
type ErrorCode int16

const (
	ErrInvalidCommand ErrorCode = 0
	ErrTooManyPlayers ErrorCode = 1
	ErrInvalidVersion ErrorCode = 2
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidCommand:
		return "InvalidCommand"
	case ErrTooManyPlayers:
		return "TooManyPlayers"
	case ErrInvalidVersion:
		return "InvalidVersion"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int16(c))
	}
}

const (
	// NameSize is the fixed capacity of every name field on the wire.
	NameSize = 256

	// PlayerCount is the number of seats carried by Players.
	PlayerCount = state.MaxSlots
)

// Command is one of Ping, Ack, Knock, Welcome, Players, Error, Bye, Query or
// GameStatus.
type Command interface {
	Tag() Tag
}

type Ping struct {
	Seq uint32
}

type Ack struct {
	Seq uint32
}

// Knock asks to join a session.
type Knock struct {
	Version uint16
	Name    string
}

// Welcome admits a client. Slot is 1-based.
type Welcome struct {
	Slot uint8
}

type PlayerEntry struct {
	Active bool
	Name   string
}

// Players is the roster snapshot, in slot order.
type Players struct {
	Slots [PlayerCount]PlayerEntry
}

type Error struct {
	Code ErrorCode
}

// Bye tells the server the client is leaving.
type Bye struct{}

// Query asks an advertising server for its GameStatus.
type Query struct{}

type GameStatus struct {
	NumPlayers uint8
	Hole       uint8
	Course     string
}

func (Ping) Tag() Tag       { return TagPing }
func (Ack) Tag() Tag        { return TagAck }
func (Knock) Tag() Tag      { return TagKnock }
func (Welcome) Tag() Tag    { return TagWelcome }
func (Players) Tag() Tag    { return TagPlayers }
func (Error) Tag() Tag      { return TagError }
func (Bye) Tag() Tag        { return TagBye }
func (Query) Tag() Tag      { return TagQuery }
func (GameStatus) Tag() Tag { return TagGameStatus }

// RemoteError is a received Error command surfaced to the client's caller.
type RemoteError struct {
	Code ErrorCode
}

func (e *RemoteError) Error() string {
	return "server rejected request: " + e.Code.String()
}
