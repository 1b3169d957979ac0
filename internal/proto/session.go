package proto

import (
	"sync"

	"lobbynet/internal/endpoint"
)

// Status is the client connection state.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session is the client-side state machine: Idle -> Connecting -> Connected.
// Commands from any endpoint other than the stored server endpoint are
// discarded.
type Session struct {
	version uint16
	name    string

	mu      sync.RWMutex
	status  Status
	server  endpoint.Endpoint
	slot    uint8 // 1-based; 0 until welcomed
	roster  [PlayerCount]PlayerEntry
	lastAck uint32
	acked   bool
}

func NewSession(version uint16, name string) *Session {
	return &Session{version: version, name: NormalizeName(name)}
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) ServerEndpoint() endpoint.Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// Slot returns the 1-based slot assigned by Welcome, or 0.
func (s *Session) Slot() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot
}

// Roster returns the last roster snapshot received from the server.
func (s *Session) Roster() [PlayerCount]PlayerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster
}

// LastAck returns the sequence number of the most recent Ack from the server.
func (s *Session) LastAck() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAck, s.acked
}

// Join stores server as the session's peer, enters Connecting and returns the
// Knock to send. Calling Join again re-sends the Knock; it is the caller's
// retry mechanism.
func (s *Session) Join(server endpoint.Endpoint) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != server {
		s.slot = 0
		s.roster = [PlayerCount]PlayerEntry{}
		s.acked = false
		// A new server has not welcomed us yet.
		s.status = StatusConnecting
	}
	s.server = server
	if s.status == StatusIdle {
		s.status = StatusConnecting
	}
	return []Outbound{{To: server, Cmd: Knock{Version: s.version, Name: s.name}}}
}

// Leave returns to Idle, sending Bye if a join was in progress.
func (s *Session) Leave() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outs []Outbound
	if s.status != StatusIdle && !s.server.IsZero() {
		outs = []Outbound{{To: s.server, Cmd: Bye{}}}
	}
	s.status = StatusIdle
	s.server = endpoint.Endpoint{}
	s.slot = 0
	s.roster = [PlayerCount]PlayerEntry{}
	s.acked = false
	return outs
}

// Ping returns a Ping for the server when connected.
func (s *Session) Ping(seq uint32) []Outbound {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusConnected {
		return nil
	}
	return []Outbound{{To: s.server, Cmd: Ping{Seq: seq}}}
}

// Handle interprets one inbound command. A received Error is returned as a
// *RemoteError; it does not change the state.
func (s *Session) Handle(from endpoint.Endpoint, in Command) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle || s.server.IsZero() || from != s.server {
		return nil, nil
	}

	switch c := in.(type) {
	case Welcome:
		s.status = StatusConnected
		s.slot = c.Slot
	case Error:
		return nil, &RemoteError{Code: c.Code}
	case Ping:
		if s.status == StatusConnected {
			return []Outbound{{To: s.server, Cmd: Ack{Seq: c.Seq}}}, nil
		}
	case Players:
		s.roster = c.Slots
	case Ack:
		s.lastAck = c.Seq
		s.acked = true
	}
	return nil, nil
}
