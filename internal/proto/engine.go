package proto

import (
	"sync/atomic"
	"time"

	"lobbynet/internal/endpoint"
	"lobbynet/internal/state"
)

// Outbound is one command addressed to one peer.
type Outbound struct {
	To  endpoint.Endpoint
	Cmd Command
}

type EngineConfig struct {
	Version uint16

	// Advertise answers Query from any peer with GameStatus.
	Advertise bool
	Course    string
	// Hole is the initial hole number reported in GameStatus.
	Hole uint8

	// IdleTimeout evicts members not heard from for this long. Zero disables.
	IdleTimeout time.Duration

	// WelcomeSnapshot also sends the roster snapshot to a newly admitted peer.
	WelcomeSnapshot bool
}

// Engine is the server-side dispatcher.
type Engine struct {
	cfg    EngineConfig
	roster *state.Roster

	hole atomic.Uint32
}

type Stats struct {
	PlayersOnline int
	Hole          int
}

func NewEngine(cfg EngineConfig, roster *state.Roster) *Engine {
	if roster == nil {
		roster = state.NewRoster()
	}
	e := &Engine{cfg: cfg, roster: roster}
	e.hole.Store(uint32(cfg.Hole))
	return e
}

func (p *Engine) Roster() *state.Roster { return p.roster }

func (p *Engine) Stats() Stats {
	return Stats{
		PlayersOnline: p.roster.Count(),
		Hole:          int(p.hole.Load()),
	}
}

// SetHole updates the hole number reported in GameStatus as play advances.
func (p *Engine) SetHole(hole uint8) { p.hole.Store(uint32(hole)) }

// Handle interprets one inbound command from `from` and returns the commands
// to send. Peers that are not seated can only Knock (or Query, when
// advertising); anything else from them is dropped without a reply.
func (p *Engine) Handle(now time.Time, from endpoint.Endpoint, in Command) []Outbound {
	member := p.roster.Touch(from, now)

	switch c := in.(type) {
	case Knock:
		return p.handleKnock(now, from, c)
	case Query:
		if p.cfg.Advertise {
			return []Outbound{{To: from, Cmd: p.gameStatus()}}
		}
	}
	if !member {
		return nil
	}

	switch c := in.(type) {
	case Ping:
		return []Outbound{{To: from, Cmd: Ack{Seq: c.Seq}}}
	case Ack:
		// Reply to a server ping; Touch above already refreshed liveness.
		return nil
	case Bye:
		p.roster.Remove(from)
		return p.broadcast(endpoint.Endpoint{})
	default:
		return []Outbound{{To: from, Cmd: Error{Code: ErrInvalidCommand}}}
	}
}

func (p *Engine) handleKnock(now time.Time, from endpoint.Endpoint, in Knock) []Outbound {
	if in.Version != p.cfg.Version {
		return []Outbound{{To: from, Cmd: Error{Code: ErrInvalidVersion}}}
	}

	slot, outcome := p.roster.Admit(from, NormalizeName(in.Name), now)
	switch outcome {
	case state.Full:
		return []Outbound{{To: from, Cmd: Error{Code: ErrTooManyPlayers}}}
	case state.Duplicate:
		// Already seated: repeat the Welcome so a client whose first one was
		// lost can complete its join.
		return []Outbound{{To: from, Cmd: Welcome{Slot: uint8(slot + 1)}}}
	}

	outs := []Outbound{{To: from, Cmd: Welcome{Slot: uint8(slot + 1)}}}
	if p.cfg.WelcomeSnapshot {
		outs = append(outs, Outbound{To: from, Cmd: p.players()})
	}
	return append(outs, p.broadcast(from)...)
}

// Sweep evicts idle members and returns the evicted endpoints together with
// the snapshot broadcast to the remaining members.
func (p *Engine) Sweep(now time.Time) ([]endpoint.Endpoint, []Outbound) {
	evicted := p.roster.SweepIdle(now, p.cfg.IdleTimeout)
	if len(evicted) == 0 {
		return nil, nil
	}
	return evicted, p.broadcast(endpoint.Endpoint{})
}

// Pings addresses Ping{seq} to every seated peer.
func (p *Engine) Pings(seq uint32) []Outbound {
	members := p.roster.Members()
	outs := make([]Outbound, 0, len(members))
	for _, m := range members {
		outs = append(outs, Outbound{To: m, Cmd: Ping{Seq: seq}})
	}
	return outs
}

// broadcast sends the current snapshot to every seated peer except skip.
func (p *Engine) broadcast(skip endpoint.Endpoint) []Outbound {
	snap := p.players()
	var outs []Outbound
	for _, m := range p.roster.Members() {
		if !skip.IsZero() && m == skip {
			continue
		}
		outs = append(outs, Outbound{To: m, Cmd: snap})
	}
	return outs
}

func (p *Engine) players() Players {
	var out Players
	for i, s := range p.roster.Snapshot() {
		out.Slots[i] = PlayerEntry{Active: s.Active, Name: s.Name}
	}
	return out
}

func (p *Engine) gameStatus() GameStatus {
	return GameStatus{
		NumPlayers: uint8(p.roster.Count()),
		Hole:       uint8(p.hole.Load()),
		Course:     p.cfg.Course,
	}
}
