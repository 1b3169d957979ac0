package proto

import (
	"fmt"
	"testing"
	"time"

	"lobbynet/internal/endpoint"
	"lobbynet/internal/state"
)

func peer(i int) endpoint.Endpoint {
	return endpoint.MustParse(fmt.Sprintf("198.51.100.%d:54322", i))
}

func newTestEngine(cfg EngineConfig) *Engine {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	return NewEngine(cfg, state.NewRoster())
}

func fill(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		outs := e.Handle(time.Now(), peer(i), Knock{Version: 1, Name: fmt.Sprintf("p%d", i)})
		if len(outs) == 0 {
			t.Fatalf("knock %d: no reply", i)
		}
		if _, ok := outs[0].Cmd.(Welcome); !ok {
			t.Fatalf("knock %d: reply=%#v", i, outs[0].Cmd)
		}
	}
}

func TestEngine_KnockAdmitsIntoFirstSlot(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	outs := e.Handle(time.Now(), peer(1), Knock{Version: 1, Name: "Bob"})
	if len(outs) != 1 {
		t.Fatalf("outs=%v", outs)
	}
	if outs[0].To != peer(1) || outs[0].Cmd != (Welcome{Slot: 1}) {
		t.Fatalf("out=%#v", outs[0])
	}
	snap := e.Roster().Snapshot()
	if !snap[0].Active || snap[0].Name != "Bob" {
		t.Fatalf("slot0=%+v", snap[0])
	}
	for _, s := range snap[1:] {
		if s.Active {
			t.Fatalf("unexpected active slot: %+v", snap)
		}
	}
}

func TestEngine_KnockBroadcastsToOtherMembers(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 2)

	outs := e.Handle(time.Now(), peer(3), Knock{Version: 1, Name: "Cleo"})
	if len(outs) != 3 {
		t.Fatalf("outs=%d %#v", len(outs), outs)
	}
	if outs[0].To != peer(3) || outs[0].Cmd != (Welcome{Slot: 3}) {
		t.Fatalf("welcome=%#v", outs[0])
	}
	seen := map[endpoint.Endpoint]bool{}
	for _, o := range outs[1:] {
		p, ok := o.Cmd.(Players)
		if !ok {
			t.Fatalf("broadcast cmd=%#v", o.Cmd)
		}
		if !p.Slots[2].Active || p.Slots[2].Name != "Cleo" || p.Slots[3].Active {
			t.Fatalf("players=%+v", p.Slots)
		}
		seen[o.To] = true
	}
	if !seen[peer(1)] || !seen[peer(2)] || seen[peer(3)] {
		t.Fatalf("broadcast targets=%v", seen)
	}
}

func TestEngine_WelcomeSnapshotOption(t *testing.T) {
	e := newTestEngine(EngineConfig{WelcomeSnapshot: true})
	outs := e.Handle(time.Now(), peer(1), Knock{Version: 1, Name: "Bob"})
	if len(outs) != 2 {
		t.Fatalf("outs=%#v", outs)
	}
	if _, ok := outs[1].Cmd.(Players); !ok || outs[1].To != peer(1) {
		t.Fatalf("snapshot out=%#v", outs[1])
	}
}

func TestEngine_DuplicateKnockRepeatsWelcome(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 2)
	before := e.Roster().Snapshot()

	outs := e.Handle(time.Now(), peer(2), Knock{Version: 1, Name: "p2"})
	if len(outs) != 1 || outs[0].Cmd != (Welcome{Slot: 2}) {
		t.Fatalf("outs=%#v", outs)
	}
	if e.Roster().Snapshot() != before || e.Roster().Count() != 2 {
		t.Fatalf("roster changed on duplicate knock")
	}
}

func TestEngine_FullRosterRejects(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 4)
	before := e.Roster().Slots()

	outs := e.Handle(time.Now(), peer(5), Knock{Version: 1, Name: "Eve"})
	if len(outs) != 1 {
		t.Fatalf("outs=%#v", outs)
	}
	if outs[0].To != peer(5) || outs[0].Cmd != (Error{Code: ErrTooManyPlayers}) {
		t.Fatalf("out=%#v", outs[0])
	}
	if e.Roster().Slots() != before {
		t.Fatalf("roster changed")
	}
}

func TestEngine_VersionGate(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 1)
	before := e.Roster().Slots()

	for _, v := range []uint16{0, 2, 0xffff} {
		outs := e.Handle(time.Now(), peer(9), Knock{Version: v, Name: "Mallory"})
		if len(outs) != 1 || outs[0].To != peer(9) || outs[0].Cmd != (Error{Code: ErrInvalidVersion}) {
			t.Fatalf("version %d: outs=%#v", v, outs)
		}
	}
	// A seated peer knocking with the wrong version is rejected too, and keeps its seat.
	outs := e.Handle(time.Now(), peer(1), Knock{Version: 7, Name: "p1"})
	if len(outs) != 1 || outs[0].Cmd != (Error{Code: ErrInvalidVersion}) {
		t.Fatalf("member outs=%#v", outs)
	}
	after := e.Roster().Slots()
	for i := range after {
		if after[i].Active != before[i].Active || after[i].Endpoint != before[i].Endpoint || after[i].Name != before[i].Name {
			t.Fatalf("roster mutated: %+v", after)
		}
	}
}

func TestEngine_NonMembersAreIgnored(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	for _, c := range []Command{Ping{Seq: 1}, Ack{Seq: 1}, Welcome{Slot: 1}, Players{}, Error{}, Bye{}, Query{}, GameStatus{}} {
		if outs := e.Handle(time.Now(), peer(1), c); outs != nil {
			t.Fatalf("%v from stranger: outs=%#v", c.Tag(), outs)
		}
	}
	if e.Roster().Count() != 0 {
		t.Fatalf("roster mutated")
	}
}

func TestEngine_MemberPingAck(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 1)
	outs := e.Handle(time.Now(), peer(1), Ping{Seq: 42})
	if len(outs) != 1 || outs[0].To != peer(1) || outs[0].Cmd != (Ack{Seq: 42}) {
		t.Fatalf("outs=%#v", outs)
	}
	if outs := e.Handle(time.Now(), peer(1), Ack{Seq: 42}); outs != nil {
		t.Fatalf("ack reply=%#v", outs)
	}
}

func TestEngine_MemberUnexpectedCommand(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 1)
	for _, c := range []Command{Welcome{Slot: 1}, Players{}, Error{Code: ErrTooManyPlayers}, GameStatus{}, Query{}} {
		outs := e.Handle(time.Now(), peer(1), c)
		if len(outs) != 1 || outs[0].To != peer(1) || outs[0].Cmd != (Error{Code: ErrInvalidCommand}) {
			t.Fatalf("%v: outs=%#v", c.Tag(), outs)
		}
	}
}

func TestEngine_ByeRemovesAndBroadcasts(t *testing.T) {
	e := newTestEngine(EngineConfig{})
	fill(t, e, 3)

	outs := e.Handle(time.Now(), peer(2), Bye{})
	if e.Roster().IsMember(peer(2)) {
		t.Fatalf("peer still seated")
	}
	if len(outs) != 2 {
		t.Fatalf("outs=%#v", outs)
	}
	for _, o := range outs {
		if o.To == peer(2) {
			t.Fatalf("broadcast to leaver")
		}
		p := o.Cmd.(Players)
		if p.Slots[1].Active || p.Slots[1].Name != "" {
			t.Fatalf("slot 1 still visible: %+v", p.Slots)
		}
	}
}

func TestEngine_QueryAdvertise(t *testing.T) {
	e := newTestEngine(EngineConfig{Advertise: true, Course: "Lagoon"})
	fill(t, e, 2)
	e.SetHole(5)

	outs := e.Handle(time.Now(), peer(9), Query{})
	if len(outs) != 1 || outs[0].To != peer(9) {
		t.Fatalf("outs=%#v", outs)
	}
	if got := outs[0].Cmd; got != (GameStatus{NumPlayers: 2, Hole: 5, Course: "Lagoon"}) {
		t.Fatalf("status=%#v", got)
	}
	if e.Roster().IsMember(peer(9)) {
		t.Fatalf("query seated the peer")
	}
	if s := e.Stats(); s.PlayersOnline != 2 || s.Hole != 5 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestEngine_ConfiguredHole(t *testing.T) {
	e := newTestEngine(EngineConfig{Advertise: true, Course: "Lagoon", Hole: 3})
	if s := e.Stats(); s.Hole != 3 {
		t.Fatalf("stats=%+v", s)
	}
	outs := e.Handle(time.Now(), peer(9), Query{})
	if len(outs) != 1 || outs[0].Cmd.(GameStatus).Hole != 3 {
		t.Fatalf("outs=%#v", outs)
	}
	e.SetHole(4)
	if s := e.Stats(); s.Hole != 4 {
		t.Fatalf("stats after SetHole=%+v", s)
	}
}

func TestEngine_SweepEvictsIdle(t *testing.T) {
	e := newTestEngine(EngineConfig{IdleTimeout: 10 * time.Second})
	t0 := time.Unix(1700000000, 0)
	e.Handle(t0, peer(1), Knock{Version: 1, Name: "a"})
	e.Handle(t0, peer(2), Knock{Version: 1, Name: "b"})
	e.Handle(t0.Add(8*time.Second), peer(2), Ack{Seq: 1})

	evicted, outs := e.Sweep(t0.Add(12 * time.Second))
	if len(evicted) != 1 || evicted[0] != peer(1) {
		t.Fatalf("evicted=%v", evicted)
	}
	if len(outs) != 1 || outs[0].To != peer(2) {
		t.Fatalf("outs=%#v", outs)
	}
	if evicted, outs := e.Sweep(t0.Add(13 * time.Second)); evicted != nil || outs != nil {
		t.Fatalf("second sweep evicted=%v outs=%v", evicted, outs)
	}
}

func TestEngine_PingsSkipSelf(t *testing.T) {
	r := state.NewRoster()
	r.ClaimSelf("Host", time.Now())
	e := NewEngine(EngineConfig{Version: 1}, r)
	fill(t, e, 2)

	outs := e.Pings(3)
	if len(outs) != 2 {
		t.Fatalf("outs=%#v", outs)
	}
	for _, o := range outs {
		if o.To.IsZero() || o.Cmd != (Ping{Seq: 3}) {
			t.Fatalf("out=%#v", o)
		}
	}
	// Host holds slot 1 and the fills hold 2 and 3, leaving slot 4.
	outs = e.Handle(time.Now(), peer(7), Knock{Version: 1, Name: "late"})
	if outs[0].Cmd != (Welcome{Slot: 4}) {
		t.Fatalf("welcome=%#v", outs[0].Cmd)
	}
}
