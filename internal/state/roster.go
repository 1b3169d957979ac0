package state

import (
	"sync"
	"time"

	"lobbynet/internal/endpoint"
)

// MaxSlots is the number of player seats in a session.
const MaxSlots = 4

// AdmitOutcome is the result of Roster.Admit. None of the outcomes is an error.
type AdmitOutcome int

const (
	Admitted AdmitOutcome = iota
	Duplicate
	Full
)

func (o AdmitOutcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Slot is one server-side seat.
type Slot struct {
	Active   bool
	IsSelf   bool // the hosting player; never matched against peers
	Endpoint endpoint.Endpoint
	LastSeen time.Time
	Name     string
}

// SlotView is the externally visible part of a slot.
type SlotView struct {
	Active bool
	Name   string
}

// Roster is the server's fixed table of seats, keyed by peer endpoint.
// It is safe for concurrent use; the dispatcher is its only writer.
type Roster struct {
	mu    sync.RWMutex
	slots [MaxSlots]Slot
}

func NewRoster() *Roster {
	return &Roster{}
}

// ClaimSelf marks slot 0 as the host's own seat. It fails if slot 0 is taken.
func (r *Roster) ClaimSelf(name string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[0].Active {
		return false
	}
	r.slots[0] = Slot{Active: true, IsSelf: true, LastSeen: now, Name: name}
	return true
}

// Admit seats ep in the lowest free slot. An endpoint that is already seated
// yields Duplicate with its existing index and leaves the roster untouched.
func (r *Roster) Admit(ep endpoint.Endpoint, name string, now time.Time) (int, AdmitOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(ep); i >= 0 {
		return i, Duplicate
	}
	for i := range r.slots {
		if r.slots[i].Active {
			continue
		}
		r.slots[i] = Slot{Active: true, Endpoint: ep, LastSeen: now, Name: name}
		return i, Admitted
	}
	return -1, Full
}

// Remove frees the slot held by ep.
func (r *Roster) Remove(ep endpoint.Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(ep)
	if i < 0 {
		return false
	}
	r.slots[i] = Slot{}
	return true
}

func (r *Roster) IsMember(ep endpoint.Endpoint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(ep) >= 0
}

// Index returns the slot index held by ep, or -1.
func (r *Roster) Index(ep endpoint.Endpoint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(ep)
}

// Touch refreshes the last-seen time of ep's slot.
func (r *Roster) Touch(ep endpoint.Endpoint, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(ep)
	if i < 0 {
		return false
	}
	r.slots[i].LastSeen = now
	return true
}

// Snapshot copies {active, name} of every slot in index order. Inactive slots
// always carry an empty name.
func (r *Roster) Snapshot() [MaxSlots]SlotView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out [MaxSlots]SlotView
	for i, s := range r.slots {
		if s.Active {
			out[i] = SlotView{Active: true, Name: s.Name}
		}
	}
	return out
}

// Slots returns a full copy of the table.
func (r *Roster) Slots() [MaxSlots]Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots
}

// Members returns the endpoints of active, non-self slots in index order.
func (r *Roster) Members() []endpoint.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]endpoint.Endpoint, 0, MaxSlots)
	for _, s := range r.slots {
		if s.Active && !s.IsSelf {
			out = append(out, s.Endpoint)
		}
	}
	return out
}

// Count returns the number of active slots, self included.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.slots {
		if s.Active {
			n++
		}
	}
	return n
}

// SweepIdle frees every non-self slot not seen for at least timeout and
// returns the evicted endpoints. timeout <= 0 disables the sweep.
func (r *Roster) SweepIdle(now time.Time, timeout time.Duration) []endpoint.Endpoint {
	if timeout <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []endpoint.Endpoint
	for i, s := range r.slots {
		if !s.Active || s.IsSelf {
			continue
		}
		if now.Sub(s.LastSeen) >= timeout {
			evicted = append(evicted, s.Endpoint)
			r.slots[i] = Slot{}
		}
	}
	return evicted
}

func (r *Roster) indexLocked(ep endpoint.Endpoint) int {
	for i, s := range r.slots {
		if s.Active && !s.IsSelf && s.Endpoint == ep {
			return i
		}
	}
	return -1
}
