// Package presence converts per-frame presence signals into throttled sighting events.
//
// Each target class runs an independent two-state machine (absent, present). A class
// that appears always emits an event. While it stays present, further events are
// emitted at most once per throttle interval. Absence clears the presence state but
// keeps the time of the last event.
//
// An Engine is owned by a single goroutine and performs no locking.
package presence

import (
	"time"

	"birdcam/internal/model"
)

// State is the presence state of one class.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Signal is the per-frame presence input for every class.
type Signal interface {
	Present(name string) bool
}

// Snapshot is a read-only copy of a class state.
type Snapshot struct {
	State        State
	PresentSince time.Time // zero while absent
	LastLoggedAt time.Time // zero until the first event
	Logged       bool
}

type classState struct {
	present      bool
	presentSince time.Time
	logged       bool
	lastLoggedAt time.Time
}

// Engine tracks every target class.
type Engine struct {
	interval time.Duration
	classes  []model.TargetClass
	states   map[string]*classState
}

// NewEngine creates an engine with every class absent.
func NewEngine(classes []model.TargetClass, interval time.Duration) *Engine {
	e := &Engine{
		interval: interval,
		classes:  append([]model.TargetClass(nil), classes...),
		states:   make(map[string]*classState, len(classes)),
	}
	for _, c := range classes {
		e.states[c.Name] = &classState{}
	}
	return e
}

// Interval returns the throttle interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Observe feeds one frame's presence flag for a class and reports whether an event
// must be emitted at now. Unknown classes never emit.
func (e *Engine) Observe(class string, present bool, now time.Time) bool {
	st, ok := e.states[class]
	if !ok {
		return false
	}

	if !present {
		// lastLoggedAt survives absence on purpose.
		st.present = false
		st.presentSince = time.Time{}
		return false
	}

	if !st.present {
		st.present = true
		st.presentSince = now
		st.markLogged(now)
		return true
	}

	if !st.logged || now.Sub(st.lastLoggedAt) >= e.interval {
		st.markLogged(now)
		return true
	}
	return false
}

// markLogged keeps lastLoggedAt monotonic even if the clock steps backwards.
func (st *classState) markLogged(now time.Time) {
	if !st.logged || now.After(st.lastLoggedAt) {
		st.lastLoggedAt = now
	}
	st.logged = true
}

// Update runs every class machine for one frame and returns the classes that emit,
// in resolution order.
func (e *Engine) Update(signal Signal, now time.Time) []model.TargetClass {
	var emitted []model.TargetClass
	for _, c := range e.classes {
		if e.Observe(c.Name, signal.Present(c.Name), now) {
			emitted = append(emitted, c)
		}
	}
	return emitted
}

// Snapshot returns the state of a class.
func (e *Engine) Snapshot(class string) (Snapshot, bool) {
	st, ok := e.states[class]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{
		State:        Absent,
		PresentSince: st.presentSince,
		LastLoggedAt: st.lastLoggedAt,
		Logged:       st.logged,
	}
	if st.present {
		snap.State = Present
	}
	return snap, true
}

// Classes returns the tracked classes in resolution order.
func (e *Engine) Classes() []model.TargetClass {
	return append([]model.TargetClass(nil), e.classes...)
}
