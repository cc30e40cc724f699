// Package monitor defines the observation hook called once per unit group per
// settle time-step. Monitors are purely observational: they receive copies of
// the state and must not feed anything back into the network.
package monitor

import "sync"

// Field names carried in a Snapshot.
const (
	FieldExcitatory = "ge"
	FieldInhibitory = "gi"
	FieldPotential  = "vm"
	FieldActivity   = "act"
)

// Snapshot is the state of one unit group after one time-step.
type Snapshot struct {
	Layer   string               `json:"layer"`
	Phase   string               `json:"phase,omitempty"`
	Step    int                  `json:"step"`
	Clamped bool                 `json:"clamped"`
	Fields  map[string][]float64 `json:"fields"`
}

// Monitor receives snapshots.
type Monitor interface {
	Observe(s Snapshot)
}

// Func adapts a function to the Monitor interface.
type Func func(s Snapshot)

// Observe calls f(s).
func (f Func) Observe(s Snapshot) { f(s) }

// Nop discards every snapshot.
var Nop Monitor = Func(func(Snapshot) {})

type multi []Monitor

func (m multi) Observe(s Snapshot) {
	for _, mon := range m {
		mon.Observe(s)
	}
}

// Multi fans snapshots out to every non-nil monitor.
func Multi(monitors ...Monitor) Monitor {
	var out multi
	for _, m := range monitors {
		if m != nil {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return Nop
	}
	return out
}

// Recorder keeps every snapshot in memory. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

// Observe appends s.
func (r *Recorder) Observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

// Snapshots returns all recorded snapshots in arrival order.
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snapshots...)
}

// Layer returns the snapshots recorded for one unit group.
func (r *Recorder) Layer(name string) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, s := range r.snapshots {
		if s.Layer == name {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of recorded snapshots.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// Reset drops every recorded snapshot.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = nil
}
