// Package layer implements the unit group: a set of units sharing dynamics,
// phase history and incoming meshes.
//
// A layer advances one time-step per Step call. Excitatory and inhibitory
// drives decay toward zero at rate DeltaTime and are incremented by
// DeltaTime times each incoming mesh's output, truncated or zero padded to
// the layer's size. Activity is always the activation function of the drive
// (or potential) except while clamped.
package layer

import (
	"errors"
	"fmt"

	"github.com/nvandessel/settle/internal/activation"
	"github.com/nvandessel/settle/internal/constants"
	"github.com/nvandessel/settle/internal/learning"
	"github.com/nvandessel/settle/internal/mesh"
	"github.com/nvandessel/settle/internal/monitor"
	"github.com/nvandessel/settle/internal/optimizer"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Config describes one layer.
type Config struct {
	Name       string
	Size       int
	Activation activation.Func
	Rule       learning.Rule
	Optimizer  optimizer.Factory
	Input      bool
	Target     bool
	Frozen     bool
	Params     Params
}

// projection is an incoming excitatory mesh with its learning state.
type projection struct {
	mesh    mesh.Mesh
	sender  *Layer
	opt     optimizer.Optimizer
	pending []*mat.Dense
}

// Layer is a unit group.
type Layer struct {
	name     string
	size     int
	act      activation.Func
	rule     learning.Rule
	newOpt   optimizer.Factory
	params   Params
	isInput  bool
	isTarget bool
	frozen   bool

	ge       []float64
	gi       []float64
	vm       []float64
	activity []float64
	clamped  bool
	steps    int

	gain   float64
	actAvg float64
	phases map[learning.Phase][]float64

	excitatory []*projection
	inhibitory []mesh.Mesh
}

// New creates a layer. A nil activation, rule or optimizer selects the
// sigmoid, CHL and the default optimizer respectively; zero fields of Params
// select their DefaultParams value.
func New(cfg Config) (*Layer, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("layer %q: size must be positive, got %d", cfg.Name, cfg.Size)
	}
	if cfg.Activation == nil {
		cfg.Activation = activation.Sigmoid
	}
	if cfg.Rule == nil {
		cfg.Rule = learning.CHL
	}
	if cfg.Optimizer == nil {
		f, err := optimizer.NewFactory(optimizer.DefaultConfig())
		if err != nil {
			return nil, err
		}
		cfg.Optimizer = f
	}
	cfg.Params = cfg.Params.withDefaults()

	return &Layer{
		name:     cfg.Name,
		size:     cfg.Size,
		act:      cfg.Activation,
		rule:     cfg.Rule,
		newOpt:   cfg.Optimizer,
		params:   cfg.Params,
		isInput:  cfg.Input,
		isTarget: cfg.Target,
		frozen:   cfg.Frozen,
		ge:       make([]float64, cfg.Size),
		gi:       make([]float64, cfg.Size),
		vm:       make([]float64, cfg.Size),
		activity: make([]float64, cfg.Size),
		gain:     cfg.Params.Gain,
		actAvg:   constants.ActAvgInit,
		phases:   make(map[learning.Phase][]float64),
	}, nil
}

func (l *Layer) Name() string { return l.name }
func (l *Layer) Len() int     { return l.size }

// Activity returns the current output activity. The slice is owned by the
// layer and must not be modified.
func (l *Layer) Activity() []float64 { return l.activity }

func (l *Layer) ActAvg() float64            { return l.actAvg }
func (l *Layer) Gain() float64              { return l.gain }
func (l *Layer) IsInput() bool              { return l.isInput }
func (l *Layer) IsTarget() bool             { return l.isTarget }
func (l *Layer) Frozen() bool               { return l.frozen }
func (l *Layer) SetFrozen(v bool)           { l.frozen = v }
func (l *Layer) Clamped() bool              { return l.clamped }
func (l *Layer) Dynamics() Dynamics         { return l.params.Dynamics }
func (l *Layer) ExcitatoryDrive() []float64 { return clone(l.ge) }
func (l *Layer) InhibitoryDrive() []float64 { return clone(l.gi) }
func (l *Layer) Potential() []float64       { return clone(l.vm) }

// SetState restores the running activity average and homeostatic gain, as
// reported by ActAvg and Gain. Receiving meshes pick the average up at their
// next rescale.
func (l *Layer) SetState(actAvg, gain float64) {
	l.actAvg = actAvg
	l.gain = gain
}

var (
	_ mesh.Sender   = (*Layer)(nil)
	_ learning.Unit = (*Layer)(nil)
)

// Connect attaches an excitatory mesh carrying activity from sender. Each
// connection gets its own optimizer instance.
func (l *Layer) Connect(m mesh.Mesh, sender *Layer) error {
	if m == nil || sender == nil {
		return errors.New("connect: mesh and sender are required")
	}
	l.excitatory = append(l.excitatory, &projection{mesh: m, sender: sender, opt: l.newOpt()})
	return nil
}

// ConnectInhibitory attaches an inhibitory mesh.
func (l *Layer) ConnectInhibitory(m mesh.Mesh) error {
	if m == nil {
		return errors.New("connect inhibitory: mesh is required")
	}
	l.inhibitory = append(l.inhibitory, m)
	return nil
}

// ExcitatoryMeshes returns the incoming excitatory meshes in attach order.
func (l *Layer) ExcitatoryMeshes() []mesh.Mesh {
	out := make([]mesh.Mesh, len(l.excitatory))
	for i, p := range l.excitatory {
		out[i] = p.mesh
	}
	return out
}

// InhibitoryMeshes returns the incoming inhibitory meshes.
func (l *Layer) InhibitoryMeshes() []mesh.Mesh {
	return append([]mesh.Mesh(nil), l.inhibitory...)
}

// UpdateScales rescales every incoming mesh against the summed relative
// scale of the excitatory meshes.
func (l *Layer) UpdateScales() {
	var total float64
	for _, p := range l.excitatory {
		total += p.mesh.RelScale()
	}
	for _, p := range l.excitatory {
		p.mesh.Rescale(total)
	}
	for _, m := range l.inhibitory {
		m.Rescale(total)
	}
}

// AddToExcitatory adds v into the excitatory drive.
func (l *Layer) AddToExcitatory(v []float64) {
	addInto(l.ge, v, 1)
}

// AddToInhibitory adds v into the inhibitory drive.
func (l *Layer) AddToInhibitory(v []float64) {
	addInto(l.gi, v, 1)
}

// SubtractFromInhibitory subtracts v from the inhibitory drive.
func (l *Layer) SubtractFromInhibitory(v []float64) {
	addInto(l.gi, v, -1)
}

// Step advances the layer by one time-step and returns a copy of the new
// activity. mon may be nil.
func (l *Layer) Step(mon monitor.Monitor) []float64 {
	dt := l.params.DeltaTime
	for i := range l.ge {
		l.ge[i] -= dt * l.ge[i]
		l.gi[i] -= dt * l.gi[i]
	}

	// Inhibitory meshes read their forward mesh's latest output, so the
	// excitatory meshes are applied first.
	for _, p := range l.excitatory {
		addInto(l.ge, p.mesh.Apply(), dt)
	}
	for _, m := range l.inhibitory {
		addInto(l.gi, m.Apply(), dt)
	}

	switch l.params.Dynamics {
	case DynamicsConductance, DynamicsGain:
		for i := range l.vm {
			drive := l.ge[i]*(l.params.Max-l.activity[i]) + l.gi[i]*(l.params.Min-l.activity[i])
			l.vm[i] += dt * (-l.vm[i] + l.gain*drive)
			l.activity[i] = l.act(l.vm[i])
		}
	default:
		for i := range l.activity {
			l.activity[i] = l.act(l.ge[i] - l.gi[i])
		}
	}

	l.clamped = false
	l.steps++
	l.Observe(mon)
	return clone(l.activity)
}

// Clamp forces the drives and activity to data, truncated or zero padded to
// the layer's size.
func (l *Layer) Clamp(data []float64) {
	for i := range l.activity {
		var v float64
		if i < len(data) {
			v = data[i]
		}
		l.ge[i] = v
		l.gi[i] = v
		l.activity[i] = v
	}
	l.clamped = true
}

// Observe sends the current state to mon. A nil monitor is ignored.
func (l *Layer) Observe(mon monitor.Monitor) {
	if mon == nil {
		return
	}
	mon.Observe(monitor.Snapshot{
		Layer:   l.name,
		Step:    l.steps,
		Clamped: l.clamped,
		Fields: map[string][]float64{
			monitor.FieldExcitatory: clone(l.ge),
			monitor.FieldInhibitory: clone(l.gi),
			monitor.FieldPotential:  clone(l.vm),
			monitor.FieldActivity:   clone(l.activity),
		},
	})
}

// Reset zeroes drives, potential and activity and clears per-sample mesh
// state. Phase history, running average and pending deltas are kept.
func (l *Layer) Reset() {
	for i := range l.activity {
		l.ge[i] = 0
		l.gi[i] = 0
		l.vm[i] = 0
		l.activity[i] = 0
	}
	l.clamped = false
	l.steps = 0
	for _, p := range l.excitatory {
		p.mesh.Reset()
	}
	for _, m := range l.inhibitory {
		m.Reset()
	}
}

// RecordPhase stores a copy of the current activity under p.
func (l *Layer) RecordPhase(p learning.Phase) {
	l.phases[p] = clone(l.activity)
}

// PhaseActivity returns the snapshot recorded for p. Input layers hold the
// same clamped boundary in both phases, so an unrecorded phase of an input
// layer reads as its current activity.
func (l *Layer) PhaseActivity(p learning.Phase) []float64 {
	if snap, ok := l.phases[p]; ok {
		return clone(snap)
	}
	if l.isInput {
		return clone(l.activity)
	}
	return nil
}

// UpdateActAvg moves the running activity average toward the current mean
// activity: avg += (dt/50)*(mean(act)-avg). Under DynamicsGain it also
// adapts the homeostatic gain.
func (l *Layer) UpdateActAvg() {
	rate := l.params.DeltaTime / constants.ActAvgDivisor
	l.actAvg += rate * (stat.Mean(l.activity, nil) - l.actAvg)

	if l.params.Dynamics == DynamicsGain {
		l.gain += l.params.GainRate * (l.params.TargetAvg - l.actAvg)
		l.gain = min(max(l.gain, l.params.GainMin), l.params.GainMax)
	}
}

// Learn computes a delta for every trainable incoming excitatory mesh from
// the recorded phases and buffers it. When batchComplete is set the buffered
// deltas of each mesh are averaged, passed through its optimizer and applied.
// Input and frozen layers do nothing.
func (l *Layer) Learn(batchComplete bool) error {
	if l.isInput || l.frozen {
		l.DiscardPending()
		return nil
	}
	for _, p := range l.excitatory {
		if !p.mesh.Trainable() {
			continue
		}
		p.pending = append(p.pending, l.rule(p.sender, l))
		if !batchComplete {
			continue
		}
		delta := mean(p.pending)
		p.pending = p.pending[:0]
		if err := p.mesh.Update(p.opt.Step(delta)); err != nil {
			return fmt.Errorf("layer %s: update mesh %s: %w", l.name, p.mesh.Name(), err)
		}
	}
	return nil
}

// Pending returns the number of buffered deltas on the first trainable mesh.
func (l *Layer) Pending() int {
	for _, p := range l.excitatory {
		if p.mesh.Trainable() {
			return len(p.pending)
		}
	}
	return 0
}

// DiscardPending drops every buffered delta.
func (l *Layer) DiscardPending() {
	for _, p := range l.excitatory {
		p.pending = p.pending[:0]
	}
}

// mean averages equally shaped matrices.
func mean(ds []*mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(ds[0])
	for _, d := range ds[1:] {
		out.Add(out, d)
	}
	if len(ds) > 1 {
		out.Scale(1/float64(len(ds)), out)
	}
	return out
}

// addInto adds scale*v into dst over their common length.
func addInto(dst, v []float64, scale float64) {
	n := min(len(dst), len(v))
	for i := 0; i < n; i++ {
		dst[i] += scale * v[i]
	}
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
