package mesh

import (
	"fmt"
	"math"

	"github.com/nvandessel/settle/internal/constants"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FFFB configures feed-forward / feedback inhibition.
type FFFB struct {
	// Gi is the overall inhibition gain. Default: 1.8.
	Gi float64 `yaml:"gi" json:"gi"`

	// FF scales the feed-forward term. Default: 1.
	FF float64 `yaml:"ff" json:"ff"`

	// FB scales the feedback term. Default: 1.
	FB float64 `yaml:"fb" json:"fb"`

	// FBTau is the integration rate of the feedback term. Default: 1/1.4.
	FBTau float64 `yaml:"fb_tau" json:"fb_tau"`

	// FF0 is the feed-forward drive subtracted before rectification. Default: 0.1.
	FF0 float64 `yaml:"ff0" json:"ff0"`
}

// DefaultFFFB returns the standard FFFB inhibition parameters.
func DefaultFFFB() FFFB {
	return FFFB{
		Gi:    constants.FFFBGi,
		FF:    constants.FFFBFF,
		FB:    constants.FFFBFB,
		FBTau: constants.FFFBFBTau,
		FF0:   constants.FFFBFF0,
	}
}

// Inhibitory approximates a pool of lateral inhibitory interneurons. Each
// unit's inhibition combines the rectified output of the paired forward mesh
// with a feedback term that tracks the receiver's mean activity:
//
//	Gi * (FF*max(ff - FF0, 0) + FB*fb),   fb += FBTau*(mean(act) - fb)
type Inhibitory struct {
	name   string
	ff     *Dense
	rcv    Sender
	params FFFB

	fb   float64
	last []float64
}

var _ Mesh = (*Inhibitory)(nil)

// NewInhibitory creates an FFFB mesh driven by ff's output into rcv.
func NewInhibitory(name string, ff *Dense, rcv Sender, p FFFB) *Inhibitory {
	return &Inhibitory{name: name, ff: ff, rcv: rcv, params: p}
}

func (m *Inhibitory) Name() string      { return m.name }
func (m *Inhibitory) Kind() Kind        { return KindInhibitory }
func (m *Inhibitory) Size() int         { return m.rcv.Len() }
func (m *Inhibitory) Source() Sender    { return m.ff.Source() }
func (m *Inhibitory) Trainable() bool   { return false }
func (m *Inhibitory) RelScale() float64 { return 0 }
func (m *Inhibitory) Rescale(float64)   {}
func (m *Inhibitory) Params() FFFB      { return m.params }
func (m *Inhibitory) Forward() *Dense   { return m.ff }

// Feedback returns the integrated feedback term.
func (m *Inhibitory) Feedback() float64 { return m.fb }

// Get returns the last inhibition signal as a column vector.
func (m *Inhibitory) Get() *mat.Dense {
	return mat.NewDense(m.Size(), 1, pad(m.last, m.Size()))
}

// Set always fails: inhibition is computed, not stored.
func (m *Inhibitory) Set(*mat.Dense) error {
	return fmt.Errorf("set weights on %s: %w", m.name, ErrReadOnly)
}

// Update is a no-op.
func (m *Inhibitory) Update(*mat.Dense) error { return nil }

// Reset clears the feedback integrator.
func (m *Inhibitory) Reset() {
	m.fb = 0
	m.last = nil
}

// Apply integrates the feedback term and returns the per-unit inhibition.
// It reads the forward mesh's most recent output, so the receiver must apply
// its excitatory meshes first.
func (m *Inhibitory) Apply() []float64 {
	n := m.rcv.Len()
	ffOut := pad(m.ff.LastOutput(), n)

	if act := m.rcv.Activity(); len(act) > 0 {
		m.fb += m.params.FBTau * (stat.Mean(act, nil) - m.fb)
	}

	out := make([]float64, n)
	for i, v := range ffOut {
		ff := math.Max(v-m.params.FF0, 0)
		out[i] = m.params.Gi * (m.params.FF*ff + m.params.FB*m.fb)
	}
	m.last = out
	return append([]float64(nil), out...)
}
