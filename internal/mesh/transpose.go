package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transpose is the feedback view of a forward mesh: it carries the forward
// mesh's receiver activity back to its sender through the transposed weights.
// It holds a non-owning handle on the forward mesh and never has weights of
// its own.
type Transpose struct {
	name          string
	fwd           *Dense
	src           Sender
	feedbackScale float64
}

var _ Mesh = (*Transpose)(nil)

// NewTranspose creates a feedback mesh over fwd. src is the forward mesh's
// receiving unit group.
func NewTranspose(name string, fwd *Dense, src Sender, feedbackScale float64) *Transpose {
	return &Transpose{name: name, fwd: fwd, src: src, feedbackScale: feedbackScale}
}

func (m *Transpose) Name() string           { return m.name }
func (m *Transpose) Kind() Kind             { return KindTranspose }
func (m *Transpose) Size() int              { return m.fwd.Size() }
func (m *Transpose) Source() Sender         { return m.src }
func (m *Transpose) Trainable() bool        { return false }
func (m *Transpose) RelScale() float64      { return m.feedbackScale }
func (m *Transpose) Rescale(float64)        {}
func (m *Transpose) Reset()                 {}
func (m *Transpose) Forward() *Dense        { return m.fwd }
func (m *Transpose) FeedbackScale() float64 { return m.feedbackScale }

// Get returns FeedbackScale * forward scale * Wᵀ.
func (m *Transpose) Get() *mat.Dense {
	var out mat.Dense
	out.Scale(m.feedbackScale*m.fwd.Scale(), m.fwd.weights.T())
	return &out
}

// Set always fails: the weights belong to the forward mesh.
func (m *Transpose) Set(*mat.Dense) error {
	return fmt.Errorf("set weights on %s: %w", m.name, ErrReadOnly)
}

// Update is a no-op; learning happens on the forward mesh.
func (m *Transpose) Update(*mat.Dense) error { return nil }

// Apply returns FeedbackScale * forward scale * Wᵀ @ v for the source activity v.
func (m *Transpose) Apply() []float64 {
	size := m.Size()
	x := mat.NewVecDense(size, pad(m.src.Activity(), size))
	out := mat.NewVecDense(size, nil)
	out.MulVec(m.fwd.weights.T(), x)
	out.ScaleVec(m.feedbackScale*m.fwd.Scale(), out)
	return out.RawVector().Data
}
