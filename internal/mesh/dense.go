package mesh

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dense is a plain trainable mesh owning a square weight matrix.
//
// Under BoundSigmoid the linear matrix is the only quantity learning touches;
// the applied weights are recomputed from it. The scaled matrix used by Apply
// is cached and rebuilt lazily whenever modified is set.
type Dense struct {
	name      string
	size      int
	src       Sender
	params    Params
	trainable bool

	weights *mat.Dense
	linear  *mat.Dense
	scale   float64

	modified bool
	scaled   *mat.Dense

	// delta-sender state
	lastAct []float64
	inAct   []float64

	lastOut []float64
}

var _ Mesh = (*Dense)(nil)

// NewDense creates a mesh from src into a receiver of rcvLen units. Initial
// weights are drawn uniformly from [InitMean-InitVar, InitMean+InitVar] using
// rng; a nil rng uses the global source.
func NewDense(name string, src Sender, rcvLen int, p Params, rng rand.Source) *Dense {
	p = p.withDefaults()
	size := max(src.Len(), rcvLen)
	m := &Dense{
		name:      name,
		size:      size,
		src:       src,
		params:    p,
		trainable: true,
		weights:   mat.NewDense(size, size, nil),
		linear:    mat.NewDense(size, size, nil),
		lastAct:   make([]float64, size),
		inAct:     make([]float64, size),
		modified:  true,
	}

	lo, hi := p.InitRange()
	dist := distuv.Uniform{Min: lo, Max: hi, Src: rng}
	init := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			init.Set(i, j, dist.Rand())
		}
	}
	// A square matrix of the mesh's own size always fits.
	_ = m.Set(init)
	m.Rescale(p.RelScale)
	return m
}

func (m *Dense) Name() string      { return m.name }
func (m *Dense) Kind() Kind        { return KindForward }
func (m *Dense) Size() int         { return m.size }
func (m *Dense) Source() Sender    { return m.src }
func (m *Dense) Trainable() bool   { return m.trainable }
func (m *Dense) RelScale() float64 { return m.params.RelScale }
func (m *Dense) Params() Params    { return m.params }

// Scale returns the current scale factor.
func (m *Dense) Scale() float64 { return m.scale }

// SetTrainable enables or disables Update.
func (m *Dense) SetTrainable(v bool) { m.trainable = v }

// Get returns a copy of the bounded weight matrix.
func (m *Dense) Get() *mat.Dense {
	return mat.DenseCopyOf(m.weights)
}

// Linear returns a copy of the linear (pre-bounding) weight matrix.
func (m *Dense) Linear() *mat.Dense {
	return mat.DenseCopyOf(m.linear)
}

// Set assigns the weight matrix into the top-left corner of the mesh and
// recomputes the linear matrix through the inverse bounding transform.
func (m *Dense) Set(w *mat.Dense) error {
	r, c := w.Dims()
	if r > m.size || c > m.size {
		return fmt.Errorf("mesh %s: weights %dx%d exceed mesh size %d", m.name, r, c, m.size)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := w.At(i, j)
			if m.params.NonNegative {
				v = math.Abs(v)
			}
			switch m.params.Bounding {
			case BoundSigmoid:
				v = clampUnit(v)
				m.linear.Set(i, j, InvSigmoid(v, m.params.Off, m.params.Gain))
			case BoundSoft:
				v = clampUnit(v)
				m.linear.Set(i, j, v)
			default:
				m.linear.Set(i, j, v)
			}
			m.weights.Set(i, j, v)
		}
	}
	m.modified = true
	return nil
}

// Update adds delta into the top-left corner of the linear matrix and
// recomputes the bounded weights. Entries of delta beyond the mesh size are
// ignored. Non-trainable meshes ignore the call.
func (m *Dense) Update(delta *mat.Dense) error {
	if !m.trainable {
		return nil
	}
	r, c := delta.Dims()
	r, c = min(r, m.size), min(c, m.size)

	if m.params.Bounding == BoundSoft {
		m.softUpdate(delta, r, c)
	} else {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d := delta.At(i, j)
				if math.IsNaN(d) {
					continue
				}
				l := m.linear.At(i, j) + d
				if m.params.Bounding == BoundSigmoid {
					l = clampUnit(l)
					m.weights.Set(i, j, Sigmoid(l, m.params.Off, m.params.Gain))
				} else {
					m.weights.Set(i, j, l)
				}
				m.linear.Set(i, j, l)
			}
		}
	}

	if m.params.NonNegative {
		m.weights.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, m.weights)
	}
	m.modified = true
	return nil
}

// softUpdate applies delta scaled toward the bound it moves to. Connections
// outside the r x c delta decay by params.Decay.
func (m *Dense) softUpdate(delta *mat.Dense, r, c int) {
	decay := m.params.DecayRate()
	for i := 0; i < m.size; i++ {
		for j := 0; j < m.size; j++ {
			d := -decay
			if i < r && j < c {
				d = delta.At(i, j)
			}
			if math.IsNaN(d) {
				continue
			}
			w := m.weights.At(i, j)
			if d > 0 {
				d *= m.params.IncRate * (1 - w)
			} else {
				d *= m.params.DecRate * w
			}
			w = clampUnit(w + d)
			m.weights.Set(i, j, w)
			m.linear.Set(i, j, w)
		}
	}
}

// Rescale sets the scale factor to AbsScale*RelScale/totalRel, divided by the
// expected number of active sender units (at least one).
func (m *Dense) Rescale(totalRel float64) {
	if totalRel <= 0 {
		totalRel = m.params.RelScale
	}
	scale := m.params.AbsScale
	if totalRel > 0 {
		scale *= m.params.RelScale / totalRel
	}
	active := math.Max(math.Round(m.src.ActAvg()*float64(m.src.Len())), 1)
	scale /= active
	if scale != m.scale {
		m.scale = scale
		m.modified = true
	}
}

// Apply returns Scale * W @ effective sender activity, padded to Size.
func (m *Dense) Apply() []float64 {
	x := mat.NewVecDense(m.size, m.effectiveActivity())
	out := mat.NewVecDense(m.size, nil)
	out.MulVec(m.scaledWeights(), x)
	m.lastOut = out.RawVector().Data
	return append([]float64(nil), m.lastOut...)
}

// LastOutput returns the result of the most recent Apply, or nil after Reset.
func (m *Dense) LastOutput() []float64 {
	return m.lastOut
}

// Reset clears the delta-sender history.
func (m *Dense) Reset() {
	for i := range m.lastAct {
		m.lastAct[i] = 0
		m.inAct[i] = 0
	}
	m.lastOut = nil
}

func (m *Dense) scaledWeights() *mat.Dense {
	if m.modified || m.scaled == nil {
		if m.scaled == nil {
			m.scaled = mat.NewDense(m.size, m.size, nil)
		}
		m.scaled.Scale(m.scale, m.weights)
		m.modified = false
	}
	return m.scaled
}

func (m *Dense) effectiveActivity() []float64 {
	data := pad(m.src.Activity(), m.size)
	th := m.params.Thresholds
	if !th.Enabled() {
		return data
	}
	for i, v := range data {
		delta := v - m.lastAct[i]
		if v <= th.Send || math.Abs(delta) <= th.Delta {
			delta = 0
		} else {
			m.lastAct[i] = v
		}
		if m.lastAct[i] > th.Send && v <= th.Send {
			delta = -m.lastAct[i]
			m.lastAct[i] = 0
		}
		m.inAct[i] += delta
	}
	return append([]float64(nil), m.inAct...)
}
