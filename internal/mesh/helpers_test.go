package mesh

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

type fakeSender struct {
	name string
	act  []float64
	avg  float64
}

func (s *fakeSender) Name() string        { return s.name }
func (s *fakeSender) Len() int            { return len(s.act) }
func (s *fakeSender) Activity() []float64 { return s.act }
func (s *fakeSender) ActAvg() float64     { return s.avg }

func newSender(name string, act ...float64) *fakeSender {
	return &fakeSender{name: name, act: act, avg: 0.15}
}

func seeded() rand.Source {
	return rand.NewPCG(1, 2)
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func inUnitRange(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || v < 0 || v > 1 {
				return false
			}
		}
	}
	return true
}
