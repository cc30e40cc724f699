// Package optimizer scales raw weight deltas before they reach a mesh.
//
// An Optimizer may hold state (momentum, step counts), so every trainable
// mesh receives its own instance from a Factory.
package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/settle/internal/constants"
	"gonum.org/v1/gonum/mat"
)

// Optimizer maps a raw delta to the delta actually applied.
type Optimizer interface {
	Step(delta *mat.Dense) *mat.Dense
}

// Factory creates a fresh Optimizer for one mesh.
type Factory func() Optimizer

// Optimizer names.
const (
	NameSimple   = "simple"
	NameDecay    = "decay"
	NameMomentum = "momentum"
)

// ErrUnknown is returned by NewFactory for unrecognized optimizer names.
var ErrUnknown = errors.New("unknown optimizer")

// Config selects and parameterizes an optimizer.
type Config struct {
	Name         string  `yaml:"name" json:"name"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	DecayRate    float64 `yaml:"decay_rate" json:"decay_rate"`
	Momentum     float64 `yaml:"momentum" json:"momentum"`
}

// DefaultConfig returns the simple optimizer at the default learning rate.
func DefaultConfig() Config {
	return Config{
		Name:         NameSimple,
		LearningRate: constants.DefaultLearningRate,
		Momentum:     constants.DefaultMomentum,
	}
}

// NewFactory validates cfg and returns a factory for it.
func NewFactory(cfg Config) (Factory, error) {
	if cfg.LearningRate < 0 {
		return nil, fmt.Errorf("optimizer %q: learning rate must be non-negative, got %v", cfg.Name, cfg.LearningRate)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", NameSimple:
		return func() Optimizer { return &Simple{LearningRate: cfg.LearningRate} }, nil
	case NameDecay:
		if cfg.DecayRate < 0 {
			return nil, fmt.Errorf("optimizer decay: decay rate must be non-negative, got %v", cfg.DecayRate)
		}
		return func() Optimizer {
			return &Decay{LearningRate: cfg.LearningRate, DecayRate: cfg.DecayRate}
		}, nil
	case NameMomentum:
		if cfg.Momentum < 0 || cfg.Momentum >= 1 {
			return nil, fmt.Errorf("optimizer momentum: beta must be in [0,1), got %v", cfg.Momentum)
		}
		return func() Optimizer {
			return &Momentum{LearningRate: cfg.LearningRate, Beta: cfg.Momentum}
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknown, cfg.Name)
	}
}

// Simple multiplies every delta by a fixed learning rate.
type Simple struct {
	LearningRate float64
}

// Step returns LearningRate * delta.
func (s *Simple) Step(delta *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(s.LearningRate, delta)
	return &out
}

// Decay anneals the learning rate as LearningRate / (1 + DecayRate*n), where
// n is the number of steps already taken.
type Decay struct {
	LearningRate float64
	DecayRate    float64

	steps int
}

// Step returns the annealed delta and advances the step count.
func (d *Decay) Step(delta *mat.Dense) *mat.Dense {
	rate := d.LearningRate / (1 + d.DecayRate*float64(d.steps))
	d.steps++
	var out mat.Dense
	out.Scale(rate, delta)
	return &out
}

// Momentum accumulates a velocity v = Beta*v + delta and returns LearningRate*v.
type Momentum struct {
	LearningRate float64
	Beta         float64

	velocity *mat.Dense
}

// Step folds delta into the velocity. A delta whose shape differs from the
// stored velocity restarts accumulation.
func (m *Momentum) Step(delta *mat.Dense) *mat.Dense {
	if m.velocity == nil || !sameShape(m.velocity, delta) {
		m.velocity = mat.DenseCopyOf(delta)
	} else {
		m.velocity.Scale(m.Beta, m.velocity)
		m.velocity.Add(m.velocity, delta)
	}
	var out mat.Dense
	out.Scale(m.LearningRate, m.velocity)
	return &out
}

func sameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}
