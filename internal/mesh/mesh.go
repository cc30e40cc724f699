// Package mesh implements the synaptic transforms that carry one unit group's
// activity into another's drive.
//
// Every mesh satisfies the Mesh capability interface. Behaviour is selected
// at construction rather than by type hierarchy:
//   - Dense is the plain trainable mesh. Params.Bounding picks sigmoidal,
//     soft or no weight bounding and Params.NonNegative makes it an
//     absolute-value mesh.
//   - Transpose is a read-only feedback view of a forward Dense mesh.
//   - Inhibitory computes feed-forward/feedback (FFFB) lateral inhibition.
package mesh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/settle/internal/constants"
	"gonum.org/v1/gonum/mat"
)

// ErrReadOnly is returned when weights are set on a derived mesh.
var ErrReadOnly = errors.New("mesh is read-only")

// Sender is the view of a unit group a mesh reads from.
type Sender interface {
	Name() string
	Len() int
	Activity() []float64
	ActAvg() float64
}

// Mesh is the capability interface shared by all mesh kinds.
type Mesh interface {
	Name() string
	Kind() Kind
	// Size is the side of the (square) weight matrix and the length of Apply's output.
	Size() int
	// Source is the unit group whose activity the mesh transforms.
	Source() Sender
	// Apply reads the source activity and returns the mesh's contribution to
	// the receiver's drive.
	Apply() []float64
	// Get returns a copy of the bounded weight matrix.
	Get() *mat.Dense
	Set(w *mat.Dense) error
	// Update adds a learned delta (receiver x sender). It is a no-op on
	// meshes that are not trainable.
	Update(delta *mat.Dense) error
	Trainable() bool
	// RelScale is the mesh's share in its receiver's excitatory input.
	RelScale() float64
	// Rescale recomputes the scale factor from the receiver's total RelScale
	// and the sender's running activity average.
	Rescale(totalRel float64)
	// Reset clears per-sample state (delta-sender history, feedback inhibition).
	Reset()
}

// Kind tags the mesh variants.
type Kind int

const (
	KindForward Kind = iota
	KindTranspose
	KindInhibitory
)

func (k Kind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindTranspose:
		return "transpose"
	case KindInhibitory:
		return "inhibitory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Bounding selects how a Dense mesh keeps its weights in range.
type Bounding int

const (
	// BoundSigmoid keeps an unbounded linear accumulator and derives the
	// applied weights through the sigmoidal bounding transform.
	BoundSigmoid Bounding = iota
	// BoundNone applies the linear weights directly.
	BoundNone
	// BoundSoft scales each update by the distance to the bound it moves toward.
	BoundSoft
)

func (b Bounding) String() string {
	switch b {
	case BoundSigmoid:
		return "sigmoid"
	case BoundNone:
		return "none"
	case BoundSoft:
		return "soft"
	default:
		return fmt.Sprintf("bounding(%d)", int(b))
	}
}

// ParseBounding maps a configuration name onto a Bounding. The empty string
// selects BoundSigmoid.
func ParseBounding(s string) (Bounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sigmoid", "sigmoidal":
		return BoundSigmoid, nil
	case "none", "linear":
		return BoundNone, nil
	case "soft":
		return BoundSoft, nil
	default:
		return 0, fmt.Errorf("unknown weight bounding %q", s)
	}
}

// Thresholds gate small signals on the sending side. A sender unit's change
// is forwarded only when its activity exceeds Send and the change since the
// last forwarded value exceeds Delta; a unit dropping to or below Send
// withdraws its last forwarded value. Zero values disable gating.
type Thresholds struct {
	Send  float64 `yaml:"send" json:"send"`
	Delta float64 `yaml:"delta" json:"delta"`
}

// Enabled reports whether any gating is configured.
func (t Thresholds) Enabled() bool {
	return t.Send > 0 || t.Delta > 0
}

// Params configures a Dense mesh.
type Params struct {
	// AbsScale is the absolute scale of the mesh's contribution. Default: 1.
	AbsScale float64

	// RelScale is the mesh's share relative to the receiver's other
	// excitatory meshes. Default: 1.
	RelScale float64

	// Bounding selects the weight bounding scheme. Default: BoundSigmoid.
	Bounding Bounding

	// Off and Gain shape the sigmoidal bounding transform. Defaults: 1 and 6.
	Off  float64
	Gain float64

	// NonNegative forces weights to their absolute value after every set and update.
	NonNegative bool

	// IncRate and DecRate scale positive and negative soft-bounded updates. Default: 1.
	IncRate float64
	DecRate float64

	// Decay is the soft-bounded decay of connections outside a delta.
	// Nil selects 0.1; a pointer to 0 disables decay.
	Decay *float64

	// InitMean and InitVar set the uniform initial weight range
	// [InitMean-InitVar, InitMean+InitVar]. Nil selects 0.5 and 0.25.
	InitMean *float64
	InitVar  *float64

	Thresholds Thresholds
}

// DefaultParams returns sigmoid-bounded mesh parameters.
func DefaultParams() Params {
	return Params{
		AbsScale: 1,
		RelScale: 1,
		Bounding: BoundSigmoid,
		Off:      constants.SigmoidOffset,
		Gain:     constants.SigmoidGain,
		IncRate:  1,
		DecRate:  1,
		Decay:    new(float64(constants.SoftDecay)),
		InitMean: new(float64(constants.InitWeightMean)),
		InitVar:  new(float64(constants.InitWeightVar)),
	}
}

// withDefaults fills every unset field from DefaultParams, one field at a
// time, so setting a single field keeps the defaults of the others.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.AbsScale == 0 {
		p.AbsScale = d.AbsScale
	}
	if p.RelScale == 0 {
		p.RelScale = d.RelScale
	}
	if p.Off == 0 {
		p.Off = d.Off
	}
	if p.Gain == 0 {
		p.Gain = d.Gain
	}
	if p.IncRate == 0 {
		p.IncRate = d.IncRate
	}
	if p.DecRate == 0 {
		p.DecRate = d.DecRate
	}
	if p.Decay == nil {
		p.Decay = d.Decay
	}
	if p.InitMean == nil {
		p.InitMean = d.InitMean
	}
	if p.InitVar == nil {
		p.InitVar = d.InitVar
	}
	return p
}

// DecayRate returns the resolved soft-bounded decay.
func (p Params) DecayRate() float64 { return deref(p.Decay, constants.SoftDecay) }

// InitRange returns the resolved bounds of the uniform initial weights.
func (p Params) InitRange() (lo, hi float64) {
	mean := deref(p.InitMean, constants.InitWeightMean)
	v := deref(p.InitVar, constants.InitWeightVar)
	return mean - v, mean + v
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// pad returns v truncated or zero padded to length n.
func pad(v []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, v)
	return out
}
