// Package learning implements the local, phase-contrastive learning rules.
//
// A rule compares the activity a pair of unit groups settled to in the minus
// phase (input clamped) and the plus phase (input and target clamped) and
// returns a raw weight delta with one row per receiving unit and one column
// per sending unit. Rules are pure: evaluating one twice on the same phase
// snapshots yields the same matrix.
package learning

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Phase names a settled state recorded by a unit group.
type Phase string

const (
	// PhaseMinus is the state settled with only the input clamped.
	PhaseMinus Phase = "minus"
	// PhasePlus is the state settled with input and target clamped.
	PhasePlus Phase = "plus"
)

// Unit is the view of a unit group a learning rule needs.
type Unit interface {
	Len() int
	// PhaseActivity returns the activity snapshot recorded for phase, or nil
	// when the phase has not been recorded.
	PhaseActivity(p Phase) []float64
}

// Rule computes a raw delta matrix (receiver x sender) from phase snapshots.
type Rule func(snd, rcv Unit) *mat.Dense

// Rule names.
const (
	RuleCHL     = "chl"
	RuleGeneRec = "generec"
)

// ErrUnknownRule is returned by RuleByName for unregistered names.
var ErrUnknownRule = errors.New("unknown learning rule")

// CHL is the symmetric contrastive Hebbian rule:
// plus_rcv ⊗ plus_snd - minus_rcv ⊗ minus_snd.
func CHL(snd, rcv Unit) *mat.Dense {
	plus := outer(phase(rcv, PhasePlus), phase(snd, PhasePlus))
	minus := outer(phase(rcv, PhaseMinus), phase(snd, PhaseMinus))
	plus.Sub(plus, minus)
	return plus
}

// GeneRec uses only the receiver's phase difference against the sender's
// minus-phase activity: (plus_rcv - minus_rcv) ⊗ minus_snd.
func GeneRec(snd, rcv Unit) *mat.Dense {
	plus := phase(rcv, PhasePlus)
	minus := phase(rcv, PhaseMinus)
	diff := make([]float64, len(plus))
	for i := range plus {
		diff[i] = plus[i] - minus[i]
	}
	return outer(diff, phase(snd, PhaseMinus))
}

// NormalizeRuleName maps aliases onto canonical rule names.
func NormalizeRuleName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RuleCHL, "contrastive", "contrastive_hebbian":
		return RuleCHL
	case RuleGeneRec, "gene_rec":
		return RuleGeneRec
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// RuleByName resolves a rule by (normalized) name. The empty name is CHL.
func RuleByName(name string) (Rule, error) {
	switch NormalizeRuleName(name) {
	case RuleCHL:
		return CHL, nil
	case RuleGeneRec:
		return GeneRec, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
}

// phase returns u's snapshot for p sized to u.Len(), zero filled when missing.
func phase(u Unit, p Phase) []float64 {
	out := make([]float64, u.Len())
	copy(out, u.PhaseActivity(p))
	return out
}

func outer(rows, cols []float64) *mat.Dense {
	d := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		if r == 0 {
			continue
		}
		for j, c := range cols {
			d.Set(i, j, r*c)
		}
	}
	return d
}
