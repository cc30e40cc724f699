package layer

import (
	"fmt"
	"strings"

	"github.com/nvandessel/settle/internal/constants"
)

// Dynamics selects how drive is turned into activity.
type Dynamics int

const (
	// DynamicsSimple applies the activation function to the net drive ge-gi.
	DynamicsSimple Dynamics = iota
	// DynamicsConductance integrates a membrane-like potential driven by
	// ge*(Max-act) + gi*(Min-act) and applies the activation to it.
	DynamicsConductance
	// DynamicsGain is DynamicsConductance with a homeostatic gain that
	// tracks the running activity average toward TargetAvg.
	DynamicsGain
)

func (d Dynamics) String() string {
	switch d {
	case DynamicsSimple:
		return "simple"
	case DynamicsConductance:
		return "conductance"
	case DynamicsGain:
		return "gain"
	default:
		return fmt.Sprintf("dynamics(%d)", int(d))
	}
}

// ParseDynamics maps a configuration name onto a Dynamics. The empty string
// selects DynamicsSimple.
func ParseDynamics(s string) (Dynamics, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple":
		return DynamicsSimple, nil
	case "conductance":
		return DynamicsConductance, nil
	case "gain", "gain-normalized", "gain_normalized":
		return DynamicsGain, nil
	default:
		return 0, fmt.Errorf("unknown dynamics %q", s)
	}
}

// Params configures unit dynamics.
type Params struct {
	Dynamics Dynamics

	// DeltaTime is the integration step. Default: 0.1.
	DeltaTime float64

	// Max and Min are the activity levels excitatory and inhibitory drive
	// pull toward under conductance dynamics. Defaults: 1 and 0. A zero Max
	// selects the default.
	Max float64
	Min float64

	// Gain scales the conductance drive. Default: 1.
	Gain float64

	// TargetAvg, GainRate, GainMin and GainMax control the homeostatic gain
	// of DynamicsGain. Defaults: 0.15, 0.01, 0.1, 10. Zero fields select
	// their default.
	TargetAvg float64
	GainRate  float64
	GainMin   float64
	GainMax   float64
}

// DefaultParams returns simple dynamics at the standard time-step.
func DefaultParams() Params {
	return Params{
		Dynamics:  DynamicsSimple,
		DeltaTime: constants.DeltaTime,
		Max:       1,
		Min:       0,
		Gain:      1,
		TargetAvg: constants.ActAvgInit,
		GainRate:  0.01,
		GainMin:   0.1,
		GainMax:   10,
	}
}

// withDefaults fills every zero field from DefaultParams. Dynamics and Min
// default to their zero values.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.DeltaTime <= 0 {
		p.DeltaTime = d.DeltaTime
	}
	if p.Max == 0 {
		p.Max = d.Max
	}
	if p.Gain == 0 {
		p.Gain = d.Gain
	}
	if p.TargetAvg == 0 {
		p.TargetAvg = d.TargetAvg
	}
	if p.GainRate == 0 {
		p.GainRate = d.GainRate
	}
	if p.GainMin == 0 {
		p.GainMin = d.GainMin
	}
	if p.GainMax == 0 {
		p.GainMax = d.GainMax
	}
	return p
}
