// Package constants provides named numeric defaults shared by the settle packages.
// Centralizing them keeps the dynamics, mesh and network defaults in one place.
package constants

// Integration constants
const (
	// DeltaTime is the integration time-step used by every settle step.
	DeltaTime = 0.1

	// ActAvgDivisor divides DeltaTime to give the rate of the running activity
	// average: avg += (DeltaTime/ActAvgDivisor) * (mean(act) - avg).
	ActAvgDivisor = 50.0

	// ActAvgInit is the starting value of a layer's running activity average.
	ActAvgInit = 0.15
)

// Settle budget defaults
const (
	// DefaultMinusSteps is the number of time-steps in the minus phase.
	DefaultMinusSteps = 25

	// DefaultPlusSteps is the number of time-steps in the plus phase.
	DefaultPlusSteps = 25

	// DefaultEpochs is the number of training epochs when none is configured.
	DefaultEpochs = 50
)

// Weight bounding defaults
const (
	// SigmoidOffset is the offset of the sigmoidal bounding transform.
	SigmoidOffset = 1.0

	// SigmoidGain is the gain (contrast) of the sigmoidal bounding transform.
	SigmoidGain = 6.0

	// InitWeightMean and InitWeightVar describe the uniform initial weight
	// distribution [Mean-Var, Mean+Var].
	InitWeightMean = 0.5
	InitWeightVar  = 0.25

	// SoftDecay is the implicit decay applied by soft-bounded meshes to
	// connections outside the learned delta.
	SoftDecay = 0.1

	// FeedbackRelScale is the default relative scale of transpose meshes.
	FeedbackRelScale = 0.2
)

// Feed-forward / feedback inhibition defaults
const (
	FFFBGi    = 1.8
	FFFBFF    = 1.0
	FFFBFB    = 1.0
	FFFBFF0   = 0.1
	FFFBFBTau = 1 / 1.4
)

// Optimizer defaults
const (
	// DefaultLearningRate scales raw deltas in the simple optimizer.
	DefaultLearningRate = 0.1

	// DefaultMomentum is the momentum coefficient of the momentum optimizer.
	DefaultMomentum = 0.9
)
