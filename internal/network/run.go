package network

import (
	"context"
	"fmt"

	"github.com/nvandessel/settle/internal/constants"
	"github.com/nvandessel/settle/internal/learning"
	"github.com/nvandessel/settle/internal/monitor"
)

// History maps a metric name to its per-epoch values. Entry 0 is the
// baseline epoch, which runs without learning.
type History map[string][]float64

// Epochs returns the number of completed epochs.
func (h History) Epochs() int {
	for _, v := range h {
		return len(v)
	}
	return 0
}

// Final returns the last recorded value of a metric, or 0.
func (h History) Final(name string) float64 {
	v := h[name]
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

// TrainOptions controls Learn.
type TrainOptions struct {
	Epochs int
	// MinusSteps and PlusSteps default to the network configuration.
	MinusSteps int
	PlusSteps  int
	// BatchSize is the number of samples whose deltas are averaged per
	// update. Values below 2 update after every sample.
	BatchSize int
	// Repeat runs each sample this many times per epoch.
	Repeat int
	// Shuffle permutes the sample order every epoch.
	Shuffle bool
	// Reset clears activity before every trial.
	Reset bool
	// AfterEpoch, when non-nil, is called with the scores of every
	// completed epoch.
	AfterEpoch func(epoch int, scores map[string]float64)
}

// DefaultTrainOptions returns per-sample updates with reset between samples.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:    constants.DefaultEpochs,
		BatchSize: 1,
		Repeat:    1,
		Reset:     true,
	}
}

func (o TrainOptions) withDefaults(cfg Config) TrainOptions {
	if o.Epochs <= 0 {
		o.Epochs = constants.DefaultEpochs
	}
	if o.MinusSteps <= 0 {
		o.MinusSteps = cfg.MinusSteps
	}
	if o.PlusSteps <= 0 {
		o.PlusSteps = cfg.PlusSteps
	}
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.Repeat < 1 {
		o.Repeat = 1
	}
	return o
}

// ResetActivity resets every layer's activity and per-sample mesh state.
func (n *Network) ResetActivity() {
	for _, l := range n.layers {
		l.Reset()
	}
}

// UpdateScales refreshes the scale of every mesh from the current activity
// averages.
func (n *Network) UpdateScales() {
	for _, l := range n.layers {
		l.UpdateScales()
	}
}

// PredictStep clamps input and advances every other layer one time-step.
func (n *Network) PredictStep(input []float64) {
	n.predictStep(input, n.phaseMonitor(learning.PhaseMinus))
}

// ObserveStep clamps input and target and advances the layers between them
// one time-step.
func (n *Network) ObserveStep(input, target []float64) {
	n.observeStep(input, target, n.phaseMonitor(learning.PhasePlus))
}

func (n *Network) predictStep(input []float64, mon monitor.Monitor) {
	n.Input().Clamp(input)
	n.Input().Observe(mon)
	for _, l := range n.layers[1:] {
		l.Step(mon)
	}
}

func (n *Network) observeStep(input, target []float64, mon monitor.Monitor) {
	last := len(n.layers) - 1
	n.Input().Clamp(input)
	n.Output().Clamp(target)
	n.Input().Observe(mon)
	n.Output().Observe(mon)
	for _, l := range n.layers[1:last] {
		l.Step(mon)
	}
}

// phaseMonitor tags snapshots with the phase. It returns nil when no monitor
// is set.
func (n *Network) phaseMonitor(p learning.Phase) monitor.Monitor {
	if n.monitor == nil {
		return nil
	}
	return monitor.Func(func(s monitor.Snapshot) {
		s.Phase = string(p)
		n.monitor.Observe(s)
	})
}

// StepTrial runs one minus and one plus phase on a sample and returns the
// minus-phase output. When learn is set every layer computes a delta;
// batchComplete additionally applies the buffered deltas.
func (n *Network) StepTrial(input, target []float64, learn, batchComplete bool) ([]float64, error) {
	return n.trial(input, target, n.cfg.MinusSteps, n.cfg.PlusSteps, learn, batchComplete)
}

func (n *Network) trial(input, target []float64, minus, plus int, learn, batchComplete bool) ([]float64, error) {
	n.UpdateScales()

	n.setState(StateSettlingMinus)
	mon := n.phaseMonitor(learning.PhaseMinus)
	for s := 0; s < minus; s++ {
		n.predictStep(input, mon)
	}
	for _, l := range n.layers[1:] {
		l.RecordPhase(learning.PhaseMinus)
	}
	out := append([]float64(nil), n.Output().Activity()...)
	n.setState(StateRecordedMinus)

	// The plus phase settles at least once so the input is re-clamped and
	// hidden layers see the target before their plus activity is recorded.
	plus = max(plus, 1)
	n.setState(StateSettlingPlus)
	mon = n.phaseMonitor(learning.PhasePlus)
	for s := 0; s < plus; s++ {
		n.observeStep(input, target, mon)
	}
	for _, l := range n.layers[1:] {
		l.RecordPhase(learning.PhasePlus)
	}
	n.setState(StateRecordedPlus)

	for _, l := range n.layers {
		l.UpdateActAvg()
	}

	if learn {
		for _, l := range n.layers[1:] {
			if err := l.Learn(batchComplete); err != nil {
				n.setState(StateIdle)
				return nil, fmt.Errorf("network %s: %w", n.name, err)
			}
		}
		n.setState(StateLearned)
	}
	n.setState(StateIdle)
	return out, nil
}

// Learn trains on inputs and targets for opts.Epochs epochs. Epoch 0 is a
// baseline pass that settles and scores without learning. Metrics are scored
// on the minus-phase outputs of each epoch.
//
// The context is checked before every sample. On cancellation Learn drops
// partial batches and returns the history of the completed epochs together
// with the context's error.
func (n *Network) Learn(ctx context.Context, inputs, targets [][]float64, opts TrainOptions) (History, error) {
	if err := checkSamples(inputs, targets); err != nil {
		return nil, err
	}
	opts = opts.withDefaults(n.cfg)

	hist := make(History, len(n.metrics))
	for name := range n.metrics {
		hist[name] = make([]float64, 0, opts.Epochs)
	}
	n.discardPending()

	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}

	n.logger.Info("training started", "network", n.name, "samples", len(inputs), "epochs", opts.Epochs, "batch_size", opts.BatchSize)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if opts.Shuffle {
			n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		learn := epoch > 0
		preds := make([][]float64, len(inputs))

		for k, idx := range order {
			if err := ctx.Err(); err != nil {
				n.discardPending()
				n.logger.Warn("training cancelled", "network", n.name, "epoch", epoch, "error", err)
				return hist, err
			}
			batchEnd := (k+1)%opts.BatchSize == 0 || k == len(order)-1
			for r := 0; r < opts.Repeat; r++ {
				if opts.Reset {
					n.ResetActivity()
				}
				out, err := n.trial(inputs[idx], targets[idx], opts.MinusSteps, opts.PlusSteps, learn, batchEnd && r == opts.Repeat-1)
				if err != nil {
					return hist, err
				}
				preds[idx] = out
			}
		}

		attrs := []any{"network", n.name, "epoch", epoch}
		scores := make(map[string]float64, len(n.metrics))
		for _, name := range n.MetricNames() {
			v := n.metrics[name](preds, targets)
			hist[name] = append(hist[name], v)
			scores[name] = v
			attrs = append(attrs, name, v)
		}
		n.logger.Debug("epoch complete", attrs...)
		if opts.AfterEpoch != nil {
			opts.AfterEpoch(epoch, scores)
		}
	}

	attrs := []any{"network", n.name, "epochs", opts.Epochs}
	for _, name := range n.MetricNames() {
		attrs = append(attrs, name, hist.Final(name))
	}
	n.logger.Info("training complete", attrs...)
	return hist, nil
}

// Infer settles each input for steps time-steps (the configured minus steps
// when steps is not positive) and returns the output activities. When reset
// is set activity is cleared before every sample.
func (n *Network) Infer(ctx context.Context, inputs [][]float64, steps int, reset bool) ([][]float64, error) {
	if steps <= 0 {
		steps = n.cfg.MinusSteps
	}
	outs := make([][]float64, len(inputs))
	mon := n.phaseMonitor(learning.PhaseMinus)
	for i, x := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if reset {
			n.ResetActivity()
		}
		n.UpdateScales()
		n.setState(StateSettlingMinus)
		for s := 0; s < steps; s++ {
			n.predictStep(x, mon)
		}
		outs[i] = append([]float64(nil), n.Output().Activity()...)
		n.setState(StateIdle)
	}
	n.logger.Debug("inference complete", "network", n.name, "samples", len(inputs), "steps", steps)
	return outs, nil
}

// Evaluate infers every input with reset and scores the outputs against
// targets with every configured metric.
func (n *Network) Evaluate(ctx context.Context, inputs, targets [][]float64) (map[string]float64, error) {
	if err := checkSamples(inputs, targets); err != nil {
		return nil, err
	}
	preds, err := n.Infer(ctx, inputs, n.cfg.MinusSteps, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(n.metrics))
	for name, fn := range n.metrics {
		out[name] = fn(preds, targets)
	}
	return out, nil
}

func (n *Network) discardPending() {
	for _, l := range n.layers {
		l.DiscardPending()
	}
}

func checkSamples(inputs, targets [][]float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no samples", ErrShape)
	}
	if len(inputs) != len(targets) {
		return fmt.Errorf("%w: %d inputs, %d targets", ErrShape, len(inputs), len(targets))
	}
	return nil
}
