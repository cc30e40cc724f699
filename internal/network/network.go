// Package network orchestrates unit groups and meshes through the two-phase
// settle-and-learn loop.
//
// A Network owns an ordered sequence of layers. The first layer is the input
// boundary, the last the target boundary. Construction wires a forward mesh
// between every adjacent pair and optionally a transpose (feedback) mesh and
// an FFFB inhibitory mesh. Execution is single-threaded and synchronous.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/nvandessel/settle/internal/activation"
	"github.com/nvandessel/settle/internal/constants"
	"github.com/nvandessel/settle/internal/layer"
	"github.com/nvandessel/settle/internal/learning"
	"github.com/nvandessel/settle/internal/mesh"
	"github.com/nvandessel/settle/internal/metrics"
	"github.com/nvandessel/settle/internal/monitor"
	"github.com/nvandessel/settle/internal/optimizer"
)

var (
	// ErrInvalidConfig wraps every construction error.
	ErrInvalidConfig = errors.New("invalid network configuration")

	// ErrShape is returned when sample inputs and targets do not line up.
	ErrShape = errors.New("inputs and targets do not match")
)

// LayerSpec describes one unit group.
type LayerSpec struct {
	Name       string
	Size       int
	Activation activation.Func
	Rule       learning.Rule
	// Optimizer overrides Config.Optimizer for this layer's meshes.
	Optimizer optimizer.Factory
	Frozen    bool
}

// Config describes a network.
type Config struct {
	Name   string
	Seed   uint64
	Layers []LayerSpec

	// Unset fields of Mesh and Dynamics take their package defaults.
	Mesh     mesh.Params
	Dynamics layer.Params

	// Feedback adds a transpose mesh from every non-input layer's successor.
	Feedback      bool
	FeedbackScale float64

	// Inhibition adds an FFFB mesh to every non-input layer. A zero FFFB
	// selects DefaultFFFB; any other value is used as given, since zero FF,
	// FB and FF0 terms are meaningful.
	Inhibition bool
	FFFB       mesh.FFFB

	Optimizer optimizer.Factory
	Metrics   map[string]metrics.Func

	MinusSteps int
	PlusSteps  int
}

// DefaultConfig returns a configuration without layers.
func DefaultConfig() Config {
	return Config{
		Name:          "network",
		Seed:          1,
		Mesh:          mesh.DefaultParams(),
		Dynamics:      layer.DefaultParams(),
		FeedbackScale: constants.FeedbackRelScale,
		FFFB:          mesh.DefaultFFFB(),
		Metrics:       map[string]metrics.Func{metrics.NameRMSE: metrics.RMSE},
		MinusSteps:    constants.DefaultMinusSteps,
		PlusSteps:     constants.DefaultPlusSteps,
	}
}

// Namer produces unique names for unnamed layers and meshes. kind is one of
// "layer", "mesh", "feedback" or "inhib".
type Namer func(kind string) string

// CounterNamer returns a Namer that numbers each kind from 1.
func CounterNamer() Namer {
	counts := make(map[string]int)
	return func(kind string) string {
		counts[kind]++
		return fmt.Sprintf("%s-%d", kind, counts[kind])
	}
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(n *Network) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithMonitor sets the per-time-step monitor.
func WithMonitor(m monitor.Monitor) Option {
	return func(n *Network) { n.monitor = m }
}

// WithNamer replaces the default counter naming policy.
func WithNamer(namer Namer) Option {
	return func(n *Network) {
		if namer != nil {
			n.namer = namer
		}
	}
}

// Network is an ordered stack of unit groups and the meshes between them.
type Network struct {
	name    string
	cfg     Config
	layers  []*layer.Layer
	byName  map[string]*layer.Layer
	metrics map[string]metrics.Func

	src rand.Source
	rng *rand.Rand

	logger  *slog.Logger
	monitor monitor.Monitor
	namer   Namer
	state   State
}

// New builds and wires a network. Configuration errors wrap ErrInvalidConfig.
func New(cfg Config, opts ...Option) (*Network, error) {
	if len(cfg.Layers) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrInvalidConfig, len(cfg.Layers))
	}
	cfg = cfg.withDefaults()

	pcg := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	n := &Network{
		name:    cfg.Name,
		cfg:     cfg,
		byName:  make(map[string]*layer.Layer),
		metrics: cfg.Metrics,
		src:     pcg,
		rng:     rand.New(pcg),
		logger:  slog.New(slog.DiscardHandler),
		namer:   CounterNamer(),
	}
	for _, opt := range opts {
		opt(n)
	}

	if err := n.buildLayers(); err != nil {
		return nil, err
	}
	if err := n.wire(); err != nil {
		return nil, err
	}

	n.logger.Debug("network built", "network", n.name, "layers", len(n.layers), "feedback", cfg.Feedback, "inhibition", cfg.Inhibition)
	return n, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.FeedbackScale == 0 {
		c.FeedbackScale = d.FeedbackScale
	}
	if c.FFFB == (mesh.FFFB{}) {
		c.FFFB = d.FFFB
	}
	if len(c.Metrics) == 0 {
		c.Metrics = d.Metrics
	}
	if c.MinusSteps <= 0 {
		c.MinusSteps = d.MinusSteps
	}
	if c.PlusSteps <= 0 {
		c.PlusSteps = d.PlusSteps
	}
	return c
}

func (n *Network) buildLayers() error {
	last := len(n.cfg.Layers) - 1
	for i, spec := range n.cfg.Layers {
		name := spec.Name
		if name == "" {
			name = n.namer("layer")
		}
		if _, dup := n.byName[name]; dup {
			return fmt.Errorf("%w: duplicate layer name %q", ErrInvalidConfig, name)
		}
		opt := spec.Optimizer
		if opt == nil {
			opt = n.cfg.Optimizer
		}
		l, err := layer.New(layer.Config{
			Name:       name,
			Size:       spec.Size,
			Activation: spec.Activation,
			Rule:       spec.Rule,
			Optimizer:  opt,
			Input:      i == 0,
			Target:     i == last,
			Frozen:     spec.Frozen,
			Params:     n.cfg.Dynamics,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		n.layers = append(n.layers, l)
		n.byName[name] = l
	}
	return nil
}

// wire attaches meshes. Each layer's forward mesh is attached before any
// feedback mesh so it stays the layer's first excitatory mesh.
func (n *Network) wire() error {
	for i := 1; i < len(n.layers); i++ {
		snd, rcv := n.layers[i-1], n.layers[i]

		fwd := mesh.NewDense(n.namer("mesh"), snd, rcv.Len(), n.cfg.Mesh, n.src)
		if err := rcv.Connect(fwd, snd); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		n.logger.Debug("mesh wired", "mesh", fwd.Name(), "from", snd.Name(), "to", rcv.Name(), "kind", fwd.Kind())

		if n.cfg.Inhibition {
			inh := mesh.NewInhibitory(n.namer("inhib"), fwd, rcv, n.cfg.FFFB)
			if err := rcv.ConnectInhibitory(inh); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}

		if n.cfg.Feedback && !snd.IsInput() {
			fb := mesh.NewTranspose(n.namer("feedback"), fwd, rcv, n.cfg.FeedbackScale)
			if err := snd.Connect(fb, rcv); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			n.logger.Debug("mesh wired", "mesh", fb.Name(), "from", rcv.Name(), "to", snd.Name(), "kind", fb.Kind())
		}
	}
	return nil
}

func (n *Network) Name() string           { return n.name }
func (n *Network) Config() Config         { return n.cfg }
func (n *Network) State() State           { return n.state }
func (n *Network) Input() *layer.Layer    { return n.layers[0] }
func (n *Network) Output() *layer.Layer   { return n.layers[len(n.layers)-1] }
func (n *Network) Layers() []*layer.Layer { return append([]*layer.Layer(nil), n.layers...) }

// Layer returns the layer with the given name, or nil.
func (n *Network) Layer(name string) *layer.Layer {
	return n.byName[name]
}

// MetricNames lists the configured metrics.
func (n *Network) MetricNames() []string {
	return slices.Sorted(maps.Keys(n.metrics))
}
