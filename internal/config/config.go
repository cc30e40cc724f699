// Package config provides configuration loading for settle runs.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/settle/internal/activation"
	"github.com/nvandessel/settle/internal/constants"
	"github.com/nvandessel/settle/internal/layer"
	"github.com/nvandessel/settle/internal/learning"
	"github.com/nvandessel/settle/internal/logging"
	"github.com/nvandessel/settle/internal/mesh"
	"github.com/nvandessel/settle/internal/metrics"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/optimizer"
	"github.com/nvandessel/settle/internal/store"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "settle.yaml"

// Config contains all settings of a run.
type Config struct {
	// Network describes the layers and meshes.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Training controls Learn.
	Training TrainingConfig `json:"training" yaml:"training"`

	// Data holds the samples. It is optional for commands that do not need it.
	Data DataConfig `json:"data" yaml:"data"`

	// Store selects where runs are persisted.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NetworkConfig is the YAML view of network.Config.
type NetworkConfig struct {
	Name   string        `json:"name" yaml:"name"`
	Seed   uint64        `json:"seed" yaml:"seed"`
	Layers []LayerConfig `json:"layers" yaml:"layers"`

	Mesh     MeshConfig     `json:"mesh" yaml:"mesh"`
	Dynamics DynamicsConfig `json:"dynamics" yaml:"dynamics"`

	// Feedback adds transpose meshes into every hidden layer.
	Feedback      bool    `json:"feedback" yaml:"feedback"`
	FeedbackScale float64 `json:"feedback_scale" yaml:"feedback_scale"`

	// Inhibition adds FFFB inhibition to every non-input layer.
	Inhibition bool      `json:"inhibition" yaml:"inhibition"`
	FFFB       mesh.FFFB `json:"fffb" yaml:"fffb"`

	Optimizer optimizer.Config `json:"optimizer" yaml:"optimizer"`

	// Metrics names the metrics recorded per epoch. Default: [rmse].
	Metrics []string `json:"metrics" yaml:"metrics"`
}

// LayerConfig describes one layer. Empty names are generated.
type LayerConfig struct {
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Size       int               `json:"size" yaml:"size"`
	Activation string            `json:"activation,omitempty" yaml:"activation,omitempty"`
	Rule       string            `json:"rule,omitempty" yaml:"rule,omitempty"`
	Optimizer  *optimizer.Config `json:"optimizer,omitempty" yaml:"optimizer,omitempty"`
	Frozen     bool              `json:"frozen,omitempty" yaml:"frozen,omitempty"`
}

// MeshConfig is the YAML view of mesh.Params.
type MeshConfig struct {
	AbsScale    float64         `json:"abs_scale" yaml:"abs_scale"`
	RelScale    float64         `json:"rel_scale" yaml:"rel_scale"`
	Bounding    string          `json:"bounding" yaml:"bounding"`
	Off         float64         `json:"off" yaml:"off"`
	Gain        float64         `json:"gain" yaml:"gain"`
	NonNegative bool            `json:"non_negative" yaml:"non_negative"`
	IncRate     float64         `json:"inc_rate" yaml:"inc_rate"`
	DecRate     float64         `json:"dec_rate" yaml:"dec_rate"`
	Decay       float64         `json:"decay" yaml:"decay"`
	InitMean    float64         `json:"init_mean" yaml:"init_mean"`
	InitVar     float64         `json:"init_var" yaml:"init_var"`
	Thresholds  mesh.Thresholds `json:"thresholds" yaml:"thresholds"`
}

// DynamicsConfig is the YAML view of layer.Params.
type DynamicsConfig struct {
	// Kind is "simple", "conductance" or "gain".
	Kind      string  `json:"kind" yaml:"kind"`
	DeltaTime float64 `json:"delta_time" yaml:"delta_time"`
	Max       float64 `json:"max" yaml:"max"`
	Min       float64 `json:"min" yaml:"min"`
	Gain      float64 `json:"gain" yaml:"gain"`
	TargetAvg float64 `json:"target_avg" yaml:"target_avg"`
	GainRate  float64 `json:"gain_rate" yaml:"gain_rate"`
	GainMin   float64 `json:"gain_min" yaml:"gain_min"`
	GainMax   float64 `json:"gain_max" yaml:"gain_max"`
}

// TrainingConfig is the YAML view of network.TrainOptions.
type TrainingConfig struct {
	Epochs     int  `json:"epochs" yaml:"epochs"`
	MinusSteps int  `json:"minus_steps" yaml:"minus_steps"`
	PlusSteps  int  `json:"plus_steps" yaml:"plus_steps"`
	BatchSize  int  `json:"batch_size" yaml:"batch_size"`
	Repeat     int  `json:"repeat" yaml:"repeat"`
	Shuffle    bool `json:"shuffle" yaml:"shuffle"`
	Reset      bool `json:"reset" yaml:"reset"`
}

// DataConfig holds the sample inputs and targets.
type DataConfig struct {
	Inputs  [][]float64 `json:"inputs" yaml:"inputs"`
	Targets [][]float64 `json:"targets" yaml:"targets"`
}

// StoreConfig selects the run store.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file. Supports ${VAR} syntax.
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default),
	// "debug" or "trace". "debug" and "trace" also write per-time-step
	// traces to TraceDir.
	Level string `json:"level" yaml:"level"`

	// TraceDir is the directory of trace.jsonl. Supports ${VAR} syntax.
	TraceDir string `json:"trace_dir" yaml:"trace_dir"`
}

// Default returns a Config with sensible defaults and no layers or data.
func Default() *Config {
	mp := mesh.DefaultParams()
	lp := layer.DefaultParams()
	return &Config{
		Network: NetworkConfig{
			Name: "network",
			Seed: 1,
			Mesh: MeshConfig{
				AbsScale: mp.AbsScale,
				RelScale: mp.RelScale,
				Bounding: mp.Bounding.String(),
				Off:      mp.Off,
				Gain:     mp.Gain,
				IncRate:  mp.IncRate,
				DecRate:  mp.DecRate,
				Decay:    *mp.Decay,
				InitMean: *mp.InitMean,
				InitVar:  *mp.InitVar,
			},
			Dynamics: DynamicsConfig{
				Kind:      lp.Dynamics.String(),
				DeltaTime: lp.DeltaTime,
				Max:       lp.Max,
				Min:       lp.Min,
				Gain:      lp.Gain,
				TargetAvg: lp.TargetAvg,
				GainRate:  lp.GainRate,
				GainMin:   lp.GainMin,
				GainMax:   lp.GainMax,
			},
			FeedbackScale: constants.FeedbackRelScale,
			FFFB:          mesh.DefaultFFFB(),
			Optimizer:     optimizer.DefaultConfig(),
			Metrics:       []string{metrics.NameRMSE},
		},
		Training: TrainingConfig{
			Epochs:     constants.DefaultEpochs,
			MinusSteps: constants.DefaultMinusSteps,
			PlusSteps:  constants.DefaultPlusSteps,
			BatchSize:  1,
			Repeat:     1,
			Reset:      true,
		},
		Store: StoreConfig{
			Backend: store.BackendSQLite,
			Path:    store.DefaultPath("."),
		},
		Logging: LoggingConfig{
			Level:    "info",
			TraceDir: store.DirName,
		},
	}
}

// Load reads path if it exists and applies environment overrides.
// Order: defaults -> file -> environment variables. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileCfg, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			cfg = fileCfg
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Store.Path = expandEnvVars(cfg.Store.Path)
	cfg.Logging.TraceDir = expandEnvVars(cfg.Logging.TraceDir)
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the configuration is valid. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	n := c.Network

	if len(n.Layers) < 2 {
		errs = append(errs, fmt.Errorf("network needs at least 2 layers, got %d", len(n.Layers)))
	}
	for i, l := range n.Layers {
		if l.Size <= 0 {
			errs = append(errs, fmt.Errorf("layer %d: size must be positive, got %d", i, l.Size))
		}
		if l.Activation != "" {
			if _, err := activation.Get(l.Activation); err != nil {
				errs = append(errs, fmt.Errorf("layer %d: %w", i, err))
			}
		}
		if l.Rule != "" {
			if _, err := learning.RuleByName(l.Rule); err != nil {
				errs = append(errs, fmt.Errorf("layer %d: %w", i, err))
			}
		}
		if l.Optimizer != nil {
			if _, err := optimizer.NewFactory(*l.Optimizer); err != nil {
				errs = append(errs, fmt.Errorf("layer %d: %w", i, err))
			}
		}
	}
	if _, err := optimizer.NewFactory(n.Optimizer); err != nil {
		errs = append(errs, err)
	}
	if _, err := metrics.Resolve(n.Metrics); err != nil {
		errs = append(errs, err)
	}
	if _, err := mesh.ParseBounding(n.Mesh.Bounding); err != nil {
		errs = append(errs, err)
	}
	if _, err := layer.ParseDynamics(n.Dynamics.Kind); err != nil {
		errs = append(errs, err)
	}
	if n.FeedbackScale < 0 {
		errs = append(errs, fmt.Errorf("feedback_scale must be non-negative, got %v", n.FeedbackScale))
	}

	t := c.Training
	if t.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must be non-negative, got %d", t.Epochs))
	}
	if t.MinusSteps < 0 || t.PlusSteps < 0 {
		errs = append(errs, fmt.Errorf("steps must be non-negative, got minus=%d plus=%d", t.MinusSteps, t.PlusSteps))
	}
	if t.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be at least 1, got %d", t.BatchSize))
	}
	if t.Repeat < 1 {
		errs = append(errs, fmt.Errorf("repeat must be at least 1, got %d", t.Repeat))
	}

	errs = append(errs, c.validateData()...)

	switch c.Store.Backend {
	case "", store.BackendSQLite, store.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid store backend: %s (valid: sqlite, memory)", c.Store.Backend))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: %s)", c.Logging.Level, strings.Join(logging.Levels, ", ")))
	}

	return errors.Join(errs...)
}

func (c *Config) validateData() []error {
	d := c.Data
	if len(d.Inputs) == 0 && len(d.Targets) == 0 {
		return nil
	}
	var errs []error
	if len(d.Inputs) != len(d.Targets) {
		errs = append(errs, fmt.Errorf("data: %d inputs, %d targets", len(d.Inputs), len(d.Targets)))
	}
	layers := c.Network.Layers
	if len(layers) < 2 {
		return errs
	}
	in, out := layers[0].Size, layers[len(layers)-1].Size
	for i, row := range d.Inputs {
		if len(row) != in {
			errs = append(errs, fmt.Errorf("data: input %d has %d values, input layer has %d units", i, len(row), in))
		}
	}
	for i, row := range d.Targets {
		if len(row) != out {
			errs = append(errs, fmt.Errorf("data: target %d has %d values, output layer has %d units", i, len(row), out))
		}
	}
	return errs
}

// NetworkConfig converts the YAML view into a network.Config, resolving
// every name through its registry.
func (c *Config) NetworkConfig() (network.Config, error) {
	n := c.Network
	cfg := network.DefaultConfig()
	cfg.Name = n.Name
	cfg.Seed = n.Seed
	cfg.Feedback = n.Feedback
	cfg.FeedbackScale = n.FeedbackScale
	cfg.Inhibition = n.Inhibition
	cfg.FFFB = n.FFFB
	cfg.MinusSteps = c.Training.MinusSteps
	cfg.PlusSteps = c.Training.PlusSteps

	bounding, err := mesh.ParseBounding(n.Mesh.Bounding)
	if err != nil {
		return network.Config{}, err
	}
	cfg.Mesh = mesh.Params{
		AbsScale:    n.Mesh.AbsScale,
		RelScale:    n.Mesh.RelScale,
		Bounding:    bounding,
		Off:         n.Mesh.Off,
		Gain:        n.Mesh.Gain,
		NonNegative: n.Mesh.NonNegative,
		IncRate:     n.Mesh.IncRate,
		DecRate:     n.Mesh.DecRate,
		Decay:       new(n.Mesh.Decay),
		InitMean:    new(n.Mesh.InitMean),
		InitVar:     new(n.Mesh.InitVar),
		Thresholds:  n.Mesh.Thresholds,
	}

	dyn, err := layer.ParseDynamics(n.Dynamics.Kind)
	if err != nil {
		return network.Config{}, err
	}
	cfg.Dynamics = layer.Params{
		Dynamics:  dyn,
		DeltaTime: n.Dynamics.DeltaTime,
		Max:       n.Dynamics.Max,
		Min:       n.Dynamics.Min,
		Gain:      n.Dynamics.Gain,
		TargetAvg: n.Dynamics.TargetAvg,
		GainRate:  n.Dynamics.GainRate,
		GainMin:   n.Dynamics.GainMin,
		GainMax:   n.Dynamics.GainMax,
	}

	if cfg.Optimizer, err = optimizer.NewFactory(n.Optimizer); err != nil {
		return network.Config{}, err
	}
	if cfg.Metrics, err = metrics.Resolve(n.Metrics); err != nil {
		return network.Config{}, err
	}

	for i, l := range n.Layers {
		spec := network.LayerSpec{Name: l.Name, Size: l.Size, Frozen: l.Frozen}
		if l.Activation != "" {
			if spec.Activation, err = activation.Get(l.Activation); err != nil {
				return network.Config{}, fmt.Errorf("layer %d: %w", i, err)
			}
		}
		if l.Rule != "" {
			if spec.Rule, err = learning.RuleByName(l.Rule); err != nil {
				return network.Config{}, fmt.Errorf("layer %d: %w", i, err)
			}
		}
		if l.Optimizer != nil {
			if spec.Optimizer, err = optimizer.NewFactory(*l.Optimizer); err != nil {
				return network.Config{}, fmt.Errorf("layer %d: %w", i, err)
			}
		}
		cfg.Layers = append(cfg.Layers, spec)
	}
	return cfg, nil
}

// TrainOptions converts the training section.
func (c *Config) TrainOptions() network.TrainOptions {
	t := c.Training
	return network.TrainOptions{
		Epochs:     t.Epochs,
		MinusSteps: t.MinusSteps,
		PlusSteps:  t.PlusSteps,
		BatchSize:  t.BatchSize,
		Repeat:     t.Repeat,
		Shuffle:    t.Shuffle,
		Reset:      t.Reset,
	}
}

// LayerSizes returns the configured layer sizes, input first.
func (c *Config) LayerSizes() []int {
	sizes := make([]int, len(c.Network.Layers))
	for i, l := range c.Network.Layers {
		sizes[i] = l.Size
	}
	return sizes
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SETTLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SETTLE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SETTLE_STORE_PATH"); v != "" {
		cfg.Store.Path = expandEnvVars(v)
	}
	if v := os.Getenv("SETTLE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Network.Seed = n
		}
	}
	if v := os.Getenv("SETTLE_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Training.Epochs = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// Get returns the value at a dotted key such as "training.epochs" or
// "network.layers.0.size".
func (c *Config) Get(key string) (any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var cur any
	if err := yaml.Unmarshal(data, &cur); err != nil {
		return nil, err
	}
	for _, part := range strings.Split(key, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("unknown config key %q", key)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("unknown config key %q", key)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("unknown config key %q", key)
		}
	}
	return cur, nil
}
