package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/settle/internal/layer"
	"github.com/nvandessel/settle/internal/mesh"
	"github.com/nvandessel/settle/internal/metrics"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Training.Epochs != 50 || cfg.Training.MinusSteps != 25 || cfg.Training.PlusSteps != 25 {
		t.Errorf("training defaults = %+v", cfg.Training)
	}
	if cfg.Training.BatchSize != 1 || cfg.Training.Repeat != 1 || !cfg.Training.Reset {
		t.Errorf("training defaults = %+v", cfg.Training)
	}
	if cfg.Network.Mesh.Bounding != "sigmoid" || cfg.Network.Mesh.Gain != 6 {
		t.Errorf("mesh defaults = %+v", cfg.Network.Mesh)
	}
	if cfg.Network.Dynamics.Kind != "simple" || cfg.Network.Dynamics.DeltaTime != 0.1 {
		t.Errorf("dynamics defaults = %+v", cfg.Network.Dynamics)
	}
	if cfg.Store.Backend != store.BackendSQLite {
		t.Errorf("expected sqlite backend, got %q", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settle.yaml")

	configContent := `
network:
  name: xor
  seed: 42
  layers:
    - size: 2
    - size: 4
      activation: tanh
      rule: generec
    - size: 1
      optimizer:
        name: momentum
        learning_rate: 0.05
        momentum: 0.5
  mesh:
    bounding: soft
  dynamics:
    kind: conductance
  inhibition: true
  metrics: [rmse, mae]
training:
  epochs: 10
  batch_size: 2
store:
  path: ${SETTLE_TEST_DIR}/runs.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SETTLE_TEST_DIR", "/data")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Network.Name != "xor" || cfg.Network.Seed != 42 {
		t.Errorf("network = %q seed %d", cfg.Network.Name, cfg.Network.Seed)
	}
	if len(cfg.Network.Layers) != 3 || cfg.Network.Layers[1].Activation != "tanh" {
		t.Errorf("layers = %+v", cfg.Network.Layers)
	}
	if cfg.Training.Epochs != 10 || cfg.Training.BatchSize != 2 {
		t.Errorf("training = %+v", cfg.Training)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Training.MinusSteps != 25 || cfg.Network.Mesh.Gain != 6 {
		t.Errorf("defaults lost: minus_steps=%d gain=%v", cfg.Training.MinusSteps, cfg.Network.Mesh.Gain)
	}
	if cfg.Store.Path != "/data/runs.db" {
		t.Errorf("store path = %q, want /data/runs.db", cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("network: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Training.Epochs != 50 {
		t.Errorf("epochs = %d, want 50", cfg.Training.Epochs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SETTLE_LOG_LEVEL", "debug")
	t.Setenv("SETTLE_STORE_BACKEND", "memory")
	t.Setenv("SETTLE_STORE_PATH", "/tmp/x.db")
	t.Setenv("SETTLE_SEED", "9")
	t.Setenv("SETTLE_EPOCHS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Path != "/tmp/x.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Network.Seed != 9 || cfg.Training.Epochs != 7 {
		t.Errorf("seed = %d epochs = %d", cfg.Network.Seed, cfg.Training.Epochs)
	}
}

func TestLoad_InvalidEnvNumbersIgnored(t *testing.T) {
	t.Setenv("SETTLE_SEED", "abc")
	t.Setenv("SETTLE_EPOCHS", "many")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Network.Seed != 1 || cfg.Training.Epochs != 50 {
		t.Errorf("seed = %d epochs = %d, want defaults", cfg.Network.Seed, cfg.Training.Epochs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"example is valid", func(*Config) {}, ""},
		{"too few layers", func(c *Config) { c.Network.Layers = c.Network.Layers[:1]; c.Data = DataConfig{} }, "at least 2 layers"},
		{"zero size", func(c *Config) { c.Network.Layers[1].Size = 0 }, "size must be positive"},
		{"unknown activation", func(c *Config) { c.Network.Layers[1].Activation = "softsign" }, "activation"},
		{"unknown rule", func(c *Config) { c.Network.Layers[1].Rule = "hebb" }, "rule"},
		{"unknown optimizer", func(c *Config) { c.Network.Optimizer.Name = "adam" }, "optimizer"},
		{"unknown metric", func(c *Config) { c.Network.Metrics = []string{"r2"} }, "r2"},
		{"unknown bounding", func(c *Config) { c.Network.Mesh.Bounding = "hard" }, "bounding"},
		{"unknown dynamics", func(c *Config) { c.Network.Dynamics.Kind = "spiking" }, "dynamics"},
		{"negative epochs", func(c *Config) { c.Training.Epochs = -1 }, "epochs"},
		{"zero batch", func(c *Config) { c.Training.BatchSize = 0 }, "batch_size"},
		{"zero repeat", func(c *Config) { c.Training.Repeat = 0 }, "repeat"},
		{"input width", func(c *Config) { c.Data.Inputs[0] = []float64{1} }, "input 0"},
		{"target count", func(c *Config) { c.Data.Targets = c.Data.Targets[:3] }, "4 inputs, 3 targets"},
		{"store backend", func(c *Config) { c.Store.Backend = "redis" }, "store backend"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Example()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Example()
	cfg.Training.BatchSize = 0
	cfg.Store.Backend = "redis"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"batch_size", "store backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}

func TestNetworkConfig(t *testing.T) {
	cfg := Example()
	cfg.Network.Mesh.Bounding = "soft"
	cfg.Network.Dynamics.Kind = "gain"
	cfg.Network.Metrics = []string{"rmse", "mse"}
	cfg.Network.Feedback = true
	cfg.Training.MinusSteps = 10

	nc, err := cfg.NetworkConfig()
	if err != nil {
		t.Fatalf("NetworkConfig() error = %v", err)
	}
	if len(nc.Layers) != 3 || nc.Layers[1].Name != "hidden" || nc.Layers[1].Size != 3 {
		t.Errorf("layers = %+v", nc.Layers)
	}
	if nc.Layers[1].Activation == nil || nc.Layers[1].Rule == nil {
		t.Error("hidden layer activation and rule should be resolved")
	}
	if nc.Layers[0].Activation != nil {
		t.Error("unset activation should stay nil")
	}
	if nc.Mesh.Bounding != mesh.BoundSoft || nc.Dynamics.Dynamics != layer.DynamicsGain {
		t.Errorf("bounding = %v dynamics = %v", nc.Mesh.Bounding, nc.Dynamics.Dynamics)
	}
	if _, ok := nc.Metrics[metrics.NameMSE]; !ok || len(nc.Metrics) != 2 {
		t.Errorf("metrics = %v", nc.Metrics)
	}
	if !nc.Feedback || nc.MinusSteps != 10 {
		t.Errorf("feedback = %v minus steps = %d", nc.Feedback, nc.MinusSteps)
	}

	if _, err := network.New(nc); err != nil {
		t.Errorf("network.New() from converted config error = %v", err)
	}
}

func TestNetworkConfig_ExplicitZeroMeshParams(t *testing.T) {
	cfg := Example()
	cfg.Network.Mesh.Decay = 0
	cfg.Network.Mesh.InitVar = 0

	nc, err := cfg.NetworkConfig()
	if err != nil {
		t.Fatalf("NetworkConfig() error = %v", err)
	}
	if nc.Mesh.Decay == nil || *nc.Mesh.Decay != 0 {
		t.Errorf("decay = %v, want explicit 0", nc.Mesh.Decay)
	}
	if lo, hi := nc.Mesh.InitRange(); lo != hi || lo != cfg.Network.Mesh.InitMean {
		t.Errorf("init range = [%v, %v], want the constant %v", lo, hi, cfg.Network.Mesh.InitMean)
	}
}

func TestNetworkConfig_UnknownName(t *testing.T) {
	cfg := Example()
	cfg.Network.Metrics = []string{"nope"}
	if _, err := cfg.NetworkConfig(); !errors.Is(err, metrics.ErrNotFound) {
		t.Errorf("NetworkConfig() error = %v, want metrics.ErrNotFound", err)
	}
}

func TestTrainOptions(t *testing.T) {
	cfg := Example()
	cfg.Training.Shuffle = true
	cfg.Training.BatchSize = 4
	opts := cfg.TrainOptions()
	if !opts.Shuffle || opts.BatchSize != 4 || opts.Epochs != 50 || !opts.Reset {
		t.Errorf("TrainOptions() = %+v", opts)
	}
}

func TestGet(t *testing.T) {
	cfg := Example()
	tests := []struct {
		key     string
		want    any
		wantErr bool
	}{
		{"training.epochs", 50, false},
		{"network.name", "example", false},
		{"network.layers.1.size", 3, false},
		{"store.backend", "sqlite", false},
		{"training.nope", nil, true},
		{"network.layers.9", nil, true},
		{"training.epochs.x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cfg.Get(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Get(%q) = %v (%T), want %v", tt.key, got, got, tt.want)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Example().Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after round trip error = %v", err)
	}
	if len(cfg.Data.Inputs) != 4 {
		t.Errorf("inputs = %d, want 4", len(cfg.Data.Inputs))
	}
}
