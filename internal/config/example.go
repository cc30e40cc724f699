package config

// Example returns a runnable configuration: a 2-3-1 network trained on four
// samples of a smooth two-input function.
func Example() *Config {
	cfg := Default()
	cfg.Network.Name = "example"
	cfg.Network.Layers = []LayerConfig{
		{Name: "input", Size: 2},
		{Name: "hidden", Size: 3, Activation: "sigmoid", Rule: "chl"},
		{Name: "output", Size: 1, Activation: "sigmoid", Rule: "chl"},
	}
	cfg.Data = DataConfig{
		Inputs:  [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		Targets: [][]float64{{0.55}, {0.6}, {0.6}, {0.65}},
	}
	return cfg
}
