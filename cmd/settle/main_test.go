package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolateProject writes the example config into a temp directory and points
// the run store at it. It returns the config path.
func isolateProject(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("SETTLE_STORE_PATH", filepath.Join(tmpDir, "runs.db"))
	t.Setenv("SETTLE_STORE_BACKEND", "sqlite")
	t.Setenv("SETTLE_LOG_LEVEL", "warn")
	path := filepath.Join(tmpDir, "settle.yaml")
	if _, err := runCmd(t, "init", "--config", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return path
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, s)
	}
	return m
}

func TestVersionJSON(t *testing.T) {
	out, err := runCmd(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if got := decodeJSON(t, out)["version"]; got != version {
		t.Errorf("version = %v, want %s", got, version)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := isolateProject(t)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "layers:") {
		t.Errorf("config has no layers section:\n%s", data)
	}

	if _, err := runCmd(t, "init", "--config", path); err == nil {
		t.Error("second init should fail without --force")
	}
	if _, err := runCmd(t, "init", "--config", path, "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestTrainInferEvaluate(t *testing.T) {
	path := isolateProject(t)

	out, err := runCmd(t, "train", "--config", path, "--epochs", "3", "--json")
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	train := decodeJSON(t, out)
	runID, _ := train["run_id"].(string)
	if runID == "" {
		t.Fatalf("train returned no run_id: %s", out)
	}
	if got := train["epochs"]; got != float64(3) {
		t.Errorf("epochs = %v, want 3", got)
	}
	if got := train["cancelled"]; got != false {
		t.Errorf("cancelled = %v, want false", got)
	}

	out, err = runCmd(t, "runs", "--config", path, "--json")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if got := decodeJSON(t, out)["count"]; got != float64(1) {
		t.Errorf("runs count = %v, want 1", got)
	}

	out, err = runCmd(t, "infer", "--config", path, "--json", "--input", "0,1", "--input", "1,1")
	if err != nil {
		t.Fatalf("infer failed: %v", err)
	}
	infer := decodeJSON(t, out)
	if infer["run_id"] != runID {
		t.Errorf("infer used run %v, want latest %s", infer["run_id"], runID)
	}
	outputs, _ := infer["outputs"].([]any)
	if len(outputs) != 2 {
		t.Fatalf("infer outputs = %v, want 2 vectors", infer["outputs"])
	}
	for i, o := range outputs {
		vec, _ := o.([]any)
		if len(vec) != 1 {
			t.Errorf("output %d = %v, want 1 value", i, o)
		}
	}

	out, err = runCmd(t, "evaluate", "--config", path, "--run", runID, "--json")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	scores, _ := decodeJSON(t, out)["scores"].(map[string]any)
	if _, ok := scores["rmse"]; !ok {
		t.Errorf("evaluate scores = %v, want rmse", scores)
	}

	out, err = runCmd(t, "weights", "--config", path, "--run", runID, "--json")
	if err != nil {
		t.Fatalf("weights failed: %v", err)
	}
	meshes, _ := decodeJSON(t, out)["meshes"].([]any)
	if len(meshes) != 2 {
		t.Errorf("weights meshes = %d, want 2", len(meshes))
	}

	out, err = runCmd(t, "graph", "--config", path, "--run", runID)
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("graph output is not DOT:\n%s", out)
	}

	backupPath := filepath.Join(filepath.Dir(path), "runs.json.gz")
	if _, err := runCmd(t, "backup", "--config", path, "--output", backupPath); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if _, err := runCmd(t, "runs", "delete", runID, "--config", path); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if _, err := runCmd(t, "infer", "--config", path, "--run", runID); err == nil {
		t.Error("infer on a deleted run should fail")
	}

	out, err = runCmd(t, "backup", "restore", backupPath, "--config", path, "--json")
	if err != nil {
		t.Fatalf("backup restore failed: %v", err)
	}
	if got := decodeJSON(t, out)["restored"]; got != float64(1) {
		t.Errorf("restored = %v, want 1", got)
	}
	if _, err := runCmd(t, "infer", "--config", path, "--run", runID); err != nil {
		t.Errorf("infer on a restored run failed: %v", err)
	}
}

func TestTrainTextOutput(t *testing.T) {
	path := isolateProject(t)
	out, err := runCmd(t, "train", "--config", path, "--epochs", "2", "--no-save")
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	for _, want := range []string{"epoch   0  rmse=", "epoch   1  rmse=", "Final: rmse="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Saved run") {
		t.Errorf("--no-save still saved a run:\n%s", out)
	}
}

func TestTrainRejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "settle.yaml")
	if err := os.WriteFile(path, []byte("network:\n  layers:\n    - size: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "train", "--config", path, "--no-save")
	if err == nil || !strings.Contains(err.Error(), "at least 2 layers") {
		t.Errorf("train error = %v, want layer count error", err)
	}
}

func TestConfigGet(t *testing.T) {
	path := isolateProject(t)
	tests := []struct {
		key  string
		want string
	}{
		{"training.epochs", "50"},
		{"network.layers.1.size", "3"},
		{"network.layers.2.name", "output"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out, err := runCmd(t, "config", "get", tt.key, "--config", path)
			if err != nil {
				t.Fatalf("config get failed: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("config get %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if _, err := runCmd(t, "config", "get", "no.such.key", "--config", path); err == nil {
		t.Error("config get on an unknown key should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	path := isolateProject(t)
	if _, err := runCmd(t, "config", "validate", "--config", path); err != nil {
		t.Errorf("example config invalid: %v", err)
	}

	bad := filepath.Join(filepath.Dir(path), "bad.yaml")
	if err := os.WriteFile(bad, []byte("training:\n  batch_size: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "config", "validate", "--config", bad); err == nil {
		t.Error("validate should reject batch_size 0")
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{"0,1", []float64{0, 1}, false},
		{" 0.5 , -1 ", []float64{0.5, -1}, false},
		{"1", []float64{1}, false},
		{"a,1", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVector(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVector(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseVector(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseVector(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatScores(t *testing.T) {
	got := formatScores(map[string]float64{"rmse": 0.5, "mae": 0.25})
	if want := "mae=0.250000  rmse=0.500000"; got != want {
		t.Errorf("formatScores = %q, want %q", got, want)
	}
}
