package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project state directory.
const DirName = ".settle"

// DefaultPath returns the default database path for the given project root.
func DefaultPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, "settle.db")
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
