package visualization

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// openCommand returns the command line that opens target on goos.
func openCommand(goos, target string) ([]string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return []string{"xdg-open", target}, nil
	case "darwin":
		return []string{"open", target}, nil
	case "windows":
		return []string{"cmd", "/c", "start", "", target}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenFile opens a rendered file in the user's default browser without
// waiting for it to exit.
func OpenFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	args, err := openCommand(runtime.GOOS, abs)
	if err != nil {
		return err
	}
	return exec.Command(args[0], args[1:]...).Start()
}
