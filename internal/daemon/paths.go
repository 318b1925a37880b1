package daemon

import (
	"path/filepath"

	"github.com/cua-dev/cuad/internal/state"
)

func screenshotDir() (string, error) {
	dir, err := state.ScreenshotsDir()
	if err != nil {
		return "", err
	}
	if err := state.EnsureDir(filepath.Join(dir, "placeholder")); err != nil {
		return "", err
	}
	return dir, nil
}
