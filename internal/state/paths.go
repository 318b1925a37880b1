// Package state centralizes filesystem locations for cuad runtime artifacts.
// All paths resolve under a fixed subpath of the user's home directory, per
// the no-environment-variables-required design: $HOME/.cua/...
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// RootDirEnv overrides the default runtime state root. Not required for
	// normal operation; useful for tests and multi-instance development.
	RootDirEnv = "CUA_STATE_DIR"

	rootSubdir = ".cua"
)

// RootDir returns the runtime state root for cuad: $HOME/.cua, unless
// overridden by CUA_STATE_DIR.
func RootDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(RootDirEnv)); override != "" {
		return normalizePath(override)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, rootSubdir), nil
}

// SocketPath returns the filesystem-bound local socket path for the
// RequestServer: $HOME/.cua/sock.
func SocketPath() (string, error) {
	return InRoot("sock")
}

// PIDFile returns the daemon process-id file path: $HOME/.cua/pid.
func PIDFile() (string, error) {
	return InRoot("pid")
}

// LogsDir returns the logs directory under RootDir.
func LogsDir() (string, error) {
	return InRoot("logs")
}

// DefaultLogFile returns the default structured log file path.
func DefaultLogFile() (string, error) {
	return InRoot("logs", "cuad.jsonl")
}

// CrashLogFile returns the panic crash log file path.
func CrashLogFile() (string, error) {
	return InRoot("logs", "crash.log")
}

// ScreenshotsDir returns the directory screenshot captures are written to.
func ScreenshotsDir() (string, error) {
	return InRoot("screenshots")
}

// TrackerStoreFile returns the ProcessTracker persisted-state file path.
func TrackerStoreFile() (string, error) {
	return InRoot("tracker.json")
}

// ConfigFile returns the optional daemon config file path (wake-webhook,
// remote bridge settings).
func ConfigFile() (string, error) {
	return InRoot("config.json")
}

// RemoteBridgeSecretFile returns the pairing shared-secret store path.
func RemoteBridgeSecretFile() (string, error) {
	return InRoot("remote", "pairing.json")
}

// InRoot returns a path rooted under RootDir with additional path elements.
func InRoot(parts ...string) (string, error) {
	root, err := RootDir()
	if err != nil {
		return "", err
	}
	all := make([]string, 0, len(parts)+1)
	all = append(all, root)
	all = append(all, parts...)
	return filepath.Join(all...), nil
}

// EnsureDir creates the directory containing path, if it does not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o700)
}

func normalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}
