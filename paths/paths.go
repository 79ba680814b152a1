// Package paths resolves turnbench's on-disk locations.
//
// Two layouts are supported:
//
//   - Home layout: everything under ~/.turnbench/
//   - XDG layout: config.yaml and catalog overrides under XDG_CONFIG_HOME,
//     the session store under XDG_DATA_HOME, logs under XDG_STATE_HOME
//
// Resolution order:
//  1. If ~/.turnbench/ exists → home layout
//  2. If any XDG env var is set → XDG layout, defaults filled in for unset vars
//  3. Otherwise → home layout
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const appName = "turnbench"

var (
	mu       sync.Mutex
	resolved *resolvedPaths
)

type resolvedPaths struct {
	configDir string
	dataDir   string
	stateDir  string
	home      bool
}

func resolve() (*resolvedPaths, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	homeDir := filepath.Join(home, "."+appName)
	flat := &resolvedPaths{configDir: homeDir, dataDir: homeDir, stateDir: homeDir, home: true}

	if info, err := os.Stat(homeDir); err == nil && info.IsDir() {
		resolved = flat
		return resolved, nil
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	xdgData := os.Getenv("XDG_DATA_HOME")
	xdgState := os.Getenv("XDG_STATE_HOME")

	if xdgConfig == "" && xdgData == "" && xdgState == "" {
		resolved = flat
		return resolved, nil
	}

	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgData == "" {
		xdgData = filepath.Join(home, ".local", "share")
	}
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}
	resolved = &resolvedPaths{
		configDir: filepath.Join(xdgConfig, appName),
		dataDir:   filepath.Join(xdgData, appName),
		stateDir:  filepath.Join(xdgState, appName),
	}
	return resolved, nil
}

// ConfigDir returns the directory holding config.yaml.
func ConfigDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.configDir, nil
}

// DataDir returns the directory for persistent data.
func DataDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.dataDir, nil
}

// StateDir returns the directory for logs and other transient state.
func StateDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.stateDir, nil
}

// ConfigFilePath returns the full path to config.yaml.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// CatalogDir returns the default directory for catalog override files.
func CatalogDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "catalog"), nil
}

// StoreDir returns the directory for the badger store.
func StoreDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store"), nil
}

// SQLitePath returns the default path of the sqlite database file.
func SQLitePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "turnbench.db"), nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// IsHomeLayout returns true if using the ~/.turnbench/ flat layout.
func IsHomeLayout() bool {
	r, err := resolve()
	if err != nil {
		return true
	}
	return r.home
}

// Reset clears the cached path resolution. This is intended for testing only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
