// Package cli provides preflight checks run before the CLI talks to a
// provider or opens a store.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/config"
)

// Prerequisite is one condition the environment must meet
type Prerequisite struct {
	Name        string // Short name (e.g., "api-key", "store")
	Required    bool   // Whether playing sessions needs it
	Description string // Human-readable description
	Hint        string // How to fix a failure
	// Probe returns a short detail on success.
	Probe func() (string, error)
}

// DefaultPrerequisites returns the checks for cfg
func DefaultPrerequisites(cfg *config.Config) []Prerequisite {
	return []Prerequisite{
		{
			Name:        "api-key",
			Required:    true,
			Description: "Provider API key",
			Hint:        fmt.Sprintf("export %s=<key>", cfg.Provider.APIKeyEnv),
			Probe: func() (string, error) {
				if cfg.APIKey() == "" {
					return "", fmt.Errorf("%s is not set", cfg.Provider.APIKeyEnv)
				}
				return cfg.Provider.APIKeyEnv, nil
			},
		},
		{
			Name:        "store",
			Required:    true,
			Description: "Session store location",
			Hint:        "set store.path to a writable location",
			Probe: func() (string, error) {
				switch cfg.Store.Driver {
				case config.DriverMemory:
					return "in memory", nil
				case config.DriverBadger:
					return cfg.Store.Path, writable(cfg.Store.Path)
				default:
					return cfg.Store.Path, writable(filepath.Dir(cfg.Store.Path))
				}
			},
		},
		{
			Name:        "catalog",
			Required:    true,
			Description: "Verifier and setup catalog",
			Hint:        "fix the files under catalog_dir",
			Probe: func() (string, error) {
				c, err := catalog.Load(cfg.CatalogDir)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d setups, %d verifiers", len(c.Setups()), len(c.Verifiers())), nil
			},
		},
		{
			Name:        "metrics",
			Required:    false, // Only needed for serve-metrics
			Description: "Metrics listen address (optional)",
			Hint:        "set metrics_addr",
			Probe: func() (string, error) {
				if cfg.MetricsAddr == "" {
					return "", fmt.Errorf("metrics_addr is empty")
				}
				return cfg.MetricsAddr, nil
			},
		},
	}
}

// CheckResult contains the result of checking a prerequisite
type CheckResult struct {
	Prerequisite Prerequisite
	OK           bool
	Detail       string
	Error        error
}

// Check runs one prerequisite's probe
func Check(prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}
	detail, err := prereq.Probe()
	result.Detail = detail
	if err != nil {
		result.Error = err
		return result
	}
	result.OK = true
	return result
}

// CheckAll verifies all prerequisites and returns results
func CheckAll(prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = Check(prereq)
	}
	return results
}

// ValidateRequired checks that all required prerequisites are met
// Returns nil if every required check passes, otherwise returns an error
// describing what's missing
func ValidateRequired(prereqs []Prerequisite) error {
	var missing []string

	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		result := Check(prereq)
		if !result.OK {
			missing = append(missing, fmt.Sprintf("  - %s (%s): %v\n    Fix: %s",
				prereq.Name, prereq.Description, result.Error, prereq.Hint))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("preflight checks failed:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// writable reports whether files can be created in dir, creating it if needed.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".turnbench-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// FormatCheckResults formats check results for display
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Preflight:\n")
	for _, r := range results {
		status := "✓"
		if !r.OK {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		sb.WriteString(fmt.Sprintf("  %s %s", status, r.Prerequisite.Name))
		if r.OK && r.Detail != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Detail))
		} else if !r.OK {
			if r.Prerequisite.Required {
				sb.WriteString(" [REQUIRED]")
			} else {
				sb.WriteString(" [optional]")
			}
			if r.Error != nil {
				sb.WriteString(fmt.Sprintf(": %v", r.Error))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
