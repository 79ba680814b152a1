package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhubert/turnbench-core/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Provider.APIKeyEnv = "TURNBENCH_TEST_KEY"
	cfg.Store.Path = filepath.Join(t.TempDir(), "db", "turnbench.db")
	return cfg
}

func find(results []CheckResult, name string) CheckResult {
	for _, r := range results {
		if r.Prerequisite.Name == name {
			return r
		}
	}
	return CheckResult{}
}

func TestDefaultPrerequisites(t *testing.T) {
	prereqs := DefaultPrerequisites(testConfig(t))

	required := map[string]bool{"api-key": false, "store": false, "catalog": false}
	for _, prereq := range prereqs {
		if _, ok := required[prereq.Name]; ok {
			required[prereq.Name] = true
			if !prereq.Required {
				t.Errorf("Prerequisite %q should be required", prereq.Name)
			}
		}
		if prereq.Name == "metrics" && prereq.Required {
			t.Error("metrics should be optional, not required")
		}
	}
	for name, found := range required {
		if !found {
			t.Errorf("Expected prerequisite %q not found", name)
		}
	}
}

func TestDefaultPrerequisites_AllPass(t *testing.T) {
	t.Setenv("TURNBENCH_TEST_KEY", "sk-test")
	cfg := testConfig(t)

	results := CheckAll(DefaultPrerequisites(cfg))
	for _, r := range results {
		if !r.OK {
			t.Errorf("%s failed: %v", r.Prerequisite.Name, r.Error)
		}
	}
	if got := find(results, "catalog").Detail; !strings.Contains(got, "setups") {
		t.Errorf("catalog detail = %q", got)
	}
	if _, err := os.Stat(filepath.Dir(cfg.Store.Path)); err != nil {
		t.Errorf("store directory not created: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(cfg.Store.Path))
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestDefaultPrerequisites_MissingKey(t *testing.T) {
	t.Setenv("TURNBENCH_TEST_KEY", "")
	cfg := testConfig(t)

	err := ValidateRequired(DefaultPrerequisites(cfg))
	if err == nil {
		t.Fatal("ValidateRequired should fail without an API key")
	}
	if !strings.Contains(err.Error(), "TURNBENCH_TEST_KEY") {
		t.Errorf("Error should name the variable: %v", err)
	}
}

func TestDefaultPrerequisites_MemoryStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverMemory
	cfg.Store.Path = ""

	r := find(CheckAll(DefaultPrerequisites(cfg)), "store")
	if !r.OK || r.Detail != "in memory" {
		t.Errorf("store check = %+v", r)
	}
}

func TestDefaultPrerequisites_BadCatalogDir(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.CatalogDir = file

	if r := find(CheckAll(DefaultPrerequisites(cfg)), "catalog"); r.OK {
		t.Error("catalog check should fail for a file path")
	}
}

func TestCheck(t *testing.T) {
	ok := Check(Prerequisite{Name: "ok", Probe: func() (string, error) { return "fine", nil }})
	if !ok.OK || ok.Detail != "fine" || ok.Error != nil {
		t.Errorf("Check(ok) = %+v", ok)
	}

	bad := Check(Prerequisite{Name: "bad", Probe: func() (string, error) { return "", errors.New("broken") }})
	if bad.OK || bad.Error == nil {
		t.Errorf("Check(bad) = %+v", bad)
	}
}

func TestValidateRequired_OptionalMissing(t *testing.T) {
	prereqs := []Prerequisite{
		{Name: "present", Required: true, Probe: func() (string, error) { return "", nil }},
		{Name: "absent", Required: false, Probe: func() (string, error) { return "", errors.New("nope") }},
	}

	if err := ValidateRequired(prereqs); err != nil {
		t.Errorf("ValidateRequired should not error when only optional checks fail: %v", err)
	}
}

func TestFormatCheckResults(t *testing.T) {
	results := []CheckResult{
		{
			Prerequisite: Prerequisite{Name: "passing", Required: true},
			OK:           true,
			Detail:       "3 setups",
		},
		{
			Prerequisite: Prerequisite{Name: "missing-required", Required: true},
			Error:        errors.New("not set"),
		},
		{
			Prerequisite: Prerequisite{Name: "missing-optional", Required: false},
		},
	}

	output := FormatCheckResults(results)

	for _, want := range []string{"Preflight", "passing (3 setups)", "[REQUIRED]: not set", "[optional]", "✓", "✗", "○"} {
		if !strings.Contains(output, want) {
			t.Errorf("Output should contain %q:\n%s", want, output)
		}
	}
}
