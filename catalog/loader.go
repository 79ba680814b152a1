package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/turnbench-core/verifier"
)

const (
	verifiersFile = "verifiers.yaml"
	setupsFile    = "setups.yaml"
	promptsFile   = "prompts.yaml"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

type verifierFile struct {
	Verifiers []verifier.Verifier `yaml:"verifiers"`
}

type setupFile struct {
	Setups []Setup `yaml:"setups"`
}

type promptFile struct {
	Prompts map[string]string `yaml:"prompts"`
}

// Default returns the catalog built from the embedded defaults alone.
func Default() (*Catalog, error) {
	return Load("")
}

// Load builds a catalog from the embedded defaults and overlays any of
// verifiers.yaml, setups.yaml and prompts.yaml found in dir. Overlay entries
// replace defaults with the same id or key. An empty dir skips the overlay.
// The result is validated before it is returned.
func Load(dir string) (*Catalog, error) {
	c := newCatalog()

	defaults, err := fs.Sub(defaultsFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded catalog: %w", err)
	}
	if err := c.overlay(defaults, "embedded"); err != nil {
		return nil, err
	}

	if dir != "" {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			if err := c.overlay(os.DirFS(dir), dir); err != nil {
				return nil, err
			}
		case err == nil:
			return nil, fmt.Errorf("catalog path %s is not a directory", dir)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to stat catalog dir: %w", err)
		}
	}

	if errs := Validate(c); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(joined...))
	}
	return c, nil
}

// overlay merges the catalog files present in fsys. Missing files are skipped.
func (c *Catalog) overlay(fsys fs.FS, origin string) error {
	var vf verifierFile
	if ok, err := readYAML(fsys, verifiersFile, &vf); err != nil {
		return fmt.Errorf("%s: %w", origin, err)
	} else if ok {
		seen := make(map[int]bool, len(vf.Verifiers))
		for _, v := range vf.Verifiers {
			if seen[v.ID] {
				return fmt.Errorf("%s/%s: duplicate verifier id %d", origin, verifiersFile, v.ID)
			}
			seen[v.ID] = true
			c.verifiers[v.ID] = v
		}
	}

	var sf setupFile
	if ok, err := readYAML(fsys, setupsFile, &sf); err != nil {
		return fmt.Errorf("%s: %w", origin, err)
	} else if ok {
		seen := make(map[string]bool, len(sf.Setups))
		for _, s := range sf.Setups {
			if seen[s.ID] {
				return fmt.Errorf("%s/%s: duplicate setup id %q", origin, setupsFile, s.ID)
			}
			seen[s.ID] = true
			c.setups[s.ID] = s
		}
	}

	var pf promptFile
	if ok, err := readYAML(fsys, promptsFile, &pf); err != nil {
		return fmt.Errorf("%s: %w", origin, err)
	} else if ok {
		for k, p := range pf.Prompts {
			c.prompts[k] = strings.TrimSpace(p)
		}
	}
	return nil
}

func readYAML(fsys fs.FS, name string, out any) (bool, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}
	return true, nil
}
