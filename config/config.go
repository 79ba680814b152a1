package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/turnbench-core/paths"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// ProviderConfig selects the OpenAI-compatible endpoint sessions are played against.
type ProviderConfig struct {
	BaseURL         string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKeyEnv       string `yaml:"api_key_env" validate:"required"`
	Model           string `yaml:"model" validate:"required"`
	ReasoningEffort string `yaml:"reasoning_effort,omitempty" validate:"omitempty,oneof=low medium high"`
	JSONMode        bool   `yaml:"json_mode,omitempty"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory badger sqlite"`
	Path   string `yaml:"path,omitempty" validate:"required_unless=Driver memory"`
}

// RetryConfig bounds retries after malformed or invalid model replies.
type RetryConfig struct {
	MaxFormatRetries   int `yaml:"max_format_retries" validate:"gte=0,lte=10"`
	MaxValidityRetries int `yaml:"max_validity_retries" validate:"gte=0,lte=10"`
}

// Config holds the application configuration
type Config struct {
	LogLevel         string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Provider         ProviderConfig `yaml:"provider"`
	Store            StoreConfig    `yaml:"store"`
	Retry            RetryConfig    `yaml:"retry"`
	CatalogDir       string         `yaml:"catalog_dir,omitempty"`
	MetricsAddr      string         `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	DefaultMaxRounds int            `yaml:"default_max_rounds" validate:"gte=1,lte=100"`

	mu       sync.RWMutex
	filePath string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o-mini",
		},
		Store:            StoreConfig{Driver: DriverSQLite},
		Retry:            RetryConfig{MaxFormatRetries: 3, MaxValidityRetries: 3},
		MetricsAddr:      "127.0.0.1:9464",
		DefaultMaxRounds: 10,
	}
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = paths.ConfigFilePath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.filePath = path

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills the default store location for the driver and makes
// relative paths relative to the config file's directory.
func (c *Config) resolvePaths(base string) error {
	if c.Store.Path == "" {
		var err error
		switch c.Store.Driver {
		case DriverBadger:
			c.Store.Path, err = paths.StoreDir()
		case DriverSQLite:
			c.Store.Path, err = paths.SQLitePath()
		}
		if err != nil {
			return err
		}
	}
	c.Store.Path = ExpandPath(base, c.Store.Path)
	c.CatalogDir = ExpandPath(base, c.CatalogDir)
	return nil
}

// Validate checks struct constraints and joins every violation.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return fmt.Errorf("invalid config: %w", errors.Join(errs...))
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required", "required_unless":
		return fmt.Errorf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Errorf("%s must be %s %s, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}

// Save writes the config to its file path.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return errors.New("config has no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.filePath, data, 0644)
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// FilePath returns where the config is saved.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// APIKey reads the provider key from the configured environment variable.
func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return os.Getenv(c.Provider.APIKeyEnv)
}

// SetModel changes the default model.
func (c *Config) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Provider.Model = model
}

// GetDefaultMaxRounds returns the round limit for new sessions.
func (c *Config) GetDefaultMaxRounds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.DefaultMaxRounds <= 0 {
		return 10
	}
	return c.DefaultMaxRounds
}
