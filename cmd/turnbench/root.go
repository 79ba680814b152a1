package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/cli"
	"github.com/zhubert/turnbench-core/config"
	"github.com/zhubert/turnbench-core/engine"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/logger"
	"github.com/zhubert/turnbench-core/metrics"
	"github.com/zhubert/turnbench-core/service"
	"github.com/zhubert/turnbench-core/store"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	debug      bool

	cfg      *config.Config
	log      *slog.Logger
	catalog  *catalog.Catalog
	store    store.Store
	recorder *metrics.Recorder
	svc      *service.Service

	// providers replaces the OpenAI-compatible provider factory when set.
	providers service.ProviderFactory
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "turnbench",
		Short:         "Benchmark language models on a code deduction game",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <config dir>/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.sessionCmd(),
		a.setupsCmd(),
		a.gamesCmd(),
		a.serveMetricsCmd(),
		a.doctorCmd(),
		a.pathsCmd(),
		a.logsCmd(),
	)
	return root
}

// loadConfig reads the config and initializes logging.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	path, err := logger.DefaultLogPath()
	if err != nil {
		return err
	}
	if err := logger.Init(path); err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	if a.debug {
		logger.SetDebug(true)
	}
	a.log = logger.WithComponent("cli")
	return nil
}

// service opens the store and builds the service on first use.
func (a *app) service(ctx context.Context) (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	c, err := catalog.Load(a.cfg.CatalogDir)
	if err != nil {
		return nil, err
	}
	st, err := openStore(a.cfg)
	if err != nil {
		return nil, err
	}

	a.catalog = c
	a.store = st
	a.recorder = metrics.New()

	eng := engine.New(engine.Config{
		Verifiers: c,
		Limits: engine.Limits{
			MaxFormatRetries:   a.cfg.Retry.MaxFormatRetries,
			MaxValidityRetries: a.cfg.Retry.MaxValidityRetries,
		},
		Recorder: a.recorder,
		Logger:   logger.WithComponent("engine"),
	})

	providers := a.providers
	if providers == nil {
		providers = a.openAIProviders
	}
	svc, err := service.New(service.Config{
		Store:            st,
		Catalog:          c,
		Engine:           eng,
		Providers:        providers,
		DefaultMaxRounds: a.cfg.GetDefaultMaxRounds(),
		JSONMode:         a.cfg.Provider.JSONMode,
		Logger:           logger.WithComponent("service"),
	})
	if err != nil {
		return nil, err
	}
	if err := svc.SeedSetups(ctx); err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// openAIProviders treats the LLM reference as a model name on the
// configured endpoint.
func (a *app) openAIProviders(llmRef string) (llm.Provider, error) {
	return llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: a.cfg.Provider.BaseURL,
		APIKey:  a.cfg.APIKey(),
		Model:   llmRef,
	}, logger.WithComponent("llm"))
}

// preflight fails when a required check does not pass.
func (a *app) preflight() error {
	return cli.ValidateRequired(cli.DefaultPrerequisites(a.cfg))
}

func (a *app) close() error {
	a.svc = nil
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func openStore(cfg *config.Config) (store.Store, error) {
	log := logger.WithComponent("store")
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverBadger:
		return store.OpenBadger(store.BadgerConfig{Path: cfg.Store.Path, Logger: log})
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// notFoundHint rewrites a missing-session error into something actionable.
func notFoundHint(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w (see `turnbench session list`)", err)
	}
	return err
}
