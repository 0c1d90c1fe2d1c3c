package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dusk-indust/jitcap/internal/config"
	"github.com/dusk-indust/jitcap/internal/hydration"
	"github.com/dusk-indust/jitcap/internal/logging"
	"github.com/dusk-indust/jitcap/internal/registry"
	"github.com/dusk-indust/jitcap/internal/search"
	"github.com/dusk-indust/jitcap/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the persistent flags and the state derived from them.
type app struct {
	configDir string
	backend   string
	verbose   bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "jitcap",
		Short: "Just-in-time capability hydration for tool-using agents",
		Long: `jitcap keeps a registry of tool capabilities and loads their schemas
only when an agent asks for them. Agents start with a single discovery tool
and grow their tool set one origin at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory containing jitcap.yml, jitcap.yaml or jitcap.toml")
	cmd.PersistentFlags().StringVar(&a.backend, "backend", "", "registry backend override: memory|bolt|sqlite|kuzu")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newResolveCmd(),
		newRegisterCmd(a),
		newListCmd(a),
		newDiscoverCmd(a),
		newHydrateCmd(a),
		newRunCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// init loads the configuration, applies flag overrides and builds the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Registry.Backend = a.backend
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if cfg.Path != "" {
		logger.Debug("config loaded", zap.String("path", cfg.Path))
	}
	return nil
}

// env is the set of collaborators a command works with.
type env struct {
	store      registry.Store
	dispatcher *search.Dispatcher
	cache      *hydration.Cache
	closers    []io.Closer

	// newCache builds another cache over the same collaborators, for
	// sessions that must not share hydration state.
	newCache func() *hydration.Cache
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openStore opens the configured registry and seeds the configured catalog.
// With demo set, an in-memory store holding the demo catalog is used instead.
func (a *app) openStore(ctx context.Context, demo bool) (registry.Store, error) {
	if demo {
		s := registry.NewMemStore()
		if err := registry.Seed(ctx, s, demoCatalog()); err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := registry.Open(ctx, a.cfg.Registry.Backend, a.cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Registry.Catalog != "" {
		cat, err := registry.LoadCatalog(a.cfg.Registry.Catalog)
		if err == nil {
			err = registry.Seed(ctx, s, cat)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		a.logger.Debug("catalog seeded",
			zap.String("path", a.cfg.Registry.Catalog),
			zap.Int("capabilities", len(cat.Capabilities)),
		)
	}
	return s, nil
}

// open wires the store, search dispatcher, transport and hydration cache.
func (a *app) open(ctx context.Context, demo bool) (*env, error) {
	store, err := a.openStore(ctx, demo)
	if err != nil {
		return nil, err
	}
	e := &env{store: store, closers: []io.Closer{store}}

	e.dispatcher = search.NewDispatcher(store, a.logger.Named("search"))
	if err := e.dispatcher.SetMode(a.cfg.Search.Mode); err != nil {
		e.Close()
		return nil, err
	}

	var tr transport.Transport
	if demo {
		tr = demoTransport()
	} else {
		mt := transport.NewMCPTransport(transport.WithLogger(a.logger.Named("transport")))
		e.closers = append(e.closers, mt)
		tr = mt
	}

	siblings := hydration.SiblingsEager
	if !a.cfg.Hydration.EagerSiblings {
		siblings = hydration.SiblingsDeferred
	}
	cacheLogger := a.logger.Named("hydration")
	e.newCache = func() *hydration.Cache {
		return hydration.New(hydration.Config{
			Registry:  store,
			Search:    e.dispatcher,
			Transport: tr,
			Logger:    cacheLogger,
			Siblings:  siblings,
		})
	}
	e.cache = e.newCache()
	return e, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
