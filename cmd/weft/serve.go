package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft"
	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/pkg/live"
	"github.com/weft-dev/weft/pkg/source"
	"github.com/weft-dev/weft/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live state gateway",
		Long: `Start the gateway serving the signals declared in weft.yaml.

The gateway restores the latest snapshot, starts the declared file
sources, and serves:

  GET /ws             WebSocket subscriptions and writes
  GET /healthz        liveness probe
  GET /metrics        Prometheus exposition
  GET /signals        all signals with current values
  PUT /signals/{name} write one signal

Snapshots are taken on the configured interval and once more on
shutdown, so a clean restart never loses persisted state.

Examples:
  weft serve
  weft serve --config=/etc/weft/weft.yaml
  weft serve --addr=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to the configuration file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from weft.yaml)")

	return cmd
}

func runServe(configPath, addr string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)

	if cfg.DepthLimit > 0 {
		weft.SetDepthLimit(cfg.DepthLimit)
		logger.Info("notification depth guard enabled", "limit", cfg.DepthLimit)
	}

	reg, persisted, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	logger.Info("registry built", "signals", reg.Len(), "persisted", persisted.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshot persistence: restore before the gateway and the file sources
	// can observe or overwrite state.
	var snapshotter *store.Snapshotter
	st, err := buildStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		snapshotter = store.NewSnapshotter(persisted, st, cfg.Snapshot.Interval.Std(), cfg.Snapshot.Keep, logger)
		if _, err := snapshotter.RestoreLatest(ctx); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
	}

	// File-backed signals.
	sources := make([]*source.FileSource, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sig, ok := reg.Lookup(sc.Signal)
		if !ok {
			return fmt.Errorf("source %s: %w: %q", sc.Path, weft.ErrNotRegistered, sc.Signal)
		}

		opts := []source.Option{
			source.WithDecoder(source.DecoderFor(sc.Format)),
			source.WithLogger(logger),
		}
		if sc.Debounce > 0 {
			opts = append(opts, source.WithDebounce(sc.Debounce.Std()))
		}

		fs := source.NewFileSource(sc.Path, sig, opts...)
		if err := fs.Start(ctx); err != nil {
			return err
		}
		defer fs.Stop()
		sources = append(sources, fs)
		logger.Info("file source started", "path", sc.Path, "signal", sc.Signal)
	}

	gw := live.New(reg, live.Config{
		Logger:            logger,
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval.Std(),
		ReadTimeout:       cfg.Gateway.ReadTimeout.Std(),
		WriteTimeout:      cfg.Gateway.WriteTimeout.Std(),
		SendBuffer:        cfg.Gateway.SendBuffer,
		MetricsOptions:    []live.MetricsOption{live.WithNamespace(cfg.MetricsNamespace)},
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: gw.Router(),
	}

	var snapDone chan struct{}
	if snapshotter != nil {
		snapDone = make(chan struct{})
		go func() {
			defer close(snapDone)
			snapshotter.Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		stop()
		if snapDone != nil {
			<-snapDone
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	gw.Shutdown()

	for _, fs := range sources {
		fs.Stop()
	}

	// Snapshotter.Run takes its final snapshot when ctx is canceled; wait
	// for it so the save completes before the store closes.
	if snapDone != nil {
		<-snapDone
		logger.Info("state persisted", "version", snapshotter.Version())
	}

	return nil
}
