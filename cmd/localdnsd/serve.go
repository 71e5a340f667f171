package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/common/utils"
	"github.com/haukened/localdns/internal/dns/config"
	"github.com/haukened/localdns/internal/dns/repos/records/bolt"
	"github.com/haukened/localdns/internal/dns/services/server"
	"github.com/haukened/localdns/internal/dns/services/watcher"
)

// Application holds all the components of the DNS server
type Application struct {
	config    *config.AppConfig
	server    *server.Server
	watcher   *watcher.Watcher
	snapshots *bolt.SnapshotStore
	logger    log.Logger
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the DNS responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger.Info(map[string]any{
		"version": version,
		"env":     cfg.Env,
		"level":   cfg.Log.Level,
		"address": cfg.ListenAddr(),
		"records": cfg.Records.File,
		"suffix":  cfg.Records.Suffix,
		"watch":   cfg.Records.Watch,
	}, "Starting localdns server")

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error(map[string]any{"error": err}, "Failed to build application")
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	if err := app.Run(cmd.Context(), signals); err != nil {
		logger.Error(map[string]any{"error": err}, "Server failed")
		return err
	}

	logger.Info(nil, "localdns server stopped gracefully")
	return nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, logger log.Logger) (*Application, error) {
	recordsPath, err := cfg.RecordsPath()
	if err != nil {
		return nil, err
	}
	statePath, err := cfg.StatePath()
	if err != nil {
		return nil, err
	}

	if utils.IsICANNSuffix(cfg.Records.Suffix) {
		logger.Warn(map[string]any{"suffix": cfg.Records.Suffix},
			"Suffix is a public top-level domain, queries for real names under it will be answered locally")
	}

	app := &Application{config: cfg, logger: logger}

	var snapshots server.Snapshotter
	if statePath != "" {
		app.snapshots, err = bolt.Open(statePath)
		if err != nil {
			return nil, err
		}
		snapshots = app.snapshots
		logger.Info(map[string]any{"path": statePath}, "Records snapshot store opened")
	}

	app.server, err = server.New(server.Options{
		Address:       cfg.ListenAddr(),
		RecordsPath:   recordsPath,
		Suffix:        cfg.Records.Suffix,
		ControlBuffer: cfg.Server.ControlBuffer,
		CacheSize:     cfg.Records.CacheSize,
		Logger:        logger,
		Breaker:       server.NewBreaker(cfg.Breaker.Threshold, cfg.Breaker.Cooldown, logger),
		Snapshots:     snapshots,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to build server: %w", err), app.Close())
	}

	if cfg.Records.Watch {
		app.watcher = watcher.New(recordsPath, app.server.Controller(), watcher.Options{Logger: logger})
	}

	return app, nil
}

// Run serves until ctx is cancelled, a shutdown signal arrives, or the server
// fails. SIGHUP reloads the records file.
func (app *Application) Run(ctx context.Context, signals <-chan os.Signal) (err error) {
	defer func() {
		err = multierr.Append(err, app.Close())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return app.server.Run(ctx)
	})

	if app.watcher != nil {
		g.Go(func() error {
			select {
			case <-app.server.Ready():
			case <-ctx.Done():
				return nil
			}
			err := app.watcher.Run(ctx)
			if errors.Is(err, server.ErrServerStopped) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return app.handleSignals(ctx, signals)
	})

	return g.Wait()
}

func (app *Application) handleSignals(ctx context.Context, signals <-chan os.Signal) error {
	ctl := app.server.Controller()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-signals:
			app.logger.Info(map[string]any{"signal": sig.String()}, "Signal received")
			var err error
			if sig == syscall.SIGHUP {
				err = ctl.Reload(ctx)
			} else {
				err = ctl.Shutdown(ctx)
			}
			if err != nil && !errors.Is(err, server.ErrServerStopped) && ctx.Err() == nil {
				return err
			}
		}
	}
}

// Close releases resources held outside the server.
func (app *Application) Close() error {
	if app.snapshots == nil {
		return nil
	}
	err := app.snapshots.Close()
	app.snapshots = nil
	return err
}
