package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"

	"github.com/hazz-dev/statusroll/internal/config"
	"github.com/hazz-dev/statusroll/internal/engine"
	"github.com/hazz-dev/statusroll/internal/events"
	"github.com/hazz-dev/statusroll/internal/history"
	"github.com/hazz-dev/statusroll/internal/logging"
	"github.com/hazz-dev/statusroll/internal/storage"
	"github.com/hazz-dev/statusroll/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "statusroll",
		Short:        "Probe service endpoints and keep a daily uptime history",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(pruneCmd())
	root.AddCommand(serveCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// app bundles what every command needs after loading the config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, closeLog: closeLog}, nil
}

func (a *app) close() {
	_ = a.closeLog()
}

func (a *app) openStore(ctx context.Context) (history.Store, error) {
	store, err := storage.Open(ctx, a.cfg.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

// newEngine wires the store and publisher into an engine. The returned
// function releases both.
func (a *app) newEngine(ctx context.Context) (*engine.Engine, func(), error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	pub, err := events.Open(ctx, a.cfg.Events.TopicURL, a.logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening events topic: %w", err)
	}
	eng := engine.New(a.cfg, store, engine.Options{Logger: a.logger, Publisher: pub})
	cleanup := func() {
		if err := pub.Shutdown(context.Background()); err != nil {
			a.logger.Warn("closing events topic", "error", err)
		}
		if err := store.Close(); err != nil {
			a.logger.Warn("closing storage", "error", err)
		}
	}
	return eng, cleanup, nil
}
