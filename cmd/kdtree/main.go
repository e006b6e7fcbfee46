package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/sqlite-kdtree/config"
	"github.com/viant/sqlite-kdtree/engine"
	"github.com/viant/sqlite-kdtree/gallery"
	"github.com/viant/sqlite-kdtree/internal/logging"
	"github.com/viant/sqlite-kdtree/kdsync"
	"github.com/viant/sqlite-kdtree/server"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile  string
	addr     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "kdtree",
	Short: "KD-tree face embedding index",
	Long: `kdtree keeps face embeddings in an in-memory KD-tree and answers exact
k-nearest-neighbor queries over HTTP. It can optionally seed and follow a
gallery stored in a SQLite shadow table.`,
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kdtree %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file path")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = addr
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.NewText(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	g := gallery.New(
		gallery.WithDimension(cfg.Index.Dimension),
		gallery.WithMaxIDLength(cfg.Index.MaxIDLength),
		gallery.WithLogger(logger.With("component", "gallery")),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Sync.Enabled() {
		stop, err := startSync(ctx, cfg.Sync, g, logger.With("component", "sync"))
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(server.Config{Gallery: g, Logger: logger.With("component", "http")}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	err = srv.Shutdown(shutdownCtx)
	g.Close()
	return err
}

// startSync seeds g from the shadow table and polls its change log until ctx ends.
func startSync(ctx context.Context, cfg config.SyncConfig, g *gallery.Gallery, logger *logging.Logger) (func(), error) {
	db, err := engine.OpenFile(cfg.Database, cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	if err := kdsync.Install(ctx, db, cfg.ShadowTable); err != nil {
		db.Close()
		return nil, err
	}
	replayer, err := kdsync.NewReplayer(ctx, db, g, kdsync.Config{
		GalleryID:   cfg.GalleryID,
		ShadowTable: cfg.ShadowTable,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	loaded, err := replayer.Rebuild(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.WithField("faces", loaded).Info("gallery seeded")

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := replayer.Sync(ctx); err != nil && ctx.Err() == nil {
					logger.WithError(err).Warn("sync failed")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
		db.Close()
	}, nil
}
