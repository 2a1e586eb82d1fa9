package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/duty-engine/api"
	"github.com/warp/duty-engine/config"
	"github.com/warp/duty-engine/logger"
	"github.com/warp/duty-engine/metrics"
	"github.com/warp/duty-engine/store/sqlite"
)

type serveFlags struct {
	addr      string
	db        string
	zone      string
	rules     string
	logLevel  string
	logFormat string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address (default :8080)")
	cmd.Flags().StringVar(&f.db, "db", "", `SQLite database path, ":memory:" for in-memory`)
	cmd.Flags().StringVar(&f.zone, "zone", "", "IANA zone local-time rules are evaluated in")
	cmd.Flags().StringVar(&f.rules, "rules", "", "JSON rules document (default: embedded)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "text or json")
	return cmd
}

// apply overrides cfg with the flags that were given explicitly.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("addr", &cfg.Addr, f.addr)
	set("db", &cfg.DBPath, f.db)
	set("zone", &cfg.Zone, f.zone)
	set("rules", &cfg.RulesFile, f.rules)
	set("log-level", &cfg.LogLevel, f.logLevel)
	set("log-format", &cfg.LogFormat, f.logFormat)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	rules, err := cfg.Rules()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	opts := []metrics.Option{}
	if cfg.MetricsEnabled {
		opts = append(opts, metrics.WithRuntimeCollectors())
	}
	handler, err := api.NewHandler(store, rules,
		api.WithLogger(log),
		api.WithMetrics(metrics.NewManager(opts...)),
	)
	if err != nil {
		return err
	}

	monitor := api.NewRollingMonitor(handler, cfg.MonitorInterval)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
		Monitor:        monitor,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr": cfg.Addr,
			"db":   cfg.DBPath,
			"zone": rules.Location().String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	monitor.Start()
	defer monitor.Stop()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
