package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arcana-app/arcana/internal/api"
	"github.com/arcana-app/arcana/internal/app/billing"
	"github.com/arcana-app/arcana/internal/app/dispatch"
	"github.com/arcana-app/arcana/internal/app/engagement"
	"github.com/arcana-app/arcana/internal/app/reading"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/oracle"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// Daemon owns the database and every service built on it.
type Daemon struct {
	Config   Config
	DB       *sqlite.DB
	Rewards  *engagement.Engine
	Readings *reading.Service
	Billing  *billing.Service
	Notifier *dispatch.Dispatcher
	Server   *api.Server

	log *slog.Logger
}

// NewLogger builds the process logger from the [log] section.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// OpenDB opens the configured database, creating its directory.
func OpenDB(cfg Config) (*sqlite.DB, error) {
	path := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return sqlite.OpenFile(path)
}

// New opens the database and wires every service.
func New(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	rng := catalog.NewRand(0)
	hub := api.NewRewardHub()
	notifier := dispatch.New(dispatch.DefaultConfig(),
		engagement.Notifiers{engagement.NewLogNotifier(logger), hub}, logger)

	rewards := engagement.New(cfg.rewardsConfig(), engagement.Deps{
		DB:       db,
		Catalog:  cat,
		Rand:     rng,
		Notifier: notifier,
		Logger:   logger,
	})

	var interp domain.Interpreter
	if cfg.Interpreter.APIKey != "" {
		interp = oracle.New(cfg.oracleConfig())
	} else {
		logger.Warn("no interpreter API key configured, readings use the fallback text")
	}

	readings := reading.New(cfg.readingConfig(), reading.Deps{
		DB:          db,
		Catalog:     cat,
		Rand:        rng,
		Interpreter: interp,
		Rewards:     rewards,
		Logger:      logger,
	})
	bill := billing.New(cfg.billingConfig(), db, rewards.Achievement, nil, logger)

	srv := api.NewServer(readings, bill, db)
	srv.SetTimeout(parseDuration(cfg.API.RequestTimeout, time.Minute))
	srv.SetEngagement(api.NewEngagementAPI(rewards))
	srv.SetRewardHub(hub)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:   cfg,
		DB:       db,
		Rewards:  rewards,
		Readings: readings,
		Billing:  bill,
		Notifier: notifier,
		Server:   srv,
		log:      logger,
	}, nil
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func (d *Daemon) Serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              d.Config.Addr(),
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("arcana listening", "addr", httpSrv.Addr, "db", d.DB.Path())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := d.Notifier.Wait(shutdownCtx); err != nil {
		d.log.Warn("pending notifications abandoned", "error", err)
	}
	return nil
}

// Close releases the database.
func (d *Daemon) Close() error { return d.DB.Close() }
