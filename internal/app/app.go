// Package app wires the stores, the sync engine, the offline session and the
// connectivity watcher for one signed-in identity.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/beesaferoot/propertyhub/internal/config"
	"github.com/beesaferoot/propertyhub/internal/connectivity"
	"github.com/beesaferoot/propertyhub/internal/httpapi"
	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/logging"
	"github.com/beesaferoot/propertyhub/internal/prefs"
	"github.com/beesaferoot/propertyhub/internal/remote"
	"github.com/beesaferoot/propertyhub/internal/session"
	"github.com/beesaferoot/propertyhub/internal/syncengine"
)

const shutdownTimeout = 5 * time.Second

// App owns every long-lived component. Close releases them at sign-out or
// exit.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Local      *localstore.Store
	Remote     *remote.GormStore
	Engine     *syncengine.Engine
	Controller *session.Controller
	Watcher    *connectivity.Watcher
}

// New opens both stores, probes connectivity once and restores the offline
// session of cfg.Identity.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger)

	local, err := localstore.Open(cfg.LocalDBPath, &gorm.Config{Logger: logging.Gorm(cfg.LogLevel, nil)})
	if err != nil {
		return nil, err
	}
	rs, err := remote.Open(cfg.DatabaseURL, &gorm.Config{Logger: logging.Gorm(cfg.LogLevel, nil)})
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	bounded := remote.WithTimeout(rs, cfg.RemoteTimeout)
	var prober connectivity.Prober = connectivity.PingProber{Pinger: bounded.(remote.Pinger)}
	if cfg.ProbeURL != "" {
		prober = connectivity.HTTPProber{URL: cfg.ProbeURL}
	}
	online := prober.Probe(ctx) == nil

	engine := syncengine.New(local, syncengine.Options{
		PaymentHistoryLimit: cfg.PaymentHistoryLimit,
		Logger:              logger.With("component", "syncengine"),
	})
	ctrl := session.New(engine, bounded, prefs.NewFileStore(cfg.PrefsPath), session.Options{
		Identity: cfg.Identity,
		Online:   online,
		Logger:   logger.With("component", "session"),
	})
	if err := ctrl.Restore(ctx); err != nil {
		logger.Warn("starting with offline mode disabled", "error", err)
	}

	watcher := connectivity.NewWatcher(prober, ctrl, connectivity.Options{
		Interval: cfg.ProbeInterval,
		Initial:  &online,
		Logger:   logger.With("component", "connectivity"),
	})

	logger.Info("application started", "identity", cfg.Identity, "online", online, "local_db", cfg.LocalDBPath)
	return &App{
		Config:     cfg,
		Logger:     logger,
		Local:      local,
		Remote:     rs,
		Engine:     engine,
		Controller: ctrl,
		Watcher:    watcher,
	}, nil
}

// Router returns the HTTP surface of the session
func (a *App) Router() *gin.Engine {
	return httpapi.NewRouter(a.Controller, a.Watcher, a.Logger.With("component", "http"))
}

// Serve runs the connectivity watcher and the HTTP server until ctx is done
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Watcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close tears the session down and closes both stores
func (a *App) Close() error {
	a.Controller.Close()
	return errors.Join(a.Local.Close(), a.Remote.Close())
}
