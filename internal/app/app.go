// Package app assembles the server from its parts and runs them together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/archive"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/auth"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/config"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/engine"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/gateway"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/httpapi"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/room"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/store"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	gw       *gateway.Gateway
	archiver *archive.Archiver
	srv      *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- Postgres ---
	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	// Fail fast when either backend is unreachable.
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
	}

	authSvc := auth.NewService([]byte(cfg.Auth.Secret))

	// --- Stores ---
	users := store.NewUserStore(dbpool)
	stats := store.NewStatsStore(dbpool)
	results := store.NewResultStore(dbpool)
	snapshots := battle.NewRedisSnapshotStore(rdb, cfg.Redis.SnapshotTTL)

	// --- Game ---
	catalog := monster.DefaultCatalog()
	rooms := room.NewStore(cfg.Game.RoomTTL)
	battles := battle.NewCoordinator(engine.New(catalog), cfg.Game.BattleTime)

	gw := gateway.New(gateway.Config{TurnTimeout: cfg.Game.TurnTimeout}, rooms, battles, catalog, log.With("component", "gateway"))
	archiver := archive.New(snapshots, results, cfg.Game.ArchiveQueue, log.With("component", "archive"))
	gw.SetObserver(archiver)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth: &httpapi.AuthHandler{
			Users:    users,
			Stats:    stats,
			Auth:     authSvc,
			TokenTTL: cfg.Auth.TokenTTL,
		},
		Game: &httpapi.GameHandler{
			Rooms:     rooms,
			Snapshots: snapshots,
			Results:   results,
			Monsters:  catalog,
			WS:        gw,
			Tokens:    authSvc,
			Log:       log,
		},
		Tokens: authSvc,
		Log:    log.With("component", "http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(router, "http"),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		log:      log,
		db:       dbpool,
		rdb:      rdb,
		gw:       gw,
		archiver: archiver,
		srv:      srv,
	}, nil
}

// Run serves until ctx is cancelled or any part fails, then shuts everything
// down and closes the backends.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error { return a.gw.Run(gctx) })
	g.Go(func() error { return a.gw.RunSweeper(gctx, a.cfg.Game.SweepInterval) })
	g.Go(func() error { return a.archiver.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	if n := a.archiver.Dropped(); n > 0 {
		a.log.Warn("archive jobs dropped", "count", n)
	}
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
