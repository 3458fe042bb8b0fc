package main

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/presence"
	"github.com/gosuda/taskboard/internal/server"
	"github.com/gosuda/taskboard/internal/server/middleware"
	"github.com/gosuda/taskboard/internal/store/postgres"
	redisstore "github.com/gosuda/taskboard/internal/store/redis"
	"github.com/gosuda/taskboard/internal/task"
)

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	return postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Migrate(c.Context)
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// A nil *UserCache must not reach the interface.
	var cache auth.UserCache
	if cfg.Redis.Addr != "" {
		userCache, cacheErr := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if cacheErr != nil {
			return cacheErr
		}
		defer userCache.Close()
		cache = userCache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("identity cache enabled")
	}

	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL)
	identity := auth.NewIdentity(store.Users(), cache)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, identity, ws.Options{
		SendBuffer:     cfg.WS.SendBuffer,
		WriteTimeout:   cfg.WS.WriteTimeout,
		PingInterval:   cfg.WS.PingInterval,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
		Authenticate:   middleware.UserIDFromRequest(cfg.JWT.Secret),
	})
	tasks := task.NewService(store.Tasks(), hub)

	srv := server.New(ctx, cfg, server.Deps{
		Auth:     authSvc,
		Tasks:    tasks,
		Presence: registry,
		Hub:      hub,
		Ping:     store.Ping,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		serverErr <- srv.Start(ctx)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
