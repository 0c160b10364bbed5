package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/db"
	"github.com/geocoder89/profilehub/internal/domain/user"
	httpx "github.com/geocoder89/profilehub/internal/http"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/images"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/repo/memory"
	"github.com/geocoder89/profilehub/internal/repo/postgres"
	"github.com/geocoder89/profilehub/internal/security"
	"github.com/geocoder89/profilehub/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, "profilehub", cfg.Env, cfg.OTELEndpoint)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			tctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(tctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.PingFunc{}

	// credential store
	var users identity.UserStore
	switch cfg.UserStore {
	case "memory":
		log.Warn("using in-memory user store; accounts are lost on restart")
		users = memory.NewUsersRepo(user.RoleUser)
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, log)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DBURL, log); err != nil {
			return err
		}
		if err := db.EnsureRoles(ctx, pool, user.RoleUser); err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}

		users = postgres.NewUsersRepo(pool, prom)
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	// session store
	var sessions session.Store
	switch cfg.SessionStore {
	case "memory":
		sessions = session.NewMemoryStore()
	default:
		rdb := session.NewRedisClient(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		store := session.NewRedisStore(rdb)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		sessions = store
		checks["redis"] = store.Ping
	}

	policy := security.DefaultPasswordPolicy()
	if cfg.PasswordMinLength > 0 {
		policy.MinLength = cfg.PasswordMinLength
	}

	idm := identity.NewManager(users, sessions, identity.Options{
		Policy:     policy,
		SessionTTL: cfg.SessionTTL,
	}, log)

	imageStore := images.NewStore(cfg.ImageDir, cfg.ImagePublicPath, cfg.ImageMaxBytes)

	accounts := account.NewService(idm, imageStore, account.Options{
		StoreTimeout: cfg.StoreTimeout,
		PublicRoot:   cfg.ImagePublicPath,
		Recorder:     prom,
	}, log)

	tokens := auth.NewManager(idm, auth.Options{
		Secret:       cfg.JWTSecret,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
		TTL:          cfg.JWTTTL,
		ClockSkew:    cfg.JWTClockSkew,
		StoreTimeout: cfg.StoreTimeout,
	})

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Accounts: accounts,
		Identity: idm,
		Tokens:   tokens,
		Sessions: sessions,
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "user_store", cfg.UserStore, "session_store", cfg.SessionStore)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
