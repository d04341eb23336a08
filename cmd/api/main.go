package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storegrid.io/internal/auth"
	"storegrid.io/internal/config"
	"storegrid.io/internal/httpapi"
	"storegrid.io/internal/obs"
	"storegrid.io/internal/rbac"
	"storegrid.io/internal/store/pg"
	"storegrid.io/internal/store/redis"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.InitLogger(false)
		obs.Logger().Fatal("load config", zap.Error(err))
	}

	log := obs.InitLogger(cfg.Production())
	defer obs.Sync()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	pgStore, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("open postgres", zap.Error(err))
	}
	defer pgStore.Close()

	tokens, err := auth.NewTokenService([]byte(cfg.AuthSecret),
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatal("token service", zap.Error(err))
	}

	// Redis fronts the jti blacklist when configured; Postgres alone is
	// a complete fallback.
	var revocations auth.RevocationStore = pgStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		cache := redis.NewBlacklistCache(pgStore, rdb)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, blacklist cache disabled", zap.Error(err))
		} else {
			revocations = cache
			log.Info("redis blacklist cache enabled", zap.String("addr", cfg.RedisAddr))
		}
		cancel()
	}

	revoker := auth.NewRevoker(revocations)
	resolver := auth.NewResolver(tokens, pgStore, revoker)
	aggregator := auth.NewAggregator(pgStore)
	authService := auth.NewService(pgStore, tokens, revoker)

	roleService, err := rbac.NewService(pgStore, pgStore)
	if err != nil {
		log.Fatal("rbac service", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := auth.NewSweeper(revoker, cfg.SweepInterval, log)
	go sweeper.Run(rootCtx)

	opts := httpapi.Options{
		Log:            log,
		Auth:           authService,
		Resolver:       resolver,
		Perms:          aggregator,
		Roles:          roleService,
		Directory:      pgStore,
		DB:             pgStore.DB(),
		Version:        version,
		RateLimitBurst: cfg.RateLimitBurst,
		RateLimitRPS:   cfg.RateLimitRPS,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}
	api := httpapi.New(opts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(opts),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting storegrid-api",
			zap.String("version", version),
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}
