// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/vip-backend/internal/admin"
	"github.com/carterperez-dev/templates/vip-backend/internal/auth"
	"github.com/carterperez-dev/templates/vip-backend/internal/config"
	"github.com/carterperez-dev/templates/vip-backend/internal/core"
	"github.com/carterperez-dev/templates/vip-backend/internal/health"
	"github.com/carterperez-dev/templates/vip-backend/internal/membership"
	"github.com/carterperez-dev/templates/vip-backend/internal/middleware"
	"github.com/carterperez-dev/templates/vip-backend/internal/server"
	"github.com/carterperez-dev/templates/vip-backend/internal/user"
)

const (
	drainDelay           = 5 * time.Second
	denylistCleanupEvery = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genSecret := flag.Bool("gen-secret", false, "print a random JWT secret and exit")
	flag.Parse()

	if *genSecret {
		secret, err := core.GenerateSecureToken(48)
		if err != nil {
			slog.Error("generate secret", "error", err)
			os.Exit(1)
		}
		fmt.Println(secret)
		return
	}

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		*configPath = ""
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	hasher, err := core.NewHasher(cfg.Security.PasswordHasher)
	if err != nil {
		return err
	}

	var (
		db       *core.Database
		userRepo user.Repository
		denylist auth.Denylist
		dbCheck  health.Checker
	)

	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory user store, data is lost on restart")
		userRepo = user.NewMemoryRepository()
		denylist = auth.NewMemoryDenylist(nil)
	} else {
		db, err = core.NewDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database connected",
			"driver", db.Driver,
			"max_open_conns", cfg.Database.MaxOpenConns,
		)

		userRepo = user.NewRepository(db.DB)
		dbCheck = db

		sqlDenylist := auth.NewSQLDenylist(db.DB)
		denylist = sqlDenylist
		go sqlDenylist.RunCleanup(ctx, denylistCleanupEvery, func(err error) {
			logger.Warn("denylist cleanup failed", "error", err)
		})
	}

	userRepo = user.WithTimeout(userRepo, cfg.Database.QueryTimeout)

	cache, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	var (
		redisCheck  health.Checker
		redisClient *goredis.Client
	)
	adminCfg := admin.HandlerConfig{}
	if db != nil {
		adminCfg.DBStats = db.Stats
		adminCfg.DBPing = db.Ping
	}
	if cache != nil {
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
		redisClient = cache.Client
		denylist = auth.NewRedisDenylist(cache.Client)
		redisCheck = cache
		adminCfg.RedisStats = cache.PoolStats
		adminCfg.RedisPing = cache.Ping
	}

	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token service initialized",
		"algorithm", "HS256",
		"lifetime", tokens.Lifetime(),
	)

	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	manager := membership.NewManager(
		userRepo,
		membership.WithGrantDuration(cfg.Membership.GrantDuration),
	)
	adminCfg.Members = manager

	authSvc := auth.NewService(auth.ServiceConfig{
		Users:      userSvc,
		Tokens:     tokens,
		Hasher:     hasher,
		Membership: manager,
		Denylist:   denylist,
	})
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(cfg.App.Name, dbCheck, redisCheck)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	clientIP, err := middleware.NewClientIP(cfg.RateLimit.ProxyList())
	if err != nil {
		return err
	}

	router := srv.Router()

	router.Use(
		middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			Limit: middleware.Per(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			KeyFunc: clientIP.KeyByEndpoint,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	healthHandler.RegisterRoutes(router)

	if cfg.Admin.APIKey == "" {
		logger.Warn("ADMIN_API_KEY is not set, admin routes are open")
	}
	authenticator := middleware.Authenticator(authSvc)
	adminKey := middleware.RequireAdminKey(cfg.Admin.APIKey)

	router.Route("/auth", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, adminKey)
		userHandler.RegisterRoutes(r, authenticator)
	})
	adminHandler.RegisterRoutes(router, adminKey)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := cache.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
