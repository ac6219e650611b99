package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/godilite/academic-insights/internal/config"
	"github.com/godilite/academic-insights/internal/repository"
	"github.com/godilite/academic-insights/internal/server"
	"github.com/godilite/academic-insights/pkg/cache"
	dbbuilder "github.com/godilite/academic-insights/pkg/database"
)

type App struct {
	logger *zap.Logger
	cfg    *config.Config
	dbPool *sql.DB
	cache  *cache.Cache
	http   *fiber.App
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	repo := repository.NewAcademicRepository(dbPool)
	if err := repo.Setup(ctx); err != nil {
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}

	var cacheClient *cache.Cache
	if cfg.CacheEnabled {
		cacheClient, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
		)
		if err != nil {
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	}

	httpApp := fiber.New(fiber.Config{
		AppName:      "academic-insights",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	var cacher server.Cacher
	if cacheClient != nil {
		cacher = cacheClient
	}
	handlers := server.NewHandlers(repo, cacher, logger)
	handlers.Register(httpApp)

	return &App{
		logger: logger,
		cfg:    cfg,
		dbPool: dbPool,
		cache:  cacheClient,
		http:   httpApp,
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting", zap.Int("port", a.cfg.HTTPPort))

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.http.Listen(fmt.Sprintf(":%d", a.cfg.HTTPPort))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-quit:
	}

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.http.ShutdownWithContext(ctx); err != nil {
		a.logger.Error("http shutdown error", zap.Error(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	a.logger.Info("graceful shutdown completed")
	_ = a.logger.Sync()
	return nil
}
