package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/repairx/job-service/internal/api/http"
	"github.com/repairx/job-service/internal/api/http/handlers"
	"github.com/repairx/job-service/internal/auth"
	"github.com/repairx/job-service/internal/config"
	"github.com/repairx/job-service/internal/events"
	"github.com/repairx/job-service/internal/observability"
	"github.com/repairx/job-service/internal/persistence"
	"github.com/repairx/job-service/internal/repository"
	"github.com/repairx/job-service/internal/service"
	"github.com/repairx/job-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := repository.NewMemoryRepositories()
	if pg.Enabled() {
		repos = repository.NewPostgresRepositories(pg.PoolHandle())
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	if client := redis.Universal(); client != nil {
		worker.StartEventRelay(events.NewRedisPublisher(client, cfg.Redis.EventsChannel, logger), dispatcher)
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  repos.Users,
		StaffRepo: repos.Staff,
	})
	staffService := service.NewStaffService(*cfg, repos.Staff, logger)
	jobService := service.NewJobService(service.JobDependencies{
		Repositories: repos,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	if _, err := staffService.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Fatal("failed to create bootstrap admin", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Users, repos.Staff)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Customers:      handlers.NewCustomersHandler(authService),
		Staff:          handlers.NewStaffHandler(authService, staffService),
		Jobs:           handlers.NewJobsHandler(jobService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
