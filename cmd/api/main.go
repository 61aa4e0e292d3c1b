package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-desk/internal/api/http"
	"github.com/spec-kit/service-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-desk/internal/approval"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/config"
	"github.com/spec-kit/service-desk/internal/escalation"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/observability"
	"github.com/spec-kit/service-desk/internal/persistence"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	clk := clock.System()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	notifier := notify.NewRedisDispatcher(redis.Client, cfg.Notification.Queue, logger)

	notificationService := service.NewNotificationService(dispatcher, notifier, logger)
	notificationService.RegisterHandlers()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  userRepo,
		StaffRepo: staffRepo,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, staffRepo)

	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		SubmissionRepo:  submissionRepo,
		TransactionRepo: transactionRepo,
		CategoryRepo:    categoryRepo,
		AuditRepo:       auditRepo,
		Dispatcher:      dispatcher,
		Clock:           clk,
	})

	gate := approval.NewGate(submissionRepo, categoryRepo, auditRepo, notifier, dispatcher, clk, logger, cfg.SLA.ApproverMinGrade)

	scanner := escalation.NewScanner(submissionRepo, notifier, auditRepo, clk, logger, escalation.Options{
		WarningWindow:     cfg.SLA.WarningWindow(),
		BatchSize:         cfg.SLA.ScanBatchSize,
		FallbackRecipient: cfg.Notification.FallbackRecipient,
		Dispatcher:        dispatcher,
	})
	escalationWorker := worker.NewEscalationWorker(scanner, cfg.SLA.ScanInterval(), metrics, logger)
	go escalationWorker.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:           handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:             handlers.NewAuthHandler(authService),
		Submissions:      handlers.NewSubmissionsHandler(submissionService),
		StaffSubmissions: handlers.NewStaffSubmissionsHandler(submissionService, gate),
		Reports:          handlers.NewReportsHandler(submissionService),
		AuthMiddleware:   authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
