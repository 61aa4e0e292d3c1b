package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/config"
	"github.com/spec-kit/service-desk/internal/escalation"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/observability"
	"github.com/spec-kit/service-desk/internal/persistence"
	"github.com/spec-kit/service-desk/internal/repository"
)

// run-escalation-scan performs a single sweep of deadline candidates and
// exits. With --dry-run it reports what would escalate without mutating
// anything or sending notifications.
func main() {
	dryRun := flag.Bool("dry-run", false, "report candidates without flagging or notifying")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		os.Exit(1)
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	submissionRepo := repository.NewSubmissionRepository(pg.PoolHandle())
	auditRepo := repository.NewAuditRepository(pg.PoolHandle())

	var notifier notify.Dispatcher = notify.NewRedisDispatcher(redis.Client, cfg.Notification.Queue, logger)
	if *dryRun {
		notifier = notify.NewLogDispatcher(logger)
	}

	scanner := escalation.NewScanner(submissionRepo, notifier, auditRepo, clock.System(), logger, escalation.Options{
		WarningWindow:     cfg.SLA.WarningWindow(),
		BatchSize:         cfg.SLA.ScanBatchSize,
		FallbackRecipient: cfg.Notification.FallbackRecipient,
	})

	report, err := scanner.Run(ctx, *dryRun)
	if err != nil {
		logger.Error("escalation scan failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("scanned=%d escalated=%d errors=%d dry_run=%v\n",
		report.Scanned, report.Escalated, len(report.Errors), *dryRun)
	for _, scanErr := range report.Errors {
		fmt.Printf("  submission=%s kind=%s error=%s\n", scanErr.SubmissionID, scanErr.DeadlineKind, scanErr.Reason)
	}
}
