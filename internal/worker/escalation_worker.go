package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/escalation"
	"github.com/spec-kit/service-desk/internal/observability"
)

// EscalationWorker drives the scanner on a fixed interval. Each tick runs
// under a context deadline equal to the interval so a slow sweep yields and
// resumes on the next tick instead of piling up.
type EscalationWorker struct {
	scanner  *escalation.Scanner
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(scanner *escalation.Scanner, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *EscalationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &EscalationWorker{scanner: scanner, interval: interval, metrics: metrics, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (w *EscalationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("escalation worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *EscalationWorker) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	report, err := w.scanner.Run(tickCtx, false)
	if err != nil {
		w.logger.Error("escalation scan failed", zap.Error(err))
		return
	}
	w.metrics.RecordScan(report.Scanned, report.Escalated, len(report.Errors))
}
