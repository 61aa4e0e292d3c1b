// Package escalation implements the periodic SLA sweep. Each tick finds
// open submissions whose response or resolution deadline has passed or
// falls inside the warning window, notifies the category's escalation
// contact exactly once per deadline kind, and records the escalation.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/repository"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// Store is the slice of the submission store the scanner consumes.
type Store interface {
	EscalationCandidates(ctx context.Context, kind domain.DeadlineKind, dueBefore time.Time, limit int) ([]repository.EscalationCandidate, error)
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	MarkEscalated(ctx context.Context, id string, expectedVersion int, kind domain.DeadlineKind, at time.Time) error
}

// AuditSink appends escalation trail entries.
type AuditSink interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
}

// ScanError describes one submission the sweep could not escalate.
type ScanError struct {
	SubmissionID string              `json:"submission_id"`
	DeadlineKind domain.DeadlineKind `json:"deadline_kind"`
	Reason       string              `json:"reason"`
}

// ScanReport aggregates one sweep.
type ScanReport struct {
	StartedAt time.Time   `json:"started_at"`
	DryRun    bool        `json:"dry_run"`
	Scanned   int         `json:"scanned"`
	Escalated int         `json:"escalated"`
	Errors    []ScanError `json:"errors,omitempty"`
}

// Scanner runs the sweep. It mutates only the escalation flags; status
// transitions stay with the approval gate and the submission service.
type Scanner struct {
	store         Store
	notifier      notify.Dispatcher
	audit         AuditSink
	clk           clock.Clock
	logger        *zap.Logger
	dispatcher    events.Dispatcher
	warningWindow time.Duration
	batchSize     int
	fallback      string
}

// Options configures a Scanner. Dispatcher is optional; when set, each
// escalation also publishes a domain event.
type Options struct {
	WarningWindow     time.Duration
	BatchSize         int
	FallbackRecipient string
	Dispatcher        events.Dispatcher
}

// NewScanner constructs the scanner.
func NewScanner(store Store, notifier notify.Dispatcher, audit AuditSink, clk clock.Clock, logger *zap.Logger, opts Options) *Scanner {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 200
	}
	return &Scanner{
		store:         store,
		notifier:      notifier,
		audit:         audit,
		clk:           clk,
		logger:        logger,
		dispatcher:    opts.Dispatcher,
		warningWindow: opts.WarningWindow,
		batchSize:     batch,
		fallback:      opts.FallbackRecipient,
	}
}

// Run performs one sweep across both deadline kinds. A store failure aborts
// the sweep; a single submission's notification failure is recorded in the
// report and leaves its flag unset so the next tick retries it. In dry-run
// mode the sweep counts what it would escalate without mutating flags or
// dispatching notifications.
func (s *Scanner) Run(ctx context.Context, dryRun bool) (*ScanReport, error) {
	now := s.clk.Now()
	report := &ScanReport{StartedAt: now, DryRun: dryRun}
	horizon := now.Add(s.warningWindow)

	for _, kind := range []domain.DeadlineKind{domain.DeadlineResponse, domain.DeadlineResolution} {
		candidates, err := s.store.EscalationCandidates(ctx, kind, horizon, s.batchSize)
		if err != nil {
			return report, apperrors.NewStoreUnavailable(err)
		}
		for i := range candidates {
			report.Scanned++
			if err := ctx.Err(); err != nil {
				// tick deadline hit; remaining candidates carry over
				return report, nil
			}
			if s.escalate(ctx, &candidates[i], kind, now, dryRun, report) {
				report.Escalated++
			}
		}
	}

	s.logger.Info("escalation scan finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *Scanner) escalate(ctx context.Context, candidate *repository.EscalationCandidate, kind domain.DeadlineKind, now time.Time, dryRun bool, report *ScanReport) bool {
	sub := &candidate.Submission
	breached := !candidate.DueAt.After(now)

	if dryRun {
		return true
	}

	msg := escalationMessage(candidate, kind, breached, s.fallback)
	if err := s.notifier.Send(ctx, msg); err != nil {
		// flag stays unset so the submission is retried next tick
		s.logger.Warn("escalation notification failed",
			zap.String("submission_id", sub.ID),
			zap.String("deadline_kind", string(kind)),
			zap.Error(err))
		report.Errors = append(report.Errors, ScanError{
			SubmissionID: sub.ID,
			DeadlineKind: kind,
			Reason:       err.Error(),
		})
		return false
	}

	if err := s.markEscalated(ctx, sub, kind, now); err != nil {
		if errors.Is(err, errAlreadySettled) {
			return false
		}
		s.logger.Warn("escalation flag update failed",
			zap.String("submission_id", sub.ID),
			zap.String("deadline_kind", string(kind)),
			zap.Error(err))
		report.Errors = append(report.Errors, ScanError{
			SubmissionID: sub.ID,
			DeadlineKind: kind,
			Reason:       err.Error(),
		})
		return false
	}

	record := &domain.AuditRecord{
		SubmissionID:  sub.ID,
		ChangedByType: domain.SubjectTypeStaff,
		Action:        domain.AuditEscalation,
		OldValue:      map[string]any{"escalated": false},
		NewValue: map[string]any{
			"escalated":     true,
			"deadline_kind": string(kind),
			"due_at":        candidate.DueAt,
			"breached":      breached,
		},
		Note: "sla escalation",
	}
	if err := s.audit.Append(ctx, record); err != nil {
		// never blocks the escalation it describes
		s.logger.Error("escalation audit append failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:         events.EventSubmissionEscalated,
			SubmissionID: sub.ID,
			Actor:        events.Actor{Type: domain.SubjectTypeStaff},
			Timestamp:    now,
			Payload: events.SubmissionEscalatedPayload{
				DeadlineKind: kind,
				DueAt:        candidate.DueAt,
				Breached:     breached,
			},
		})
	}
	return true
}

// errAlreadySettled marks candidates that left the open set or were flagged
// by a concurrent writer between the query and the flag update.
var errAlreadySettled = errors.New("submission already settled")

// markEscalated applies the flag under the version discipline: one re-read
// and retry on conflict, then surface.
func (s *Scanner) markEscalated(ctx context.Context, sub *domain.Submission, kind domain.DeadlineKind, now time.Time) error {
	err := s.store.MarkEscalated(ctx, sub.ID, sub.Version, kind, now)
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}

	fresh, err := s.store.GetByID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !fresh.Status.IsOpen() || alreadyFlagged(fresh, kind) {
		return errAlreadySettled
	}
	if err := s.store.MarkEscalated(ctx, fresh.ID, fresh.Version, kind, now); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConcurrencyConflict(fmt.Sprintf("submission %s: escalation flag conflict persisted after retry", sub.ID))
		}
		return err
	}
	return nil
}

func alreadyFlagged(sub *domain.Submission, kind domain.DeadlineKind) bool {
	if kind == domain.DeadlineResponse {
		return sub.EscalatedResponse
	}
	return sub.EscalatedResolution
}

func escalationMessage(candidate *repository.EscalationCandidate, kind domain.DeadlineKind, breached bool, fallback string) notify.Message {
	recipient := candidate.Recipient
	if recipient == "" {
		recipient = fallback
	}
	severity := notify.SeverityWarning
	classification := "approaching"
	if breached {
		classification = "breached"
		if kind == domain.DeadlineResolution {
			severity = notify.SeverityCritical
		}
	}
	return notify.Message{
		Recipient:    recipient,
		Kind:         notify.KindEscalation,
		SubmissionID: candidate.Submission.ID,
		Subject:      fmt.Sprintf("SLA %s deadline %s", kind, classification),
		Payload: map[string]any{
			"severity":       string(severity),
			"classification": classification,
			"deadline_kind":  string(kind),
			"due_at":         candidate.DueAt,
			"status":         string(candidate.Submission.Status),
			"external_key":   candidate.Submission.ExternalKey,
		},
	}
}
