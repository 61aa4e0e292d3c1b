// Package approval implements the authorization-gated decision transition.
// A submission can only be approved or rejected from UNDER_REVIEW, by an
// actor whose grade meets the configured threshold, under the optimistic
// version discipline.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/internal/sla"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

const maxRemarksLength = 500

// Action selects the decision outcome.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Store is the slice of the submission store the gate consumes.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	Update(ctx context.Context, id string, expectedVersion int, patch repository.SubmissionPatch) (*domain.Submission, error)
}

// CategoryStore resolves SLA configuration when deadlines were not fixed at
// creation.
type CategoryStore interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

// AuditSink appends decision trail entries.
type AuditSink interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
}

// BulkResult reports one item of a bulk decision.
type BulkResult struct {
	SubmissionID string                   `json:"submission_id"`
	Status       *domain.SubmissionStatus `json:"status,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// Gate applies decision transitions.
type Gate struct {
	store      Store
	categories CategoryStore
	audit      AuditSink
	notifier   notify.Dispatcher
	dispatcher events.Dispatcher
	clk        clock.Clock
	logger     *zap.Logger
	minGrade   int
}

// NewGate constructs the gate.
func NewGate(store Store, categories CategoryStore, audit AuditSink, notifier notify.Dispatcher, dispatcher events.Dispatcher, clk clock.Clock, logger *zap.Logger, minGrade int) *Gate {
	return &Gate{
		store:      store,
		categories: categories,
		audit:      audit,
		notifier:   notifier,
		dispatcher: dispatcher,
		clk:        clk,
		logger:     logger,
		minGrade:   minGrade,
	}
}

// Transition decides one submission. The current status is re-fetched
// before every attempt so a stale read never overwrites a concurrent
// decision; a version conflict triggers exactly one re-read and retry.
// The decision notification is post-commit: its failure is logged, not
// rolled back and not retried.
func (g *Gate) Transition(ctx context.Context, submissionID string, action Action, remarks string, actor *domain.StaffMember) (*domain.Submission, error) {
	if err := g.authorize(actor); err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if len(remarks) > maxRemarksLength {
		return nil, apperrors.NewValidationError("remarks exceed 500 characters", map[string]any{"length": len(remarks)})
	}
	outcome, err := outcomeFor(action)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		sub, err := g.store.GetByID(ctx, submissionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("submission", map[string]any{"id": submissionID})
			}
			return nil, apperrors.NewStoreUnavailable(err)
		}
		if sub.Status != domain.StatusUnderReview {
			return nil, g.invalidState(sub)
		}

		patch, err := g.decisionPatch(ctx, sub, outcome, actor)
		if err != nil {
			return nil, err
		}

		updated, err := g.store.Update(ctx, sub.ID, sub.Version, patch)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, apperrors.NewStoreUnavailable(err)
		}

		g.recordDecision(ctx, sub, updated, remarks, actor)
		g.notifyDecision(ctx, updated, remarks)
		return updated, nil
	}

	return nil, apperrors.NewConcurrencyConflict(fmt.Sprintf("submission %s: decision conflict persisted after retry", submissionID))
}

// TransitionBulk applies the same per-item logic independently. One item's
// failure never rolls back the others.
func (g *Gate) TransitionBulk(ctx context.Context, submissionIDs []string, action Action, remarks string, actor *domain.StaffMember) []BulkResult {
	results := make([]BulkResult, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		updated, err := g.Transition(ctx, id, action, remarks, actor)
		if err != nil {
			results = append(results, BulkResult{SubmissionID: id, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{SubmissionID: id, Status: &updated.Status})
	}
	return results
}

func (g *Gate) authorize(actor *domain.StaffMember) error {
	if actor == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	if !actor.Active {
		return apperrors.NewForbidden("staff inactive")
	}
	if actor.Grade < g.minGrade {
		return apperrors.NewForbidden(fmt.Sprintf("grade %d or above required for decisions", g.minGrade))
	}
	return nil
}

func (g *Gate) invalidState(sub *domain.Submission) error {
	message := "submission is not pending approval"
	if sub.Status.IsTerminal() || sub.Status == domain.StatusApproved {
		message = "submission already processed"
	}
	return apperrors.NewInvalidStateTransition(message, map[string]any{
		"id":     sub.ID,
		"status": string(sub.Status),
	})
}

// decisionPatch builds the CAS mutation. Approvals of submissions whose
// deadlines were never fixed (created without SLA hours resolved) compute
// them now from the creation time, per the category attached at this point.
func (g *Gate) decisionPatch(ctx context.Context, sub *domain.Submission, outcome domain.SubmissionStatus, actor *domain.StaffMember) (repository.SubmissionPatch, error) {
	now := g.clk.Now()
	patch := repository.SubmissionPatch{
		Status:     &outcome,
		ApproverID: &actor.ID,
		UpdatedAt:  now,
	}
	if outcome != domain.StatusApproved {
		return patch, nil
	}

	patch.ApprovedAt = &now
	if sub.SLAResponseDueAt == nil || sub.SLAResolutionDueAt == nil {
		category, err := g.categories.GetByID(ctx, sub.CategoryID)
		if err != nil {
			return patch, apperrors.NewStoreUnavailable(err)
		}
		responseDue, resolutionDue, err := sla.Deadlines(sub.CreatedAt, category)
		if err != nil {
			return patch, err
		}
		patch.ResponseDueAt = &responseDue
		patch.ResolutionDueAt = &resolutionDue
	}
	return patch, nil
}

func (g *Gate) recordDecision(ctx context.Context, before, after *domain.Submission, remarks string, actor *domain.StaffMember) {
	record := &domain.AuditRecord{
		SubmissionID:  after.ID,
		ChangedByType: domain.SubjectTypeStaff,
		ChangedByID:   &actor.ID,
		Action:        domain.AuditDecision,
		OldValue:      map[string]any{"status": string(before.Status)},
		NewValue: map[string]any{
			"status":  string(after.Status),
			"remarks": remarks,
		},
	}
	if err := g.audit.Append(ctx, record); err != nil {
		// logged, never blocks the decision it describes
		g.logger.Error("decision audit append failed",
			zap.String("submission_id", after.ID),
			zap.Error(err))
	}

	if g.dispatcher != nil {
		_ = g.dispatcher.Publish(ctx, events.Event{
			Type:         events.EventSubmissionDecided,
			SubmissionID: after.ID,
			Actor:        events.Actor{Type: domain.SubjectTypeStaff, StaffID: &actor.ID},
			Timestamp:    g.clk.Now(),
			Payload: events.SubmissionDecidedPayload{
				Outcome:    after.Status,
				Remarks:    remarks,
				ApproverID: actor.ID,
			},
		})
	}
}

func (g *Gate) notifyDecision(ctx context.Context, sub *domain.Submission, remarks string) {
	msg := notify.Message{
		Recipient:    sub.RequesterID,
		Kind:         notify.KindDecision,
		SubmissionID: sub.ID,
		Subject:      fmt.Sprintf("submission %s %s", sub.ExternalKey, strings.ToLower(string(sub.Status))),
		Payload: map[string]any{
			"outcome": string(sub.Status),
			"remarks": remarks,
		},
	}
	if err := g.notifier.Send(ctx, msg); err != nil {
		// post-commit failure: the decision is durable, only the notice is lost
		g.logger.Warn("decision notification failed",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
	}
}

func outcomeFor(action Action) (domain.SubmissionStatus, error) {
	switch action {
	case ActionApprove:
		return domain.StatusApproved, nil
	case ActionReject:
		return domain.StatusRejected, nil
	default:
		return "", apperrors.NewValidationError("action must be approve or reject", map[string]any{"action": string(action)})
	}
}
