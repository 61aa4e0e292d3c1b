package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/internal/sla"
	"github.com/spec-kit/service-desk/internal/timeline"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// SubmissionService coordinates the submission lifecycle outside the
// approval gate: intake, review, transactions, and the read side.
type SubmissionService struct {
	submissions  repository.SubmissionRepository
	transactions repository.TransactionRepository
	categories   repository.CategoryRepository
	audit        repository.AuditRepository
	dispatcher   events.Dispatcher
	clk          clock.Clock
}

// SubmissionDependencies bundles requirements for the service.
type SubmissionDependencies struct {
	SubmissionRepo  repository.SubmissionRepository
	TransactionRepo repository.TransactionRepository
	CategoryRepo    repository.CategoryRepository
	AuditRepo       repository.AuditRepository
	Dispatcher      events.Dispatcher
	Clock           clock.Clock
}

// SubmissionCreateInput describes the intake payload.
type SubmissionCreateInput struct {
	Kind        domain.SubmissionKind
	CategoryID  string
	Title       string
	Description string
}

// SubmissionListFilter describes end-user listing filters.
type SubmissionListFilter struct {
	Kind        *domain.SubmissionKind
	Statuses    []domain.SubmissionStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SubmissionDetail is the read-side view with the reconstructed timeline.
type SubmissionDetail struct {
	Submission   *domain.Submission
	Transactions []domain.Transaction
	Timeline     []timeline.Milestone
	Audit        []domain.AuditRecord
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDependencies) *SubmissionService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &SubmissionService{
		submissions:  deps.SubmissionRepo,
		transactions: deps.TransactionRepo,
		categories:   deps.CategoryRepo,
		audit:        deps.AuditRepo,
		dispatcher:   deps.Dispatcher,
		clk:          clk,
	}
}

// Create files a new submission. Both SLA deadlines are computed here, once,
// from the category attached at creation; a category with non-positive SLA
// hours fails the creation outright.
func (s *SubmissionService) Create(ctx context.Context, requesterID string, input SubmissionCreateInput) (*domain.Submission, error) {
	if input.Kind != domain.KindTicket && input.Kind != domain.KindLoan {
		return nil, apperrors.NewValidationError("kind must be TICKET or LOAN", nil)
	}
	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"id": input.CategoryID})
		}
		return nil, err
	}
	if !category.Active {
		return nil, apperrors.NewValidationError("category inactive", map[string]any{"id": category.ID})
	}

	createdAt := s.clk.Now()
	responseDue, resolutionDue, err := sla.Deadlines(createdAt, category)
	if err != nil {
		return nil, err
	}

	sub := &domain.Submission{
		ExternalKey:        generateSubmissionKey(input.Kind),
		Kind:               input.Kind,
		RequesterID:        requesterID,
		CategoryID:         category.ID,
		Title:              strings.TrimSpace(input.Title),
		Description:        strings.TrimSpace(input.Description),
		Status:             domain.StatusSubmitted,
		SLAResponseDueAt:   &responseDue,
		SLAResolutionDueAt: &resolutionDue,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventSubmissionCreated,
		SubmissionID: sub.ID,
		Actor:        userActor(requesterID),
		Payload: events.SubmissionCreatedPayload{
			Kind:       sub.Kind,
			CategoryID: sub.CategoryID,
			Title:      sub.Title,
		},
	})
	return sub, nil
}

// Categories lists the active categories available for new submissions.
func (s *SubmissionService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.ListActive(ctx)
}

// ListForRequester returns paginated submissions for a requester.
func (s *SubmissionService) ListForRequester(ctx context.Context, requesterID string, filter SubmissionListFilter) ([]domain.Submission, error) {
	repoFilter := repository.SubmissionFilter{
		RequesterID: &requesterID,
		Kind:        filter.Kind,
		Statuses:    filter.Statuses,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	return s.submissions.ListWithFilter(ctx, repoFilter)
}

// GetDetail fetches a submission with transactions, reconstructed timeline
// and audit trail. When requesterID is non-empty, ownership is enforced.
func (s *SubmissionService) GetDetail(ctx context.Context, requesterID, submissionID string) (*SubmissionDetail, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("submission", map[string]any{"id": submissionID})
		}
		return nil, err
	}
	if requesterID != "" && sub.RequesterID != requesterID {
		return nil, apperrors.NewForbidden("access denied")
	}
	transactions, err := s.transactions.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	trail, err := s.audit.ListBySubmission(ctx, sub.ID, 100, 0)
	if err != nil {
		return nil, err
	}
	return &SubmissionDetail{
		Submission:   sub,
		Transactions: transactions,
		Timeline:     timeline.Build(sub, transactions),
		Audit:        trail,
	}, nil
}

// BeginReview moves a submission into UNDER_REVIEW and stamps the first
// response time, satisfying the response SLA.
func (s *SubmissionService) BeginReview(ctx context.Context, staff *domain.StaffMember, submissionID string) (*domain.Submission, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	now := s.clk.Now()
	status := domain.StatusUnderReview
	return s.transition(ctx, staff, submissionID, repository.SubmissionPatch{
		Status:      &status,
		RespondedAt: &now,
		UpdatedAt:   now,
	}, "review started")
}

// UpdateStatus applies a non-decision lifecycle move (IN_USE, RETURN_DUE,
// RETURNED, OVERDUE, MAINTENANCE_REQUIRED, COMPLETED and the review
// back-and-forth). Decisions must go through the approval gate.
func (s *SubmissionService) UpdateStatus(ctx context.Context, staff *domain.StaffMember, submissionID string, newStatus domain.SubmissionStatus, comment string) (*domain.Submission, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(newStatus)})
	}
	if newStatus == domain.StatusApproved || newStatus == domain.StatusRejected {
		return nil, apperrors.NewInvalidStateTransition("decisions go through the approval gate", nil)
	}

	now := s.clk.Now()
	patch := repository.SubmissionPatch{Status: &newStatus, UpdatedAt: now}
	switch newStatus {
	case domain.StatusReturned:
		patch.ResolvedAt = &now
	case domain.StatusCompleted:
		patch.ResolvedAt = &now
		patch.ClosedAt = &now
	}
	return s.transition(ctx, staff, submissionID, patch, comment)
}

// RecordTransaction appends a loan sub-event and advances the status:
// an issue moves the submission to ISSUED, a return to RETURNING.
func (s *SubmissionService) RecordTransaction(ctx context.Context, staff *domain.StaffMember, submissionID string, kind domain.TransactionKind, note string) (*domain.Submission, *domain.Transaction, error) {
	if staff == nil {
		return nil, nil, apperrors.NewUnauthorized("staff required")
	}

	var target domain.SubmissionStatus
	switch kind {
	case domain.TransactionIssue:
		target = domain.StatusIssued
	case domain.TransactionReturn:
		target = domain.StatusReturning
	case domain.TransactionOther:
		target = ""
	default:
		return nil, nil, apperrors.NewValidationError("unknown transaction kind", map[string]any{"kind": string(kind)})
	}

	now := s.clk.Now()
	var sub *domain.Submission
	var err error
	if target != "" {
		sub, err = s.transition(ctx, staff, submissionID, repository.SubmissionPatch{Status: &target, UpdatedAt: now}, "transaction "+strings.ToLower(string(kind)))
	} else {
		sub, err = s.submissions.GetByID(ctx, submissionID)
	}
	if err != nil {
		return nil, nil, err
	}

	tx := &domain.Transaction{
		SubmissionID: sub.ID,
		Kind:         kind,
		ProcessedBy:  &staff.ID,
		Note:         strings.TrimSpace(note),
		ProcessedAt:  now,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTransactionRecorded,
		SubmissionID: sub.ID,
		Actor:        staffActor(staff.ID),
		Payload: events.TransactionRecordedPayload{
			TransactionID: tx.ID,
			Kind:          tx.Kind,
		},
	})
	return sub, tx, nil
}

// ComplianceReport computes resolution-SLA adherence for a time window.
func (s *SubmissionService) ComplianceReport(ctx context.Context, from, to time.Time) (sla.ComplianceReport, error) {
	resolved, err := s.submissions.ResolvedBetween(ctx, from, to)
	if err != nil {
		return sla.ComplianceReport{}, apperrors.NewStoreUnavailable(err)
	}
	return sla.Compliance(from, to, resolved), nil
}

// transition re-reads and applies a CAS status move, retrying once on a
// version conflict before surfacing it.
func (s *SubmissionService) transition(ctx context.Context, staff *domain.StaffMember, submissionID string, patch repository.SubmissionPatch, comment string) (*domain.Submission, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sub, err := s.submissions.GetByID(ctx, submissionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("submission", map[string]any{"id": submissionID})
			}
			return nil, err
		}
		if patch.Status != nil && !domain.CanTransition(sub.Status, *patch.Status) {
			return nil, apperrors.NewInvalidStateTransition("invalid status transition", map[string]any{
				"from": string(sub.Status),
				"to":   string(*patch.Status),
			})
		}

		updated, err := s.submissions.Update(ctx, sub.ID, sub.Version, patch)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		s.recordStatusChange(ctx, staff, sub, updated, comment)
		return updated, nil
	}
	return nil, apperrors.NewConcurrencyConflict(fmt.Sprintf("submission %s: status conflict persisted after retry", submissionID))
}

func (s *SubmissionService) recordStatusChange(ctx context.Context, staff *domain.StaffMember, before, after *domain.Submission, comment string) {
	record := &domain.AuditRecord{
		SubmissionID:  after.ID,
		ChangedByType: domain.SubjectTypeStaff,
		ChangedByID:   &staff.ID,
		Action:        domain.AuditStatusChange,
		OldValue:      map[string]any{"status": string(before.Status)},
		NewValue:      map[string]any{"status": string(after.Status), "comment": comment},
	}
	_ = s.audit.Append(ctx, record)

	s.publishEvent(ctx, events.Event{
		Type:         events.EventSubmissionStatusChanged,
		SubmissionID: after.ID,
		Actor:        staffActor(staff.ID),
		Payload: events.SubmissionStatusChangedPayload{
			RequesterID: after.RequesterID,
			OldStatus:   before.Status,
			NewStatus:   after.Status,
			Comment:     comment,
		},
	})
}

func (s *SubmissionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clk.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   domain.SubjectTypeUser,
		UserID: &userID,
	}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    domain.SubjectTypeStaff,
		StaffID: &staffID,
	}
}

func generateSubmissionKey(kind domain.SubmissionKind) string {
	prefix := "REQ"
	if kind == domain.KindLoan {
		prefix = "LOAN"
	}
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
