package approval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/repository"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

var gateNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type gateStore struct {
	submissions  map[string]*domain.Submission
	updateErrs   []error
	updates      int
	conflictHook func()
}

func newGateStore(subs ...*domain.Submission) *gateStore {
	store := &gateStore{submissions: make(map[string]*domain.Submission)}
	for _, sub := range subs {
		store.submissions[sub.ID] = sub
	}
	return store
}

func (s *gateStore) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (s *gateStore) Update(_ context.Context, id string, expectedVersion int, patch repository.SubmissionPatch) (*domain.Submission, error) {
	s.updates++
	if len(s.updateErrs) > 0 {
		err := s.updateErrs[0]
		s.updateErrs = s.updateErrs[1:]
		if err != nil {
			if s.conflictHook != nil {
				s.conflictHook()
			}
			return nil, err
		}
	}
	sub, ok := s.submissions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if sub.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	if patch.ApproverID != nil {
		sub.ApproverID = patch.ApproverID
	}
	// set-once semantics
	if patch.ApprovedAt != nil && sub.ApprovedAt == nil {
		sub.ApprovedAt = patch.ApprovedAt
	}
	if patch.ResponseDueAt != nil && sub.SLAResponseDueAt == nil {
		sub.SLAResponseDueAt = patch.ResponseDueAt
	}
	if patch.ResolutionDueAt != nil && sub.SLAResolutionDueAt == nil {
		sub.SLAResolutionDueAt = patch.ResolutionDueAt
	}
	sub.Version++
	sub.UpdatedAt = patch.UpdatedAt
	copied := *sub
	return &copied, nil
}

type gateCategories struct {
	categories map[string]*domain.Category
}

func (c *gateCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	category, ok := c.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return category, nil
}

type gateAudit struct {
	records []domain.AuditRecord
}

func (a *gateAudit) Append(_ context.Context, record *domain.AuditRecord) error {
	a.records = append(a.records, *record)
	return nil
}

type gateNotifier struct {
	sent []notify.Message
	err  error
}

func (n *gateNotifier) Send(_ context.Context, msg notify.Message) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func pendingSubmission() *domain.Submission {
	return &domain.Submission{
		ID:          "sub-1",
		ExternalKey: "REQ-sub-1",
		Kind:        domain.KindTicket,
		RequesterID: "user-1",
		CategoryID:  "cat-1",
		Status:      domain.StatusUnderReview,
		Version:     1,
		CreatedAt:   gateNow.Add(-2 * time.Hour),
		UpdatedAt:   gateNow.Add(-time.Hour),
	}
}

func officer(grade int) *domain.StaffMember {
	return &domain.StaffMember{
		ID:     "staff-1",
		Name:   "Officer",
		Role:   domain.StaffRoleOfficer,
		Grade:  grade,
		Active: true,
	}
}

func newTestGate(store Store, audit *gateAudit, notifier *gateNotifier) *Gate {
	categories := &gateCategories{categories: map[string]*domain.Category{
		"cat-1": {ID: "cat-1", SLAResponseHours: 8, SLAResolutionHours: 24, Active: true},
	}}
	return NewGate(store, categories, audit, notifier, nil, &clock.Fixed{Instant: gateNow}, zap.NewNop(), 41)
}

func TestGateApprove(t *testing.T) {
	store := newGateStore(pendingSubmission())
	audit := &gateAudit{}
	notifier := &gateNotifier{}
	gate := newTestGate(store, audit, notifier)

	updated, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "looks good", officer(50))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, updated.Status)
	assert.Equal(t, 2, updated.Version)
	require.NotNil(t, updated.ApprovedAt)
	assert.Equal(t, gateNow, *updated.ApprovedAt)
	require.NotNil(t, updated.ApproverID)
	assert.Equal(t, "staff-1", *updated.ApproverID)

	// deadlines were unset at creation and are fixed now from CreatedAt
	require.NotNil(t, updated.SLAResponseDueAt)
	require.NotNil(t, updated.SLAResolutionDueAt)
	assert.Equal(t, updated.CreatedAt.Add(8*time.Hour), *updated.SLAResponseDueAt)
	assert.Equal(t, updated.CreatedAt.Add(24*time.Hour), *updated.SLAResolutionDueAt)

	require.Len(t, audit.records, 1)
	assert.Equal(t, domain.AuditDecision, audit.records[0].Action)
	assert.Equal(t, "UNDER_REVIEW", audit.records[0].OldValue["status"])
	assert.Equal(t, "APPROVED", audit.records[0].NewValue["status"])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "user-1", notifier.sent[0].Recipient)
	assert.Equal(t, notify.KindDecision, notifier.sent[0].Kind)
}

func TestGateApprovePreservesExistingDeadlines(t *testing.T) {
	sub := pendingSubmission()
	responseDue := sub.CreatedAt.Add(4 * time.Hour)
	resolutionDue := sub.CreatedAt.Add(12 * time.Hour)
	sub.SLAResponseDueAt = &responseDue
	sub.SLAResolutionDueAt = &resolutionDue
	store := newGateStore(sub)
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	updated, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.NoError(t, err)
	assert.Equal(t, responseDue, *updated.SLAResponseDueAt)
	assert.Equal(t, resolutionDue, *updated.SLAResolutionDueAt)
}

func TestGateReject(t *testing.T) {
	store := newGateStore(pendingSubmission())
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	updated, err := gate.Transition(context.Background(), "sub-1", ActionReject, "missing paperwork", officer(41))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)
	assert.Nil(t, updated.ApprovedAt)
	assert.True(t, updated.Status.IsTerminal())
}

func TestGateRejectsEveryNonReviewStatus(t *testing.T) {
	notPending := []domain.SubmissionStatus{
		domain.StatusSubmitted, domain.StatusPendingInfo, domain.StatusApproved,
		domain.StatusReadyIssuance, domain.StatusIssued, domain.StatusInUse,
		domain.StatusReturnDue, domain.StatusReturning, domain.StatusReturned,
		domain.StatusOverdue, domain.StatusMaintenanceRequired,
		domain.StatusCompleted, domain.StatusRejected,
	}
	for _, status := range notPending {
		sub := pendingSubmission()
		sub.Status = status
		store := newGateStore(sub)
		gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

		_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
		require.Error(t, err, "status %s must not be decidable", status)
		assert.True(t, apperrors.IsCode(err, "INVALID_STATE_TRANSITION"), "status %s", status)
		assert.Equal(t, 0, store.updates, "status %s must not reach the store", status)
	}
}

func TestGateAlreadyProcessedMessage(t *testing.T) {
	sub := pendingSubmission()
	sub.Status = domain.StatusApproved
	gate := newTestGate(newGateStore(sub), &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processed")
}

func TestGateGradeThreshold(t *testing.T) {
	store := newGateStore(pendingSubmission())
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(40))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	assert.Equal(t, 0, store.updates)

	_, err = gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(41))
	assert.NoError(t, err, "grade equal to the threshold passes")
}

func TestGateActorChecks(t *testing.T) {
	store := newGateStore(pendingSubmission())
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", nil)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	inactive := officer(50)
	inactive.Active = false
	_, err = gate.Transition(context.Background(), "sub-1", ActionApprove, "", inactive)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	assert.Equal(t, 0, store.updates)
}

func TestGateRemarksLength(t *testing.T) {
	store := newGateStore(pendingSubmission())
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", ActionReject, strings.Repeat("x", 501), officer(50))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// whitespace padding does not count against the limit
	_, err = gate.Transition(context.Background(), "sub-1", ActionReject, "  "+strings.Repeat("x", 500)+"  ", officer(50))
	assert.NoError(t, err)
}

func TestGateUnknownAction(t *testing.T) {
	gate := newTestGate(newGateStore(pendingSubmission()), &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", Action("defer"), "", officer(50))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestGateNotFound(t *testing.T) {
	gate := newTestGate(newGateStore(), &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "missing", ActionApprove, "", officer(50))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestGateRetriesConflictOnce(t *testing.T) {
	store := newGateStore(pendingSubmission())
	store.updateErrs = []error{repository.ErrVersionConflict}
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	updated, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)
	assert.Equal(t, 2, store.updates)
}

func TestGateSurfacesPersistentConflict(t *testing.T) {
	store := newGateStore(pendingSubmission())
	store.updateErrs = []error{repository.ErrVersionConflict, repository.ErrVersionConflict}
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONCURRENCY_CONFLICT"))
}

func TestGateConcurrentDecisionWins(t *testing.T) {
	// the first attempt conflicts; by the re-read another officer decided
	sub := pendingSubmission()
	store := newGateStore(sub)
	store.updateErrs = []error{repository.ErrVersionConflict}
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	store.conflictHook = func() {
		sub.Status = domain.StatusRejected
		sub.Version = 2
	}

	_, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE_TRANSITION"))
	assert.Contains(t, err.Error(), "already processed")
}

func TestGateNotificationFailureDoesNotFailDecision(t *testing.T) {
	store := newGateStore(pendingSubmission())
	notifier := &gateNotifier{err: errors.New("queue down")}
	gate := newTestGate(store, &gateAudit{}, notifier)

	updated, err := gate.Transition(context.Background(), "sub-1", ActionApprove, "", officer(50))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)
}

func TestGateBulkIsolation(t *testing.T) {
	pending := pendingSubmission()
	decided := pendingSubmission()
	decided.ID = "sub-2"
	decided.Status = domain.StatusCompleted
	store := newGateStore(pending, decided)
	gate := newTestGate(store, &gateAudit{}, &gateNotifier{})

	results := gate.TransitionBulk(context.Background(), []string{"sub-1", "sub-2", "missing"}, ActionApprove, "", officer(50))
	require.Len(t, results, 3)

	assert.Equal(t, "sub-1", results[0].SubmissionID)
	require.NotNil(t, results[0].Status)
	assert.Equal(t, domain.StatusApproved, *results[0].Status)
	assert.Empty(t, results[0].Error)

	assert.NotEmpty(t, results[1].Error)
	assert.Nil(t, results[1].Status)

	assert.NotEmpty(t, results[2].Error)

	// the failing items never touched the succeeding one
	assert.Equal(t, domain.StatusApproved, store.submissions["sub-1"].Status)
	assert.Equal(t, domain.StatusCompleted, store.submissions["sub-2"].Status)
}
