package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/clock"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/repository"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

type markCall struct {
	id   string
	kind domain.DeadlineKind
}

type fakeStore struct {
	candidates  map[domain.DeadlineKind][]repository.EscalationCandidate
	submissions map[string]*domain.Submission
	listErr     error
	markErrs    map[string][]error
	marks       []markCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates:  make(map[domain.DeadlineKind][]repository.EscalationCandidate),
		submissions: make(map[string]*domain.Submission),
		markErrs:    make(map[string][]error),
	}
}

func (s *fakeStore) EscalationCandidates(_ context.Context, kind domain.DeadlineKind, _ time.Time, limit int) ([]repository.EscalationCandidate, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := s.candidates[kind]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, errors.New("missing submission")
	}
	copied := *sub
	return &copied, nil
}

func (s *fakeStore) MarkEscalated(_ context.Context, id string, _ int, kind domain.DeadlineKind, _ time.Time) error {
	if queue := s.markErrs[id]; len(queue) > 0 {
		err := queue[0]
		s.markErrs[id] = queue[1:]
		if err != nil {
			return err
		}
	}
	s.marks = append(s.marks, markCall{id: id, kind: kind})
	if sub, ok := s.submissions[id]; ok {
		if kind == domain.DeadlineResponse {
			sub.EscalatedResponse = true
		} else {
			sub.EscalatedResolution = true
		}
		sub.Version++
	}
	return nil
}

type fakeNotifier struct {
	sent []notify.Message
	errs []error
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		if err != nil {
			return err
		}
	}
	n.sent = append(n.sent, msg)
	return nil
}

type fakeAudit struct {
	records []domain.AuditRecord
	err     error
}

func (a *fakeAudit) Append(_ context.Context, record *domain.AuditRecord) error {
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, *record)
	return nil
}

var scanNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func breachedCandidate(id string, status domain.SubmissionStatus) repository.EscalationCandidate {
	return repository.EscalationCandidate{
		Submission: domain.Submission{
			ID:          id,
			ExternalKey: "REQ-" + id,
			Status:      status,
			Version:     1,
			RequesterID: "user-1",
		},
		Recipient: "ops-team",
		DueAt:     scanNow.Add(-time.Hour),
	}
}

func newTestScanner(store *fakeStore, notifier *fakeNotifier, audit *fakeAudit) *Scanner {
	return NewScanner(store, notifier, audit, &clock.Fixed{Instant: scanNow}, zap.NewNop(), Options{
		WarningWindow:     time.Hour,
		BatchSize:         50,
		FallbackRecipient: "operations",
	})
}

func TestScannerEscalatesBreachedDeadlines(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	notifier := &fakeNotifier{}
	audit := &fakeAudit{}

	report, err := newTestScanner(store, notifier, audit).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Escalated)
	assert.Empty(t, report.Errors)

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Equal(t, "ops-team", msg.Recipient)
	assert.Equal(t, notify.KindEscalation, msg.Kind)
	assert.Equal(t, "breached", msg.Payload["classification"])

	require.Len(t, store.marks, 1)
	assert.Equal(t, markCall{id: "sub-1", kind: domain.DeadlineResponse}, store.marks[0])

	require.Len(t, audit.records, 1)
	assert.Equal(t, domain.AuditEscalation, audit.records[0].Action)
}

func TestScannerSecondSweepFindsNothing(t *testing.T) {
	// the repository filters on the flag, so a flagged submission never
	// reappears as a candidate; the fake mirrors that by draining the list
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusIssued)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	notifier := &fakeNotifier{}
	scanner := newTestScanner(store, notifier, &fakeAudit{})

	first, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)

	store.candidates[domain.DeadlineResponse] = nil
	second, err := scanner.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, 0, second.Escalated)
	assert.Len(t, notifier.sent, 1)
}

func TestScannerWarningWindowClassification(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusInUse)
	candidate.DueAt = scanNow.Add(30 * time.Minute)
	store.candidates[domain.DeadlineResolution] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	notifier := &fakeNotifier{}

	report, err := newTestScanner(store, notifier, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "approaching", notifier.sent[0].Payload["classification"])
	assert.Equal(t, string(notify.SeverityWarning), notifier.sent[0].Payload["severity"])
}

func TestScannerNotifyFailureLeavesFlagUnset(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	notifier := &fakeNotifier{errs: []error{errors.New("queue down")}}

	report, err := newTestScanner(store, notifier, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Escalated)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "sub-1", report.Errors[0].SubmissionID)
	assert.Empty(t, store.marks, "flag must stay unset so the next tick retries")
}

func TestScannerDryRunMutatesNothing(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	notifier := &fakeNotifier{}
	audit := &fakeAudit{}

	report, err := newTestScanner(store, notifier, audit).Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Escalated)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, store.marks)
	assert.Empty(t, audit.records)
}

func TestScannerStoreFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")

	_, err := newTestScanner(store, &fakeNotifier{}, &fakeAudit{}).Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STORE_UNAVAILABLE"))
}

func TestScannerRetriesVersionConflictOnce(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	sub.Version = 2 // concurrent writer bumped it after the query
	store.submissions[sub.ID] = &sub
	store.markErrs["sub-1"] = []error{repository.ErrVersionConflict}

	report, err := newTestScanner(store, &fakeNotifier{}, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	require.Len(t, store.marks, 1)
}

func TestScannerSkipsSettledAfterConflict(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	settled := candidate.Submission
	settled.Status = domain.StatusRejected
	settled.Version = 3
	store.submissions[settled.ID] = &settled
	store.markErrs["sub-1"] = []error{repository.ErrVersionConflict}

	report, err := newTestScanner(store, &fakeNotifier{}, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Escalated)
	assert.Empty(t, report.Errors, "a settled submission is not an error")
	assert.Empty(t, store.marks)
}

func TestScannerAuditFailureDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	audit := &fakeAudit{err: errors.New("audit table gone")}

	report, err := newTestScanner(store, &fakeNotifier{}, audit).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	require.Len(t, store.marks, 1)
}

func TestScannerSweepsBothDeadlineKinds(t *testing.T) {
	store := newFakeStore()
	response := breachedCandidate("sub-1", domain.StatusUnderReview)
	resolution := breachedCandidate("sub-2", domain.StatusIssued)
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{response}
	store.candidates[domain.DeadlineResolution] = []repository.EscalationCandidate{resolution}
	s1 := response.Submission
	s2 := resolution.Submission
	store.submissions[s1.ID] = &s1
	store.submissions[s2.ID] = &s2
	notifier := &fakeNotifier{}

	report, err := newTestScanner(store, notifier, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Escalated)
	require.Len(t, store.marks, 2)
	assert.Equal(t, domain.DeadlineResponse, store.marks[0].kind)
	assert.Equal(t, domain.DeadlineResolution, store.marks[1].kind)
}

func TestScannerFallbackRecipient(t *testing.T) {
	store := newFakeStore()
	candidate := breachedCandidate("sub-1", domain.StatusUnderReview)
	candidate.Recipient = ""
	store.candidates[domain.DeadlineResponse] = []repository.EscalationCandidate{candidate}
	sub := candidate.Submission
	store.submissions[sub.ID] = &sub
	notifier := &fakeNotifier{}

	_, err := newTestScanner(store, notifier, &fakeAudit{}).Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "operations", notifier.sent[0].Recipient)
}
