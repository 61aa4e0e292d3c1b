package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRankTotality(t *testing.T) {
	all := []SubmissionStatus{
		StatusSubmitted, StatusUnderReview, StatusPendingInfo,
		StatusApproved, StatusReadyIssuance, StatusIssued, StatusInUse,
		StatusReturnDue, StatusReturning, StatusReturned, StatusOverdue,
		StatusMaintenanceRequired, StatusCompleted, StatusRejected,
	}
	for _, status := range all {
		assert.True(t, status.Valid(), "status %s should be valid", status)
		assert.Greater(t, status.Rank(), 0, "status %s should carry a rank", status)
	}

	assert.False(t, SubmissionStatus("DRAFT").Valid())
	assert.Equal(t, 0, SubmissionStatus("DRAFT").Rank())
}

func TestStatusRankOrdering(t *testing.T) {
	assert.Equal(t, 1, StatusSubmitted.Rank())
	assert.Equal(t, 2, StatusUnderReview.Rank())
	assert.Equal(t, 2, StatusPendingInfo.Rank())
	assert.Equal(t, 3, StatusApproved.Rank())
	assert.Equal(t, 4, StatusIssued.Rank())
	assert.Equal(t, 5, StatusReturnDue.Rank())
	assert.Equal(t, 6, StatusReturned.Rank())
	assert.Equal(t, 6, StatusOverdue.Rank())
	assert.Equal(t, 7, StatusCompleted.Rank())
	assert.Equal(t, 7, StatusRejected.Rank())
}

func TestIsOpen(t *testing.T) {
	open := []SubmissionStatus{
		StatusSubmitted, StatusUnderReview, StatusPendingInfo,
		StatusApproved, StatusReadyIssuance, StatusIssued, StatusInUse,
		StatusReturnDue, StatusReturning,
	}
	for _, status := range open {
		assert.True(t, status.IsOpen(), "status %s should be open", status)
	}

	settled := []SubmissionStatus{
		StatusReturned, StatusOverdue, StatusMaintenanceRequired,
		StatusCompleted, StatusRejected,
	}
	for _, status := range settled {
		assert.False(t, status.IsOpen(), "status %s should not be open", status)
	}

	assert.False(t, SubmissionStatus("").IsOpen())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusReturned.IsTerminal())
	assert.False(t, StatusOverdue.IsTerminal())
}

func TestOpenStatusesMatchesPredicate(t *testing.T) {
	open := OpenStatuses()
	assert.Len(t, open, 9)
	for _, status := range open {
		assert.True(t, status.IsOpen())
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to SubmissionStatus }{
		{StatusSubmitted, StatusUnderReview},
		{StatusUnderReview, StatusApproved},
		{StatusUnderReview, StatusRejected},
		{StatusUnderReview, StatusPendingInfo},
		{StatusPendingInfo, StatusUnderReview},
		{StatusApproved, StatusIssued},
		{StatusIssued, StatusOverdue},
		{StatusReturnDue, StatusOverdue},
		{StatusOverdue, StatusReturning},
		{StatusReturning, StatusReturned},
		{StatusReturned, StatusCompleted},
		{StatusMaintenanceRequired, StatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	forbidden := []struct{ from, to SubmissionStatus }{
		{StatusSubmitted, StatusApproved},
		{StatusSubmitted, StatusRejected},
		{StatusApproved, StatusUnderReview},
		{StatusIssued, StatusCompleted},
		{StatusCompleted, StatusSubmitted},
		{StatusRejected, StatusUnderReview},
		{StatusReturned, StatusIssued},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, status := range []SubmissionStatus{StatusCompleted, StatusRejected} {
		for candidate := range statusRanks {
			assert.False(t, CanTransition(status, candidate), "%s should allow no exit to %s", status, candidate)
		}
	}
}
