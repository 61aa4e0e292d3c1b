// Package timeline rebuilds a monotonic progress view from a submission's
// recorded timestamps and its loan transactions. The builder is a pure
// read-side function: calling it twice on the same data yields identical
// output.
package timeline

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// Milestone is one step in the reconstructed progress view.
type Milestone struct {
	Status    domain.SubmissionStatus `json:"status"`
	Rank      int                     `json:"rank"`
	Timestamp *time.Time              `json:"timestamp,omitempty"`
	Completed bool                    `json:"completed"`
	Current   bool                    `json:"current"`
}

// Build returns the ordered milestone sequence for a submission.
//
// Candidates are assembled in a fixed rank-ascending order; a candidate
// without a timestamp is kept only when its rank equals the current status
// rank, so an in-progress step still renders while future steps stay
// hidden. Rank ties keep definition order and are never reordered by
// timestamp.
func Build(sub *domain.Submission, transactions []domain.Transaction) []Milestone {
	currentRank := sub.Status.Rank()

	candidates := []Milestone{
		{Status: domain.StatusSubmitted, Timestamp: timePtr(sub.CreatedAt)},
		{Status: domain.StatusUnderReview, Timestamp: reviewTimestamp(sub)},
		{Status: domain.StatusApproved, Timestamp: sub.ApprovedAt},
		{Status: domain.StatusIssued, Timestamp: firstTransaction(transactions, domain.TransactionIssue)},
		{Status: domain.StatusReturning, Timestamp: firstTransaction(transactions, domain.TransactionReturn)},
		{Status: domain.StatusCompleted, Timestamp: completionTimestamp(sub)},
	}

	milestones := make([]Milestone, 0, len(candidates))
	for _, candidate := range candidates {
		candidate.Rank = candidate.Status.Rank()
		if candidate.Timestamp == nil && candidate.Rank != currentRank {
			continue
		}
		candidate.Completed = currentRank >= candidate.Rank
		candidate.Current = candidate.Status == sub.Status
		milestones = append(milestones, candidate)
	}
	return milestones
}

func reviewTimestamp(sub *domain.Submission) *time.Time {
	if sub.RespondedAt != nil {
		return sub.RespondedAt
	}
	// A submission sitting in review carries no dedicated stamp yet; the
	// last update is when it entered the stage.
	if sub.Status.Rank() == domain.StatusUnderReview.Rank() {
		return timePtr(sub.UpdatedAt)
	}
	return nil
}

func completionTimestamp(sub *domain.Submission) *time.Time {
	if sub.ClosedAt != nil {
		return sub.ClosedAt
	}
	if sub.Status.IsTerminal() {
		return timePtr(sub.UpdatedAt)
	}
	return nil
}

// firstTransaction returns the processed time of the earliest transaction
// of the given kind. Transactions arrive ordered by processed_at from the
// repository; the fold stays O(n) over the bounded list regardless.
func firstTransaction(transactions []domain.Transaction, kind domain.TransactionKind) *time.Time {
	var first *time.Time
	for i := range transactions {
		if transactions[i].Kind != kind {
			continue
		}
		ts := transactions[i].ProcessedAt
		if first == nil || ts.Before(*first) {
			first = &ts
		}
	}
	return first
}

func timePtr(t time.Time) *time.Time {
	return &t
}
