package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/service-desk/internal/domain"
)

func resolvedSubmission(due, resolved time.Time) domain.Submission {
	return domain.Submission{
		Status:             domain.StatusCompleted,
		SLAResolutionDueAt: &due,
		ResolvedAt:         &resolved,
	}
}

func TestComplianceEmptyWindow(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	report := Compliance(from, to, nil)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, float64(0), report.ComplianceRate)
	assert.Equal(t, from, report.From)
	assert.Equal(t, to, report.To)
}

func TestComplianceCounts(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	due := from.Add(24 * time.Hour)

	resolved := []domain.Submission{
		resolvedSubmission(due, due.Add(-time.Hour)),
		resolvedSubmission(due, due), // exactly on time counts compliant
		resolvedSubmission(due, due.Add(time.Minute)),
	}

	report := Compliance(from, to, resolved)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Compliant)
	assert.Equal(t, 1, report.Breached)
	assert.InDelta(t, 66.666, report.ComplianceRate, 0.01)
}

func TestComplianceSkipsIncompleteRecords(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	due := from.Add(24 * time.Hour)
	resolvedAt := due.Add(-time.Hour)

	resolved := []domain.Submission{
		{Status: domain.StatusCompleted, ResolvedAt: &resolvedAt}, // no deadline
		{Status: domain.StatusCompleted, SLAResolutionDueAt: &due}, // no resolution stamp
		resolvedSubmission(due, resolvedAt),
	}

	report := Compliance(from, to, resolved)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Compliant)
	assert.Equal(t, float64(100), report.ComplianceRate)
}
