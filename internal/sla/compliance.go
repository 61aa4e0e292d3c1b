package sla

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// ComplianceReport summarizes resolution-SLA adherence for a window of
// resolved submissions.
type ComplianceReport struct {
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	Total          int       `json:"total"`
	Compliant      int       `json:"compliant"`
	Breached       int       `json:"breached"`
	ComplianceRate float64   `json:"compliance_rate"`
}

// Compliance folds resolved submissions into a report. Records missing a
// resolution timestamp or a computed deadline are excluded from the total.
// An empty window yields a zero rate, not a division error.
func Compliance(from, to time.Time, resolved []domain.Submission) ComplianceReport {
	report := ComplianceReport{From: from, To: to}
	for i := range resolved {
		sub := &resolved[i]
		if sub.ResolvedAt == nil || sub.SLAResolutionDueAt == nil {
			continue
		}
		report.Total++
		if sub.ResolvedAt.After(*sub.SLAResolutionDueAt) {
			report.Breached++
		} else {
			report.Compliant++
		}
	}
	if report.Total > 0 {
		report.ComplianceRate = float64(report.Compliant) / float64(report.Total) * 100
	}
	return report
}
