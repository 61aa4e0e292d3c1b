package domain

import "time"

// AuditAction captures what an audit record describes.
type AuditAction string

const (
	AuditStatusChange AuditAction = "STATUS_CHANGE"
	AuditDecision     AuditAction = "DECISION"
	AuditEscalation   AuditAction = "ESCALATION"
	AuditTransaction  AuditAction = "TRANSACTION"
)

// AuditRecord is an immutable trail entry for submission mutations.
type AuditRecord struct {
	ID            string
	SubmissionID  string
	ChangedByType SubjectType
	ChangedByID   *string
	Action        AuditAction
	OldValue      map[string]any
	NewValue      map[string]any
	Note          string
	CreatedAt     time.Time
}
