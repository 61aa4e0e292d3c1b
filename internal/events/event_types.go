package events

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSubmissionCreated       EventType = "submission_created"
	EventSubmissionStatusChanged EventType = "submission_status_changed"
	EventSubmissionDecided       EventType = "submission_decided"
	EventSubmissionEscalated     EventType = "submission_escalated"
	EventTransactionRecorded     EventType = "transaction_recorded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	UserID  *string            `json:"user_id,omitempty"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SubmissionID string      `json:"submission_id"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// SubmissionCreatedPayload payload.
type SubmissionCreatedPayload struct {
	Kind       domain.SubmissionKind `json:"kind"`
	CategoryID string                `json:"category_id"`
	Title      string                `json:"title"`
}

// SubmissionStatusChangedPayload payload.
type SubmissionStatusChangedPayload struct {
	RequesterID string                  `json:"requester_id"`
	OldStatus   domain.SubmissionStatus `json:"old_status"`
	NewStatus   domain.SubmissionStatus `json:"new_status"`
	Comment     string                  `json:"comment,omitempty"`
}

// SubmissionDecidedPayload payload.
type SubmissionDecidedPayload struct {
	Outcome    domain.SubmissionStatus `json:"outcome"`
	Remarks    string                  `json:"remarks,omitempty"`
	ApproverID string                  `json:"approver_id"`
}

// SubmissionEscalatedPayload payload.
type SubmissionEscalatedPayload struct {
	DeadlineKind domain.DeadlineKind `json:"deadline_kind"`
	DueAt        time.Time           `json:"due_at"`
	Breached     bool                `json:"breached"`
}

// TransactionRecordedPayload payload.
type TransactionRecordedPayload struct {
	TransactionID string                 `json:"transaction_id"`
	Kind          domain.TransactionKind `json:"kind"`
}
