// Package notify defines the outbound notification boundary. Dispatch is a
// fallible call whose failure is visible to the caller; delivery mechanics
// beyond the queue hand-off live outside this service.
package notify

import "context"

// Kind classifies outbound messages.
type Kind string

const (
	KindEscalation Kind = "sla_escalation"
	KindDecision   Kind = "submission_decision"
	KindReceived   Kind = "submission_received"
	KindStatus     Kind = "submission_status"
)

// Severity grades escalation messages.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is a single notification to one recipient.
type Message struct {
	Recipient    string         `json:"recipient"`
	Kind         Kind           `json:"kind"`
	SubmissionID string         `json:"submission_id"`
	Subject      string         `json:"subject"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Dispatcher hands messages to the delivery pipeline. Implementations may
// queue and retry; callers treat a nil error as at-least-once accepted.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}
