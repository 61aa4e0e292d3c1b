package domain

import "time"

// TransactionKind enumerates loan sub-events.
type TransactionKind string

const (
	TransactionIssue  TransactionKind = "ISSUE"
	TransactionReturn TransactionKind = "RETURN"
	TransactionOther  TransactionKind = "OTHER"
)

// Transaction is an append-only loan sub-event, ordered by ProcessedAt.
type Transaction struct {
	ID           string
	SubmissionID string
	Kind         TransactionKind
	ProcessedBy  *string
	Note         string
	ProcessedAt  time.Time
}
