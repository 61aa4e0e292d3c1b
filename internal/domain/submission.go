package domain

import "time"

// SubmissionKind distinguishes helpdesk tickets from asset-loan applications.
// Both share the same lifecycle and SLA machinery.
type SubmissionKind string

const (
	KindTicket SubmissionKind = "TICKET"
	KindLoan   SubmissionKind = "LOAN"
)

// Submission is the aggregate for service requests. Version carries the
// optimistic-lock counter; every mutation is a compare-and-swap on it.
type Submission struct {
	ID                  string
	ExternalKey         string
	Kind                SubmissionKind
	RequesterID         string
	CategoryID          string
	Title               string
	Description         string
	Status              SubmissionStatus
	Version             int
	SLAResponseDueAt    *time.Time
	SLAResolutionDueAt  *time.Time
	RespondedAt         *time.Time
	ResolvedAt          *time.Time
	ApprovedAt          *time.Time
	ClosedAt            *time.Time
	EscalatedResponse   bool
	EscalatedResolution bool
	ApproverID          *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Category classifies submissions and carries their SLA configuration.
// SLA hours must be positive; zero or negative values are a configuration
// error rejected at submission creation.
type Category struct {
	ID                  string
	Name                string
	SLAResponseHours    int
	SLAResolutionHours  int
	EscalationRecipient string
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DeadlineKind names the two SLA deadlines a submission carries.
type DeadlineKind string

const (
	DeadlineResponse   DeadlineKind = "RESPONSE"
	DeadlineResolution DeadlineKind = "RESOLUTION"
)
