package domain

// SubmissionStatus enumerates lifecycle states for submissions.
type SubmissionStatus string

const (
	StatusSubmitted           SubmissionStatus = "SUBMITTED"
	StatusUnderReview         SubmissionStatus = "UNDER_REVIEW"
	StatusPendingInfo         SubmissionStatus = "PENDING_INFO"
	StatusApproved            SubmissionStatus = "APPROVED"
	StatusReadyIssuance       SubmissionStatus = "READY_ISSUANCE"
	StatusIssued              SubmissionStatus = "ISSUED"
	StatusInUse               SubmissionStatus = "IN_USE"
	StatusReturnDue           SubmissionStatus = "RETURN_DUE"
	StatusReturning           SubmissionStatus = "RETURNING"
	StatusReturned            SubmissionStatus = "RETURNED"
	StatusOverdue             SubmissionStatus = "OVERDUE"
	StatusMaintenanceRequired SubmissionStatus = "MAINTENANCE_REQUIRED"
	StatusCompleted           SubmissionStatus = "COMPLETED"
	StatusRejected            SubmissionStatus = "REJECTED"
)

// statusRanks maps each status to its progress rank. Higher means further
// along. OVERDUE and MAINTENANCE_REQUIRED share rank 6 with RETURNED as
// lateral exception branches. REJECTED ends the lifecycle and sits with
// COMPLETED so that open-submission predicates exclude it.
var statusRanks = map[SubmissionStatus]int{
	StatusSubmitted:           1,
	StatusUnderReview:         2,
	StatusPendingInfo:         2,
	StatusApproved:            3,
	StatusReadyIssuance:       3,
	StatusIssued:              4,
	StatusInUse:               4,
	StatusReturnDue:           5,
	StatusReturning:           5,
	StatusReturned:            6,
	StatusOverdue:             6,
	StatusMaintenanceRequired: 6,
	StatusCompleted:           7,
	StatusRejected:            7,
}

// Rank returns the progress rank for the status, 0 for unknown values.
func (s SubmissionStatus) Rank() int {
	return statusRanks[s]
}

// Valid reports whether the status is a member of the closed set.
func (s SubmissionStatus) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// IsOpen reports whether a submission in this status is still subject to
// SLA escalation. Statuses at rank 6 and above are settled or exceptional.
func (s SubmissionStatus) IsOpen() bool {
	rank := s.Rank()
	return rank >= 1 && rank < 6
}

// IsTerminal reports whether the lifecycle is over.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// OpenStatuses returns the statuses matched by escalation scans.
func OpenStatuses() []SubmissionStatus {
	open := make([]SubmissionStatus, 0, len(statusRanks))
	for status := range statusRanks {
		if status.IsOpen() {
			open = append(open, status)
		}
	}
	return open
}

// allowedTransitions encodes the legal lifecycle moves. OVERDUE is a lateral
// branch reachable from any open rank-4/5 state once a deadline is missed.
// UNDER_REVIEW decisions (APPROVED/REJECTED) are additionally gated by the
// approval package; this table only answers structural legality.
var allowedTransitions = map[SubmissionStatus][]SubmissionStatus{
	StatusSubmitted:           {StatusUnderReview},
	StatusUnderReview:         {StatusPendingInfo, StatusApproved, StatusRejected},
	StatusPendingInfo:         {StatusUnderReview},
	StatusApproved:            {StatusReadyIssuance, StatusIssued, StatusCompleted},
	StatusReadyIssuance:       {StatusIssued},
	StatusIssued:              {StatusInUse, StatusReturnDue, StatusReturning, StatusOverdue},
	StatusInUse:               {StatusReturnDue, StatusReturning, StatusOverdue},
	StatusReturnDue:           {StatusReturning, StatusOverdue},
	StatusReturning:           {StatusReturned, StatusMaintenanceRequired, StatusOverdue},
	StatusReturned:            {StatusCompleted, StatusMaintenanceRequired},
	StatusOverdue:             {StatusReturning},
	StatusMaintenanceRequired: {StatusCompleted},
	StatusCompleted:           {},
	StatusRejected:            {},
}

// CanTransition reports whether moving from current to next is legal.
func CanTransition(current, next SubmissionStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
