package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/timeline"
)

// CreateSubmissionRequest payload.
type CreateSubmissionRequest struct {
	Kind        domain.SubmissionKind `json:"kind"`
	CategoryID  string                `json:"category_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
}

// DecisionRequest payload for approve/reject.
type DecisionRequest struct {
	Action  string `json:"action"`
	Remarks string `json:"remarks"`
}

// BulkDecisionRequest payload.
type BulkDecisionRequest struct {
	SubmissionIDs []string `json:"submission_ids"`
	Action        string   `json:"action"`
	Remarks       string   `json:"remarks"`
}

// TransactionRequest payload.
type TransactionRequest struct {
	Kind domain.TransactionKind `json:"kind"`
	Note string                 `json:"note"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status  domain.SubmissionStatus `json:"status"`
	Comment string                  `json:"comment"`
}

// SubmissionSummary response.
type SubmissionSummary struct {
	ID                 string                  `json:"id"`
	ExternalKey        string                  `json:"external_key"`
	Kind               domain.SubmissionKind   `json:"kind"`
	CategoryID         string                  `json:"category_id"`
	Title              string                  `json:"title"`
	Status             domain.SubmissionStatus `json:"status"`
	SLAResponseDueAt   *time.Time              `json:"sla_response_due_at,omitempty"`
	SLAResolutionDueAt *time.Time              `json:"sla_resolution_due_at,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// SubmissionDetailResponse provides full submission info with the
// reconstructed timeline.
type SubmissionDetailResponse struct {
	SubmissionSummary
	Description  string                `json:"description"`
	RespondedAt  *time.Time            `json:"responded_at,omitempty"`
	ResolvedAt   *time.Time            `json:"resolved_at,omitempty"`
	ApprovedAt   *time.Time            `json:"approved_at,omitempty"`
	ClosedAt     *time.Time            `json:"closed_at,omitempty"`
	ApproverID   *string               `json:"approver_id,omitempty"`
	Timeline     []timeline.Milestone  `json:"timeline"`
	Transactions []TransactionResponse `json:"transactions"`
}

// CategoryResponse exposes a category and its SLA windows.
type CategoryResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	SLAResponseHours   int    `json:"sla_response_hours"`
	SLAResolutionHours int    `json:"sla_resolution_hours"`
}

// TransactionResponse represents one loan sub-event.
type TransactionResponse struct {
	ID          string                 `json:"id"`
	Kind        domain.TransactionKind `json:"kind"`
	Note        string                 `json:"note,omitempty"`
	ProcessedAt time.Time              `json:"processed_at"`
}
