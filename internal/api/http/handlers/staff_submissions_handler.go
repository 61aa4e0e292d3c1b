package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/approval"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/service"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// StaffSubmissionsHandler manages staff-side lifecycle endpoints.
type StaffSubmissionsHandler struct {
	service *service.SubmissionService
	gate    *approval.Gate
}

// NewStaffSubmissionsHandler constructs handler.
func NewStaffSubmissionsHandler(submissionService *service.SubmissionService, gate *approval.Gate) *StaffSubmissionsHandler {
	return &StaffSubmissionsHandler{service: submissionService, gate: gate}
}

// GetSubmission GET /staff/submissions/:id.
func (h *StaffSubmissionsHandler) GetSubmission(c *fiber.Ctx) error {
	if _, err := staffFromContext(c); err != nil {
		return err
	}
	detail, err := h.service.GetDetail(c.Context(), "", c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionDetail(detail)})
}

// BeginReview POST /staff/submissions/:id/review.
func (h *StaffSubmissionsHandler) BeginReview(c *fiber.Ctx) error {
	staff, err := staffFromContext(c)
	if err != nil {
		return err
	}
	sub, err := h.service.BeginReview(c.Context(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionSummary(sub)})
}

// Decide POST /staff/submissions/:id/decision.
func (h *StaffSubmissionsHandler) Decide(c *fiber.Ctx) error {
	staff, err := staffFromContext(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, err := h.gate.Transition(c.Context(), c.Params("id"), approval.Action(strings.ToLower(req.Action)), req.Remarks, staff)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionSummary(sub)})
}

// DecideBulk POST /staff/submissions/decisions.
func (h *StaffSubmissionsHandler) DecideBulk(c *fiber.Ctx) error {
	staff, err := staffFromContext(c)
	if err != nil {
		return err
	}
	var req dto.BulkDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.SubmissionIDs) == 0 {
		return apperrors.NewValidationError("submission_ids required", nil)
	}
	results := h.gate.TransitionBulk(c.Context(), req.SubmissionIDs, approval.Action(strings.ToLower(req.Action)), req.Remarks, staff)
	return c.JSON(fiber.Map{"data": results})
}

// RecordTransaction POST /staff/submissions/:id/transactions.
func (h *StaffSubmissionsHandler) RecordTransaction(c *fiber.Ctx) error {
	staff, err := staffFromContext(c)
	if err != nil {
		return err
	}
	var req dto.TransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, tx, err := h.service.RecordTransaction(c.Context(), staff, c.Params("id"), req.Kind, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"submission": submissionSummary(sub),
		"transaction": dto.TransactionResponse{
			ID:          tx.ID,
			Kind:        tx.Kind,
			Note:        tx.Note,
			ProcessedAt: tx.ProcessedAt,
		},
	}})
}

// UpdateStatus PATCH /staff/submissions/:id/status.
func (h *StaffSubmissionsHandler) UpdateStatus(c *fiber.Ctx) error {
	staff, err := staffFromContext(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, err := h.service.UpdateStatus(c.Context(), staff, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionSummary(sub)})
}

func staffFromContext(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}
