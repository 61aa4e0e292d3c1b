package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/service"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// ReportsHandler exposes operator-facing SLA reports.
type ReportsHandler struct {
	service *service.SubmissionService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(submissionService *service.SubmissionService) *ReportsHandler {
	return &ReportsHandler{service: submissionService}
}

// SLACompliance GET /staff/reports/sla-compliance?from&to.
func (h *ReportsHandler) SLACompliance(c *fiber.Ctx) error {
	if _, err := staffFromContext(c); err != nil {
		return err
	}
	from := parseTime(c.Query("from"))
	to := parseTime(c.Query("to"))
	if to == nil {
		now := time.Now()
		to = &now
	}
	if from == nil {
		start := to.AddDate(0, -1, 0)
		from = &start
	}
	if from.After(*to) {
		return apperrors.NewValidationError("from must precede to", nil)
	}

	report, err := h.service.ComplianceReport(c.Context(), *from, *to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
