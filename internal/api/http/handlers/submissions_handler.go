package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/service"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// SubmissionsHandler manages end-user submission endpoints.
type SubmissionsHandler struct {
	service *service.SubmissionService
}

// NewSubmissionsHandler constructs handler.
func NewSubmissionsHandler(submissionService *service.SubmissionService) *SubmissionsHandler {
	return &SubmissionsHandler{service: submissionService}
}

// CreateSubmission POST /submissions.
func (h *SubmissionsHandler) CreateSubmission(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CategoryID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("category_id and title required", nil)
	}

	sub, err := h.service.Create(c.Context(), principal.User.ID, service.SubmissionCreateInput{
		Kind:        req.Kind,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": submissionSummary(sub)})
}

// ListCategories GET /categories.
func (h *SubmissionsHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.service.Categories(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, dto.CategoryResponse{
			ID:                 category.ID,
			Name:               category.Name,
			SLAResponseHours:   category.SLAResponseHours,
			SLAResolutionHours: category.SLAResolutionHours,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListSubmissions GET /submissions.
func (h *SubmissionsHandler) ListSubmissions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	filter := parseSubmissionQuery(c)
	subs, err := h.service.ListForRequester(c.Context(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.SubmissionSummary, 0, len(subs))
	for i := range subs {
		items = append(items, submissionSummary(&subs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSubmission GET /submissions/:id.
func (h *SubmissionsHandler) GetSubmission(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	detail, err := h.service.GetDetail(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionDetail(detail)})
}

func parseSubmissionQuery(c *fiber.Ctx) service.SubmissionListFilter {
	filter := service.SubmissionListFilter{}
	if kind := c.Query("kind"); kind != "" {
		parsed := domain.SubmissionKind(strings.ToUpper(kind))
		filter.Kind = &parsed
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		filter.Statuses = append(filter.Statuses, domain.SubmissionStatus(strings.ToUpper(raw)))
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	filter.Limit = queryInt(c, "limit", 20)
	filter.Offset = queryInt(c, "offset", 0)
	return filter
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func submissionSummary(sub *domain.Submission) dto.SubmissionSummary {
	return dto.SubmissionSummary{
		ID:                 sub.ID,
		ExternalKey:        sub.ExternalKey,
		Kind:               sub.Kind,
		CategoryID:         sub.CategoryID,
		Title:              sub.Title,
		Status:             sub.Status,
		SLAResponseDueAt:   sub.SLAResponseDueAt,
		SLAResolutionDueAt: sub.SLAResolutionDueAt,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
}

func submissionDetail(detail *service.SubmissionDetail) dto.SubmissionDetailResponse {
	sub := detail.Submission
	transactions := make([]dto.TransactionResponse, 0, len(detail.Transactions))
	for _, tx := range detail.Transactions {
		transactions = append(transactions, dto.TransactionResponse{
			ID:          tx.ID,
			Kind:        tx.Kind,
			Note:        tx.Note,
			ProcessedAt: tx.ProcessedAt,
		})
	}
	return dto.SubmissionDetailResponse{
		SubmissionSummary: submissionSummary(sub),
		Description:       sub.Description,
		RespondedAt:       sub.RespondedAt,
		ResolvedAt:        sub.ResolvedAt,
		ApprovedAt:        sub.ApprovedAt,
		ClosedAt:          sub.ClosedAt,
		ApproverID:        sub.ApproverID,
		Timeline:          detail.Timeline,
		Transactions:      transactions,
	}
}
