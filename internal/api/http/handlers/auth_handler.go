package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/service"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// AuthHandler manages login endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// LoginUser POST /auth/users/login.
func (h *AuthHandler) LoginUser(c *fiber.Ctx) error {
	req, err := parseLogin(c)
	if err != nil {
		return err
	}
	_, token, exp, err := h.service.LoginUser(c.Context(), req.Email, req.Password)
	if err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, ExpiresAt: exp}})
}

// LoginStaff POST /auth/staff/login.
func (h *AuthHandler) LoginStaff(c *fiber.Ctx) error {
	req, err := parseLogin(c)
	if err != nil {
		return err
	}
	_, token, exp, err := h.service.LoginStaff(c.Context(), req.Email, req.Password)
	if err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, ExpiresAt: exp}})
}

func parseLogin(c *fiber.Ctx) (*dto.LoginRequest, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	return &req, nil
}
