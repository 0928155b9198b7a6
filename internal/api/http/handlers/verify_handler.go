package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/license-service/internal/api/dto"
	"github.com/spec-kit/license-service/internal/service"
	apperrors "github.com/spec-kit/license-service/pkg/util/errorutil"
)

// VerifyHandler exposes the public verification endpoint.
type VerifyHandler struct {
	verification *service.VerificationService
}

// NewVerifyHandler constructs handler.
func NewVerifyHandler(verification *service.VerificationService) *VerifyHandler {
	return &VerifyHandler{verification: verification}
}

// Verify handles POST /verify. Every well-formed question gets a 200 with a decision.
func (h *VerifyHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.verification.Verify(c.UserContext(), req.ToVerifyInput())
	if err != nil {
		return apperrors.NewUnavailable("license store unavailable", err)
	}
	return c.JSON(dto.NewVerifyResponse(result))
}
