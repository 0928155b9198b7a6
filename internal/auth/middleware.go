package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/license-service/pkg/licensegate"
	apperrors "github.com/spec-kit/license-service/pkg/util/errorutil"
)

const claimsKey = "auth_verify_claims"

// AuthMiddleware requires a bearer token whose claims name the same license question as the
// request body.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware. A nil manager disables the check.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for the verification route.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m == nil || m.tokens == nil {
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	var body licensegate.VerifyRequest
	if err := c.BodyParser(&body); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if claims.LicenseKey != body.LicenseKey || claims.Domain != body.Domain || claims.ProductName != body.ProductName {
		return apperrors.NewUnauthorized("token does not match request")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the validated claims.
func ClaimsFromContext(c *fiber.Ctx) (*licensegate.VerifyClaims, bool) {
	claims, ok := c.Locals(claimsKey).(*licensegate.VerifyClaims)
	return claims, ok
}
