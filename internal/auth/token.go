package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/license-service/pkg/licensegate"
)

// DefaultLeeway tolerates clock skew between gates and the server.
const DefaultLeeway = 30 * time.Second

// TokenManager validates verify-request tokens minted by licensegate.RequestSigner.
type TokenManager struct {
	secret []byte
	leeway time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), leeway: DefaultLeeway}
}

// GenerateToken signs a token for the given question. Gates use licensegate.RequestSigner;
// this exists for tooling and tests.
func (tm *TokenManager) GenerateToken(licenseKey, domain, productName string) (string, error) {
	signer := licensegate.NewRequestSigner(string(tm.secret))
	if signer == nil {
		return "", errors.New("token manager has no secret")
	}
	return signer.Sign(licenseKey, domain, productName)
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*licensegate.VerifyClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &licensegate.VerifyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithLeeway(tm.leeway), jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*licensegate.VerifyClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
