package licensegate

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const signedRequestTTL = time.Minute

// VerifyClaims binds a bearer token to one verification request body.
type VerifyClaims struct {
	LicenseKey  string `json:"license_key"`
	Domain      string `json:"domain"`
	ProductName string `json:"product_name"`
	jwt.RegisteredClaims
}

// RequestSigner issues short-lived HS256 tokens for verification requests.
type RequestSigner struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewRequestSigner returns nil when secret is empty, which disables signing.
func NewRequestSigner(secret string) *RequestSigner {
	if secret == "" {
		return nil
	}
	return &RequestSigner{secret: []byte(secret), ttl: signedRequestTTL, clock: SystemClock{}}
}

// Sign builds the bearer token for the given request fields.
func (s *RequestSigner) Sign(licenseKey, domain, productName string) (string, error) {
	if s == nil {
		return "", errors.New("request signer not configured")
	}
	now := s.clock.Now()
	claims := &VerifyClaims{
		LicenseKey:  licenseKey,
		Domain:      domain,
		ProductName: productName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
