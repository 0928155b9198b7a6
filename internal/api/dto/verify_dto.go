package dto

import (
	"time"

	"github.com/spec-kit/license-service/internal/service"
)

// VerifyRequest payload for POST /verify.
type VerifyRequest struct {
	LicenseKey  string `json:"license_key"`
	Domain      string `json:"domain"`
	ProductName string `json:"product_name"`
}

// LicenseData is echoed back on a valid verification.
type LicenseData struct {
	ClientName     string `json:"client_name"`
	ExpirationDate string `json:"expiration_date"`
	ProductID      string `json:"product_id"`
}

// VerifyResponse is the answer of POST /verify.
type VerifyResponse struct {
	Valid       bool         `json:"valid"`
	Message     string       `json:"message"`
	LicenseData *LicenseData `json:"license_data,omitempty"`
}

// ToVerifyInput maps the payload to the service input.
func (r VerifyRequest) ToVerifyInput() service.VerifyInput {
	return service.VerifyInput{LicenseKey: r.LicenseKey, Domain: r.Domain, ProductName: r.ProductName}
}

// NewVerifyResponse builds the response for a decision.
func NewVerifyResponse(result service.VerificationResult) VerifyResponse {
	resp := VerifyResponse{Valid: result.Valid, Message: result.Message}
	if result.Valid && result.License != nil {
		resp.LicenseData = &LicenseData{
			ClientName:     result.License.ClientName,
			ExpirationDate: result.License.ExpirationDate.UTC().Format(time.RFC3339),
			ProductID:      result.License.ProductID,
		}
	}
	return resp
}
