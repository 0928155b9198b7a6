package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLicenseVerified EventType = "license_verified"
	EventLicenseDenied   EventType = "license_denied"
	EventLicenseExpired  EventType = "license_expired"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	LicenseID string      `json:"license_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VerificationPayload describes one decision of the verification endpoint.
type VerificationPayload struct {
	Domain      string `json:"domain"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

// LicenseExpiredPayload is emitted when a verification flips a license to expired.
type LicenseExpiredPayload struct {
	ClientName     string    `json:"client_name"`
	ExpirationDate time.Time `json:"expiration_date"`
}
