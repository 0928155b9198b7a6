package licensegate

import (
	"errors"
	"fmt"
	"time"
)

// Messages produced locally, as opposed to messages relayed from the verification endpoint.
const (
	MessageUnavailable = "verification unavailable"
	MessageGrace       = "verification unavailable; grace period"
	MessageNoReason    = "license invalid"
)

// FailureClass identifies why a verification attempt produced no trustworthy answer.
type FailureClass string

const (
	FailureNone      FailureClass = ""
	FailureNetwork   FailureClass = "network"
	FailureTimeout   FailureClass = "timeout"
	FailureBadStatus FailureClass = "bad_status"
	FailureMalformed FailureClass = "malformed"
)

// Source records which layer answered a Check.
type Source string

const (
	SourceSession Source = "session"
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
	SourceGrace   Source = "grace"
)

// LicenseData is the subset of the matched license the endpoint echoes back on success.
type LicenseData struct {
	ClientName     string         `json:"client_name"`
	ExpirationDate string         `json:"expiration_date"`
	ProductID      string         `json:"product_id,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// ExpiresAt parses ExpirationDate. The zero time is returned when it is missing or malformed.
func (d *LicenseData) ExpiresAt() time.Time {
	if d == nil || d.ExpirationDate == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, d.ExpirationDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Verdict is the outcome of one verification attempt.
type Verdict struct {
	Valid       bool         `json:"valid"`
	Message     string       `json:"message,omitempty"`
	LicenseData *LicenseData `json:"license_data,omitempty"`
	Failure     FailureClass `json:"failure,omitempty"`
}

// Unavailable reports whether the verdict stands for a failed attempt rather than an answer.
func (v Verdict) Unavailable() bool {
	return v.Failure != FailureNone
}

func unavailable(class FailureClass) Verdict {
	return Verdict{Valid: false, Message: MessageUnavailable, Failure: class}
}

// ErrLicenseDenied is matched by every error Enforce returns.
var ErrLicenseDenied = errors.New("invalid license")

// DenialError carries the verdict that caused Enforce to refuse access.
type DenialError struct {
	Verdict Verdict
	Domain  string
	Product string
}

func (e *DenialError) Error() string {
	msg := e.Verdict.Message
	if msg == "" {
		msg = MessageNoReason
	}
	return fmt.Sprintf("%s: %s", ErrLicenseDenied, msg)
}

func (e *DenialError) Unwrap() error {
	return ErrLicenseDenied
}
