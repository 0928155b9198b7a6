package domain

import "time"

// LicenseStatus enumerates license lifecycle states.
type LicenseStatus string

const (
	LicenseStatusActive   LicenseStatus = "active"
	LicenseStatusInactive LicenseStatus = "inactive"
	LicenseStatusExpired  LicenseStatus = "expired"
)

// Product is a licensable piece of software, matched by name during verification.
type Product struct {
	ID          string
	Name        string
	Description string
	Version     string
	CreatedAt   time.Time
}

// License binds a key to one client domain and one product.
type License struct {
	ID             string
	LicenseKey     string
	ClientName     string
	Domain         string
	ProductID      string
	ProductName    string
	ExpirationDate time.Time
	Status         LicenseStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExpiredAt reports whether the license is past its expiration date at now.
func (l *License) ExpiredAt(now time.Time) bool {
	return l.ExpirationDate.Before(now)
}
