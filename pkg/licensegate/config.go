package licensegate

import (
	"errors"
	"time"
)

// Default windows.
const (
	DefaultTTL             = time.Hour
	DefaultSessionTTL      = 24 * time.Hour
	DefaultTimeout         = 10 * time.Second
	DefaultGracePeriod     = 24 * time.Hour
	DefaultBreakerCooldown = 30 * time.Second
)

// Config holds the recognized gate options. Zero durations fall back to defaults.
type Config struct {
	TTLSeconds             int  `json:"ttl_seconds"`
	SessionTTLSeconds      int  `json:"session_ttl_seconds"`
	TimeoutSeconds         int  `json:"timeout_seconds"`
	FailOpen               bool `json:"fail_open"`
	GraceSeconds           int  `json:"grace_seconds"`
	Coalesce               bool `json:"coalesce"`
	BreakerFailures        int  `json:"breaker_failures"`
	BreakerCooldownSeconds int  `json:"breaker_cooldown_seconds"`
}

// DefaultConfig returns the fail-closed configuration.
func DefaultConfig() Config {
	return Config{
		TTLSeconds:             int(DefaultTTL / time.Second),
		SessionTTLSeconds:      int(DefaultSessionTTL / time.Second),
		TimeoutSeconds:         int(DefaultTimeout / time.Second),
		GraceSeconds:           int(DefaultGracePeriod / time.Second),
		BreakerCooldownSeconds: int(DefaultBreakerCooldown / time.Second),
	}
}

// Validate rejects negative windows.
func (c Config) Validate() error {
	if c.TTLSeconds < 0 || c.SessionTTLSeconds < 0 || c.TimeoutSeconds < 0 || c.GraceSeconds < 0 {
		return errors.New("licensegate: durations must not be negative")
	}
	if c.BreakerFailures < 0 || c.BreakerCooldownSeconds < 0 {
		return errors.New("licensegate: breaker settings must not be negative")
	}
	return nil
}

// TTL returns the local cache freshness window.
func (c Config) TTL() time.Duration {
	return seconds(c.TTLSeconds, DefaultTTL)
}

// SessionTTL returns the session memo freshness window.
func (c Config) SessionTTL() time.Duration {
	return seconds(c.SessionTTLSeconds, DefaultSessionTTL)
}

// Timeout returns the network deadline for one verification.
func (c Config) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, DefaultTimeout)
}

// GracePeriod returns how long past TTL a valid entry may be served while the endpoint is down.
func (c Config) GracePeriod() time.Duration {
	return seconds(c.GraceSeconds, DefaultGracePeriod)
}

// BreakerCooldown returns how long an open breaker short-circuits verification.
func (c Config) BreakerCooldown() time.Duration {
	return seconds(c.BreakerCooldownSeconds, DefaultBreakerCooldown)
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
