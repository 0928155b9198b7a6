package licensegate

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errVerificationUnavailable = errors.New("verification unavailable")

// ErrBreakerOpen is reported by Ping while the breaker refuses to dial.
var ErrBreakerOpen = errors.New("license endpoint breaker is open")

// BreakerVerifier stops dialing an endpoint that keeps failing. Denials from well-formed
// responses count as successes; only unavailable verdicts trip the breaker.
type BreakerVerifier struct {
	next    Verifier
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerVerifier wraps next. failures <= 0 returns next unchanged.
func NewBreakerVerifier(next Verifier, failures int, cooldown time.Duration, logger *zap.Logger) Verifier {
	if failures <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	settings := gobreaker.Settings{
		Name:        "license-verifier",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("verifier breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerVerifier{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Verify delegates unless the breaker is open.
func (b *BreakerVerifier) Verify(ctx context.Context, licenseKey, domain, productName string) Verdict {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		verdict := b.next.Verify(ctx, licenseKey, domain, productName)
		if verdict.Unavailable() && ctx.Err() == nil {
			return verdict, errVerificationUnavailable
		}
		return verdict, nil
	})
	if verdict, ok := result.(Verdict); ok {
		return verdict
	}
	if err != nil {
		return unavailable(FailureNetwork)
	}
	return unavailable(FailureMalformed)
}

// State returns the breaker state name: closed, half-open or open.
func (b *BreakerVerifier) State() string {
	return b.breaker.State().String()
}

// Ping fails while the breaker is open. It never dials the endpoint.
func (b *BreakerVerifier) Ping(context.Context) error {
	if b.breaker.State() == gobreaker.StateOpen {
		return ErrBreakerOpen
	}
	return nil
}
