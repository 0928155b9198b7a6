// Package licensegate answers "is this deployment licensed?" by consulting a session memo, a
// local cache and the remote verification endpoint, in that order, and denies when validity
// cannot be confirmed.
package licensegate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Request names the license a caller wants checked.
type Request struct {
	LicenseKey  string
	Domain      string
	ProductName string
	// SessionID is optional. Without it the session layer is skipped.
	SessionID string
}

// Scope returns the cache scope of the request.
func (r Request) Scope() Scope {
	return Scope{LicenseKey: r.LicenseKey, Domain: r.Domain, ProductName: r.ProductName}
}

// Metrics receives gate events. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveCheck(source Source, valid bool)
	ObserveVerification(failure FailureClass, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCheck(Source, bool) {}
func (nopMetrics) ObserveVerification(FailureClass, time.Duration) {}

// Gate combines the session revalidator, the local cache and a verifier.
type Gate struct {
	verifier Verifier
	cache    *LocalCache
	sessions *SessionRevalidator
	cfg      Config
	clock    Clock
	logger   *zap.Logger
	metrics  Metrics
	group    singleflight.Group

	store        Store
	sessionStore SessionStore
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(g *Gate) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// WithStore backs the local cache with store.
func WithStore(store Store) Option {
	return func(g *Gate) {
		g.store = store
	}
}

// WithSessionStore backs the session revalidator with store.
func WithSessionStore(store SessionStore) Option {
	return func(g *Gate) {
		g.sessionStore = store
	}
}

// New builds a gate around verifier. Without WithStore and WithSessionStore both layers
// live in process memory.
func New(verifier Verifier, cfg Config, opts ...Option) (*Gate, error) {
	if verifier == nil {
		return nil, fmt.Errorf("licensegate: verifier is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		verifier: verifier,
		cfg:      cfg,
		clock:    SystemClock{},
		logger:   zap.NewNop(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewMemoryStore()
	}
	if g.sessionStore == nil {
		g.sessionStore = NewMemorySessionStore()
	}
	g.cache = NewLocalCache(g.store, cfg.TTL(), g.retention(), g.logger)
	g.sessions = NewSessionRevalidator(g.sessionStore, cfg.SessionTTL(), g.logger)
	return g, nil
}

// NewFromEndpoint builds an HTTPVerifier for endpoint, wraps it in a breaker when configured,
// and returns the gate. secret may be empty to send unsigned requests.
func NewFromEndpoint(endpoint, secret string, cfg Config, opts ...Option) (*Gate, error) {
	scratch := &Gate{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(scratch)
	}

	httpVerifier, err := NewHTTPVerifier(endpoint, cfg.Timeout(),
		WithSigner(NewRequestSigner(secret)),
		WithVerifierLogger(scratch.logger))
	if err != nil {
		return nil, err
	}
	verifier := NewBreakerVerifier(httpVerifier, cfg.BreakerFailures, cfg.BreakerCooldown(), scratch.logger)
	return New(verifier, cfg, opts...)
}

func (g *Gate) retention() time.Duration {
	if g.cfg.FailOpen {
		return g.cfg.TTL() + g.cfg.GracePeriod()
	}
	return g.cfg.TTL()
}

// Config returns the gate configuration.
func (g *Gate) Config() Config {
	return g.cfg
}

// Check returns the verdict for req. It never fails; anything short of a confirmed answer is
// an invalid verdict.
func (g *Gate) Check(ctx context.Context, req Request) Verdict {
	scope := req.Scope()
	now := g.clock.Now()

	if memo, ok := g.sessions.Get(ctx, req.SessionID, scope, now); ok {
		g.metrics.ObserveCheck(SourceSession, memo.Valid)
		g.logger.Debug("license answered from session",
			zap.String("domain", req.Domain),
			zap.Bool("valid", memo.Valid))
		return memo.Verdict()
	}

	if entry, ok := g.cache.Get(ctx, scope, now); ok {
		g.sessions.Put(ctx, req.SessionID, scope, entry.Verdict, entry.ObtainedAt)
		g.metrics.ObserveCheck(SourceCache, entry.Verdict.Valid)
		g.logger.Debug("license answered from cache",
			zap.String("domain", req.Domain),
			zap.Bool("valid", entry.Verdict.Valid))
		return entry.Verdict
	}

	verdict, obtainedAt := g.verify(ctx, req, scope)
	if !verdict.Unavailable() {
		g.sessions.Put(context.WithoutCancel(ctx), req.SessionID, scope, verdict, obtainedAt)
		g.metrics.ObserveCheck(SourceNetwork, verdict.Valid)
		return verdict
	}

	if grace, ok := g.graceVerdict(ctx, scope); ok {
		g.metrics.ObserveCheck(SourceGrace, true)
		g.logger.Warn("license endpoint unavailable; serving grace verdict",
			zap.String("domain", req.Domain),
			zap.String("failure", string(verdict.Failure)))
		return grace
	}

	g.metrics.ObserveCheck(SourceNetwork, false)
	g.logger.Warn("license verification unavailable; denying",
		zap.String("domain", req.Domain),
		zap.String("failure", string(verdict.Failure)))
	return verdict
}

// Enforce runs Check and returns a *DenialError when the verdict is invalid.
func (g *Gate) Enforce(ctx context.Context, req Request) (Verdict, error) {
	verdict := g.Check(ctx, req)
	if !verdict.Valid {
		return verdict, &DenialError{Verdict: verdict, Domain: req.Domain, Product: req.ProductName}
	}
	return verdict, nil
}

// Ping reports whether the verifier is currently willing to dial. Verifiers without a Ping
// method are always considered reachable.
func (g *Gate) Ping(ctx context.Context) error {
	if p, ok := g.verifier.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Invalidate drops the cached verdict for req so the next Check without a fresh session memo
// goes to the network.
func (g *Gate) Invalidate(ctx context.Context, req Request) {
	g.cache.Invalidate(ctx, req.Scope())
}

// EndSession discards the memos of a finished session.
func (g *Gate) EndSession(ctx context.Context, sessionID string) {
	g.sessions.End(ctx, sessionID)
}

func (g *Gate) verify(ctx context.Context, req Request, scope Scope) (Verdict, time.Time) {
	if !g.cfg.Coalesce {
		return g.verifyOnce(ctx, req, scope)
	}

	type result struct {
		verdict    Verdict
		obtainedAt time.Time
	}
	// The shared call must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(scope.Key(), func() (interface{}, error) {
		verdict, at := g.verifyOnce(shared, req, scope)
		return result{verdict: verdict, obtainedAt: at}, nil
	})

	select {
	case res := <-ch:
		r := res.Val.(result)
		return r.verdict, r.obtainedAt
	case <-ctx.Done():
		return unavailable(FailureTimeout), g.clock.Now()
	}
}

func (g *Gate) verifyOnce(ctx context.Context, req Request, scope Scope) (Verdict, time.Time) {
	start := time.Now()
	verdict := g.verifier.Verify(ctx, req.LicenseKey, req.Domain, req.ProductName)
	g.metrics.ObserveVerification(verdict.Failure, time.Since(start))

	obtainedAt := g.clock.Now()
	if verdict.Unavailable() {
		return verdict, obtainedAt
	}

	g.cache.Put(context.WithoutCancel(ctx), scope, verdict, obtainedAt)
	g.logger.Info("license verified",
		zap.String("domain", req.Domain),
		zap.String("product", req.ProductName),
		zap.Bool("valid", verdict.Valid),
		zap.String("message", verdict.Message))
	return verdict, obtainedAt
}

func (g *Gate) graceVerdict(ctx context.Context, scope Scope) (Verdict, bool) {
	if !g.cfg.FailOpen {
		return Verdict{}, false
	}
	entry, ok := g.cache.Peek(ctx, scope)
	if !ok || !entry.Verdict.Valid {
		return Verdict{}, false
	}
	if !entry.FreshAt(g.clock.Now(), g.cfg.TTL()+g.cfg.GracePeriod()) {
		return Verdict{}, false
	}
	return Verdict{Valid: true, Message: MessageGrace, LicenseData: entry.Verdict.LicenseData}, true
}
