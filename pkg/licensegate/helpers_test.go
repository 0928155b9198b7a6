package licensegate

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubVerifier struct {
	mu      sync.Mutex
	calls   int
	verdict Verdict
	delay   time.Duration
}

func (s *stubVerifier) Verify(ctx context.Context, _, _, _ string) Verdict {
	s.mu.Lock()
	s.calls++
	verdict, delay := s.verdict, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return unavailable(FailureTimeout)
		}
	}
	return verdict
}

func (s *stubVerifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubVerifier) Set(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = v
}

type recordingMetrics struct {
	mu      sync.Mutex
	sources []Source
	fails   []FailureClass
}

func (m *recordingMetrics) ObserveCheck(source Source, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
}

func (m *recordingMetrics) ObserveVerification(failure FailureClass, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails = append(m.fails, failure)
}

func (m *recordingMetrics) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.sources...)
}

var validVerdict = Verdict{
	Valid:   true,
	Message: "License is valid",
	LicenseData: &LicenseData{
		ClientName:     "Acme",
		ExpirationDate: "2027-01-01T00:00:00+00:00",
		ProductID:      "prod-1",
	},
}
