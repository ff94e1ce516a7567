package storage

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that
	// marks a provider unhealthy.
	DefaultFailureThreshold = 3
	// DefaultRecoveryWindow is the quiet period after which an unhealthy
	// provider is optimistically treated as healthy again without a probe.
	DefaultRecoveryWindow = 5 * time.Minute
)

// HealthStatus is a read-only snapshot of one provider's health record.
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	Failures     int       `json:"failures"`
	LastObserved time.Time `json:"last_observed"`
}

type healthRecord struct {
	failures     int
	lastObserved time.Time
	healthy      bool
}

// HealthTracker keeps per-provider reliability state in process memory.
// Records are created lazily on first observation. State is not persisted
// and not shared across instances; each process learns independently,
// which is an accepted approximation. The tracker is an explicitly
// constructed instance so tests can run isolated copies and production
// can later swap in a shared store without touching the gateway.
type HealthTracker struct {
	mu        sync.Mutex
	records   map[string]*healthRecord
	threshold int
	window    time.Duration
	now       func() time.Time
}

// HealthOption configures a HealthTracker.
type HealthOption func(*HealthTracker)

// WithFailureThreshold overrides the consecutive-failure threshold.
func WithFailureThreshold(n int) HealthOption {
	return func(t *HealthTracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

// WithRecoveryWindow overrides the passive-recovery quiet period.
func WithRecoveryWindow(d time.Duration) HealthOption {
	return func(t *HealthTracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithClock injects the time source. Tests use it to step through the
// recovery window without sleeping.
func WithClock(now func() time.Time) HealthOption {
	return func(t *HealthTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewHealthTracker creates a tracker with the default threshold and
// recovery window.
func NewHealthTracker(opts ...HealthOption) *HealthTracker {
	t := &HealthTracker{
		records:   make(map[string]*healthRecord),
		threshold: DefaultFailureThreshold,
		window:    DefaultRecoveryWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records the outcome of one provider call. A success resets the
// failure count and marks the provider healthy; a failure increments the
// count and flips the provider unhealthy once the threshold is crossed.
// The last-observation time is updated either way.
func (t *HealthTracker) Observe(provider string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.record(provider)
	rec.lastObserved = t.now()

	if success {
		rec.failures = 0
		rec.healthy = true
		return
	}

	rec.failures++
	if rec.failures >= t.threshold {
		rec.healthy = false
	}
}

// IsHealthy reports the provider's current health, applying the passive
// recovery rule as a side effect: an unhealthy provider with no
// observations for longer than the recovery window is reset to healthy,
// so the next natural request acts as the probe. Unknown providers are
// healthy.
func (t *HealthTracker) IsHealthy(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[provider]
	if !ok {
		return true
	}

	t.applyPassiveRecovery(rec)
	return rec.healthy
}

// Snapshot returns a copy of every tracked record, for the health
// endpoint.
func (t *HealthTracker) Snapshot() map[string]HealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]HealthStatus, len(t.records))
	for provider, rec := range t.records {
		t.applyPassiveRecovery(rec)
		out[provider] = HealthStatus{
			Healthy:      rec.healthy,
			Failures:     rec.failures,
			LastObserved: rec.lastObserved,
		}
	}
	return out
}

// record returns the provider's record, creating it on first observation.
// Caller holds the lock.
func (t *HealthTracker) record(provider string) *healthRecord {
	rec, ok := t.records[provider]
	if !ok {
		rec = &healthRecord{healthy: true}
		t.records[provider] = rec
		return rec
	}
	t.applyPassiveRecovery(rec)
	return rec
}

// applyPassiveRecovery resets an unhealthy record whose last observation
// is older than the quiet window. Caller holds the lock.
func (t *HealthTracker) applyPassiveRecovery(rec *healthRecord) {
	if rec.healthy {
		return
	}
	if t.now().Sub(rec.lastObserved) > t.window {
		rec.failures = 0
		rec.healthy = true
	}
}
