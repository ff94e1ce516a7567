package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultAttemptTimeout bounds a single provider call. A timed-out
// attempt is treated exactly like a failed attempt.
const DefaultAttemptTimeout = 60 * time.Second

// ResolverFunc turns a provider config into its adapter. Injected rather
// than imported so the gateway can be tested with stub adapters; the
// production resolver lives in storage/providers.
type ResolverFunc func(ProviderConfig) (Adapter, error)

// Gateway cascades uploads across an ordered list of providers and
// delegates downloads and deletes to the single provider that holds an
// object. It owns no provider state beyond the injected health tracker.
type Gateway struct {
	health         *HealthTracker
	resolve        ResolverFunc
	log            *slog.Logger
	attemptTimeout time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger for per-attempt failures.
func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithAttemptTimeout overrides the per-provider call timeout.
func WithAttemptTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.attemptTimeout = d
		}
	}
}

// NewGateway creates a Gateway around the given health tracker and
// adapter resolver.
func NewGateway(health *HealthTracker, resolve ResolverFunc, opts ...GatewayOption) (*Gateway, error) {
	if health == nil {
		return nil, errors.New("new gateway: health tracker is required")
	}
	if resolve == nil {
		return nil, errors.New("new gateway: adapter resolver is required")
	}

	g := &Gateway{
		health:         health,
		resolve:        resolve,
		log:            slog.Default(),
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Upload tries each candidate in order until one stores the blob.
//
// Candidates are sorted by configured priority ascending, then healthy
// before unhealthy within the same priority. Unhealthy providers are
// reordered, never dropped, so when everything is marked unhealthy the
// cascade still makes at least one attempt instead of failing outright.
// Attempts are strictly sequential; the first success wins and later
// candidates are never called. Every attempt outcome is fed to the health
// tracker. A failed attempt is not retried against the same provider.
func (g *Gateway) Upload(ctx context.Context, candidates []ProviderConfig, objectKey string, data []byte, contentType string) (StoredBlob, error) {
	if len(candidates) == 0 {
		return StoredBlob{}, fmt.Errorf("upload %s: no providers configured", objectKey)
	}

	ordered := g.orderCandidates(candidates)

	for _, candidate := range ordered {
		id := candidate.ID()

		adapter, err := g.resolve(candidate)
		if err != nil {
			g.health.Observe(id, false)
			g.log.Warn("provider unavailable, trying next", "provider", id, "key", objectKey, "err", err)
			continue
		}

		res, err := g.attemptUpload(ctx, adapter, objectKey, data, contentType)
		if err != nil {
			g.health.Observe(id, false)
			g.log.Warn("provider upload failed, trying next", "provider", id, "key", objectKey, "err", err)
			if ctx.Err() != nil {
				return StoredBlob{}, fmt.Errorf("upload %s: %w", objectKey, ctx.Err())
			}
			continue
		}

		g.health.Observe(id, true)
		g.log.Info("blob stored", "provider", id, "key", objectKey, "storage_id", res.StorageID)
		return StoredBlob{
			Provider:   id,
			StorageID:  res.StorageID,
			LocatorURL: res.LocatorURL,
		}, nil
	}

	return StoredBlob{}, fmt.Errorf("upload %s: %w after %d attempts", objectKey, ErrAllProvidersFailed, len(ordered))
}

// Download fetches the object from exactly the named provider. There is
// no fallback: only the provider that accepted the upload has the bytes.
func (g *Gateway) Download(ctx context.Context, provider ProviderConfig, storageID string) (Object, error) {
	id := provider.ID()

	adapter, err := g.resolve(provider)
	if err != nil {
		return Object{}, fmt.Errorf("download from %s: %w", id, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	obj, err := adapter.Download(attemptCtx, storageID)
	g.health.Observe(id, err == nil)
	if err != nil {
		return Object{}, fmt.Errorf("download from %s: %w", id, err)
	}
	return obj, nil
}

// Delete removes the object through exactly the named provider. Failure
// is reported, not retried.
func (g *Gateway) Delete(ctx context.Context, provider ProviderConfig, storageID string) error {
	id := provider.ID()

	adapter, err := g.resolve(provider)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", id, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	err = adapter.Delete(attemptCtx, storageID)
	g.health.Observe(id, err == nil)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", id, err)
	}
	return nil
}

func (g *Gateway) attemptUpload(ctx context.Context, adapter Adapter, key string, data []byte, contentType string) (UploadResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()
	return adapter.Upload(attemptCtx, key, data, contentType)
}

// orderCandidates sorts by priority ascending, then current health. The
// health of each candidate is sampled once before sorting so the
// comparator stays consistent.
func (g *Gateway) orderCandidates(candidates []ProviderConfig) []ProviderConfig {
	ordered := make([]ProviderConfig, len(candidates))
	copy(ordered, candidates)

	healthy := make(map[string]bool, len(ordered))
	for _, c := range ordered {
		healthy[c.ID()] = g.health.IsHealthy(c.ID())
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return healthy[ordered[i].ID()] && !healthy[ordered[j].ID()]
	})

	return ordered
}
