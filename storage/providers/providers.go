// Package providers implements the storage.Adapter strategy for each of
// the ten supported backends. Every adapter is a thin HTTP client around
// one vendor's API; whatever multi-step protocol the vendor requires is
// internal to its adapter. Construction is dispatched on the provider
// config's kind.
package providers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/quireapp/quire/storage"
)

// DefaultTimeout is the fallback HTTP client timeout when the caller does
// not supply a client. The gateway additionally bounds every attempt with
// its own per-call deadline.
const DefaultTimeout = 120 * time.Second

// Resolver returns a storage.ResolverFunc that builds adapters sharing
// client. Pass nil to use a default client.
func Resolver(client *http.Client) storage.ResolverFunc {
	return func(cfg storage.ProviderConfig) (storage.Adapter, error) {
		return New(cfg, client)
	}
}

// New constructs the adapter for cfg's kind.
func New(cfg storage.ProviderConfig, client *http.Client) (storage.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new adapter: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	switch cfg.Kind {
	case storage.KindDropbox:
		return newDropbox(cfg, client), nil
	case storage.KindBackblaze:
		return newBackblaze(cfg, client), nil
	case storage.KindGofile:
		return newGofile(cfg, client), nil
	case storage.KindPixeldrain:
		return newPixeldrain(cfg, client), nil
	case storage.KindCatbox:
		return newCatbox(cfg, client), nil
	case storage.KindFileIO:
		return newFileIO(cfg, client), nil
	case storage.KindTransferSh:
		return newTransferSh(cfg, client), nil
	case storage.KindNullPointer:
		return newNullPointer(cfg, client), nil
	case storage.KindTelegram:
		return newTelegram(cfg, client), nil
	case storage.KindGitHub:
		return newGitHub(cfg, client), nil
	default:
		return nil, fmt.Errorf("new adapter: unknown provider kind: %s", cfg.Kind)
	}
}
