package storage

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies one supported provider backend. The string value is
// also the provider's fixed identifier: it keys the health tracker and is
// persisted in book rows as the "which provider holds this file" field,
// so values must never change.
type Kind string

const (
	KindDropbox     Kind = "dropbox"
	KindBackblaze   Kind = "backblaze"
	KindGofile      Kind = "gofile"
	KindPixeldrain  Kind = "pixeldrain"
	KindCatbox      Kind = "catbox"
	KindFileIO      Kind = "fileio"
	KindTransferSh  Kind = "transfersh"
	KindNullPointer Kind = "nullpointer"
	KindTelegram    Kind = "telegram"
	KindGitHub      Kind = "github"
)

// Kinds lists every supported provider kind.
func Kinds() []Kind {
	return []Kind{
		KindDropbox, KindBackblaze, KindGofile, KindPixeldrain, KindCatbox,
		KindFileIO, KindTransferSh, KindNullPointer, KindTelegram, KindGitHub,
	}
}

// ParseKind validates a provider kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider kind: %s", s)
}

// ProviderConfig is the tagged union over the supported provider kinds.
// Kind selects the adapter; the remaining fields carry that vendor's
// credentials and paths and are ignored by other kinds. Priority orders
// upload candidates, lower first.
type ProviderConfig struct {
	Kind     Kind `mapstructure:"kind" validate:"required"`
	Priority int  `mapstructure:"priority"`

	// Endpoint overrides the vendor's default API base URL. Used for
	// self-hosted deployments (transfersh, nullpointer, github/gitea) and
	// for tests.
	Endpoint string `mapstructure:"endpoint"`

	// Token is the bearer token, API key or bot token, depending on Kind.
	Token string `mapstructure:"token"`

	// Folder scopes uploads inside the provider account (dropbox path
	// prefix, gofile folder id).
	Folder string `mapstructure:"folder"`

	// Backblaze B2 application credentials and target bucket id.
	KeyID  string `mapstructure:"key_id"`
	AppKey string `mapstructure:"app_key"`
	Bucket string `mapstructure:"bucket"`

	// Catbox account hash.
	UserHash string `mapstructure:"user_hash"`

	// Telegram target chat.
	ChatID string `mapstructure:"chat_id"`

	// Git-based fallback: repository owner, base repository name and
	// branch. The adapter rotates to numbered sibling repositories when
	// one fills up.
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
}

// ID returns the provider's fixed identifier.
func (c ProviderConfig) ID() string {
	return string(c.Kind)
}

// Validate checks that the fields required by the config's kind are set.
func (c ProviderConfig) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}

	missing := func(field string) error {
		return fmt.Errorf("provider %s: missing %s", c.Kind, field)
	}

	switch c.Kind {
	case KindDropbox, KindPixeldrain:
		if c.Token == "" {
			return missing("token")
		}
	case KindBackblaze:
		if c.KeyID == "" {
			return missing("key_id")
		}
		if c.AppKey == "" {
			return missing("app_key")
		}
		if c.Bucket == "" {
			return missing("bucket")
		}
	case KindGofile:
		if c.Token == "" {
			return missing("token")
		}
	case KindCatbox:
		if c.UserHash == "" {
			return missing("user_hash")
		}
	case KindTelegram:
		if c.Token == "" {
			return missing("token")
		}
		if c.ChatID == "" {
			return missing("chat_id")
		}
	case KindGitHub:
		if c.Token == "" {
			return missing("token")
		}
		if c.Owner == "" {
			return missing("owner")
		}
		if c.Repo == "" {
			return missing("repo")
		}
	case KindFileIO, KindTransferSh, KindNullPointer:
		// Anonymous upload hosts; credentials optional.
	}

	return nil
}

// UploadResult is what an adapter reports for a stored object. StorageID
// is provider-specific and opaque to everything but the adapter that
// produced it; LocatorURL is a human-usable link when the vendor has one.
type UploadResult struct {
	StorageID  string
	LocatorURL string
}

// Object is a downloaded blob.
type Object struct {
	Data        []byte
	ContentType string
}

// StoredBlob is the gateway's upload outcome: the locator the caller must
// persist to download or delete the object later.
type StoredBlob struct {
	Provider   string `json:"provider"`
	StorageID  string `json:"storage_id"`
	LocatorURL string `json:"locator_url,omitempty"`
}

// Adapter is the per-vendor storage strategy. Implementations run
// whatever multi-step protocol their backend requires; the gateway only
// sees success, failure or bytes. Adapters must treat StorageID values
// they did not produce as errors rather than guessing.
type Adapter interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error)
	Download(ctx context.Context, storageID string) (Object, error)
	Delete(ctx context.Context, storageID string) error
}

var (
	// ErrAllProvidersFailed is the aggregate error after an upload cascade
	// exhausted every candidate.
	ErrAllProvidersFailed = errors.New("all storage providers failed")
	// ErrNotSupported is returned for operations a vendor has no API for.
	ErrNotSupported = errors.New("operation not supported by provider")
	// ErrBlobNotFound is returned when a provider no longer has the object.
	ErrBlobNotFound = errors.New("blob not found")
)
