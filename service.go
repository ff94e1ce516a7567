package quire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quireapp/quire/storage"
)

// BookRepo defines the interface for sharded book metadata persistence.
//
// Single-key operations (Get, Upsert, Delete, UpdateProgress) run against
// exactly one shard, selected by hashing the book id; their errors
// propagate unchanged. List is a fan-out across every shard and returns a
// partial result when individual shards fail.
type BookRepo interface {
	// Get retrieves the metadata row for a book id.
	// Returns ErrNotFound if the id does not exist on its shard.
	Get(ctx context.Context, id string) (Book, error)

	// Upsert creates or updates the metadata row for entry.ID on the
	// shard owned by that id. Returns the stored row and true when a new
	// row was created.
	Upsert(ctx context.Context, entry BookEntry) (Book, bool, error)

	// Delete removes the metadata row for a book id.
	// Returns ErrNotFound if the id does not exist on its shard.
	Delete(ctx context.Context, id string) error

	// UpdateProgress writes the reading position for a book id.
	UpdateProgress(ctx context.Context, id string, p Progress) error

	// List fans the query out to all shards and merges the rows. A
	// failing shard contributes zero rows and is reported through
	// ListResult.FailedShards rather than as an error.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// BlobGateway defines the interface for the cascading blob store. Upload
// walks the candidate providers until one accepts the bytes; Download and
// Delete address exactly the provider recorded at upload time.
type BlobGateway interface {
	Upload(ctx context.Context, candidates []storage.ProviderConfig, objectKey string, data []byte, contentType string) (storage.StoredBlob, error)
	Download(ctx context.Context, provider storage.ProviderConfig, storageID string) (storage.Object, error)
	Delete(ctx context.Context, provider storage.ProviderConfig, storageID string) error
}

// LibraryService wires the metadata router and the storage gateway into
// the book-level operations the HTTP layer exposes. The two subsystems
// never see each other; this service is the only place the (provider,
// storage id) locator crosses from one to the other.
type LibraryService struct {
	repo           BookRepo
	blobs          BlobGateway
	providers      []storage.ProviderConfig
	cleanupTimeout time.Duration
	log            *slog.Logger
}

// ServiceConfig holds configuration options for LibraryService.
type ServiceConfig struct {
	// Providers is the ordered candidate list handed to the gateway on
	// every upload.
	Providers []storage.ProviderConfig
	// CleanupTimeout bounds the compensating blob delete that runs when a
	// metadata write fails after a successful upload (default: 30s).
	CleanupTimeout time.Duration
	Logger         *slog.Logger
}

func NewLibraryService(repo BookRepo, blobs BlobGateway, cfg ServiceConfig) (*LibraryService, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("new library service: %w: at least one storage provider required", ErrInvalidInput)
	}
	for _, p := range cfg.Providers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("new library service: provider %s: %w", p.ID(), err)
		}
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &LibraryService{
		repo:           repo,
		blobs:          blobs,
		providers:      cfg.Providers,
		cleanupTimeout: cleanupTimeout,
		log:            log,
	}, nil
}

// Add stores the book file through the cascading gateway and then writes
// the metadata row keyed by a freshly generated id. If the metadata write
// fails the uploaded blob is deleted again so no provider is left holding
// an orphan; the cleanup runs on a background context because the request
// context may already be cancelled.
func (s *LibraryService) Add(ctx context.Context, book CreateBook, data []byte) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, fmt.Errorf("add book: %w", err)
	}

	if book.Title == "" {
		return Book{}, fmt.Errorf("add book: %w: title cannot be empty", ErrInvalidInput)
	}
	if book.ContentType == "" {
		return Book{}, fmt.Errorf("add book: %w: content type cannot be empty", ErrInvalidInput)
	}
	if len(data) == 0 {
		return Book{}, fmt.Errorf("add book: %w: file cannot be empty", ErrInvalidInput)
	}

	id := uuid.NewString()
	objectKey := id
	if book.Format != "" {
		objectKey = id + "." + book.Format
	}

	blob, err := s.blobs.Upload(ctx, s.providers, objectKey, data, book.ContentType)
	if err != nil {
		return Book{}, fmt.Errorf("add book: upload failed: %w", err)
	}

	entry := BookEntry{
		ID:            id,
		Title:         book.Title,
		Author:        book.Author,
		Format:        book.Format,
		ContentType:   book.ContentType,
		FileSizeBytes: int64(len(data)),
		Provider:      blob.Provider,
		StorageID:     blob.StorageID,
		LocatorURL:    blob.LocatorURL,
	}

	stored, _, upsertErr := s.repo.Upsert(ctx, entry)
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		provider, provErr := s.providerByID(blob.Provider)
		if provErr == nil {
			if delErr := s.blobs.Delete(cleanupCtx, provider, blob.StorageID); delErr != nil {
				return Book{}, fmt.Errorf("add book %s: metadata upsert failed (%w) and cleanup failed: %w", id, upsertErr, delErr)
			}
		}
		return Book{}, fmt.Errorf("add book %s: metadata upsert failed: %w", id, upsertErr)
	}

	return stored, nil
}

// Get returns the metadata row for a book id.
func (s *LibraryService) Get(ctx context.Context, id string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	if !IsValidBookID(id) {
		return Book{}, fmt.Errorf("get book: %w", ErrInvalidInput)
	}

	book, err := s.repo.Get(ctx, id)
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// Open retrieves both the metadata row and the file bytes for a book. The
// download goes through exactly the provider recorded at upload time;
// there is no fallback.
func (s *LibraryService) Open(ctx context.Context, id string) (Book, storage.Object, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return Book{}, storage.Object{}, fmt.Errorf("open book: %w", err)
	}

	provider, err := s.providerByID(book.Provider)
	if err != nil {
		return Book{}, storage.Object{}, fmt.Errorf("open book %s: %w", id, err)
	}

	obj, err := s.blobs.Download(ctx, provider, book.StorageID)
	if err != nil {
		return Book{}, storage.Object{}, fmt.Errorf("open book %s: download failed: %w", id, err)
	}
	if obj.ContentType == "" || obj.ContentType == "application/octet-stream" {
		obj.ContentType = book.ContentType
	}

	return book, obj, nil
}

// Delete removes the stored file through the provider that holds it and
// then deletes the metadata row. A failed blob delete stops the operation
// so the row keeps pointing at the still-existing object.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	book, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	provider, err := s.providerByID(book.Provider)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}

	if err := s.blobs.Delete(ctx, provider, book.StorageID); err != nil {
		return fmt.Errorf("delete book %s: blob delete failed: %w", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	return nil
}

// List merges the rows of every shard. The result may be partial; callers
// can inspect ListResult.Degraded.
func (s *LibraryService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list books: %w", err)
	}

	result, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list books: %w", err)
	}
	if result.Degraded {
		s.log.Warn("list returned partial result", "failed_shards", result.FailedShards)
	}
	return result, nil
}

// UpdateProgress stores the reader position for a book.
func (s *LibraryService) UpdateProgress(ctx context.Context, id string, p Progress) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if !IsValidBookID(id) {
		return fmt.Errorf("update progress: %w", ErrInvalidInput)
	}
	if p.Percent < 0 || p.Percent > 100 {
		return fmt.Errorf("update progress: %w: percent out of range", ErrInvalidInput)
	}

	if err := s.repo.UpdateProgress(ctx, id, p); err != nil {
		return fmt.Errorf("update progress %s: %w", id, err)
	}
	return nil
}

func (s *LibraryService) providerByID(id string) (storage.ProviderConfig, error) {
	for _, p := range s.providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return storage.ProviderConfig{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
}
