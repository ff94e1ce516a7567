package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/quireapp/quire/storage"
)

// errContainerFull signals that the targeted container has no room for
// the blob and the next one in the sequence should be tried.
var errContainerFull = errors.New("container is full")

// maxContainerRotations bounds how many containers putWithRotation will
// walk before giving up.
const maxContainerRotations = 50

// containerStore is a backend whose space is split into numbered
// containers that fill up over time. Container 1 carries the base name,
// later ones get a numeric suffix.
type containerStore interface {
	containerName(n int) string
	ensureContainer(ctx context.Context, name string) error
	put(ctx context.Context, container, key string, data []byte, contentType string) (storage.UploadResult, error)
}

// putWithRotation stores the blob in the first container that accepts
// it, creating containers on demand and moving on whenever one reports
// errContainerFull.
func putWithRotation(ctx context.Context, s containerStore, key string, data []byte, contentType string) (storage.UploadResult, error) {
	for n := 1; n <= maxContainerRotations; n++ {
		name := s.containerName(n)
		if err := s.ensureContainer(ctx, name); err != nil {
			return storage.UploadResult{}, fmt.Errorf("ensure container %s: %w", name, err)
		}

		res, err := s.put(ctx, name, key, data, contentType)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, errContainerFull) {
			return storage.UploadResult{}, err
		}
	}
	return storage.UploadResult{}, fmt.Errorf("no container accepted the blob after %d rotations", maxContainerRotations)
}

// containerName derives the name of the n-th container from the base
// name: base, base-2, base-3 and so on.
func containerName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
