package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire/storage"
)

type fakeContainerStore struct {
	base     string
	fullUpTo int // containers 1..fullUpTo report errContainerFull
	existing map[string]bool
	ensured  []string
	puts     []string
	putErr   error
}

func (f *fakeContainerStore) containerName(n int) string {
	return containerName(f.base, n)
}

func (f *fakeContainerStore) ensureContainer(_ context.Context, name string) error {
	f.ensured = append(f.ensured, name)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[name] = true
	return nil
}

func (f *fakeContainerStore) put(_ context.Context, container, key string, _ []byte, _ string) (storage.UploadResult, error) {
	f.puts = append(f.puts, container)
	if f.putErr != nil {
		return storage.UploadResult{}, f.putErr
	}
	for n := 1; n <= f.fullUpTo; n++ {
		if container == f.containerName(n) {
			return storage.UploadResult{}, fmt.Errorf("container %s: %w", container, errContainerFull)
		}
	}
	return storage.UploadResult{StorageID: container + ":" + key}, nil
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "books", containerName("books", 1))
	assert.Equal(t, "books-2", containerName("books", 2))
	assert.Equal(t, "books-7", containerName("books", 7))
}

func TestPutWithRotationFirstContainerAccepts(t *testing.T) {
	store := &fakeContainerStore{base: "books"}

	res, err := putWithRotation(context.Background(), store, "novel.epub", []byte("x"), "application/epub+zip")
	require.NoError(t, err)
	assert.Equal(t, "books:novel.epub", res.StorageID)
	assert.Equal(t, []string{"books"}, store.puts)
}

func TestPutWithRotationSkipsFullContainers(t *testing.T) {
	store := &fakeContainerStore{base: "books", fullUpTo: 2}

	res, err := putWithRotation(context.Background(), store, "novel.epub", []byte("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "books-3:novel.epub", res.StorageID)
	assert.Equal(t, []string{"books", "books-2", "books-3"}, store.puts)
	assert.Equal(t, []string{"books", "books-2", "books-3"}, store.ensured)
}

func TestPutWithRotationStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("credentials rejected")
	store := &fakeContainerStore{base: "books", putErr: boom}

	_, err := putWithRotation(context.Background(), store, "novel.epub", []byte("x"), "")
	require.ErrorIs(t, err, boom)
	assert.Len(t, store.puts, 1)
}

func TestPutWithRotationGivesUpEventually(t *testing.T) {
	store := &fakeContainerStore{base: "books", fullUpTo: maxContainerRotations}

	_, err := putWithRotation(context.Background(), store, "novel.epub", []byte("x"), "")
	require.Error(t, err)
	assert.Len(t, store.puts, maxContainerRotations)
}
