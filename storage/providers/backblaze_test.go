package providers

import (
	"context"
	"crypto/sha1" //#nosec G505 -- mirrors the adapter's checksum
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire/storage"
)

func newTestBackblaze(t *testing.T, handler http.Handler) *backblaze {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newBackblaze(storage.ProviderConfig{
		Kind:     storage.KindBackblaze,
		KeyID:    "key-id",
		AppKey:   "app-key",
		Bucket:   "bucket-id",
		Endpoint: srv.URL,
	}, srv.Client())
}

// The upload protocol is three calls: authorize, fetch an upload slot,
// then send the bytes with a SHA-1 checksum header.
func TestBackblazeUpload(t *testing.T) {
	data := []byte("epub bytes")
	sum := sha1.Sum(data) //#nosec G401

	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key-id", user)
		require.Equal(t, "app-key", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"apiUrl":             srvURL,
			"downloadUrl":        srvURL,
			"authorizationToken": "session-token",
		})
	})
	mux.HandleFunc("/b2api/v2/b2_get_upload_url", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session-token", r.Header.Get("Authorization"))

		var body struct {
			BucketID string `json:"bucketId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "bucket-id", body.BucketID)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl":          srvURL + "/upload-slot",
			"authorizationToken": "upload-token",
		})
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "upload-token", r.Header.Get("Authorization"))
		require.Equal(t, "book.epub", r.Header.Get("X-Bz-File-Name"))
		require.Equal(t, hex.EncodeToString(sum[:]), r.Header.Get("X-Bz-Content-Sha1"))
		require.Equal(t, "application/epub+zip", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, data, raw)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"fileId":   "file-1",
			"fileName": "book.epub",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	b := newBackblaze(storage.ProviderConfig{
		Kind:     storage.KindBackblaze,
		KeyID:    "key-id",
		AppKey:   "app-key",
		Bucket:   "bucket-id",
		Endpoint: srv.URL,
	}, srv.Client())

	res, err := b.Upload(context.Background(), "book.epub", data, "application/epub+zip")
	require.NoError(t, err)
	assert.Equal(t, "file-1:book.epub", res.StorageID)
	assert.Contains(t, res.LocatorURL, "fileId=file-1")
}

func TestBackblazeUploadAuthFailure(t *testing.T) {
	b := newTestBackblaze(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))

	_, err := b.Upload(context.Background(), "book.epub", []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorize account")
}

func TestBackblazeDownload(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"apiUrl":             srvURL,
			"downloadUrl":        srvURL,
			"authorizationToken": "session-token",
		})
	})
	mux.HandleFunc("/b2api/v2/b2_download_file_by_id", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session-token", r.Header.Get("Authorization"))
		require.Equal(t, "file-1", r.URL.Query().Get("fileId"))
		w.Header().Set("Content-Type", "application/epub+zip")
		_, _ = w.Write([]byte("epub bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	b := newBackblaze(storage.ProviderConfig{
		Kind:     storage.KindBackblaze,
		KeyID:    "key-id",
		AppKey:   "app-key",
		Bucket:   "bucket-id",
		Endpoint: srv.URL,
	}, srv.Client())

	obj, err := b.Download(context.Background(), "file-1:book.epub")
	require.NoError(t, err)
	assert.Equal(t, []byte("epub bytes"), obj.Data)
}

func TestBackblazeDelete(t *testing.T) {
	var srvURL string
	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"apiUrl":             srvURL,
			"downloadUrl":        srvURL,
			"authorizationToken": "session-token",
		})
	})
	mux.HandleFunc("/b2api/v2/b2_delete_file_version", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FileID   string `json:"fileId"`
			FileName string `json:"fileName"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "file-1", body.FileID)
		require.Equal(t, "book.epub", body.FileName)
		deleted = true
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	b := newBackblaze(storage.ProviderConfig{
		Kind:     storage.KindBackblaze,
		KeyID:    "key-id",
		AppKey:   "app-key",
		Bucket:   "bucket-id",
		Endpoint: srv.URL,
	}, srv.Client())

	require.NoError(t, b.Delete(context.Background(), "file-1:book.epub"))
	assert.True(t, deleted)
}

func TestSplitB2ID(t *testing.T) {
	fileID, fileName, err := splitB2ID("file-1:books/a:b.epub")
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)
	assert.Equal(t, "books/a:b.epub", fileName)

	_, _, err = splitB2ID("no-colon")
	require.Error(t, err)
}
