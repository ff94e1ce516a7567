package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire/storage"
)

func newTestDropbox(t *testing.T, folder string, handler http.Handler) *dropbox {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newDropbox(storage.ProviderConfig{
		Kind:     storage.KindDropbox,
		Token:    "secret",
		Folder:   folder,
		Endpoint: srv.URL,
	}, srv.Client())
}

func TestDropboxUpload(t *testing.T) {
	d := newTestDropbox(t, "library", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/files/upload", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var arg struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		require.Equal(t, "/library/book.epub", arg.Path)
		require.Equal(t, "overwrite", arg.Mode)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "epub bytes", string(raw))

		_, _ = w.Write([]byte(`{"path_lower":"/library/book.epub","id":"id:xyz"}`))
	}))

	res, err := d.Upload(context.Background(), "book.epub", []byte("epub bytes"), "application/epub+zip")
	require.NoError(t, err)
	assert.Equal(t, "/library/book.epub", res.StorageID)
}

func TestDropboxUploadServerError(t *testing.T) {
	d := newTestDropbox(t, "", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "insufficient_space", http.StatusInternalServerError)
	}))

	_, err := d.Upload(context.Background(), "book.epub", []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient_space")
}

func TestDropboxDownload(t *testing.T) {
	d := newTestDropbox(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/files/download", r.URL.Path)

		var arg struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		require.Equal(t, "/book.epub", arg.Path)

		w.Header().Set("Content-Type", "application/epub+zip")
		_, _ = w.Write([]byte("epub bytes"))
	}))

	obj, err := d.Download(context.Background(), "/book.epub")
	require.NoError(t, err)
	assert.Equal(t, []byte("epub bytes"), obj.Data)
	assert.Equal(t, "application/epub+zip", obj.ContentType)
}

func TestDropboxDownloadMissingPath(t *testing.T) {
	d := newTestDropbox(t, "", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error_summary":"path/not_found/"}`))
	}))

	_, err := d.Download(context.Background(), "/gone.epub")
	require.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestDropboxDelete(t *testing.T) {
	d := newTestDropbox(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/files/delete_v2", r.URL.Path)

		var body struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "/book.epub", body.Path)

		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, d.Delete(context.Background(), "/book.epub"))
}
