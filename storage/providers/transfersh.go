package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quireapp/quire/storage"
)

const transferShBase = "https://transfer.sh"

// transferSh stores files on a transfer.sh instance. The upload response
// body is the download URL and the X-Url-Delete header carries the
// deletion URL, so the storage id packs both as
// "<downloadURL>|<deleteURL>".
type transferSh struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newTransferSh(cfg storage.ProviderConfig, client *http.Client) *transferSh {
	return &transferSh{cfg: cfg, client: client}
}

func (t *transferSh) base() string {
	if t.cfg.Endpoint != "" {
		return t.cfg.Endpoint
	}
	return transferShBase
}

func (t *transferSh) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.base()+"/"+url.PathEscape(key), bytes.NewReader(data))
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("transfersh upload: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// Keep the file around instead of the single-download default.
	req.Header.Set("Max-Downloads", "-1")

	resp, err := t.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("transfersh upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("transfersh upload: %w", statusError(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("transfersh upload: read response: %w", err)
	}
	downloadURL := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(downloadURL, "http") {
		return storage.UploadResult{}, fmt.Errorf("transfersh upload: unexpected response %q", downloadURL)
	}

	deleteURL := resp.Header.Get("X-Url-Delete")
	return storage.UploadResult{
		StorageID:  downloadURL + "|" + deleteURL,
		LocatorURL: downloadURL,
	}, nil
}

func (t *transferSh) Download(ctx context.Context, storageID string) (storage.Object, error) {
	downloadURL, _ := splitTransferID(storageID)
	if downloadURL == "" {
		return storage.Object{}, fmt.Errorf("transfersh download: malformed storage id %q", storageID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("transfersh download: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("transfersh download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("transfersh download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("transfersh download: %w", err)
	}
	return obj, nil
}

func (t *transferSh) Delete(ctx context.Context, storageID string) error {
	_, deleteURL := splitTransferID(storageID)
	if deleteURL == "" {
		return fmt.Errorf("transfersh delete: %w: no deletion url recorded", storage.ErrNotSupported)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("transfersh delete: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfersh delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusNoContent) {
		return fmt.Errorf("transfersh delete: %w", statusError(resp))
	}
	return nil
}

func splitTransferID(storageID string) (downloadURL, deleteURL string) {
	downloadURL, deleteURL, _ = strings.Cut(storageID, "|")
	return downloadURL, deleteURL
}
