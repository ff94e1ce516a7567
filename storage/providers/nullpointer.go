package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quireapp/quire/storage"
)

const nullPointerBase = "https://0x0.st"

// nullPointer stores files on a 0x0.st style paste host. The upload
// response body is the file URL and the X-Token header is the management
// token, packed into the storage id as "<url>|<token>".
type nullPointer struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newNullPointer(cfg storage.ProviderConfig, client *http.Client) *nullPointer {
	return &nullPointer{cfg: cfg, client: client}
}

func (n *nullPointer) base() string {
	if n.cfg.Endpoint != "" {
		return n.cfg.Endpoint
	}
	return nullPointerBase
}

func (n *nullPointer) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	body, formType, err := multipartBody(nil, "file", key, data)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.base(), body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: create request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	resp, err := n.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusCreated) {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: %w", statusError(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: read response: %w", err)
	}
	fileURL := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(fileURL, "http") {
		return storage.UploadResult{}, fmt.Errorf("nullpointer upload: unexpected response %q", fileURL)
	}

	token := resp.Header.Get("X-Token")
	return storage.UploadResult{
		StorageID:  fileURL + "|" + token,
		LocatorURL: fileURL,
	}, nil
}

func (n *nullPointer) Download(ctx context.Context, storageID string) (storage.Object, error) {
	fileURL, _, _ := strings.Cut(storageID, "|")
	if fileURL == "" {
		return storage.Object{}, fmt.Errorf("nullpointer download: malformed storage id %q", storageID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("nullpointer download: create request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("nullpointer download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("nullpointer download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("nullpointer download: %w", err)
	}
	return obj, nil
}

func (n *nullPointer) Delete(ctx context.Context, storageID string) error {
	fileURL, token, _ := strings.Cut(storageID, "|")
	if fileURL == "" {
		return fmt.Errorf("nullpointer delete: malformed storage id %q", storageID)
	}
	if token == "" {
		return fmt.Errorf("nullpointer delete: %w: no management token recorded", storage.ErrNotSupported)
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("delete", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fileURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("nullpointer delete: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("nullpointer delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusNoContent) {
		return fmt.Errorf("nullpointer delete: %w", statusError(resp))
	}
	return nil
}
