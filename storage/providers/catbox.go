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

const catboxBase = "https://catbox.moe/user/api.php"

// catbox stores files on Catbox. The API is a single form endpoint that
// answers with the public file URL; that URL doubles as the storage id
// because every later operation needs it.
type catbox struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newCatbox(cfg storage.ProviderConfig, client *http.Client) *catbox {
	return &catbox{cfg: cfg, client: client}
}

func (c *catbox) base() string {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint
	}
	return catboxBase
}

func (c *catbox) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	fields := map[string]string{"reqtype": "fileupload"}
	if c.cfg.UserHash != "" {
		fields["userhash"] = c.cfg.UserHash
	}
	body, formType, err := multipartBody(fields, "fileToUpload", key, data)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base(), body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: create request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	resp, err := c.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: %w", statusError(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: read response: %w", err)
	}
	fileURL := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(fileURL, "http") {
		return storage.UploadResult{}, fmt.Errorf("catbox upload: unexpected response %q", fileURL)
	}

	return storage.UploadResult{StorageID: fileURL, LocatorURL: fileURL}, nil
}

func (c *catbox) Download(ctx context.Context, storageID string) (storage.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, storageID, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("catbox download: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("catbox download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("catbox download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("catbox download: %w", err)
	}
	return obj, nil
}

func (c *catbox) Delete(ctx context.Context, storageID string) error {
	// Deletion wants the bare file name, not the full URL.
	name := storageID
	if i := strings.LastIndex(storageID, "/"); i >= 0 {
		name = storageID[i+1:]
	}
	form := url.Values{}
	form.Set("reqtype", "deletefiles")
	form.Set("userhash", c.cfg.UserHash)
	form.Set("files", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("catbox delete: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catbox delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catbox delete: %w", statusError(resp))
	}
	return nil
}
