package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/quireapp/quire/storage"
)

const pixeldrainBase = "https://pixeldrain.com"

// pixeldrain stores files on Pixeldrain. The API is a plain
// PUT/GET/DELETE on /api/file with the API key as basic-auth password;
// the storage id is the file id.
type pixeldrain struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newPixeldrain(cfg storage.ProviderConfig, client *http.Client) *pixeldrain {
	return &pixeldrain{cfg: cfg, client: client}
}

func (p *pixeldrain) base() string {
	if p.cfg.Endpoint != "" {
		return p.cfg.Endpoint
	}
	return pixeldrainBase
}

func (p *pixeldrain) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.base()+"/api/file/"+url.PathEscape(key), bytes.NewReader(data))
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("pixeldrain upload: create request: %w", err)
	}
	req.SetBasicAuth("", p.cfg.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("pixeldrain upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusCreated) {
		return storage.UploadResult{}, fmt.Errorf("pixeldrain upload: %w", statusError(resp))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.UploadResult{}, fmt.Errorf("pixeldrain upload: parse response: %w", err)
	}
	if out.ID == "" {
		return storage.UploadResult{}, fmt.Errorf("pixeldrain upload: response missing id")
	}

	return storage.UploadResult{
		StorageID:  out.ID,
		LocatorURL: p.base() + "/u/" + out.ID,
	}, nil
}

func (p *pixeldrain) Download(ctx context.Context, storageID string) (storage.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base()+"/api/file/"+url.PathEscape(storageID), http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("pixeldrain download: create request: %w", err)
	}
	req.SetBasicAuth("", p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("pixeldrain download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("pixeldrain download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("pixeldrain download: %w", err)
	}
	return obj, nil
}

func (p *pixeldrain) Delete(ctx context.Context, storageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.base()+"/api/file/"+url.PathEscape(storageID), http.NoBody)
	if err != nil {
		return fmt.Errorf("pixeldrain delete: create request: %w", err)
	}
	req.SetBasicAuth("", p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pixeldrain delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusNoContent) {
		return fmt.Errorf("pixeldrain delete: %w", statusError(resp))
	}
	return nil
}
