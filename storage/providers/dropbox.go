package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/quireapp/quire/storage"
)

const (
	dropboxAPIBase     = "https://api.dropboxapi.com"
	dropboxContentBase = "https://content.dropboxapi.com"
)

// dropbox stores files through the Dropbox v2 content API. The storage id
// is the lowercased file path inside the account.
type dropbox struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newDropbox(cfg storage.ProviderConfig, client *http.Client) *dropbox {
	return &dropbox{cfg: cfg, client: client}
}

func (d *dropbox) apiBase() string {
	if d.cfg.Endpoint != "" {
		return d.cfg.Endpoint
	}
	return dropboxAPIBase
}

func (d *dropbox) contentBase() string {
	if d.cfg.Endpoint != "" {
		return d.cfg.Endpoint
	}
	return dropboxContentBase
}

func (d *dropbox) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	target := "/" + key
	if d.cfg.Folder != "" {
		target = "/" + path.Join(strings.Trim(d.cfg.Folder, "/"), key)
	}

	arg, err := json.Marshal(map[string]any{
		"path":       target,
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentBase()+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: %w", statusError(resp))
	}

	var meta struct {
		PathLower string `json:"path_lower"`
		ID        string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: parse response: %w", err)
	}
	if meta.PathLower == "" {
		return storage.UploadResult{}, fmt.Errorf("dropbox upload: response missing path")
	}

	return storage.UploadResult{StorageID: meta.PathLower}, nil
}

func (d *dropbox) Download(ctx context.Context, storageID string) (storage.Object, error) {
	arg, err := json.Marshal(map[string]string{"path": storageID})
	if err != nil {
		return storage.Object{}, fmt.Errorf("dropbox download: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentBase()+"/2/files/download", http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("dropbox download: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := d.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("dropbox download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Dropbox reports a missing path as 409 with a structured error.
		if resp.StatusCode == http.StatusConflict {
			return storage.Object{}, fmt.Errorf("dropbox download: %w", storage.ErrBlobNotFound)
		}
		return storage.Object{}, fmt.Errorf("dropbox download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("dropbox download: %w", err)
	}
	return obj, nil
}

func (d *dropbox) Delete(ctx context.Context, storageID string) error {
	body, err := json.Marshal(map[string]string{"path": storageID})
	if err != nil {
		return fmt.Errorf("dropbox delete: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase()+"/2/files/delete_v2", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dropbox delete: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("dropbox delete: %w", storage.ErrBlobNotFound)
		}
		return fmt.Errorf("dropbox delete: %w", statusError(resp))
	}
	return nil
}
