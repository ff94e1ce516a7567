package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/quireapp/quire/storage"
)

const fileIOBase = "https://file.io"

// fileIO stores files on file.io. Files there are single-download by
// default, so uploads pin autoDelete off; the storage id is the key from
// the upload response.
type fileIO struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newFileIO(cfg storage.ProviderConfig, client *http.Client) *fileIO {
	return &fileIO{cfg: cfg, client: client}
}

func (f *fileIO) base() string {
	if f.cfg.Endpoint != "" {
		return f.cfg.Endpoint
	}
	return fileIOBase
}

func (f *fileIO) auth(req *http.Request) {
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}
}

func (f *fileIO) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	fields := map[string]string{"autoDelete": "false"}
	body, formType, err := multipartBody(fields, "file", key, data)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base()+"/", body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: create request: %w", err)
	}
	f.auth(req)
	req.Header.Set("Content-Type", formType)

	resp, err := f.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusCreated) {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: %w", statusError(resp))
	}

	var out struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
		Link    string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: parse response: %w", err)
	}
	if !out.Success || out.Key == "" {
		return storage.UploadResult{}, fmt.Errorf("fileio upload: server rejected the file")
	}

	link := out.Link
	if link == "" {
		link = f.base() + "/" + out.Key
	}
	return storage.UploadResult{StorageID: out.Key, LocatorURL: link}, nil
}

func (f *fileIO) Download(ctx context.Context, storageID string) (storage.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base()+"/"+url.PathEscape(storageID), http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("fileio download: create request: %w", err)
	}
	f.auth(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("fileio download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("fileio download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("fileio download: %w", err)
	}
	return obj, nil
}

func (f *fileIO) Delete(ctx context.Context, storageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, f.base()+"/"+url.PathEscape(storageID), http.NoBody)
	if err != nil {
		return fmt.Errorf("fileio delete: create request: %w", err)
	}
	f.auth(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fileio delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusNoContent) {
		return fmt.Errorf("fileio delete: %w", statusError(resp))
	}
	return nil
}
