package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quireapp/quire/storage"
)

const gofileAPIBase = "https://api.gofile.io"

// gofile stores files on Gofile. Uploads are routed through a
// dynamically assigned store server; the storage id is the content id.
type gofile struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newGofile(cfg storage.ProviderConfig, client *http.Client) *gofile {
	return &gofile{cfg: cfg, client: client}
}

func (g *gofile) apiBase() string {
	if g.cfg.Endpoint != "" {
		return g.cfg.Endpoint
	}
	return gofileAPIBase
}

// uploadBase resolves the store server for this upload. With an endpoint
// override the discovery step is skipped and everything talks to the
// override.
func (g *gofile) uploadBase(ctx context.Context) (string, error) {
	if g.cfg.Endpoint != "" {
		return g.cfg.Endpoint, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase()+"/servers", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pick server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pick server: %w", statusError(resp))
	}

	var out struct {
		Data struct {
			Servers []struct {
				Name string `json:"name"`
			} `json:"servers"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pick server: parse response: %w", err)
	}
	if len(out.Data.Servers) == 0 {
		return "", fmt.Errorf("pick server: no servers available")
	}

	return "https://" + out.Data.Servers[0].Name + ".gofile.io", nil
}

func (g *gofile) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	base, err := g.uploadBase(ctx)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: %w", err)
	}

	fields := map[string]string{}
	if g.cfg.Folder != "" {
		fields["folderId"] = g.cfg.Folder
	}
	body, formType, err := multipartBody(fields, "file", key, data)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/contents/uploadfile", body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Content-Type", formType)

	resp, err := g.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: %w", statusError(resp))
	}

	var out struct {
		Status string `json:"status"`
		Data   struct {
			ID           string `json:"id"`
			DownloadPage string `json:"downloadPage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: parse response: %w", err)
	}
	if out.Status != "ok" || out.Data.ID == "" {
		return storage.UploadResult{}, fmt.Errorf("gofile upload: server reported status %q", out.Status)
	}

	return storage.UploadResult{
		StorageID:  out.Data.ID,
		LocatorURL: out.Data.DownloadPage,
	}, nil
}

func (g *gofile) Download(ctx context.Context, storageID string) (storage.Object, error) {
	// Resolve the direct link for the content id, then fetch it.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase()+"/contents/"+storageID, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)

	resp, err := g.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("gofile download: %w", statusError(resp))
	}

	var out struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: parse response: %w", err)
	}
	if out.Data.Link == "" {
		return storage.Object{}, fmt.Errorf("gofile download: %w", storage.ErrBlobNotFound)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, out.Data.Link, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: create request: %w", err)
	}
	fileReq.Header.Set("Authorization", "Bearer "+g.cfg.Token)

	fileResp, err := g.client.Do(fileReq)
	if err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: %w", err)
	}
	defer func() { _ = fileResp.Body.Close() }()

	if fileResp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("gofile download: %w", statusError(fileResp))
	}

	obj, err := readObject(fileResp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("gofile download: %w", err)
	}
	return obj, nil
}

func (g *gofile) Delete(ctx context.Context, storageID string) error {
	body, err := json.Marshal(map[string]string{"contentsId": storageID})
	if err != nil {
		return fmt.Errorf("gofile delete: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.apiBase()+"/contents", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gofile delete: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gofile delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusOK, http.StatusNoContent) {
		return fmt.Errorf("gofile delete: %w", statusError(resp))
	}
	return nil
}
