package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/quireapp/quire/storage"
)

const githubAPIBase = "https://api.github.com"

// repoSizeCeilingKB is the point at which a repository counts as full
// and uploads rotate to the next one. GitHub starts degrading repos
// well before the hard quota, so the ceiling stays under a gigabyte.
const repoSizeCeilingKB = 900 * 1024

// github stores files as committed blobs through the contents API. It is
// the fallback of last resort: repositories fill up, so uploads rotate
// across "<repo>", "<repo>-2", "<repo>-3" and the storage id records
// which one took the file as "<repo>:<key>".
type github struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newGitHub(cfg storage.ProviderConfig, client *http.Client) *github {
	return &github{cfg: cfg, client: client}
}

func (g *github) base() string {
	if g.cfg.Endpoint != "" {
		return g.cfg.Endpoint
	}
	return githubAPIBase
}

func (g *github) branch() string {
	if g.cfg.Branch != "" {
		return g.cfg.Branch
	}
	return "main"
}

func (g *github) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.base()+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

func (g *github) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	res, err := putWithRotation(ctx, g, key, data, contentType)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("github upload: %w", err)
	}
	return res, nil
}

func (g *github) containerName(n int) string {
	return containerName(g.cfg.Repo, n)
}

// repoInfo reports whether the repository exists and its current size in
// kilobytes.
func (g *github) repoInfo(ctx context.Context, repo string) (exists bool, sizeKB int64, err error) {
	req, err := g.newRequest(ctx, http.MethodGet, "/repos/"+g.cfg.Owner+"/"+repo, nil)
	if err != nil {
		return false, 0, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("get repo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, 0, fmt.Errorf("get repo: %w", statusError(resp))
	}

	var out struct {
		Size int64 `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, 0, fmt.Errorf("get repo: parse response: %w", err)
	}
	return true, out.Size, nil
}

func (g *github) ensureContainer(ctx context.Context, repo string) error {
	exists, _, err := g.repoInfo(ctx, repo)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"name":      repo,
		"private":   true,
		"auto_init": true,
	})
	if err != nil {
		return fmt.Errorf("create repo: encode request: %w", err)
	}

	req, err := g.newRequest(ctx, http.MethodPost, "/user/repos", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("create repo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !okStatus(resp.StatusCode, http.StatusCreated, http.StatusOK) {
		return fmt.Errorf("create repo %s: %w", repo, statusError(resp))
	}
	return nil
}

func (g *github) put(ctx context.Context, repo, key string, data []byte, contentType string) (storage.UploadResult, error) {
	exists, sizeKB, err := g.repoInfo(ctx, repo)
	if err != nil {
		return storage.UploadResult{}, err
	}
	if exists && sizeKB >= repoSizeCeilingKB {
		return storage.UploadResult{}, fmt.Errorf("repo %s at %d KB: %w", repo, sizeKB, errContainerFull)
	}

	body, err := json.Marshal(map[string]string{
		"message": "add " + key,
		"content": base64.StdEncoding.EncodeToString(data),
		"branch":  g.branch(),
	})
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := g.newRequest(ctx, http.MethodPut, "/repos/"+g.cfg.Owner+"/"+repo+"/contents/"+key, body)
	if err != nil {
		return storage.UploadResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("put contents: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Quota pushback surfaces in several shapes depending on where the
	// limit tripped; all of them mean "move to the next repo".
	switch resp.StatusCode {
	case http.StatusRequestEntityTooLarge, http.StatusForbidden, http.StatusUnprocessableEntity:
		return storage.UploadResult{}, fmt.Errorf("repo %s rejected the blob (status %d): %w", repo, resp.StatusCode, errContainerFull)
	}
	if !okStatus(resp.StatusCode, http.StatusCreated, http.StatusOK) {
		return storage.UploadResult{}, fmt.Errorf("put contents: %w", statusError(resp))
	}

	var out struct {
		Content struct {
			HTMLURL string `json:"html_url"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.UploadResult{}, fmt.Errorf("put contents: parse response: %w", err)
	}

	return storage.UploadResult{
		StorageID:  repo + ":" + key,
		LocatorURL: out.Content.HTMLURL,
	}, nil
}

func (g *github) Download(ctx context.Context, storageID string) (storage.Object, error) {
	repo, key, err := splitGitHubID(storageID)
	if err != nil {
		return storage.Object{}, fmt.Errorf("github download: %w", err)
	}

	req, err := g.newRequest(ctx, http.MethodGet, "/repos/"+g.cfg.Owner+"/"+repo+"/contents/"+key+"?ref="+g.branch(), nil)
	if err != nil {
		return storage.Object{}, fmt.Errorf("github download: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw")

	resp, err := g.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("github download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("github download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("github download: %w", err)
	}
	return obj, nil
}

func (g *github) Delete(ctx context.Context, storageID string) error {
	repo, key, err := splitGitHubID(storageID)
	if err != nil {
		return fmt.Errorf("github delete: %w", err)
	}

	// The contents API needs the blob sha to delete.
	req, err := g.newRequest(ctx, http.MethodGet, "/repos/"+g.cfg.Owner+"/"+repo+"/contents/"+key+"?ref="+g.branch(), nil)
	if err != nil {
		return fmt.Errorf("github delete: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("github delete: get sha: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github delete: get sha: %w", statusError(resp))
	}

	var meta struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return fmt.Errorf("github delete: parse sha: %w", err)
	}
	if meta.SHA == "" {
		return fmt.Errorf("github delete: %w", storage.ErrBlobNotFound)
	}

	body, err := json.Marshal(map[string]string{
		"message": "remove " + key,
		"sha":     meta.SHA,
		"branch":  g.branch(),
	})
	if err != nil {
		return fmt.Errorf("github delete: encode request: %w", err)
	}

	delReq, err := g.newRequest(ctx, http.MethodDelete, "/repos/"+g.cfg.Owner+"/"+repo+"/contents/"+key, body)
	if err != nil {
		return fmt.Errorf("github delete: %w", err)
	}
	delReq.Header.Set("Content-Type", "application/json")

	delResp, err := g.client.Do(delReq)
	if err != nil {
		return fmt.Errorf("github delete: %w", err)
	}
	defer func() { _ = delResp.Body.Close() }()

	if delResp.StatusCode != http.StatusOK {
		return fmt.Errorf("github delete: %w", statusError(delResp))
	}
	return nil
}

// splitGitHubID splits "<repo>:<key>". Repo names cannot contain a
// colon, so the first colon splits.
func splitGitHubID(storageID string) (repo, key string, err error) {
	repo, key, ok := strings.Cut(storageID, ":")
	if !ok || repo == "" || key == "" {
		return "", "", fmt.Errorf("malformed storage id %q", storageID)
	}
	return repo, key, nil
}
