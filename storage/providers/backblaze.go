package providers

import (
	"bytes"
	"context"
	"crypto/sha1" //#nosec G505 -- B2 requires SHA-1 content checksums
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/quireapp/quire/storage"
)

const backblazeAuthBase = "https://api.backblazeb2.com"

// backblaze stores files in a B2 bucket. Every operation starts from
// b2_authorize_account; uploads then fetch a bucket-scoped upload URL and
// send the bytes with a SHA-1 content checksum, which is B2's integrity
// contract. The storage id is "<fileId>:<fileName>" because deletion
// needs both halves.
type backblaze struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newBackblaze(cfg storage.ProviderConfig, client *http.Client) *backblaze {
	return &backblaze{cfg: cfg, client: client}
}

type b2Session struct {
	APIURL      string `json:"apiUrl"`
	DownloadURL string `json:"downloadUrl"`
	Token       string `json:"authorizationToken"`
}

func (b *backblaze) authBase() string {
	if b.cfg.Endpoint != "" {
		return b.cfg.Endpoint
	}
	return backblazeAuthBase
}

func (b *backblaze) authorize(ctx context.Context) (b2Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.authBase()+"/b2api/v2/b2_authorize_account", http.NoBody)
	if err != nil {
		return b2Session{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(b.cfg.KeyID, b.cfg.AppKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return b2Session{}, fmt.Errorf("authorize account: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return b2Session{}, fmt.Errorf("authorize account: %w", statusError(resp))
	}

	var session b2Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return b2Session{}, fmt.Errorf("authorize account: parse response: %w", err)
	}
	return session, nil
}

func (b *backblaze) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	session, err := b.authorize(ctx)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: %w", err)
	}

	// Bucket-scoped upload URL.
	body, err := json.Marshal(map[string]string{"bucketId": b.cfg.Bucket})
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.APIURL+"/b2api/v2/b2_get_upload_url", bytes.NewReader(body))
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: create request: %w", err)
	}
	req.Header.Set("Authorization", session.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: get upload url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: get upload url: %w", statusError(resp))
	}

	var slot struct {
		UploadURL string `json:"uploadUrl"`
		Token     string `json:"authorizationToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: parse upload url: %w", err)
	}

	// Content checksum computed before the upload call.
	sum := sha1.Sum(data) //#nosec G401 -- B2 protocol requirement, not a security control
	if contentType == "" {
		contentType = "b2/x-auto"
	}

	upReq, err := http.NewRequestWithContext(ctx, http.MethodPost, slot.UploadURL, bytes.NewReader(data))
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: create request: %w", err)
	}
	upReq.Header.Set("Authorization", slot.Token)
	upReq.Header.Set("X-Bz-File-Name", url.PathEscape(key))
	upReq.Header.Set("Content-Type", contentType)
	upReq.Header.Set("X-Bz-Content-Sha1", hex.EncodeToString(sum[:]))

	upResp, err := b.client.Do(upReq)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: %w", err)
	}
	defer func() { _ = upResp.Body.Close() }()

	if upResp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: %w", statusError(upResp))
	}

	var file struct {
		FileID   string `json:"fileId"`
		FileName string `json:"fileName"`
	}
	if err := json.NewDecoder(upResp.Body).Decode(&file); err != nil {
		return storage.UploadResult{}, fmt.Errorf("backblaze upload: parse response: %w", err)
	}

	return storage.UploadResult{
		StorageID:  file.FileID + ":" + file.FileName,
		LocatorURL: session.DownloadURL + "/b2api/v2/b2_download_file_by_id?fileId=" + url.QueryEscape(file.FileID),
	}, nil
}

func (b *backblaze) Download(ctx context.Context, storageID string) (storage.Object, error) {
	fileID, _, err := splitB2ID(storageID)
	if err != nil {
		return storage.Object{}, fmt.Errorf("backblaze download: %w", err)
	}

	session, err := b.authorize(ctx)
	if err != nil {
		return storage.Object{}, fmt.Errorf("backblaze download: %w", err)
	}

	target := session.DownloadURL + "/b2api/v2/b2_download_file_by_id?fileId=" + url.QueryEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("backblaze download: create request: %w", err)
	}
	req.Header.Set("Authorization", session.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("backblaze download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("backblaze download: %w", statusError(resp))
	}

	obj, err := readObject(resp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("backblaze download: %w", err)
	}
	return obj, nil
}

func (b *backblaze) Delete(ctx context.Context, storageID string) error {
	fileID, fileName, err := splitB2ID(storageID)
	if err != nil {
		return fmt.Errorf("backblaze delete: %w", err)
	}

	session, err := b.authorize(ctx)
	if err != nil {
		return fmt.Errorf("backblaze delete: %w", err)
	}

	body, err := json.Marshal(map[string]string{"fileId": fileID, "fileName": fileName})
	if err != nil {
		return fmt.Errorf("backblaze delete: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.APIURL+"/b2api/v2/b2_delete_file_version", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backblaze delete: create request: %w", err)
	}
	req.Header.Set("Authorization", session.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("backblaze delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backblaze delete: %w", statusError(resp))
	}
	return nil
}

// splitB2ID splits "<fileId>:<fileName>". File ids never contain a colon;
// file names may, so only the first colon splits.
func splitB2ID(storageID string) (fileID, fileName string, err error) {
	fileID, fileName, ok := strings.Cut(storageID, ":")
	if !ok || fileID == "" || fileName == "" {
		return "", "", fmt.Errorf("malformed storage id %q", storageID)
	}
	return fileID, fileName, nil
}
