package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quireapp/quire/storage"
)

const telegramBase = "https://api.telegram.org"

// telegram stores files as documents sent to a chat through a bot. The
// storage id is "<messageID>:<fileID>": the message id is needed to
// delete the document, the file id to fetch it back.
type telegram struct {
	cfg    storage.ProviderConfig
	client *http.Client
}

func newTelegram(cfg storage.ProviderConfig, client *http.Client) *telegram {
	return &telegram{cfg: cfg, client: client}
}

func (t *telegram) base() string {
	if t.cfg.Endpoint != "" {
		return t.cfg.Endpoint
	}
	return telegramBase
}

func (t *telegram) botURL(method string) string {
	return t.base() + "/bot" + t.cfg.Token + "/" + method
}

func (t *telegram) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	fields := map[string]string{
		"chat_id":              t.cfg.ChatID,
		"disable_notification": "true",
	}
	body, formType, err := multipartBody(fields, "document", key, data)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.botURL("sendDocument"), body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: create request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	resp, err := t.client.Do(req)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: %w", statusError(resp))
	}

	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
			Document  struct {
				FileID string `json:"file_id"`
			} `json:"document"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: parse response: %w", err)
	}
	if !out.OK || out.Result.Document.FileID == "" {
		return storage.UploadResult{}, fmt.Errorf("telegram upload: server rejected the document")
	}

	return storage.UploadResult{
		StorageID: strconv.FormatInt(out.Result.MessageID, 10) + ":" + out.Result.Document.FileID,
	}, nil
}

func (t *telegram) Download(ctx context.Context, storageID string) (storage.Object, error) {
	_, fileID, err := splitTelegramID(storageID)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: %w", err)
	}

	// Resolve the file path for the file id, then fetch the bytes.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.botURL("getFile")+"?file_id="+url.QueryEscape(fileID), http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("telegram download: %w", statusError(resp))
	}

	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: parse response: %w", err)
	}
	if !out.OK || out.Result.FilePath == "" {
		return storage.Object{}, fmt.Errorf("telegram download: %w", storage.ErrBlobNotFound)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base()+"/file/bot"+t.cfg.Token+"/"+out.Result.FilePath, http.NoBody)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: create request: %w", err)
	}

	fileResp, err := t.client.Do(fileReq)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: %w", err)
	}
	defer func() { _ = fileResp.Body.Close() }()

	if fileResp.StatusCode != http.StatusOK {
		return storage.Object{}, fmt.Errorf("telegram download: %w", statusError(fileResp))
	}

	obj, err := readObject(fileResp)
	if err != nil {
		return storage.Object{}, fmt.Errorf("telegram download: %w", err)
	}
	return obj, nil
}

func (t *telegram) Delete(ctx context.Context, storageID string) error {
	messageID, _, err := splitTelegramID(storageID)
	if err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}

	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("message_id", messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.botURL("deleteMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram delete: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram delete: %w", statusError(resp))
	}
	return nil
}

// splitTelegramID splits "<messageID>:<fileID>". File ids never contain
// a colon in practice, but the message id certainly does not, so the
// first colon splits.
func splitTelegramID(storageID string) (messageID, fileID string, err error) {
	messageID, fileID, ok := strings.Cut(storageID, ":")
	if !ok || messageID == "" || fileID == "" {
		return "", "", fmt.Errorf("malformed storage id %q", storageID)
	}
	return messageID, fileID, nil
}
