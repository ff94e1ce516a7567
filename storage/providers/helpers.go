package providers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/quireapp/quire/storage"
)

// maxErrorBody caps how much of a failed response is kept for the error
// message.
const maxErrorBody = 512

// statusError builds an error from a non-success response, keeping a
// snippet of the body for logs. 404s map to ErrBlobNotFound so callers
// can errors.Is them.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	snippet := strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusNotFound {
		if snippet == "" {
			return fmt.Errorf("%w (status 404)", storage.ErrBlobNotFound)
		}
		return fmt.Errorf("%w (status 404): %s", storage.ErrBlobNotFound, snippet)
	}
	if snippet == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
}

// okStatus reports whether code is one of want.
func okStatus(code int, want ...int) bool {
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}

// multipartBody builds a multipart form with fields and one file part.
// Returns the body and the content type including the boundary.
func multipartBody(fields map[string]string, filePart, fileName string, data []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	part, err := w.CreateFormFile(filePart, fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}

// readObject drains a success response into a storage.Object, using the
// response content type with an octet-stream fallback.
func readObject(resp *http.Response) (storage.Object, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.Object{}, fmt.Errorf("read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return storage.Object{Data: data, ContentType: contentType}, nil
}
