package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ObjectStore define la interfaz hacia el almacenamiento de objetos para
// adjuntos. Upload devuelve la URL publica del objeto.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// HTTPObjectStore sube objetos con PUT directo al bucket.
type HTTPObjectStore struct {
	bucketURL string
	token     string
	client    *http.Client
}

func NewHTTPObjectStore(bucketURL, token string) *HTTPObjectStore {
	return &HTTPObjectStore{
		bucketURL: strings.TrimRight(bucketURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *HTTPObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.bucketURL == "" {
		return "", errors.New("object store not configured")
	}

	objectURL := s.bucketURL + "/" + strings.TrimLeft(key, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, objectURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upload failed: status=%d", resp.StatusCode)
	}

	return objectURL, nil
}

type disabledStore struct{}

// NewDisabledStore devuelve un ObjectStore que rechaza toda subida.
func NewDisabledStore() ObjectStore {
	return disabledStore{}
}

func (disabledStore) Upload(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("object store not configured")
}
