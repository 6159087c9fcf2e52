package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fieldbench/fieldbench/internal/models"
)

// subdirFor maps a file kind to its directory in the published store. The
// store groups files by media family, not by task.
func subdirFor(kind models.FileKind) string {
	switch kind {
	case models.FileKindVideo:
		return "movie"
	case models.FileKindImage:
		return "image"
	default:
		return "document"
	}
}

// HTTPSource fetches files from an HTTP store using bearer auth.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSource creates an HTTP source rooted at baseURL.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

var _ Source = (*HTTPSource)(nil)

// Validate checks the base URL parses and a token is present.
func (s *HTTPSource) Validate() error {
	u, err := url.Parse(s.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("dataset: invalid base URL %q", s.baseURL)
	}
	if s.token == "" {
		return errors.New("dataset: bearer token is empty, set the configured token env var")
	}
	return nil
}

// Fetch downloads one file from the store.
func (s *HTTPSource) Fetch(ctx context.Context, name string, kind models.FileKind) (Payload, error) {
	u, err := url.JoinPath(s.baseURL, subdirFor(kind), name)
	if err != nil {
		return Payload{}, fmt.Errorf("dataset: building URL for %s: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("dataset: fetching %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Payload{}, fmt.Errorf("%w: %s (%s)", ErrNotAuthorized, name, resp.Status)
	case http.StatusNotFound:
		return Payload{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return Payload{}, fmt.Errorf("dataset: fetching %s: unexpected status %s", name, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("dataset: reading %s: %w", name, err)
	}
	return Payload{
		Name:  name,
		MIME:  resp.Header.Get("Content-Type"),
		Bytes: data,
	}, nil
}
