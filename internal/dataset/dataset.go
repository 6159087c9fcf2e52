// Package dataset fetches task input files from the benchmark's published
// store and attaches them to tasks before dispatch. Two sources are
// supported, HTTP with bearer auth and Azure Blob Storage, both behind a
// local write-through cache.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/models"
)

// Sentinel errors for the failure modes callers branch on.
var (
	ErrNotFound      = errors.New("dataset: file not found")
	ErrNotAuthorized = errors.New("dataset: not authorized")
)

// Payload is one fetched input file.
type Payload struct {
	Name  string
	MIME  string
	Bytes []byte
}

// Source fetches input files by name. Implementations route the name to
// the store's layout themselves; callers never build URLs.
type Source interface {
	// Validate checks the source is usable (credentials present, endpoint
	// well formed) without performing a fetch.
	Validate() error

	// Fetch downloads one file. The kind decides where in the store the
	// file lives.
	Fetch(ctx context.Context, name string, kind models.FileKind) (Payload, error)
}

// NewSource builds the source selected by cfg. An empty kind returns nil,
// meaning tasks must carry inline payloads.
func NewSource(cfg config.DatasetConfig) (Source, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case "http":
		return NewHTTPSource(cfg.BaseURL, cfg.Token()), nil
	case "azure":
		return NewAzureSource(cfg.Account, cfg.Container)
	default:
		return nil, fmt.Errorf("dataset: unknown source kind %q", cfg.Kind)
	}
}

// Attach fills the payload of every input the task declares. Inputs that
// already carry bytes are left alone. A nil cache disables caching.
func Attach(ctx context.Context, src Source, cache *Cache, task *models.Task) error {
	for i := range task.Inputs {
		in := &task.Inputs[i]
		if len(in.Payload) > 0 {
			if in.MIME == "" {
				in.MIME = mimetype.Detect(in.Payload).String()
			}
			continue
		}
		if src == nil {
			return fmt.Errorf("task %s: input %s has no inline payload and no dataset source is configured", task.ID, in.Name)
		}

		if cache != nil {
			if data, ok := cache.Get(in.Name); ok {
				in.Payload = data
				in.MIME = mimetype.Detect(data).String()
				continue
			}
		}

		p, err := src.Fetch(ctx, in.Name, in.Kind)
		if err != nil {
			return fmt.Errorf("task %s: fetching input %s: %w", task.ID, in.Name, err)
		}
		if cache != nil {
			if err := cache.Put(in.Name, p.Bytes); err != nil {
				return fmt.Errorf("task %s: caching input %s: %w", task.ID, in.Name, err)
			}
		}

		in.Payload = p.Bytes
		in.MIME = p.MIME
		if in.MIME == "" {
			in.MIME = mimetype.Detect(p.Bytes).String()
		}
	}
	return nil
}
