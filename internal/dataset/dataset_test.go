package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/models"
)

func TestCache_RoundTrip(t *testing.T) {
	cache := NewCache(t.TempDir())
	payload := []byte("frame data, definitely not compressible text")

	_, ok := cache.Get("line.mp4")
	assert.False(t, ok, "miss before first put")

	require.NoError(t, cache.Put("line.mp4", payload))

	got, ok := cache.Get("line.mp4")
	require.True(t, ok)
	assert.Equal(t, payload, got)

	// Different names do not collide.
	_, ok = cache.Get("other.mp4")
	assert.False(t, ok)
}

func TestCache_DisabledDir(t *testing.T) {
	cache := NewCache("")

	require.NoError(t, cache.Put("a.txt", []byte("x")))
	_, ok := cache.Get("a.txt")
	assert.False(t, ok)
}

func TestSubdirFor(t *testing.T) {
	assert.Equal(t, "movie", subdirFor(models.FileKindVideo))
	assert.Equal(t, "image", subdirFor(models.FileKindImage))
	assert.Equal(t, "document", subdirFor(models.FileKindDocument))
	assert.Equal(t, "document", subdirFor(models.FileKindText))
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sekret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/movie/line.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4 bytes")) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "sekret")
	require.NoError(t, src.Validate())

	p, err := src.Fetch(context.Background(), "line.mp4", models.FileKindVideo)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", p.MIME)
	assert.Equal(t, []byte("mp4 bytes"), p.Bytes)

	_, err = src.Fetch(context.Background(), "missing.pdf", models.FileKindDocument)
	assert.ErrorIs(t, err, ErrNotFound)

	unauth := NewHTTPSource(srv.URL, "wrong")
	_, err = unauth.Fetch(context.Background(), "line.mp4", models.FileKindVideo)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestHTTPSource_Validate(t *testing.T) {
	assert.Error(t, NewHTTPSource("not a url", "tok").Validate())
	assert.Error(t, NewHTTPSource("https://example.com/data", "").Validate())
	assert.NoError(t, NewHTTPSource("https://example.com/data", "tok").Validate())
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.DatasetConfig{})
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewSource(config.DatasetConfig{Kind: "http", BaseURL: "https://example.com"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	_, err = NewSource(config.DatasetConfig{Kind: "carrier-pigeon"})
	require.Error(t, err)
}

type mapSource struct {
	files   map[string][]byte
	fetches int
}

func (m *mapSource) Validate() error { return nil }

func (m *mapSource) Fetch(_ context.Context, name string, _ models.FileKind) (Payload, error) {
	m.fetches++
	data, ok := m.files[name]
	if !ok {
		return Payload{}, ErrNotFound
	}
	return Payload{Name: name, Bytes: data}, nil
}

func TestAttach(t *testing.T) {
	src := &mapSource{files: map[string][]byte{
		"floor.png": []byte("\x89PNG\r\n\x1a\n rest of image"),
	}}
	cache := NewCache(t.TempDir())
	task := &models.Task{
		ID: "fb.1.1.0001",
		Inputs: []models.InputFile{
			{Kind: models.FileKindImage, Name: "floor.png"},
			{Kind: models.FileKindText, Name: "notes.txt", Payload: []byte("inline text")},
		},
	}

	require.NoError(t, Attach(context.Background(), src, cache, task))

	assert.NotEmpty(t, task.Inputs[0].Payload)
	assert.Contains(t, task.Inputs[0].MIME, "image/png", "MIME sniffed from payload")
	assert.Equal(t, []byte("inline text"), task.Inputs[1].Payload, "inline payloads are kept")
	assert.Equal(t, 1, src.fetches, "inline inputs never hit the source")

	// Second attach of the same file is served from the cache.
	task2 := &models.Task{
		ID:     "fb.1.1.0002",
		Inputs: []models.InputFile{{Kind: models.FileKindImage, Name: "floor.png"}},
	}
	require.NoError(t, Attach(context.Background(), src, cache, task2))
	assert.Equal(t, 1, src.fetches)
	assert.Equal(t, task.Inputs[0].Payload, task2.Inputs[0].Payload)
}

func TestAttach_NoSourceForMissingPayload(t *testing.T) {
	task := &models.Task{
		ID:     "fb.1.1.0001",
		Inputs: []models.InputFile{{Kind: models.FileKindVideo, Name: "line.mp4"}},
	}

	err := Attach(context.Background(), nil, nil, task)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "line.mp4"))
}

func TestAttach_FetchFailure(t *testing.T) {
	src := &mapSource{files: map[string][]byte{}}
	task := &models.Task{
		ID:     "fb.1.1.0001",
		Inputs: []models.InputFile{{Kind: models.FileKindVideo, Name: "gone.mp4"}},
	}

	err := Attach(context.Background(), src, nil, task)
	assert.ErrorIs(t, err, ErrNotFound)
}
