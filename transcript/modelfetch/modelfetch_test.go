package modelfetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure_PresentFileIsNotDownloaded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))

	p := &Provisioner{Sources: NewSources("http://127.0.0.1:1/never", "")}
	downloaded, err := p.Ensure(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, downloaded)
}

func TestEnsure_FallsBackToSecondSource(t *testing.T) {
	t.Parallel()

	var primaryHits, fallbackHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/primary":
			primaryHits++
			http.Error(w, "quota exceeded", http.StatusForbidden)
		case "/fallback":
			fallbackHits++
			_, _ = w.Write([]byte("gguf-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", "model.gguf")
	var progress bytes.Buffer
	p := &Provisioner{
		Client:   srv.Client(),
		Sources:  NewSources(srv.URL+"/primary", srv.URL+"/fallback"),
		Progress: &progress,
	}
	downloaded, err := p.Ensure(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, downloaded)
	assert.Equal(t, 1, primaryHits)
	assert.Equal(t, 1, fallbackHits)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gguf-bytes", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestEnsure_AllSourcesFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.gguf")
	p := &Provisioner{Client: srv.Client(), Sources: NewSources(srv.URL+"/a", srv.URL+"/b")}
	downloaded, err := p.Ensure(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "empty response body")
	assert.False(t, downloaded)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsure_NoSources(t *testing.T) {
	t.Parallel()

	_, err := (&Provisioner{}).Ensure(context.Background(), filepath.Join(t.TempDir(), "m.gguf"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewSources(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewSources(" ", ""))
	got := NewSources("http://a", "http://b")
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[0].Name)
	assert.Equal(t, "http://b", got[1].URL)
}
