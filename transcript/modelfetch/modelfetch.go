// Package modelfetch makes sure a local model file exists before a run starts.
package modelfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

// ErrUnavailable means the model is not on disk and no source could provide it.
var ErrUnavailable = errors.New("model unavailable")

// Source is one place the model can be downloaded from.
type Source struct {
	Name string
	URL  string
}

// Provisioner downloads a model file on a miss, trying each source in order.
type Provisioner struct {
	Client  *http.Client
	Sources []Source
	// Progress receives a byte progress bar while downloading. nil disables it.
	Progress io.Writer
	Logger   logger.Logger
}

// NewSources builds the source list from a primary and an optional fallback URL.
func NewSources(primaryURL, fallbackURL string) []Source {
	var out []Source
	if u := strings.TrimSpace(primaryURL); u != "" {
		out = append(out, Source{Name: "primary", URL: u})
	}
	if u := strings.TrimSpace(fallbackURL); u != "" {
		out = append(out, Source{Name: "fallback", URL: u})
	}
	return out
}

// Ensure returns downloaded=false when path already holds a regular file. Otherwise it downloads
// the model from the first source that works. The file appears at path only once complete.
func (p *Provisioner) Ensure(ctx context.Context, path string) (downloaded bool, err error) {
	if strings.TrimSpace(path) == "" {
		return false, errors.New("modelfetch: path is empty")
	}
	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}
	if fileutils.FileExists(path) {
		log.Info(ctx, "model present: %s", path)
		return false, nil
	}
	if len(p.Sources) == 0 {
		return false, fmt.Errorf("%w: %s is missing and no download source is configured", ErrUnavailable, path)
	}

	var errs []error
	for _, src := range p.Sources {
		log.Info(ctx, "downloading model from %s source", src.Name)
		n, err := p.fetch(ctx, src, path)
		if err != nil {
			log.Warn(ctx, "model download from %s failed: %v", src.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		log.Info(ctx, "model saved to %s (%d bytes)", path, n)
		return true, nil
	}
	return false, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (p *Provisioner) fetch(ctx context.Context, src Source, path string) (int64, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp_model_*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	var dst io.Writer = tmp
	if p.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(color.CyanString("model (%s)", src.Name)),
			progressbar.OptionSetWriter(p.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowTotalBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.Progress) }),
		)
		defer bar.Close()
		dst = io.MultiWriter(tmp, bar)
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("copy body: %w", err)
	}
	if n == 0 {
		_ = tmp.Close()
		return 0, errors.New("empty response body")
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		_ = tmp.Close()
		return n, fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, fmt.Errorf("rename: %w", err)
	}
	return n, nil
}
