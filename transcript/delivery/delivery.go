// Package delivery hands a finished artifact to its destinations. Delivery is best effort:
// failures are reported to the caller's logger and never fail the run.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

// ErrNotConfigured is returned by a deliverer that lacks the settings it needs.
var ErrNotConfigured = errors.New("delivery not configured")

// Deliverer sends or stores one artifact file.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, path string) error
}

// Result is the outcome of DeliverAll for one deliverer.
type Result struct {
	Name string
	Err  error
}

// DeliverAll runs every deliverer on path in order, logging failures instead of returning them.
// A deliverer that is not configured is skipped quietly.
func DeliverAll(ctx context.Context, log logger.Logger, path string, deliverers ...Deliverer) []Result {
	if log == nil {
		log = logger.Nop()
	}
	results := make([]Result, 0, len(deliverers))
	for _, d := range deliverers {
		if d == nil {
			continue
		}
		err := d.Deliver(ctx, path)
		results = append(results, Result{Name: d.Name(), Err: err})
		switch {
		case err == nil:
			log.Info(ctx, "delivered %s via %s", path, d.Name())
		case errors.Is(err, ErrNotConfigured):
			log.Debug(ctx, "skip %s: %v", d.Name(), err)
		default:
			log.Error(ctx, "deliver %s via %s: %v", path, d.Name(), err)
		}
	}
	return results
}

// Delivered counts successful results.
func Delivered(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// ArchiveDir copies the artifact into Dir under its own base name.
type ArchiveDir struct {
	Dir       string
	Overwrite bool
}

func (a ArchiveDir) Name() string { return "archive" }

func (a ArchiveDir) Deliver(ctx context.Context, path string) error {
	if a.Dir == "" {
		return fmt.Errorf("archive: %w: no directory", ErrNotConfigured)
	}
	dst := filepath.Join(a.Dir, filepath.Base(path))
	copied, err := fileutils.CopyFileIfExists(path, dst, a.Overwrite)
	if err != nil {
		return fmt.Errorf("archive: copy: %w", err)
	}
	if !copied {
		if !fileutils.FileExists(path) {
			return fmt.Errorf("archive: %s not found", path)
		}
		return fmt.Errorf("archive: %s already exists", dst)
	}
	return nil
}
