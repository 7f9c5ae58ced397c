package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
)

// IndexRecord is one row of the run index (<out>.index.jsonl).
type IndexRecord struct {
	RunID     string   `json:"run_id"`
	Key       string   `json:"key"`
	Pages     []string `json:"pages"`
	Status    string   `json:"status"`
	Records   int      `json:"records"`
	Speakers  []string `json:"speakers,omitempty"`
	Error     string   `json:"error,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

const (
	IndexStatusOK     = "ok"
	IndexStatusFailed = "failed"
)

// BuildIndexRecord creates a stable index row for a recorded entry.
func BuildIndexRecord(runID string, e Entry) IndexRecord {
	row := IndexRecord{
		RunID:     runID,
		Key:       e.Key,
		Pages:     e.Pages,
		Status:    IndexStatusOK,
		Records:   len(e.Records),
		ElapsedMS: e.Elapsed.Milliseconds(),
	}
	if e.Failed {
		row.Status = IndexStatusFailed
		row.Error = e.Err
		return row
	}
	var speakers []string
	for _, r := range e.Records {
		speakers = append(speakers, r.Speakers()...)
	}
	row.Speakers = dedupeStrings(speakers)
	return row
}

// WriteIndex writes one newline-terminated JSON line per recorded entry, replacing path
// atomically. A run with no entries leaves an empty file.
func WriteIndex(path string, state *RunState) error {
	if path == "" {
		return errors.New("WriteIndex: path is empty")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range state.Entries {
		if err := enc.Encode(BuildIndexRecord(state.RunID, e)); err != nil {
			return fmt.Errorf("WriteIndex: encode %s: %w", e.Key, err)
		}
	}
	if err := fileutils.WriteBytesAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("WriteIndex: write: %w", err)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
