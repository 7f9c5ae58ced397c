package transcript

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// JSONDocumentWriter rewrites the whole output document on every Flush, atomically.
//
// By default the document maps item key to its record, or to a list of records when the item
// produced line records or more than one record. Flat writes one ordered list of all records.
type JSONDocumentWriter struct {
	Path   string
	Pretty bool
	Flat   bool
}

func (w JSONDocumentWriter) Flush(state *RunState) error {
	if w.Path == "" {
		return errors.New("JSONDocumentWriter: path is empty")
	}
	var doc any
	if w.Flat {
		recs := state.Records()
		if recs == nil {
			recs = []Record{}
		}
		doc = recs
	} else {
		doc = BuildDocument(state)
	}
	if err := fileutils.WriteJSONFileAtomic(w.Path, doc, w.Pretty); err != nil {
		return fmt.Errorf("JSONDocumentWriter: %w", err)
	}
	return nil
}

// BuildDocument arranges the recorded entries as an ordered key -> value document.
func BuildDocument(state *RunState) *orderedmap.OrderedMap[string, any] {
	doc := orderedmap.New[string, any]()
	for _, e := range state.Entries {
		if len(e.Records) == 1 && e.Records[0].Kind != KindLine {
			doc.Set(e.Key, e.Records[0])
			continue
		}
		recs := e.Records
		if recs == nil {
			recs = []Record{}
		}
		doc.Set(e.Key, recs)
	}
	return doc
}

// TextAppendWriter appends one delimited block per entry and never rewrites earlier blocks.
// Entries already written by a previous Flush are skipped, so flushing after every item and
// again at the end writes each block once.
type TextAppendWriter struct {
	Path string
	// Now stamps block headers; defaults to time.Now.
	Now func() time.Time

	written int
}

func (w *TextAppendWriter) Flush(state *RunState) error {
	if w.Path == "" {
		return errors.New("TextAppendWriter: path is empty")
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	for w.written < len(state.Entries) {
		e := state.Entries[w.written]
		if err := fileutils.AppendFile(w.Path, []byte(RenderBlock(e, now())), 0o644); err != nil {
			return fmt.Errorf("TextAppendWriter: append %s: %w", e.Key, err)
		}
		w.written++
	}
	return nil
}

// Written reports how many entries this writer has appended.
func (w *TextAppendWriter) Written() int {
	return w.written
}

// RenderBlock formats one entry as
//
//	===== chunk_2 (pages page_4..page_7) @ 2026-01-02T15:04:05Z =====
//	<records, one per line>
//
// followed by a blank line.
func RenderBlock(e Entry, at time.Time) string {
	var b strings.Builder
	b.WriteString("===== ")
	b.WriteString(e.Key)
	switch len(e.Pages) {
	case 0:
	case 1:
		if e.Pages[0] != e.Key {
			fmt.Fprintf(&b, " (page %s)", e.Pages[0])
		}
	default:
		fmt.Fprintf(&b, " (pages %s..%s)", e.Pages[0], e.Pages[len(e.Pages)-1])
	}
	fmt.Fprintf(&b, " @ %s =====\n", at.UTC().Format(time.RFC3339))
	for _, r := range e.Records {
		b.WriteString(r.Render())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
