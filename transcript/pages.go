package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoPages is returned when the input document holds no pages.
var ErrNoPages = errors.New("no pages in input")

// PageText is one page of source material keyed by an opaque page key (e.g. "page_3").
type PageText struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// LoadOptions controls how LoadPages reads the input document.
type LoadOptions struct {
	// MaxPages keeps only the first N pages in file order. 0 keeps all.
	MaxPages int
}

// LoadPages reads a JSON object mapping page keys to page texts, e.g.
//
//	{"page_1": "It was dark...", "page_2": "..."}
//
// Pages are returned in the order their keys appear in the file. The object is decoded
// token by token because encoding/json maps would lose that order.
func LoadPages(path string, opts LoadOptions) ([]PageText, error) {
	if path == "" {
		return nil, errors.New("LoadPages: path is empty")
	}
	if opts.MaxPages < 0 {
		return nil, errors.New("LoadPages: MaxPages must be >= 0")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadPages: open input: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("LoadPages: read first token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("LoadPages: expected JSON object of page texts, got %v", tok)
	}

	seen := make(map[string]struct{})
	var pages []PageText
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("LoadPages: read page key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("LoadPages: expected string key, got %T", keyTok)
		}

		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, fmt.Errorf("LoadPages: page %q: value must be a string: %w", key, err)
		}

		if opts.MaxPages > 0 && len(pages) >= opts.MaxPages {
			continue
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("LoadPages: duplicate page key %q", key)
		}
		seen[key] = struct{}{}
		pages = append(pages, PageText{Key: key, Text: text})
	}

	// Consume the closing '}'.
	if tok, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("LoadPages: read closing object token: %w", err)
	} else if d, ok := tok.(json.Delim); !ok || d != '}' {
		return nil, fmt.Errorf("LoadPages: expected closing '}', got %v", tok)
	}

	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

// SanitizePages replaces every page text with its sanitized form, in place.
func SanitizePages(pages []PageText) {
	for i := range pages {
		pages[i].Text = Sanitize(pages[i].Text)
	}
}
