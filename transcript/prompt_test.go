package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildPrompt_ReplacesEveryPlaceholderLiterally(t *testing.T) {
	t.Parallel()

	got, err := BuildPrompt("A {page_text} B {page_text}", "{page_text}", `x "$1" {y}`)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if want := `A x "$1" {y} B x "$1" {y}`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := BuildPrompt("  ", "{page_text}", "x"); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("err=%v, want ErrEmptyTemplate", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.txt")

	got, err := LoadTemplate(missing, "{chunk_text}", "default {chunk_text}", false)
	if err != nil || got != "default {chunk_text}" {
		t.Fatalf("lenient missing: got %q err=%v", got, err)
	}
	if _, err := LoadTemplate(missing, "{chunk_text}", "default {chunk_text}", true); err == nil {
		t.Fatalf("strict missing: expected error")
	}
	if _, err := LoadTemplate("", "{chunk_text}", "default {chunk_text}", true); err == nil {
		t.Fatalf("strict without path: expected error")
	}

	custom := filepath.Join(dir, "custom.txt")
	if err := os.WriteFile(custom, []byte("custom {chunk_text}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := LoadTemplate(custom, "{chunk_text}", "", true); err != nil || got != "custom {chunk_text}" {
		t.Fatalf("custom: got %q err=%v", got, err)
	}

	noPlaceholder := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(noPlaceholder, []byte("no slot here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTemplate(noPlaceholder, "{chunk_text}", "", false); err == nil {
		t.Fatalf("expected error for template without placeholder")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTemplate(empty, "{chunk_text}", "", false); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("empty: err=%v, want ErrEmptyTemplate", err)
	}
}
