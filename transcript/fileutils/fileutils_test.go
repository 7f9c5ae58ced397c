package fileutils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "output.json")
	dst := filepath.Join(dir, "archive", "output.json")

	// Missing src: no-op.
	copied, err := CopyFileIfExists(src, dst, false)
	if err != nil {
		t.Fatalf("copy missing src: %v", err)
	}
	if copied {
		t.Fatalf("expected copied=false for missing src")
	}

	if err := os.WriteFile(src, []byte(`{"page_1":[]}`), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	copied, err = CopyFileIfExists(src, dst, false)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !copied {
		t.Fatalf("expected copied=true")
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(b) != `{"page_1":[]}` {
		t.Fatalf("dst=%q", string(b))
	}

	// Without overwrite, should not change dst.
	if err := os.WriteFile(src, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write src2: %v", err)
	}
	copied, err = CopyFileIfExists(src, dst, false)
	if err != nil {
		t.Fatalf("copy no-overwrite: %v", err)
	}
	if copied {
		t.Fatalf("expected copied=false when dst exists and overwrite=false")
	}

	copied, err = CopyFileIfExists(src, dst, true)
	if err != nil {
		t.Fatalf("copy overwrite: %v", err)
	}
	if !copied {
		t.Fatalf("expected copied=true when overwrite=true")
	}
	b, _ = os.ReadFile(dst)
	if string(b) != `{}` {
		t.Fatalf("dst=%q", string(b))
	}
}

func TestWriteJSONFileAtomic_ReplacesAndLeavesNoTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "out.json")
	if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteJSONFileAtomic(p, map[string]int{"a": 1}, false); err != nil {
		t.Fatalf("WriteJSONFileAtomic: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("content=%q", string(b))
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("leftover files: %v", ents)
	}
}

func TestAppendFile_KeepsPreviousBytes(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "nested", "summary.txt")
	if err := AppendFile(p, []byte("one\n"), 0o644); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := AppendFile(p, []byte("two\n"), 0o644); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "one\ntwo\n" {
		t.Fatalf("content=%q", string(b))
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	t.Parallel()

	got := Truncate("héllo", 2)
	if got != "h…" {
		t.Fatalf("got=%q, want %q", got, "h…")
	}
	if Truncate("  short ", 10) != "short" {
		t.Fatalf("unexpected truncate of short string")
	}
}
