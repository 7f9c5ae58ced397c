package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// fakeGo records invocations and creates the -out artifact of generating tools.
type fakeGo struct {
	calls [][]string
	fail  string
}

func (f *fakeGo) run(_ context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	if f.fail != "" && slices.Contains(args, f.fail) {
		return errors.New("exit status 1")
	}
	if i := slices.Index(args, "-out"); i >= 0 {
		return os.WriteFile(args[i+1], []byte("x"), 0o644)
	}
	return nil
}

func (f *fakeGo) tools() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c[1])
	}
	return out
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := defaultConfig()
	cfg.BaseDir = t.TempDir()
	cfg.InPath = "book/pages.json"
	return cfg
}

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("novel-pipeline", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-in", "book/pages.json",
		"-base-dir", "book/out",
		"-from-stage", " Summarize ",
		"-budget", "2h",
		"-max-words", "900",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.FromStage != "summarize" || cfg.Budget != "2h" || cfg.MaxWords != 900 {
		t.Fatalf("FromStage=%q Budget=%q MaxWords=%d", cfg.FromStage, cfg.Budget, cfg.MaxWords)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.OnlyStage = "pack"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Fatalf("err=%v", err)
	}
	cfg = defaultConfig()
	cfg.OnlyStage, cfg.FromStage = "deliver", "summarize"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for both stage flags")
	}
	cfg = defaultConfig()
	cfg.Budget = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad budget")
	}
}

func TestRunStages_AllStages(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Model = "llama3:8b"
	cfg.Budget = "1h"
	cfg.ArchiveDir = "/srv/archive"
	var fake fakeGo
	if err := runStages(context.Background(), cfg, fake.run, &bytes.Buffer{}); err != nil {
		t.Fatalf("runStages: %v", err)
	}

	want := []string{"./cmd/page-transcriber", "./cmd/chunk-summarizer", "./cmd/artifact-deliver", "./cmd/artifact-deliver"}
	if got := fake.tools(); !slices.Equal(got, want) {
		t.Fatalf("tools=%v", got)
	}
	transcribe := strings.Join(fake.calls[0], " ")
	for _, part := range []string{"-deliver=false", "-model llama3:8b", "-budget 1h", "-pretty", "-out " + filepath.Join(cfg.BaseDir, "output.json")} {
		if !strings.Contains(transcribe, part) {
			t.Fatalf("transcribe args missing %q: %s", part, transcribe)
		}
	}
	if deliver := strings.Join(fake.calls[3], " "); !strings.Contains(deliver, "summary.txt -archive-dir /srv/archive") {
		t.Fatalf("deliver args: %s", deliver)
	}
}

func TestRunStages_SkipsExistingUnlessOverwrite(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.BaseDir, "output.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	var fake fakeGo
	cfg.OnlyStage = "transcribe"
	if err := runStages(context.Background(), cfg, fake.run, &out); err != nil {
		t.Fatalf("runStages: %v", err)
	}
	if len(fake.calls) != 0 || !strings.Contains(out.String(), "skip transcribe") {
		t.Fatalf("calls=%v out=%q", fake.calls, out.String())
	}

	cfg.Overwrite = true
	if err := runStages(context.Background(), cfg, fake.run, &out); err != nil {
		t.Fatalf("runStages: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("calls=%v", fake.calls)
	}
}

func TestRunStages_FromStageAndFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.FromStage = "summarize"
	fake := fakeGo{fail: "./cmd/chunk-summarizer"}
	err := runStages(context.Background(), cfg, fake.run, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "stage summarize") {
		t.Fatalf("err=%v", err)
	}
	if got := fake.tools(); !slices.Equal(got, []string{"./cmd/chunk-summarizer"}) {
		t.Fatalf("tools=%v", got)
	}
}

func TestStagesFrom(t *testing.T) {
	t.Parallel()

	if got := stagesFrom(allStages, "SUMMARIZE"); !slices.Equal(got, []string{"summarize", "deliver"}) {
		t.Fatalf("got=%v", got)
	}
	if got := stagesFrom(allStages, "nope"); len(got) != 3 {
		t.Fatalf("got=%v", got)
	}
}
