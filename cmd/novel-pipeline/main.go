package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runStages(ctx, cfg, runGo, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// step is one tool invocation: "go run ./cmd/<tool> <args>".
type step struct {
	Stage string
	Args  []string
}

type goRunner func(ctx context.Context, args ...string) error

type paths struct {
	transcript string
	summary    string
}

func outputPaths(cfg Config) paths {
	base := filepath.Clean(cfg.BaseDir)
	return paths{
		transcript: filepath.Join(base, "output.json"),
		summary:    filepath.Join(base, "summary.txt"),
	}
}

func selectStages(cfg Config) []string {
	if cfg.OnlyStage != "" {
		return []string{cfg.OnlyStage}
	}
	if cfg.FromStage != "" {
		return stagesFrom(allStages, cfg.FromStage)
	}
	return allStages
}

// plan lists the invocations for the selected stages. Generating stages are skipped when their
// artifact already exists, unless -overwrite is set. Delivery happens only in the deliver stage.
func plan(cfg Config, w io.Writer) []step {
	out := outputPaths(cfg)
	in := filepath.Clean(cfg.InPath)

	var steps []step
	for _, stage := range selectStages(cfg) {
		switch stage {
		case "transcribe":
			if !cfg.Overwrite && fileutils.FileExists(out.transcript) {
				fmt.Fprintln(w, "skip transcribe: transcript already exists")
				continue
			}
			args := append([]string{"run", "./cmd/page-transcriber",
				"-in", in,
				"-out", out.transcript,
				"-deliver=false",
			}, commonArgs(cfg)...)
			if cfg.Pretty {
				args = append(args, "-pretty")
			} else {
				args = append(args, "-pretty=false")
			}
			steps = append(steps, step{Stage: stage, Args: args})
		case "summarize":
			if !cfg.Overwrite && fileutils.FileExists(out.summary) {
				fmt.Fprintln(w, "skip summarize: summary already exists")
				continue
			}
			args := append([]string{"run", "./cmd/chunk-summarizer",
				"-in", in,
				"-out", out.summary,
				"-deliver=false",
			}, commonArgs(cfg)...)
			if cfg.MaxWords > 0 {
				args = append(args, "-max-words", strconv.Itoa(cfg.MaxWords))
			}
			if cfg.Overwrite {
				args = append(args, "-overwrite")
			}
			steps = append(steps, step{Stage: stage, Args: args})
		case "deliver":
			for _, artifact := range []string{out.transcript, out.summary} {
				if !fileutils.FileExists(artifact) {
					fmt.Fprintln(w, "skip deliver: missing", artifact)
					continue
				}
				args := []string{"run", "./cmd/artifact-deliver", "-file", artifact}
				if cfg.ConfigPath != "" {
					args = append(args, "-config", cfg.ConfigPath)
				}
				if cfg.ArchiveDir != "" {
					args = append(args, "-archive-dir", cfg.ArchiveDir)
				}
				steps = append(steps, step{Stage: stage, Args: args})
			}
		}
	}
	return steps
}

func commonArgs(cfg Config) []string {
	var args []string
	if cfg.ConfigPath != "" {
		args = append(args, "-config", cfg.ConfigPath)
	}
	if cfg.Backend != "" {
		args = append(args, "-backend", cfg.Backend)
	}
	if cfg.Model != "" {
		args = append(args, "-model", cfg.Model)
	}
	if cfg.MaxPages > 0 {
		args = append(args, "-max-pages", strconv.Itoa(cfg.MaxPages))
	}
	if cfg.Budget != "" {
		args = append(args, "-budget", cfg.Budget)
	}
	return args
}

// runStages plans and runs each stage in order, stopping at the first failure. The deliver stage
// is planned after the generating stages finish so it sees their artifacts.
func runStages(ctx context.Context, cfg Config, run goRunner, w io.Writer) error {
	stages := selectStages(cfg)
	for _, stage := range stages {
		stageCfg := cfg
		stageCfg.OnlyStage, stageCfg.FromStage = stage, ""
		for _, s := range plan(stageCfg, w) {
			if err := run(ctx, s.Args...); err != nil {
				return fmt.Errorf("stage %s: %w", s.Stage, err)
			}
		}
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Input JSON object of page key -> page text")
	fs.StringVar(&cfg.BaseDir, "base-dir", cfg.BaseDir, "Directory for output.json and summary.txt")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "YAML settings file passed to every stage")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Generation backend override for the generating stages")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model override for the generating stages")
	fs.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Only process the first N pages (0 = all)")
	fs.IntVar(&cfg.MaxWords, "max-words", cfg.MaxWords, "Word ceiling per summary chunk (0 = tool default)")
	fs.StringVar(&cfg.Budget, "budget", cfg.Budget, "Wall-clock ceiling per generating stage, e.g. 2h (empty = tool default)")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Archive directory for the deliver stage")

	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: transcribe|summarize|deliver")
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: transcribe|summarize|deliver")

	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the transcript document")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Regenerate artifacts that already exist")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.FromStage = strings.ToLower(strings.TrimSpace(cfg.FromStage))
	cfg.OnlyStage = strings.ToLower(strings.TrimSpace(cfg.OnlyStage))
	if cfg.ConfigPath != "" {
		cfg.ConfigPath = filepath.Clean(cfg.ConfigPath)
	}
	return cfg, nil
}

func runGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "command failed:", "go "+strings.Join(args, " "))
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	fmt.Fprintln(os.Stdout, "ok:", "go "+strings.Join(args, " "), "(", time.Since(start).Round(time.Millisecond).String()+")")
	return nil
}

func stagesFrom(stages []string, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}
