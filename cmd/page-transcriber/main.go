package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/delivery"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
	"github.com/theimaginaryfoundation/page-scribe/transcript/progress"
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

	log := cfg.Logger(os.Stderr)
	if err := cfg.Provision(ctx, log, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	gen, err := cfg.Generator(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := run(ctx, cfg, gen, log, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// run transcribes every page, writes the document, the cast roster and the index, then
// delivers the document.
func run(ctx context.Context, cfg Config, gen transcript.Generator, log logger.Logger, stdout, stderr io.Writer) error {
	tmpl, err := transcript.LoadTemplate(cfg.PromptFile, placeholder, defaultTranscriptPrompt(), cfg.StrictPrompt)
	if err != nil {
		return err
	}
	pages, err := transcript.LoadPages(cfg.InPath, transcript.LoadOptions{MaxPages: cfg.MaxPages})
	if err != nil {
		return err
	}
	structurer, err := cfg.Structurer()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.OutPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir -out: %w", err)
		}
	}

	opts := cfg.RunOptions(tmpl, placeholder, structurer, log)
	opts.KeyPlaceholder = keyPlaceholder
	opts.FlushEachItem = cfg.FlushEveryItem
	if cfg.Progress {
		opts.Observer = progress.NewBar(stderr, "transcribing")
	}
	writer := transcript.JSONDocumentWriter{Path: cfg.OutPath, Pretty: cfg.Pretty, Flat: cfg.Flat}

	state, res, err := transcript.Run(ctx, transcript.PageItems(pages), gen, writer, opts)
	if err != nil {
		return err
	}

	castPath := cfg.CastPath
	if castPath == "" {
		castPath = sidecar(cfg.OutPath, "cast.json")
	}
	if err := updateCast(castPath, state); err != nil {
		log.Error(ctx, "cast: %v", err)
	}
	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = sidecar(cfg.OutPath, "index.jsonl")
	}
	if err := transcript.WriteIndex(indexPath, state); err != nil {
		log.Error(ctx, "index: %v", err)
	}

	delivered := 0
	if cfg.Deliver && !res.Canceled {
		delivered = delivery.Delivered(delivery.DeliverAll(ctx, log, cfg.OutPath, cfg.Deliverers()...))
	}

	fmt.Fprintf(stdout, "pages_processed=%d failed=%d pending=%d budget_exceeded=%t delivered=%d out=%s run_id=%s\n",
		res.Processed, res.Failed, res.Pending, res.BudgetExceeded, delivered, cfg.OutPath, res.RunID)
	return nil
}

func updateCast(path string, state *transcript.RunState) error {
	c, err := transcript.LoadCast(path)
	if err != nil {
		return err
	}
	transcript.MergeCast(&c, state.Entries)
	return transcript.SaveCast(path, c)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Input JSON object of page key -> page text")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Output transcript document")
	fs.StringVar(&cfg.CastPath, "cast", cfg.CastPath, "Speaker roster file (default: <out>.cast.json)")
	fs.StringVar(&cfg.IndexPath, "index", cfg.IndexPath, "Per-page index JSONL (default: <out>.index.jsonl)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the output document")
	fs.BoolVar(&cfg.Flat, "flat", cfg.Flat, "Write one flat list of records instead of a page-keyed object")
	fs.BoolVar(&cfg.FlushEveryItem, "flush-every-item", cfg.FlushEveryItem, "Rewrite the output after every page")
	cfg.Common.Register(fs)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Common.Resolve(fs); err != nil {
		return Config{}, err
	}

	for _, p := range []*string{&cfg.InPath, &cfg.OutPath, &cfg.CastPath, &cfg.IndexPath} {
		if *p != "" {
			*p = filepath.Clean(*p)
		}
	}
	return cfg, nil
}
