package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/cli"
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

// run summarizes the pages chunk by chunk, appending one block per chunk to the output as soon
// as it is recorded.
func run(ctx context.Context, cfg Config, gen transcript.Generator, log logger.Logger, stdout, stderr io.Writer) error {
	tmpl, err := transcript.LoadTemplate(cfg.PromptFile, placeholder, defaultSummaryPrompt(), cfg.StrictPrompt)
	if err != nil {
		return err
	}
	pages, err := transcript.LoadPages(cfg.InPath, transcript.LoadOptions{MaxPages: cfg.MaxPages})
	if err != nil {
		return err
	}
	// Word counts are taken on the text the model will see.
	transcript.SanitizePages(pages)
	chunks, err := transcript.ChunkPages(pages, cfg.MaxWords)
	if err != nil {
		return err
	}
	structurer, err := cfg.Structurer()
	if err != nil {
		return err
	}
	if cfg.Overwrite {
		if err := os.Remove(cfg.OutPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove -out: %w", err)
		}
	}
	log.Info(ctx, "%d pages in %d chunks (max %d words)", len(pages), len(chunks), cfg.MaxWords)

	opts := cfg.RunOptions(tmpl, placeholder, structurer, log)
	opts.FlushEachItem = true
	if cfg.Progress {
		opts.Observer = progress.NewBar(stderr, "summarizing")
	}
	writer := &transcript.TextAppendWriter{Path: cfg.OutPath}

	state, res, err := transcript.Run(ctx, transcript.ChunkItems(chunks), gen, writer, opts)
	if err != nil {
		return err
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = indexPathFor(cfg.OutPath)
	}
	if err := transcript.WriteIndex(indexPath, state); err != nil {
		log.Error(ctx, "index: %v", err)
	}

	delivered := 0
	if cfg.Deliver && !res.Canceled && writer.Written() > 0 {
		delivered = delivery.Delivered(delivery.DeliverAll(ctx, log, cfg.OutPath, cfg.Deliverers()...))
	}

	fmt.Fprintf(stdout, "chunks_processed=%d failed=%d pending=%d budget_exceeded=%t delivered=%d out=%s run_id=%s\n",
		res.Processed, res.Failed, res.Pending, res.BudgetExceeded, delivered, cfg.OutPath, res.RunID)
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.InPath, "in", cfg.InPath, "Input JSON object of page key -> page text")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Summary text file; one block is appended per chunk")
	fs.StringVar(&cfg.IndexPath, "index", cfg.IndexPath, "Per-chunk index JSONL (default: <out>.index.jsonl)")
	fs.IntVar(&cfg.MaxWords, "max-words", cfg.MaxWords, "Word ceiling per chunk; a larger page gets a chunk of its own")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Remove an existing -out before the run instead of appending to it")
	cfg.Common.Register(fs)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Common.Resolve(fs); err != nil {
		return Config{}, err
	}
	words, err := cli.MaxWords(fs, cfg.ConfigPath, cfg.MaxWords)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxWords = words

	for _, p := range []*string{&cfg.InPath, &cfg.OutPath, &cfg.IndexPath} {
		if *p != "" {
			*p = filepath.Clean(*p)
		}
	}
	return cfg, nil
}
