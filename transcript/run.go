package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

var errEmptyCompletion = errors.New("generator returned an empty completion")

const errPreviewLen = 300

// Item is one unit of work for Run: a single page in transcript mode, a chunk in summary mode.
type Item struct {
	Key   string
	Pages []PageText
}

// PageItems makes one item per page.
func PageItems(pages []PageText) []Item {
	items := make([]Item, 0, len(pages))
	for _, p := range pages {
		items = append(items, Item{Key: p.Key, Pages: []PageText{p}})
	}
	return items
}

// ChunkItems makes one item per chunk, keyed "chunk_N".
func ChunkItems(chunks []Chunk) []Item {
	items := make([]Item, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, Item{Key: c.Key(), Pages: c.Pages})
	}
	return items
}

// PageKeys lists the item's page keys.
func (it Item) PageKeys() []string {
	keys := make([]string, 0, len(it.Pages))
	for _, p := range it.Pages {
		keys = append(keys, p.Key)
	}
	return keys
}

// Content is the sanitized text substituted into the prompt. A single-page item is the page
// text alone; multi-page items carry a "### <key>" header per page.
func (it Item) Content() string {
	if len(it.Pages) == 1 && it.Pages[0].Key == it.Key {
		return Sanitize(it.Pages[0].Text)
	}
	return chunkContent(it.Pages)
}

// Generator produces one completion for a prompt. Implementations must release any session
// they open before returning.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// Flusher persists the accumulator.
type Flusher interface {
	Flush(state *RunState) error
}

// Observer is told about run progress. Calls happen on the Run goroutine.
type Observer interface {
	Start(total int)
	ItemDone(entry Entry)
	Finish(result RunResult)
}

type nopObserver struct{}

func (nopObserver) Start(int)        {}
func (nopObserver) ItemDone(Entry)   {}
func (nopObserver) Finish(RunResult) {}

// RunOptions configures Run.
type RunOptions struct {
	Template    string
	Placeholder string
	MaxTokens   int

	// KeyPlaceholder, when set, is replaced with the item key before the content is substituted.
	KeyPlaceholder string

	// Budget is the wall-clock ceiling checked before each item. 0 means no item may start;
	// a negative value disables the check.
	Budget time.Duration
	// Delay is the pause between consecutive items.
	Delay time.Duration
	// FlushEachItem flushes after every recorded item as well as at the end.
	FlushEachItem bool

	Structurer Structurer
	Observer   Observer
	Logger     logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID          string
	Total          int
	Processed      int
	Failed         int
	Pending        int
	BudgetExceeded bool
	Canceled       bool
	Elapsed        time.Duration
}

// Run processes items strictly in order: sanitize, build the prompt, generate, structure and
// record each one before the next starts. A failing item becomes an error record and the loop
// moves on. The loop stops early when the budget is spent or ctx is canceled; items not started
// stay pending and are not recorded. A canceled in-flight item is discarded.
//
// The returned error is non-nil only for unusable options or a failed final flush.
func Run(ctx context.Context, items []Item, gen Generator, flusher Flusher, opts RunOptions) (*RunState, RunResult, error) {
	if gen == nil {
		return nil, RunResult{}, errors.New("Run: generator is nil")
	}
	if strings.TrimSpace(opts.Template) == "" {
		return nil, RunResult{}, ErrEmptyTemplate
	}
	if opts.Placeholder == "" {
		return nil, RunResult{}, errors.New("Run: placeholder is empty")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	start := now()
	state := NewRunState(start)
	res := RunResult{RunID: state.RunID, Total: len(items)}
	log.Info(ctx, "run %s: %d items, parse=%s budget=%s", state.RunID, len(items), opts.Structurer.Names(), opts.Budget)
	obs.Start(len(items))

	for i, it := range items {
		if budgetSpent(opts.Budget, now().Sub(start)) {
			res.BudgetExceeded = true
			log.Warn(ctx, "budget %s exhausted after %d/%d items; stopping", opts.Budget, i, len(items))
			break
		}
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}

		itemStart := now()
		log.Debug(ctx, "%s: %s", it.Key, StagePending)
		recs, err := processItem(ctx, it, gen, opts, log)
		if ctx.Err() != nil {
			res.Canceled = true
			log.Warn(ctx, "%s: canceled in flight; not recorded", it.Key)
			break
		}

		entry := Entry{Key: it.Key, Pages: it.PageKeys(), Records: recs}
		if err != nil {
			log.Debug(ctx, "%s: %s", it.Key, StageFailed)
			log.Error(ctx, "%s: %s", it.Key, fileutils.Truncate(fileutils.OneLine(err.Error()), errPreviewLen))
			entry.Failed = true
			entry.Err = err.Error()
			entry.Records = []Record{ErrorRecord(err.Error())}
		}
		entry.Elapsed = now().Sub(itemStart)
		state.Append(entry)
		log.Debug(ctx, "%s: %s (%d records, %s)", it.Key, StageRecorded, len(entry.Records), entry.Elapsed.Round(time.Millisecond))
		obs.ItemDone(entry)

		if opts.FlushEachItem && flusher != nil {
			if err := flusher.Flush(state); err != nil {
				log.Error(ctx, "flush after %s: %v", it.Key, err)
			}
		}

		if i < len(items)-1 && opts.Delay > 0 {
			if !sleepCtx(ctx, opts.Delay) {
				res.Canceled = true
				break
			}
		}
	}

	res.Processed = state.Len()
	res.Failed = state.FailedCount()
	res.Pending = res.Total - res.Processed
	res.Elapsed = now().Sub(start)
	obs.Finish(res)

	if flusher != nil {
		if err := flusher.Flush(state); err != nil {
			return state, res, fmt.Errorf("Run: flush: %w", err)
		}
	}
	log.Info(ctx, "run %s done: processed=%d failed=%d pending=%d elapsed=%s", state.RunID, res.Processed, res.Failed, res.Pending, res.Elapsed.Round(time.Second))
	return state, res, nil
}

func processItem(ctx context.Context, it Item, gen Generator, opts RunOptions, log logger.Logger) (recs []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs = nil
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	content := it.Content()
	log.Debug(ctx, "%s: %s", it.Key, StageSanitized)
	tmpl := opts.Template
	if opts.KeyPlaceholder != "" {
		tmpl = strings.ReplaceAll(tmpl, opts.KeyPlaceholder, it.Key)
	}
	prompt, err := BuildPrompt(tmpl, opts.Placeholder, content)
	if err != nil {
		return nil, err
	}
	log.Debug(ctx, "%s: %s", it.Key, StagePrompted)

	log.Debug(ctx, "%s: %s", it.Key, StageGenerating)
	completion, err := gen.Generate(ctx, prompt, opts.MaxTokens)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(completion) == "" {
		return nil, errEmptyCompletion
	}

	log.Debug(ctx, "%s: completion %q", it.Key, fileutils.Truncate(fileutils.OneLine(completion), 120))
	recs = opts.Structurer.Structure(completion, it.Key)
	log.Debug(ctx, "%s: %s", it.Key, StageStructured)
	return recs, nil
}

func budgetSpent(budget, elapsed time.Duration) bool {
	switch {
	case budget < 0:
		return false
	case budget == 0:
		return true
	default:
		return elapsed > budget
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
