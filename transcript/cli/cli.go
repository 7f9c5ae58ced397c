// Package cli holds the flags shared by the transcriber and the summarizer, and turns them into
// the pieces a run needs.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/config"
	"github.com/theimaginaryfoundation/page-scribe/transcript/delivery"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
	"github.com/theimaginaryfoundation/page-scribe/transcript/modelfetch"
	"github.com/theimaginaryfoundation/page-scribe/transcript/provider"
)

// Common are the model, generation, delivery and logging settings every generating tool takes.
type Common struct {
	ConfigPath string
	EnvFile    string

	Backend     string
	Model       string
	BaseURL     string
	APIKey      string
	// Temperature below zero leaves the backend default.
	Temperature float64
	Timeout     time.Duration

	ModelPath        string
	ModelURL         string
	ModelFallbackURL string

	PromptFile   string
	StrictPrompt bool
	ParseMode    string
	MaxTokens    int
	MaxPages     int
	Budget       time.Duration
	Delay        time.Duration

	Deliver        bool
	TelegramToken  string
	TelegramChatID string
	ArchiveDir     string

	LogLevel string
	Progress bool
}

// DefaultCommon returns the defaults used when neither a flag nor the settings file sets a value.
func DefaultCommon(parseMode transcript.ParseMode) Common {
	return Common{
		EnvFile:     ".env",
		Backend:     provider.BackendOllama,
		Model:       "llama3",
		Temperature: -1,
		ParseMode:   string(parseMode),
		MaxTokens:   1024,
		Budget:      config.DefaultBudget,
		Delay:       2 * time.Second,
		Deliver:     true,
		LogLevel:    "info",
		Progress:    true,
	}
}

// Register binds the shared flags to fs, using the current values as defaults.
func (c *Common) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "Optional YAML settings file; explicit flags win over it")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Dotenv file loaded before reading the environment (missing file is ignored)")

	fs.StringVar(&c.Backend, "backend", c.Backend, "Generation backend: ollama, openai or gemini")
	fs.StringVar(&c.Model, "model", c.Model, "Model name passed to the backend")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "Backend endpoint override")
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "Backend API key (defaults to OPENAI_API_KEY or GEMINI_API_KEY)")
	fs.Float64Var(&c.Temperature, "temperature", c.Temperature, "Sampling temperature, 0 to 2 (negative = backend default)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Per-item generation timeout (0 = none)")

	fs.StringVar(&c.ModelPath, "model-path", c.ModelPath, "Model file that must exist before the run (downloaded on a miss). Only provisioned: the backend server loads it, e.g. an Ollama Modelfile FROM line or a llama.cpp server behind -backend openai")
	fs.StringVar(&c.ModelURL, "model-url", c.ModelURL, "Primary download URL for -model-path")
	fs.StringVar(&c.ModelFallbackURL, "model-fallback-url", c.ModelFallbackURL, "Fallback download URL for -model-path")

	fs.StringVar(&c.PromptFile, "prompt-file", c.PromptFile, "Prompt template file (defaults to the built-in prompt)")
	fs.BoolVar(&c.StrictPrompt, "strict-prompt", c.StrictPrompt, "Fail instead of falling back when -prompt-file is unusable")
	fs.StringVar(&c.ParseMode, "parse-mode", c.ParseMode, "How completions are structured: json, lines, auto or raw")
	fs.IntVar(&c.MaxTokens, "max-tokens", c.MaxTokens, "Completion token cap per item")
	fs.IntVar(&c.MaxPages, "max-pages", c.MaxPages, "Only process the first N pages (0 = all)")
	fs.DurationVar(&c.Budget, "budget", c.Budget, "Wall-clock ceiling checked before each item (0 = run nothing, negative = unlimited)")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "Pause between items")

	fs.BoolVar(&c.Deliver, "deliver", c.Deliver, "Deliver the artifact after the run")
	fs.StringVar(&c.TelegramToken, "telegram-token", c.TelegramToken, "Telegram bot token (defaults to TELEGRAM_BOT_TOKEN or TOKEN)")
	fs.StringVar(&c.TelegramChatID, "telegram-chat-id", c.TelegramChatID, "Telegram chat id (defaults to TELEGRAM_CHAT_ID or C_ID)")
	fs.StringVar(&c.ArchiveDir, "archive-dir", c.ArchiveDir, "Directory the artifact is copied into after the run")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
	fs.BoolVar(&c.Progress, "progress", c.Progress, "Show a progress bar on stderr")
}

// Resolve runs after fs.Parse. It loads the dotenv file, then fills every flag that was not set
// on the command line from the settings file and the environment.
func (c *Common) Resolve(fs *flag.FlagSet) error {
	if c.EnvFile != "" {
		if err := config.LoadDotEnv(c.EnvFile); err != nil {
			return err
		}
	}
	f, err := config.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	set := explicitFlags(fs)
	if set["backend"] || f.Model.Backend == "" {
		f.Model.Backend = c.Backend
	}
	if set["api-key"] {
		f.Model.APIKey = c.APIKey
	}
	f.MergeEnv()
	if errs := f.Validate(); len(errs) > 0 {
		return config.Join(errs)
	}
	c.apply(f, set)
	return nil
}

func (c *Common) apply(f *config.File, set map[string]bool) {
	str := func(name string, dst *string, v string) {
		if !set[name] && v != "" {
			*dst = v
		}
	}
	str("backend", &c.Backend, f.Model.Backend)
	str("model", &c.Model, f.Model.Name)
	str("base-url", &c.BaseURL, f.Model.BaseURL)
	str("api-key", &c.APIKey, f.Model.APIKey)
	str("model-path", &c.ModelPath, f.Model.Path)
	str("model-url", &c.ModelURL, f.Model.URL)
	str("model-fallback-url", &c.ModelFallbackURL, f.Model.FallbackURL)
	str("prompt-file", &c.PromptFile, f.Prompt.File)
	str("parse-mode", &c.ParseMode, f.Generation.ParseMode)
	str("telegram-token", &c.TelegramToken, f.Delivery.TelegramToken)
	str("telegram-chat-id", &c.TelegramChatID, f.Delivery.TelegramChatID)
	str("archive-dir", &c.ArchiveDir, f.Delivery.ArchiveDir)
	str("log-level", &c.LogLevel, f.Logging.Level)

	if !set["temperature"] && f.Model.Temperature != nil {
		c.Temperature = *f.Model.Temperature
	}
	if !set["timeout"] && f.Model.Timeout != 0 {
		c.Timeout = f.Model.Timeout
	}
	if !set["strict-prompt"] && f.Prompt.Strict {
		c.StrictPrompt = true
	}
	if !set["max-tokens"] && f.Generation.MaxTokens != 0 {
		c.MaxTokens = f.Generation.MaxTokens
	}
	if !set["max-pages"] && f.Generation.MaxPages != 0 {
		c.MaxPages = f.Generation.MaxPages
	}
	if !set["budget"] && f.Generation.Budget != nil {
		c.Budget = *f.Generation.Budget
	}
	if !set["delay"] && f.Generation.Delay != 0 {
		c.Delay = f.Generation.Delay
	}
}

// MaxWords returns the file's chunk size when the max-words flag was not set.
func MaxWords(fs *flag.FlagSet, configPath string, current int) (int, error) {
	if explicitFlags(fs)["max-words"] {
		return current, nil
	}
	f, err := config.ReadFile(configPath)
	if err != nil {
		return 0, err
	}
	if f.Generation.MaxWords > 0 {
		return f.Generation.MaxWords, nil
	}
	return current, nil
}

func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// Validate checks the resolved values.
func (c Common) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("missing -model"))
	}
	if _, err := transcript.NewStructurer(transcript.ParseMode(c.ParseMode)); err != nil {
		errs = append(errs, err)
	}
	if c.Temperature > 2 {
		errs = append(errs, errors.New("-temperature must be <= 2"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("-max-tokens must be >= 0"))
	}
	if c.MaxPages < 0 {
		errs = append(errs, errors.New("-max-pages must be >= 0"))
	}
	if c.Delay < 0 {
		errs = append(errs, errors.New("-delay must be >= 0"))
	}
	if c.ModelURL != "" && c.ModelPath == "" {
		errs = append(errs, errors.New("-model-url requires -model-path"))
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown -log-level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Logger returns a logger writing to w at the configured level.
func (c Common) Logger(w io.Writer) logger.Logger {
	return logger.NewWithWriter(c.LogLevel, w)
}

// Generator builds the backend and wraps it for one-shot calls.
func (c Common) Generator(log logger.Logger) (transcript.Generator, error) {
	backend, err := provider.New(provider.Config{
		Backend:     c.Backend,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Temperature: c.temperature(),
	})
	if err != nil {
		return nil, err
	}
	return provider.Invoker{Backend: backend, Timeout: c.Timeout, Logger: log}, nil
}

func (c Common) temperature() *float64 {
	if c.Temperature < 0 {
		return nil
	}
	t := c.Temperature
	return &t
}

// Structurer returns the structurer for the configured parse mode.
func (c Common) Structurer() (transcript.Structurer, error) {
	return transcript.NewStructurer(transcript.ParseMode(c.ParseMode))
}

// Provision makes sure -model-path exists, downloading it when it does not. It is a no-op when
// no model path is configured. The file is only placed on disk for the backend server to
// load; no backend here reads it.
func (c Common) Provision(ctx context.Context, log logger.Logger, progress io.Writer) error {
	if c.ModelPath == "" {
		return nil
	}
	p := &modelfetch.Provisioner{
		Client:   &http.Client{},
		Sources:  modelfetch.NewSources(c.ModelURL, c.ModelFallbackURL),
		Progress: progress,
		Logger:   log,
	}
	if _, err := p.Ensure(ctx, c.ModelPath); err != nil {
		return err
	}
	if log != nil {
		log.Info(ctx, "model file ready at %s; the %s server must be pointed at it to use it", c.ModelPath, c.Backend)
	}
	return nil
}

// Deliverers lists the configured delivery targets, archive first.
func (c Common) Deliverers() []delivery.Deliverer {
	var out []delivery.Deliverer
	if c.ArchiveDir != "" {
		out = append(out, delivery.ArchiveDir{Dir: c.ArchiveDir, Overwrite: true})
	}
	out = append(out, delivery.Telegram{
		Token:  c.TelegramToken,
		ChatID: c.TelegramChatID,
		Client: &http.Client{Timeout: 2 * time.Minute},
	})
	return out
}

// RunOptions fills the shared part of transcript.RunOptions.
func (c Common) RunOptions(template, placeholder string, structurer transcript.Structurer, log logger.Logger) transcript.RunOptions {
	return transcript.RunOptions{
		Template:    template,
		Placeholder: placeholder,
		MaxTokens:   c.MaxTokens,
		Budget:      c.Budget,
		Delay:       c.Delay,
		Structurer:  structurer,
		Logger:      log,
	}
}
