// Package provider streams completions from a text generation backend.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

// Backend names accepted by New.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Session is one scoped conversation with a generator. Close must be called exactly once.
type Session interface {
	// Stream sends prompt and calls onFragment with each piece of the completion as it arrives.
	// maxTokens <= 0 leaves the backend default.
	Stream(ctx context.Context, prompt string, maxTokens int, onFragment func(string) error) error
	Close() error
}

// Backend opens sessions against a concrete model server.
type Backend interface {
	Name() string
	OpenSession(ctx context.Context) (Session, error)
}

// Config selects and configures a Backend.
type Config struct {
	Backend     string
	Model       string
	BaseURL     string
	APIKey      string
	// Temperature is sent only when set; nil leaves the backend default.
	Temperature *float64
	// Timeout bounds one Generate call. 0 means no limit beyond the caller's context.
	Timeout time.Duration
}

// New builds the Backend named by cfg.Backend.
func New(cfg Config) (Backend, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("provider: model is empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOllama:
		return &Ollama{Model: cfg.Model, BaseURL: cfg.BaseURL, Temperature: cfg.Temperature}, nil
	case BackendOpenAI:
		return &OpenAI{Model: cfg.Model, BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Temperature: cfg.Temperature}, nil
	case BackendGemini:
		if cfg.APIKey == "" {
			return nil, errors.New("provider: gemini requires an API key")
		}
		return &Gemini{Model: cfg.Model, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Temperature: cfg.Temperature}, nil
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}

// Invoker turns a Backend into a one-shot generator: open a session, stream the completion,
// concatenate the fragments and close the session on every path. It does not retry.
type Invoker struct {
	Backend Backend
	Timeout time.Duration
	Logger  logger.Logger
}

// Generate returns the full completion for prompt.
func (inv Invoker) Generate(ctx context.Context, prompt string, maxTokens int) (completion string, err error) {
	if inv.Backend == nil {
		return "", errors.New("Invoker: backend is nil")
	}
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	sess, err := inv.Backend.OpenSession(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: open session: %w", inv.Backend.Name(), err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("%s: close session: %w", inv.Backend.Name(), cerr)
			} else if inv.Logger != nil {
				inv.Logger.Warn(ctx, "%s: close session: %v", inv.Backend.Name(), cerr)
			}
		}
	}()

	var b strings.Builder
	fragments := 0
	err = sess.Stream(ctx, prompt, maxTokens, func(s string) error {
		fragments++
		b.WriteString(s)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: stream: %w", inv.Backend.Name(), err)
	}
	if inv.Logger != nil {
		inv.Logger.Debug(ctx, "%s: %d fragments, %d bytes", inv.Backend.Name(), fragments, b.Len())
	}
	return b.String(), nil
}
