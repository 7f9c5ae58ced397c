package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through langchaingo.
type Ollama struct {
	Model       string
	BaseURL     string
	Temperature *float64
}

func (o *Ollama) Name() string { return BackendOllama }

func (o *Ollama) OpenSession(ctx context.Context) (Session, error) {
	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	llm, err := ollama.New(ollama.WithModel(o.Model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return &ollamaSession{llm: llm, temperature: o.Temperature}, nil
}

type ollamaSession struct {
	llm         llms.Model
	temperature *float64
}

func (s *ollamaSession) Stream(ctx context.Context, prompt string, maxTokens int, onFragment func(string) error) error {
	if s.llm == nil {
		return fmt.Errorf("ollama session is closed")
	}
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return onFragment(string(chunk))
		}),
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if s.temperature != nil {
		opts = append(opts, llms.WithTemperature(*s.temperature))
	}
	if _, err := s.llm.GenerateContent(ctx, content, opts...); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

func (s *ollamaSession) Close() error {
	s.llm = nil
	return nil
}
