package provider

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// Gemini streams from the Gemini API.
type Gemini struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float64
}

func (g *Gemini) Name() string { return BackendGemini }

func (g *Gemini) OpenSession(ctx context.Context) (Session, error) {
	cfg := &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &geminiSession{client: client, model: g.Model, temperature: g.Temperature}, nil
}

type geminiSession struct {
	client      *genai.Client
	model       string
	temperature *float64
}

func (s *geminiSession) Stream(ctx context.Context, prompt string, maxTokens int, onFragment func(string) error) error {
	if s.client == nil {
		return fmt.Errorf("gemini session is closed")
	}
	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = clampInt32(maxTokens)
	}
	if s.temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*s.temperature))
	}

	for resp, err := range s.client.Models.GenerateContentStream(ctx, s.model, genai.Text(prompt), cfg) {
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			if err := onFragment(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func clampInt32(n int) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < math.MinInt32:
		return math.MinInt32
	default:
		return int32(n)
	}
}

func (s *geminiSession) Close() error {
	s.client = nil
	return nil
}
