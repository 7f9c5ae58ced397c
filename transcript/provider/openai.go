package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI streams chat completions from the OpenAI API or any server speaking its wire format
// (llama.cpp server, LM Studio, vLLM).
type OpenAI struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature *float64
}

func (o *OpenAI) Name() string { return BackendOpenAI }

func (o *OpenAI) OpenSession(ctx context.Context) (Session, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &openAISession{client: &client, model: o.Model, temperature: o.Temperature}, nil
}

type openAISession struct {
	client      *openai.Client
	model       string
	temperature *float64
}

func (s *openAISession) Stream(ctx context.Context, prompt string, maxTokens int, onFragment func(string) error) error {
	if s.client == nil {
		return fmt.Errorf("openai session is closed")
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if s.temperature != nil {
		params.Temperature = openai.Float(*s.temperature)
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onFragment(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	return nil
}

func (s *openAISession) Close() error {
	s.client = nil
	return nil
}
