package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"creditgate/pkg/errors"
)

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// OpenAIProvider adapts the OpenAI Chat Completions API using the official
// SDK. Streaming requests set include_usage so the final chunk carries the
// token counts.
type OpenAIProvider struct {
	client      openai.Client // NewClient returns Client (not *Client)
	timeout     time.Duration
	rateLimiter RateLimiter
}

// NewOpenAIProvider creates a new OpenAI provider adapter.
func NewOpenAIProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *OpenAIProvider {
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &OpenAIProvider{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		timeout:     timeout,
		rateLimiter: limiter,
	}
}

// Name returns provider name.
func (p *OpenAIProvider) Name() ProviderName { return ProviderNameOpenAI }

// Complete sends a batch chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, p.convertRequest(req))
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrInternal, "openai returned no choices")
	}

	return &Completion{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: resp.Choices[0].Message.Content,
		Usage: TokenCount{
			PromptTokens:   resp.Usage.PromptTokens,
			ResponseTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Stream sends a streaming chat completion request. With include_usage set,
// the API emits one final chunk with empty choices and populated usage.
func (p *OpenAIProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)

		if err := p.rateLimiter.Wait(ctx); err != nil {
			errCh <- &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
			return
		}

		params := p.convertRequest(req)
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)

		var usage TokenCount
		for stream.Next() {
			chunk := stream.Current()

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case chunks <- StreamChunk{Delta: chunk.Choices[0].Delta.Content}:
				case <-ctx.Done():
					errCh <- errors.Wrap(ctx.Err(), "openai stream cancelled")
					return
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				usage.PromptTokens = chunk.Usage.PromptTokens
				usage.ResponseTokens = chunk.Usage.CompletionTokens
			}
		}

		if err := stream.Err(); err != nil {
			errCh <- errors.Wrap(err, "openai stream failed")
			return
		}

		select {
		case chunks <- StreamChunk{Usage: &usage}:
		case <-ctx.Done():
			errCh <- errors.Wrap(ctx.Err(), "openai stream cancelled")
		}
	}()

	return chunks, errCh
}

func (p *OpenAIProvider) convertRequest(req ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	return params
}
