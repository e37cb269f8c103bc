package ai

import (
	"context"
	"time"

	"google.golang.org/genai"

	"creditgate/pkg/errors"
)

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// GeminiProvider adapts the Gemini API using the official SDK. Usage comes
// from UsageMetadata: prompt tokens are stable across stream chunks, while
// candidate token counts grow, so the last chunk's metadata wins.
type GeminiProvider struct {
	client      *genai.Client
	timeout     time.Duration
	rateLimiter RateLimiter
}

// NewGeminiProvider creates a new Gemini provider adapter.
func NewGeminiProvider(ctx context.Context, apiKey string, timeout time.Duration, limiter RateLimiter) (*GeminiProvider, error) {
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiProvider{
		client:      client,
		timeout:     timeout,
		rateLimiter: limiter,
	}, nil
}

// Name returns provider name.
func (p *GeminiProvider) Name() ProviderName { return ProviderNameGemini }

// Complete sends a batch generation request.
func (p *GeminiProvider) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents, cfg := p.convertRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gemini generation failed")
	}

	out := &Completion{
		Model:   req.Model,
		Content: resp.Text(),
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenCount{
			PromptTokens:   int64(resp.UsageMetadata.PromptTokenCount),
			ResponseTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return out, nil
}

// Stream sends a streaming generation request.
func (p *GeminiProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)

		if err := p.rateLimiter.Wait(ctx); err != nil {
			errCh <- &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
			return
		}

		contents, cfg := p.convertRequest(req)

		var usage TokenCount
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				errCh <- errors.Wrap(err, "gemini stream failed")
				return
			}

			if text := resp.Text(); text != "" {
				select {
				case chunks <- StreamChunk{Delta: text}:
				case <-ctx.Done():
					errCh <- errors.Wrap(ctx.Err(), "gemini stream cancelled")
					return
				}
			}

			if resp.UsageMetadata != nil {
				usage.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
				usage.ResponseTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
			}
		}

		select {
		case chunks <- StreamChunk{Usage: &usage}:
		case <-ctx.Done():
			errCh <- errors.Wrap(ctx.Err(), "gemini stream cancelled")
		}
	}()

	return chunks, errCh
}

func (p *GeminiProvider) convertRequest(req ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			// Gemini takes system prompts out of band
			cfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Content}},
			}
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	return contents, cfg
}
