package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"creditgate/pkg/errors"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Ensure AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)

// AnthropicProvider adapts the Anthropic Messages API. System messages are
// lifted out of the turn list into the request's system field; usage comes
// from the response envelope in batch mode and from the message_start /
// message_delta events in stream mode.
type AnthropicProvider struct {
	apiKey      string
	baseURL     string
	timeout     time.Duration
	rateLimiter RateLimiter
	httpClient  *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider adapter.
func NewAnthropicProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *AnthropicProvider {
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &AnthropicProvider{
		apiKey:      apiKey,
		baseURL:     anthropicAPIURL,
		timeout:     timeout,
		rateLimiter: limiter,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Name returns provider name.
func (p *AnthropicProvider) Name() ProviderName { return ProviderNameAnthropic }

// Complete sends a batch completion request to the Messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "anthropic API key not configured")
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
	}

	respBody, err := p.send(ctx, p.convertRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = respBody.Close() }()

	raw, err := io.ReadAll(respBody)
	if err != nil {
		return nil, errors.Wrap(err, "read anthropic response")
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "unmarshal anthropic response")
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Completion{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: content.String(),
		Usage: TokenCount{
			PromptTokens:   resp.Usage.InputTokens,
			ResponseTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// Stream sends a streaming request and normalizes the SSE event stream.
// input_tokens arrive on message_start, output_tokens on message_delta; the
// final chunk after message_stop carries the combined usage.
func (p *AnthropicProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk)
	errCh := make(chan error, 1)

	if p.apiKey == "" {
		errCh <- errors.Wrap(errors.ErrConfiguration, "anthropic API key not configured")
		close(errCh)
		close(chunks)
		return chunks, errCh
	}

	go func() {
		defer close(chunks)
		defer close(errCh)

		if err := p.rateLimiter.Wait(ctx); err != nil {
			errCh <- &RateLimitError{Provider: p.Name(), Limit: p.rateLimiter.Limit(), Err: err}
			return
		}

		respBody, err := p.send(ctx, p.convertRequest(req, true))
		if err != nil {
			errCh <- err
			return
		}
		defer func() { _ = respBody.Close() }()

		var usage TokenCount
		var stopped bool

		scanner := bufio.NewScanner(respBody)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				errCh <- errors.Wrap(err, "unmarshal anthropic stream event")
				return
			}

			switch event.Type {
			case "message_start":
				usage.PromptTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					select {
					case chunks <- StreamChunk{Delta: event.Delta.Text}:
					case <-ctx.Done():
						errCh <- errors.Wrap(ctx.Err(), "anthropic stream cancelled")
						return
					}
				}
			case "message_delta":
				usage.ResponseTokens = event.Usage.OutputTokens
			case "error":
				errCh <- errors.Wrapf(errors.ErrUnavailable, "anthropic stream error: %s", event.Error.Message)
				return
			case "message_stop":
				stopped = true
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- errors.Wrap(err, "read anthropic stream")
			return
		}
		if !stopped {
			errCh <- errors.Wrap(errors.ErrUnavailable, "anthropic stream ended before message_stop")
			return
		}

		select {
		case chunks <- StreamChunk{Usage: &usage}:
		case <-ctx.Done():
			errCh <- errors.Wrap(ctx.Err(), "anthropic stream cancelled")
		}
	}()

	return chunks, errCh
}

func (p *AnthropicProvider) send(ctx context.Context, req anthropicRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal anthropic request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create anthropic request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send anthropic request")
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(resp.Body)

		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, errors.Wrapf(errors.ErrUnavailable, "anthropic API error (%d): %s - %s",
				resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return nil, errors.Wrapf(errors.ErrUnavailable, "anthropic API error (%d): %s",
			resp.StatusCode, string(raw))
	}

	return resp.Body, nil
}

func (p *AnthropicProvider) convertRequest(req ChatRequest, stream bool) anthropicRequest {
	out := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}

	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			// the Messages API takes system prompts out of band
			if out.System != "" {
				out.System += "\n"
			}
			out.System += msg.Content
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return out
}

// Anthropic API types
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage anthropicUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
