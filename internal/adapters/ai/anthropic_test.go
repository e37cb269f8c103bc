package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "creditgate/pkg/errors"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewAnthropicProvider("test-key", 5*time.Second, nil)
	p.baseURL = srv.URL
	return p
}

func chatReq() ChatRequest {
	return ChatRequest{
		Model: "claude-3-sonnet",
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
		},
	}
}

func TestAnthropicComplete(t *testing.T) {
	var captured anthropicRequest
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg_1",
			Model: "claude-3-sonnet",
			Content: []anthropicContent{
				{Type: "text", Text: "hel"},
				{Type: "text", Text: "lo"},
			},
			Usage: anthropicUsage{InputTokens: 12, OutputTokens: 34},
		})
	})

	got, err := p.Complete(context.Background(), chatReq())
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content, "text blocks are concatenated")
	assert.Equal(t, int64(12), got.Usage.PromptTokens)
	assert.Equal(t, int64(34), got.Usage.ResponseTokens)

	// system messages are lifted out of the turn list
	assert.Equal(t, "be brief", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, 4096, captured.MaxTokens, "default applied when unset")
	assert.False(t, captured.Stream)
}

func TestAnthropicComplete_APIError(t *testing.T) {
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"overloaded_error","message":"try later"}}`)
	})

	_, err := p.Complete(context.Background(), chatReq())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnavailable))
	assert.Contains(t, err.Error(), "overloaded_error")
}

func TestAnthropicComplete_NoAPIKey(t *testing.T) {
	p := NewAnthropicProvider("", time.Second, nil)

	_, err := p.Complete(context.Background(), chatReq())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConfiguration))
}

func sseLines(events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
	}
}

func TestAnthropicStream(t *testing.T) {
	p := newTestAnthropic(t, sseLines(
		`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hel"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
		`{"type":"message_delta","usage":{"output_tokens":34}}`,
		`{"type":"message_stop"}`,
	))

	chunks, errCh := p.Stream(context.Background(), chatReq())

	var deltas string
	var usage *TokenCount
	for c := range chunks {
		deltas += c.Delta
		if c.Usage != nil {
			usage = c.Usage
		}
	}
	require.NoError(t, <-errCh)

	assert.Equal(t, "hello", deltas)
	require.NotNil(t, usage, "final chunk carries the combined usage")
	assert.Equal(t, int64(12), usage.PromptTokens)
	assert.Equal(t, int64(34), usage.ResponseTokens)
}

func TestAnthropicStream_ErrorEvent(t *testing.T) {
	p := newTestAnthropic(t, sseLines(
		`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"par"}}`,
		`{"type":"error","error":{"type":"overloaded_error","message":"try later"}}`,
	))

	chunks, errCh := p.Stream(context.Background(), chatReq())

	var deltas string
	for c := range chunks {
		deltas += c.Delta
		assert.Nil(t, c.Usage, "no usage chunk on a failed stream")
	}
	err := <-errCh
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnavailable))
	assert.Equal(t, "par", deltas)
}

func TestAnthropicStream_TruncatedStream(t *testing.T) {
	p := newTestAnthropic(t, sseLines(
		`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"par"}}`,
	))

	chunks, errCh := p.Stream(context.Background(), chatReq())
	for range chunks {
	}
	err := <-errCh
	require.Error(t, err, "a stream that ends before message_stop is a failure")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrUnavailable))
}

func TestConvertRequest_MergesSystemMessages(t *testing.T) {
	p := NewAnthropicProvider("k", time.Second, nil)

	out := p.convertRequest(ChatRequest{
		Model: "claude-3-sonnet",
		Messages: []Message{
			{Role: RoleSystem, Content: "one"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleSystem, Content: "two"},
			{Role: RoleAssistant, Content: "hello"},
		},
		MaxTokens:   200,
		Temperature: 0.5,
	}, true)

	assert.Equal(t, "one\ntwo", out.System)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "user", out.Messages[0].Role)
	assert.Equal(t, "assistant", out.Messages[1].Role)
	assert.Equal(t, 200, out.MaxTokens)
	assert.True(t, out.Stream)
}
