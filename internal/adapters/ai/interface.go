package ai

import "context"

// ProviderName identifies an upstream LLM provider.
type ProviderName string

const (
	ProviderNameAnthropic ProviderName = "anthropic"
	ProviderNameOpenAI    ProviderName = "openai"
	ProviderNameGemini    ProviderName = "gemini"
)

// Provider is the contract each upstream adapter must satisfy. Adapters
// normalize provider-specific request/response shapes into one neutral form
// and always surface token usage, which downstream accounting depends on.
type Provider interface {
	Name() ProviderName

	// Complete sends a batch chat completion request and blocks until the
	// full response, including usage, is available.
	Complete(ctx context.Context, req ChatRequest) (*Completion, error)

	// Stream sends a streaming chat completion request. Content deltas
	// arrive on the chunk channel; the final chunk before close carries
	// Usage. A send on the error channel means the stream failed and no
	// usage is available.
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error)
}

// ChatRequest is the neutral chat completion request shape.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// TokenCount is the normalized usage report for one model call.
type TokenCount struct {
	PromptTokens   int64
	ResponseTokens int64
}

// Completion is the normalized batch response.
type Completion struct {
	ID      string
	Model   string
	Content string
	Usage   TokenCount
}

// StreamChunk is one unit of a normalized streaming response. Delta carries
// incremental content; Usage is non-nil only on the final chunk. A provider
// that never reports usage for a completed stream yields a final chunk with
// a zero-valued Usage, which is still loggable.
type StreamChunk struct {
	Delta string
	Usage *TokenCount
}
