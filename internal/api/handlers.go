package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"creditgate/internal/adapters/ai"
	"creditgate/internal/domain/ledger"
	"creditgate/internal/pipeline"
	"creditgate/pkg/auth"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// Handler serves the metered chat API. With a token service configured,
// callers authenticate with a bearer token issued by the chat application;
// without one, the X-User-ID header is trusted as-is and the deployment must
// sit behind a gateway that strips client-controlled headers.
type Handler struct {
	pipe   *pipeline.TrackedPipe
	ledger *ledger.Ledger
	tokens *auth.JWTService
	health func(ctx context.Context) error
	log    *logger.Logger
}

// NewHandler creates the API handler. tokens may be nil for header auth.
func NewHandler(pipe *pipeline.TrackedPipe, l *ledger.Ledger, tokens *auth.JWTService, health func(ctx context.Context) error) *Handler {
	return &Handler{
		pipe:   pipe,
		ledger: l,
		tokens: tokens,
		health: health,
		log:    logger.Get().With("component", "api"),
	}
}

// identify resolves the caller from the request credentials.
func (h *Handler) identify(r *http.Request) (ledger.User, error) {
	if h.tokens != nil {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			return ledger.User{}, auth.ErrInvalidToken
		}
		claims, err := h.tokens.ValidateToken(raw)
		if err != nil {
			return ledger.User{}, err
		}
		return ledger.User{ID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return ledger.User{}, auth.ErrMissingClaims
	}
	return ledger.User{
		ID:    userID,
		Email: r.Header.Get("X-User-Email"),
		Name:  r.Header.Get("X-User-Name"),
	}, nil
}

type chatCompletionRequest struct {
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
	Stream    bool         `json:"stream,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	Allowance   string  `json:"allowance,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Content string   `json:"content"`
	Usage   apiUsage `json:"usage"`
}

type apiUsage struct {
	PromptTokens   int64 `json:"prompt_tokens"`
	ResponseTokens int64 `json:"response_tokens"`
}

// HandleChatCompletion runs a metered model call, streaming when requested.
func (h *Handler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := h.identify(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Model == "" || body.Provider == "" || len(body.Messages) == 0 {
		http.Error(w, "provider, model and messages are required", http.StatusBadRequest)
		return
	}

	req := pipeline.Request{
		Provider:      ai.ProviderName(body.Provider),
		Model:         body.Model,
		MaxTokens:     body.MaxTokens,
		Temperature:   body.Temperature,
		User:          user,
		AllowanceName: body.Allowance,
	}
	for _, m := range body.Messages {
		req.Messages = append(req.Messages, ai.Message{
			Role:    ai.MessageRole(m.Role),
			Content: m.Content,
		})
	}

	if body.Stream {
		h.streamCompletion(w, r, req)
		return
	}

	reply, err := h.pipe.Complete(r.Context(), req)
	if err != nil && reply == nil {
		h.writeError(w, err)
		return
	}
	if err != nil {
		// response was produced but accounting failed; deliver and log
		h.log.Errorw("usage logging failed for delivered response",
			"user", user.ID, "model", body.Model, "error", err)
	}

	writeJSON(w, http.StatusOK, chatCompletionResponse{
		Content: reply.Content,
		Usage: apiUsage{
			PromptTokens:   reply.Usage.PromptTokens,
			ResponseTokens: reply.Usage.ResponseTokens,
		},
	})
}

// streamCompletion forwards pipeline chunks as server-sent events.
func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	chunks, errCh := h.pipe.Stream(r.Context(), req)

	// Headers cannot be sent yet: a gate denial must still map to an HTTP
	// status, and it arrives before the first chunk.
	started := false
	start := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	for chunk := range chunks {
		if !started {
			start()
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"delta": chunk.Delta,
			"usage": chunk.Usage,
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	if err := <-errCh; err != nil {
		if !started {
			h.writeError(w, err)
			return
		}
		// content already delivered; surface the failure as a final event
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		return
	}

	if started {
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// HandleModels lists priced models, optionally filtered by provider.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.ledger.GetModels(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

// HandleCredits reports the caller's remaining credits.
func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	user, err := h.identify(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	bal, err := h.ledger.RemainingCredits(r.Context(), user, r.URL.Query().Get("allowance"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"remaining_credits": bal.Personal,
		"unbounded":         bal.PersonalUnbounded,
	}
	if bal.SponsorTotal != nil {
		resp["sponsor_total_remaining"] = *bal.SponsorTotal
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports readiness of the accounting store.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps domain errors to HTTP responses. Limit denials return 402
// with the user-facing message in the body, so chat frontends can show it in
// place of a model reply.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case pipeline.IsLimitExceeded(err):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"message": pipeline.LimitMessage(err)})
	case errors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrRateLimitExceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrConfiguration):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.log.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
