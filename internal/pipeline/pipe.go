package pipeline

import (
	"context"
	"time"

	"creditgate/internal/adapters/ai"
	"creditgate/internal/domain/gate"
	"creditgate/internal/domain/ledger"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/events"
	"creditgate/internal/metrics"
	clickhouserepo "creditgate/internal/repository/clickhouse"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// sideEffectTimeout bounds best-effort analytics/event writes that run
// after the response is already settled.
const sideEffectTimeout = 5 * time.Second

// Request is one metered model call.
type Request struct {
	Provider    ai.ProviderName
	Model       string
	Messages    []ai.Message
	MaxTokens   int
	Temperature float64

	User ledger.User
	// AllowanceName bills the call to a sponsored allowance; empty means
	// the user's personal allowance.
	AllowanceName string
}

// Reply is the settled outcome of a batch call.
type Reply struct {
	Content string
	Usage   ai.TokenCount
}

// AnalyticsSink mirrors usage rows into the analytics store.
type AnalyticsSink interface {
	Store(ctx context.Context, row *clickhouserepo.UsageRow) error
}

// TrackedPipe runs the full metered call: gate check, provider dispatch,
// durable usage logging, then best-effort analytics and event fan-out.
//
// Ordering is fixed: limits are checked before the provider is called, and
// usage is logged only after the provider delivered a complete response.
// An aborted or failed call logs nothing.
type TrackedPipe struct {
	gate      *gate.Gate
	ledger    *ledger.Ledger
	catalog   *pricing.Catalog
	registry  *ai.ProviderRegistry
	locker    ledger.UserLocker
	analytics AnalyticsSink
	publisher events.UsagePublisher
	log       *logger.Logger
}

// NewTrackedPipe constructs the pipeline. locker serializes check-then-log
// per user when hard quotas are enabled; pass ledger.NopLocker{} otherwise.
// analytics may be nil when no analytics store is configured.
func NewTrackedPipe(
	g *gate.Gate,
	l *ledger.Ledger,
	catalog *pricing.Catalog,
	registry *ai.ProviderRegistry,
	locker ledger.UserLocker,
	analytics AnalyticsSink,
	publisher events.UsagePublisher,
) *TrackedPipe {
	if locker == nil {
		locker = ledger.NopLocker{}
	}
	if publisher == nil {
		publisher = events.NopUsagePublisher{}
	}
	return &TrackedPipe{
		gate:      g,
		ledger:    l,
		catalog:   catalog,
		registry:  registry,
		locker:    locker,
		analytics: analytics,
		publisher: publisher,
		log:       logger.Get().With("component", "tracked_pipe"),
	}
}

// Complete runs a batch call.
//
// When both a non-nil Reply and a non-nil error are returned, the provider
// call succeeded but usage logging failed: the content was already produced
// and must be delivered, while the accounting failure is surfaced rather
// than unwound.
func (p *TrackedPipe) Complete(ctx context.Context, req Request) (*Reply, error) {
	release, err := p.locker.Lock(ctx, req.User.ID)
	if err != nil {
		return nil, errors.Wrap(err, "acquire user lock")
	}
	defer release()

	if err := p.gate.CheckLimits(ctx, req.Model, req.User, req.AllowanceName); err != nil {
		return nil, err
	}

	provider, err := p.registry.Get(req.Provider)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "provider %s not registered", req.Provider)
	}

	start := time.Now()
	completion, err := provider.Complete(ctx, p.chatRequest(req))
	metrics.RecordProviderCall(string(req.Provider), req.Model, "batch", time.Since(start),
		completionTokens(completion), completionResponseTokens(completion), err)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Content: completion.Content, Usage: completion.Usage}

	if logErr := p.logUsage(ctx, req, completion.Usage); logErr != nil {
		return reply, logErr
	}

	return reply, nil
}

// Stream runs a streaming call. Content deltas are forwarded as they
// arrive; the final chunk carries the normalized usage. Usage is logged
// only once the upstream stream completed; a failed stream logs nothing. A
// completed stream that reported no usage logs zeros, keeping a row per
// delivered response.
//
// After the final chunk, a send on the error channel means usage logging
// failed for an already delivered response.
func (p *TrackedPipe) Stream(ctx context.Context, req Request) (<-chan ai.StreamChunk, <-chan error) {
	out := make(chan ai.StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		release, err := p.locker.Lock(ctx, req.User.ID)
		if err != nil {
			errCh <- errors.Wrap(err, "acquire user lock")
			return
		}
		defer release()

		if err := p.gate.CheckLimits(ctx, req.Model, req.User, req.AllowanceName); err != nil {
			errCh <- err
			return
		}

		provider, err := p.registry.Get(req.Provider)
		if err != nil {
			errCh <- errors.Wrapf(errors.ErrConfiguration, "provider %s not registered", req.Provider)
			return
		}

		start := time.Now()
		chunks, provErr := provider.Stream(ctx, p.chatRequest(req))

		var usage ai.TokenCount
		for chunk := range chunks {
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// aborted mid-stream: nothing is logged
				metrics.RecordProviderCall(string(req.Provider), req.Model, "stream",
					time.Since(start), 0, 0, ctx.Err())
				errCh <- errors.Wrap(ctx.Err(), "stream cancelled")
				return
			}
		}

		if err, ok := <-provErr; ok && err != nil {
			metrics.RecordProviderCall(string(req.Provider), req.Model, "stream",
				time.Since(start), 0, 0, err)
			errCh <- err
			return
		}

		metrics.RecordProviderCall(string(req.Provider), req.Model, "stream",
			time.Since(start), usage.PromptTokens, usage.ResponseTokens, nil)

		if logErr := p.logUsage(ctx, req, usage); logErr != nil {
			errCh <- logErr
		}
	}()

	return out, errCh
}

// logUsage writes the durable row, then fans out best-effort side effects.
func (p *TrackedPipe) logUsage(ctx context.Context, req Request, usage ai.TokenCount) error {
	err := p.ledger.LogTokenUsage(ctx, ledger.UsageRecord{
		Provider:       string(req.Provider),
		ModelID:        req.Model,
		User:           req.User,
		PromptTokens:   usage.PromptTokens,
		ResponseTokens: usage.ResponseTokens,
		AllowanceName:  req.AllowanceName,
	})
	metrics.RecordUsageRow(string(req.Provider), err)
	if err != nil {
		logger.ErrorWithContext(ctx, errors.Wrap(err, "failed to log token usage"), map[string]string{
			"user":  req.User.ID,
			"model": req.Model,
		})
		return errors.Wrap(err, "usage logging failed after delivered response")
	}

	p.fanOut(req, usage)
	return nil
}

// fanOut mirrors the row to analytics and publishes the usage event. Both
// are best effort and never affect the request outcome.
func (p *TrackedPipe) fanOut(req Request, usage ai.TokenCount) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	now := time.Now()

	if p.analytics != nil {
		row := &clickhouserepo.UsageRow{
			LogDate:        now,
			Provider:       string(req.Provider),
			ModelID:        req.Model,
			UserID:         req.User.ID,
			PromptTokens:   usage.PromptTokens,
			ResponseTokens: usage.ResponseTokens,
			CreditsSpent:   p.creditsSpent(ctx, req, usage),
		}
		if err := p.analytics.Store(ctx, row); err != nil {
			p.log.Errorw("failed to mirror usage row", "user", req.User.ID, "error", err)
		}
	}

	p.publisher.PublishUsage(ctx, events.UsageLogged{
		Provider:       string(req.Provider),
		ModelID:        req.Model,
		UserID:         req.User.ID,
		PromptTokens:   usage.PromptTokens,
		ResponseTokens: usage.ResponseTokens,
		LoggedAt:       now,
	})
}

// creditsSpent prices the call for analytics. Zero on any lookup failure:
// the analytics mirror never blocks or degrades the request path.
func (p *TrackedPipe) creditsSpent(ctx context.Context, req Request, usage ai.TokenCount) float64 {
	models, err := p.catalog.GetModels(ctx, string(req.Provider))
	if err != nil {
		return 0
	}
	for _, m := range models {
		if m.ID == req.Model {
			return m.CreditsForTokens(usage.PromptTokens, usage.ResponseTokens)
		}
	}
	return 0
}

func (p *TrackedPipe) chatRequest(req Request) ai.ChatRequest {
	return ai.ChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

func completionTokens(c *ai.Completion) int64 {
	if c == nil {
		return 0
	}
	return c.Usage.PromptTokens
}

func completionResponseTokens(c *ai.Completion) int64 {
	if c == nil {
		return 0
	}
	return c.Usage.ResponseTokens
}
