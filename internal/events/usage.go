package events

import (
	"context"
	"time"

	"creditgate/internal/adapters/kafka"
	"creditgate/pkg/logger"
)

// UsageLogged is emitted after a usage row commits. Consumers (billing
// reconciliation, dashboards) treat it as an at-most-once hint; the postgres
// table stays the source of truth.
type UsageLogged struct {
	Provider             string    `json:"provider"`
	ModelID              string    `json:"model_id"`
	UserID               string    `json:"user_id"`
	PromptTokens         int64     `json:"prompt_tokens"`
	ResponseTokens       int64     `json:"response_tokens"`
	SponsoredAllowanceID string    `json:"sponsored_allowance_id,omitempty"`
	LoggedAt             time.Time `json:"logged_at"`
}

// UsagePublisher publishes UsageLogged events.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, ev UsageLogged)
}

// KafkaUsagePublisher publishes usage events through a kafka producer.
// Publishing is best effort: failures are logged and never propagate into
// the request path.
type KafkaUsagePublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaUsagePublisher(producer *kafka.Producer) *KafkaUsagePublisher {
	return &KafkaUsagePublisher{
		producer: producer,
		log:      logger.Get().With("component", "usage_publisher"),
	}
}

func (p *KafkaUsagePublisher) PublishUsage(ctx context.Context, ev UsageLogged) {
	if err := p.producer.Publish(ctx, ev.UserID, ev); err != nil {
		p.log.Errorw("failed to publish usage event",
			"user", ev.UserID, "model", ev.ModelID, "error", err)
	}
}

// NopUsagePublisher discards events. Used when kafka is not configured.
type NopUsagePublisher struct{}

func (NopUsagePublisher) PublishUsage(context.Context, UsageLogged) {}
