package gate

import (
	"context"

	"creditgate/internal/domain/ledger"
	"creditgate/internal/domain/usage"
	"creditgate/internal/metrics"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// GeneralAllowanceName labels the personal base+group allowance in
// limit-exceeded errors.
const GeneralAllowanceName = "general"

// Gate decides whether a request may proceed before any provider call is
// made. It never mutates state; a passing check reserves nothing.
type Gate struct {
	ledger *ledger.Ledger
	log    *logger.Logger
}

func New(l *ledger.Ledger) *Gate {
	return &Gate{
		ledger: l,
		log:    logger.Get().With("component", "request_gate"),
	}
}

// CheckLimits allows or denies a model call for the user.
//
// Free models always pass, even when the user's balance is negative: credit
// exhaustion never blocks access to unpriced models. For paid models the
// checks run in a fixed order, and the first exhausted limit wins:
//
//  1. sponsored total pool (cross-user, lifetime of the allowance)
//  2. sponsored per-user monthly slice
//  3. personal monthly balance (base + credit groups)
//
// A sponsored allowance with no monthly cap skips check 2.
func (g *Gate) CheckLimits(ctx context.Context, modelID string, user ledger.User, allowanceName string) error {
	paid, err := g.ledger.IsPaid(ctx, modelID)
	if err != nil {
		return errors.Wrapf(err, "resolve pricing for model %s", modelID)
	}
	if !paid {
		metrics.RecordGateDecision("allow_free")
		return nil
	}

	bal, err := g.ledger.RemainingCredits(ctx, user, allowanceName)
	if err != nil {
		return errors.Wrapf(err, "remaining credits for user %s", user.ID)
	}

	if bal.SponsorTotal != nil && *bal.SponsorTotal <= 0 {
		metrics.RecordGateDecision("deny_total")
		g.log.Infow("request denied, sponsored pool exhausted",
			"user", user.ID, "model", modelID, "allowance", allowanceName)
		return &errors.TotalLimitExceededError{AllowanceName: allowanceName}
	}

	if !bal.PersonalUnbounded && bal.Personal <= 0 {
		name := allowanceName
		if name == "" {
			name = GeneralAllowanceName
		}
		limit, lerr := g.ledger.MaxCredits(ctx, user, allowanceName)
		if lerr != nil {
			return errors.Wrapf(lerr, "max credits for user %s", user.ID)
		}
		metrics.RecordGateDecision("deny_monthly")
		g.log.Infow("request denied, monthly limit exceeded",
			"user", user.ID, "model", modelID, "allowance", name)
		return &errors.MonthlyLimitExceededError{
			AllowanceName: allowanceName,
			MaxCredits:    limit.Credits,
			ResetsAt:      usage.MonthWindow(g.ledger.Now()).End,
		}
	}

	metrics.RecordGateDecision("allow")
	return nil
}
