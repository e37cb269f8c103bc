package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/domain/usage"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// User is the caller identity as seen by the ledger. Users are owned by an
// external identity provider; the ledger only reads the identifier, the rest
// is carried for logging.
type User struct {
	ID    string
	Email string
	Name  string
}

// Balance is the result of a remaining-credits query.
//
// Personal is the user's remaining monthly credits in the requested scope
// (general allowance, or the per-user monthly slice of a sponsored
// allowance). PersonalUnbounded is set when a sponsored allowance carries no
// monthly cap. SponsorTotal is nil unless a sponsored allowance was
// requested; it is the remaining lifetime pool across all users.
type Balance struct {
	Personal          int64
	PersonalUnbounded bool
	SponsorTotal      *int64
}

// UsageRecord describes one completed model call to be logged.
type UsageRecord struct {
	Provider       string
	ModelID        string
	User           User
	PromptTokens   int64
	ResponseTokens int64

	// AllowanceName attributes the usage to a sponsored allowance;
	// empty means personal usage.
	AllowanceName string
}

// Ledger is the credit accounting core. It composes the allowance resolver
// and the usage aggregator, and owns the durability contract for usage
// writes.
//
// No lock serializes check-then-log: between a successful limit check and the
// usage row committing, concurrent calls by the same user may also pass their
// check, so a burst can collectively overspend past a cap. This is an
// intentional soft limit, not a hard quota reservation; see UserLocker for
// the opt-in serialization extension.
type Ledger struct {
	catalog   *pricing.Catalog
	resolver  *allowance.Resolver
	agg       *usage.Aggregator
	usageRepo usage.Repository
	log       *logger.Logger
	now       func() time.Time
}

// NewLedger constructs the credit ledger.
func NewLedger(
	catalog *pricing.Catalog,
	resolver *allowance.Resolver,
	agg *usage.Aggregator,
	usageRepo usage.Repository,
) *Ledger {
	return &Ledger{
		catalog:   catalog,
		resolver:  resolver,
		agg:       agg,
		usageRepo: usageRepo,
		log:       logger.Get().With("component", "credit_ledger"),
		now:       time.Now,
	}
}

// WithClock overrides the ledger's clock. Used by tests to pin billing
// window boundaries.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Now returns the ledger's current time. Callers that report window
// boundaries (reset times in limit errors) must share the ledger's clock.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// resolveScope maps an optional allowance name to an explicit scope plus the
// allowance record when one was named.
func (l *Ledger) resolveScope(ctx context.Context, allowanceName string) (allowance.Scope, *allowance.SponsoredAllowance, error) {
	if allowanceName == "" {
		return allowance.Personal(), nil, nil
	}
	sa, err := l.resolver.SponsoredByName(ctx, allowanceName)
	if err != nil {
		return allowance.Scope{}, nil, err
	}
	return allowance.Sponsored(sa.ID), sa, nil
}

// MaxCredits returns the user's maximum monthly credits, either from the
// base+group allowances or from the named sponsored allowance.
func (l *Ledger) MaxCredits(ctx context.Context, user User, allowanceName string) (allowance.Limit, error) {
	scope, _, err := l.resolveScope(ctx, allowanceName)
	if err != nil {
		return allowance.Limit{}, err
	}
	return l.resolver.MaxCredits(ctx, user.ID, scope)
}

// RemainingCredits returns the user's remaining monthly credits and, when a
// sponsored allowance is named, the allowance's remaining lifetime pool.
//
// The monthly balance sums the current calendar month for this user in the
// requested scope only. The sponsor total sums every user's rows in that
// scope since the allowance was created: the total cap is cross-user, the
// monthly cap is per-user.
func (l *Ledger) RemainingCredits(ctx context.Context, user User, allowanceName string) (Balance, error) {
	scope, sa, err := l.resolveScope(ctx, allowanceName)
	if err != nil {
		return Balance{}, err
	}

	limit, err := l.resolver.MaxCredits(ctx, user.ID, scope)
	if err != nil {
		return Balance{}, err
	}

	models, err := l.catalog.PaidModels(ctx)
	if err != nil {
		return Balance{}, errors.Wrap(err, "load paid models")
	}

	now := l.now()

	spent, err := l.agg.SumUsage(ctx, user.ID, usage.MonthWindow(now), models, scope)
	if err != nil {
		return Balance{}, errors.Wrapf(err, "sum monthly usage for user %s", user.ID)
	}

	bal := Balance{
		Personal:          limit.Credits - spent,
		PersonalUnbounded: limit.Unbounded,
	}

	if sa != nil {
		total, err := l.agg.SumUsage(ctx, "", usage.LifetimeWindow(sa.CreatedAt, now), models, scope)
		if err != nil {
			return Balance{}, errors.Wrapf(err, "sum lifetime usage for allowance %q", sa.Name)
		}
		remaining := sa.TotalCreditLimit - total
		bal.SponsorTotal = &remaining
	}

	return bal, nil
}

// LogTokenUsage appends one usage row for a completed model call, stamped
// with the current time. The insert is a single atomic write.
//
// There is no rollback or refund path: usage is logged only after a
// successful (or fully streamed) response, so a logging failure after a
// delivered response must be surfaced by the caller, never swallowed.
func (l *Ledger) LogTokenUsage(ctx context.Context, rec UsageRecord) error {
	var allowanceID *uuid.UUID
	if rec.AllowanceName != "" {
		sa, err := l.resolver.SponsoredByName(ctx, rec.AllowanceName)
		if err != nil {
			return err
		}
		allowanceID = &sa.ID
	}

	row := &usage.TokenUsageLog{
		Provider:             rec.Provider,
		ModelID:              rec.ModelID,
		UserID:               rec.User.ID,
		PromptTokens:         rec.PromptTokens,
		ResponseTokens:       rec.ResponseTokens,
		SponsoredAllowanceID: allowanceID,
		LogDate:              l.now(),
	}

	if err := l.usageRepo.Insert(ctx, row); err != nil {
		return errors.Wrapf(err, "log token usage for user %s model %s", rec.User.ID, rec.ModelID)
	}

	l.log.Debugw("token usage logged",
		"user", rec.User.ID,
		"model", rec.ModelID,
		"prompt_tokens", rec.PromptTokens,
		"response_tokens", rec.ResponseTokens,
		"allowance", rec.AllowanceName,
	)
	return nil
}

// IsPaid reports whether the model consumes credits.
func (l *Ledger) IsPaid(ctx context.Context, modelID string) (bool, error) {
	return l.catalog.IsPaid(ctx, modelID)
}

// GetModels returns pricing rows, optionally filtered by provider.
func (l *Ledger) GetModels(ctx context.Context, provider string) ([]pricing.ModelPricing, error) {
	return l.catalog.GetModels(ctx, provider)
}
