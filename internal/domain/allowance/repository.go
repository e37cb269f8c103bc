package allowance

import (
	"context"

	"github.com/google/uuid"
)

// GroupRepository defines operations for credit groups and their memberships.
type GroupRepository interface {
	// Create inserts a new credit group
	Create(ctx context.Context, group *CreditGroup) error

	// GetByName retrieves a credit group by its unique name
	GetByName(ctx context.Context, name string) (*CreditGroup, error)

	// List retrieves all credit groups
	List(ctx context.Context) ([]CreditGroup, error)

	// AddUser adds a user to a credit group
	AddUser(ctx context.Context, groupID uuid.UUID, userID string) error

	// RemoveUser removes a user from a credit group
	RemoveUser(ctx context.Context, groupID uuid.UUID, userID string) error

	// SumUserAllowance returns the sum of max_credit over all groups the
	// user belongs to (0 when the user has no memberships)
	SumUserAllowance(ctx context.Context, userID string) (int64, error)
}

// SettingRepository reads process-wide base settings.
type SettingRepository interface {
	// GetInt retrieves a setting value parsed as an integer
	GetInt(ctx context.Context, key string) (int64, error)
}

// SponsoredRepository defines operations for sponsored allowance persistence.
// Create and Update replace the eligible model set atomically with the row
// itself; Delete cascades to the model join table first.
type SponsoredRepository interface {
	Create(ctx context.Context, a *SponsoredAllowance) error
	GetByID(ctx context.Context, id uuid.UUID) (*SponsoredAllowance, error)
	GetByName(ctx context.Context, name string) (*SponsoredAllowance, error)

	// List retrieves all sponsored allowances ordered by name, optionally
	// filtered by sponsor id (empty = all sponsors)
	List(ctx context.Context, sponsorID string) ([]SponsoredAllowance, error)

	// Update persists the full row and, when a.Models is non-nil, replaces
	// the eligible model set
	Update(ctx context.Context, a *SponsoredAllowance) error

	Delete(ctx context.Context, id uuid.UUID) error
}
