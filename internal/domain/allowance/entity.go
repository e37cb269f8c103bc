package allowance

import (
	"time"

	"github.com/google/uuid"
)

// BaseCreditAllowanceKey is the settings key holding the flat monthly credit
// allowance granted to every user unconditionally.
const BaseCreditAllowanceKey = "base_credit_allowance"

// CreditGroup grants its members an additional monthly credit allowance.
// Group allowances are additive: a user's group allowance is the sum of
// MaxCredit over all groups they belong to.
type CreditGroup struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"` // unique
	MaxCredit   int64     `db:"max_credit"`
	Description string    `db:"description"`
}

// BaseSetting is a process-wide key/value configuration row.
type BaseSetting struct {
	Key   string `db:"setting_key"`
	Value string `db:"setting_value"`
}

// SponsoredAllowance is a named, model-scoped credit pool funded by a third
// party. TotalCreditLimit caps lifetime spend across all users;
// MonthlyCreditLimit caps spend per user per month and may be nil, meaning
// only the total cap applies.
type SponsoredAllowance struct {
	ID                 uuid.UUID `db:"id"`
	CreatedAt          time.Time `db:"creation_date"`
	Name               string    `db:"name"` // treated as a lookup key by callers
	SponsorID          string    `db:"sponsor_id"`
	TotalCreditLimit   int64     `db:"total_credit_limit"`
	MonthlyCreditLimit *int64    `db:"monthly_credit_limit"`

	// Models is the set of model ids eligible under this allowance.
	Models []string `db:"-"`
}

// Limit is a resolved credit ceiling. Unbounded is true when a sponsored
// allowance carries no monthly cap; Credits is meaningless in that case.
type Limit struct {
	Credits   int64
	Unbounded bool
}
