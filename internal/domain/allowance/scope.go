package allowance

import "github.com/google/uuid"

// Scope identifies which ledger a usage row or limit check belongs to.
// Personal usage and each sponsored allowance are fully separate ledgers,
// keyed by the sponsored allowance id (NULL in storage for personal usage).
// The scope is always passed explicitly, never inferred from optional
// arguments.
type Scope struct {
	sponsored bool
	id        uuid.UUID
}

// Personal returns the scope covering a user's own base and group allowances.
func Personal() Scope {
	return Scope{}
}

// Sponsored returns the scope of a specific sponsored allowance.
func Sponsored(id uuid.UUID) Scope {
	return Scope{sponsored: true, id: id}
}

// IsSponsored reports whether the scope refers to a sponsored allowance.
func (s Scope) IsSponsored() bool {
	return s.sponsored
}

// AllowanceID returns the sponsored allowance id when the scope is sponsored.
func (s Scope) AllowanceID() (uuid.UUID, bool) {
	return s.id, s.sponsored
}

func (s Scope) String() string {
	if s.sponsored {
		return "sponsored:" + s.id.String()
	}
	return "personal"
}
