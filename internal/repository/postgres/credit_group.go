package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"creditgate/internal/domain/allowance"
	pkgerrors "creditgate/pkg/errors"
)

// Compile-time check
var _ allowance.GroupRepository = (*CreditGroupRepository)(nil)

// CreditGroupRepository implements allowance.GroupRepository using sqlx
type CreditGroupRepository struct {
	db DBTX
}

// NewCreditGroupRepository creates a new credit group repository
func NewCreditGroupRepository(db DBTX) *CreditGroupRepository {
	return &CreditGroupRepository{db: db}
}

// Create inserts a new credit group
func (r *CreditGroupRepository) Create(ctx context.Context, g *allowance.CreditGroup) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}

	query := `
		INSERT INTO credit_groups (id, name, max_credit, description)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.MaxCredit, g.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(pkgerrors.ErrAlreadyExists, "credit group %q", g.Name)
		}
		return pkgerrors.Wrap(err, "failed to create credit group")
	}

	return nil
}

// GetByName retrieves a credit group by its unique name
func (r *CreditGroupRepository) GetByName(ctx context.Context, name string) (*allowance.CreditGroup, error) {
	query := `
		SELECT id, name, max_credit, description
		FROM credit_groups
		WHERE name = $1`

	var g allowance.CreditGroup
	err := r.db.GetContext(ctx, &g, query, name)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "credit group %q", name)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get credit group by name")
	}

	return &g, nil
}

// List retrieves all credit groups
func (r *CreditGroupRepository) List(ctx context.Context) ([]allowance.CreditGroup, error) {
	query := `
		SELECT id, name, max_credit, description
		FROM credit_groups
		ORDER BY name`

	var groups []allowance.CreditGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list credit groups")
	}

	return groups, nil
}

// AddUser links a user to a credit group. Adding twice is idempotent.
func (r *CreditGroupRepository) AddUser(ctx context.Context, groupID uuid.UUID, userID string) error {
	query := `
		INSERT INTO credit_group_users (credit_group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return pkgerrors.Wrap(err, "failed to add user to credit group")
	}

	return nil
}

// RemoveUser unlinks a user from a credit group
func (r *CreditGroupRepository) RemoveUser(ctx context.Context, groupID uuid.UUID, userID string) error {
	query := `
		DELETE FROM credit_group_users
		WHERE credit_group_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return pkgerrors.Wrap(err, "failed to remove user from credit group")
	}

	return nil
}

// SumUserAllowance sums max_credit over every group the user belongs to.
// A user in no groups contributes zero.
func (r *CreditGroupRepository) SumUserAllowance(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(g.max_credit), 0)
		FROM credit_groups g
		JOIN credit_group_users gu ON gu.credit_group_id = g.id
		WHERE gu.user_id = $1`

	var sum int64
	if err := r.db.GetContext(ctx, &sum, query, userID); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to sum group allowances")
	}

	return sum, nil
}
