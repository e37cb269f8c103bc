package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"creditgate/internal/domain/allowance"
	pkgerrors "creditgate/pkg/errors"
)

// Compile-time check
var _ allowance.SponsoredRepository = (*SponsoredAllowanceRepository)(nil)

// SponsoredAllowanceRepository implements allowance.SponsoredRepository
// using sqlx. It takes *sqlx.DB rather than DBTX because writes span the
// allowance row and its model join rows, which must commit together.
type SponsoredAllowanceRepository struct {
	db *sqlx.DB
}

// NewSponsoredAllowanceRepository creates a new sponsored allowance repository
func NewSponsoredAllowanceRepository(db *sqlx.DB) *SponsoredAllowanceRepository {
	return &SponsoredAllowanceRepository{db: db}
}

// Create inserts an allowance row and its model joins in one transaction
func (r *SponsoredAllowanceRepository) Create(ctx context.Context, sa *allowance.SponsoredAllowance) error {
	if sa.ID == uuid.Nil {
		sa.ID = uuid.New()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO sponsored_allowances (
			id, creation_date, name, sponsor_id,
			total_credit_limit, monthly_credit_limit
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err = tx.ExecContext(ctx, query,
		sa.ID, sa.CreatedAt, sa.Name, sa.SponsorID,
		sa.TotalCreditLimit, sa.MonthlyCreditLimit,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(pkgerrors.ErrAlreadyExists, "sponsored allowance %q", sa.Name)
		}
		return pkgerrors.Wrap(err, "failed to create sponsored allowance")
	}

	if err := insertAllowanceModels(ctx, tx, sa.ID, sa.Models); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit sponsored allowance")
	}

	return nil
}

// GetByID retrieves a sponsored allowance with its model list
func (r *SponsoredAllowanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*allowance.SponsoredAllowance, error) {
	query := `
		SELECT id, creation_date, name, sponsor_id,
		       total_credit_limit, monthly_credit_limit
		FROM sponsored_allowances
		WHERE id = $1`

	var sa allowance.SponsoredAllowance
	err := r.db.GetContext(ctx, &sa, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "sponsored allowance %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get sponsored allowance")
	}

	if sa.Models, err = r.loadModels(ctx, sa.ID); err != nil {
		return nil, err
	}

	return &sa, nil
}

// GetByName retrieves a sponsored allowance by its unique name
func (r *SponsoredAllowanceRepository) GetByName(ctx context.Context, name string) (*allowance.SponsoredAllowance, error) {
	query := `
		SELECT id, creation_date, name, sponsor_id,
		       total_credit_limit, monthly_credit_limit
		FROM sponsored_allowances
		WHERE name = $1`

	var sa allowance.SponsoredAllowance
	err := r.db.GetContext(ctx, &sa, query, name)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "sponsored allowance %q", name)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get sponsored allowance by name")
	}

	if sa.Models, err = r.loadModels(ctx, sa.ID); err != nil {
		return nil, err
	}

	return &sa, nil
}

// List retrieves sponsored allowances, optionally filtered by sponsor
func (r *SponsoredAllowanceRepository) List(ctx context.Context, sponsorID string) ([]allowance.SponsoredAllowance, error) {
	query := `
		SELECT id, creation_date, name, sponsor_id,
		       total_credit_limit, monthly_credit_limit
		FROM sponsored_allowances`
	args := []interface{}{}
	if sponsorID != "" {
		query += ` WHERE sponsor_id = $1`
		args = append(args, sponsorID)
	}
	query += ` ORDER BY name`

	var list []allowance.SponsoredAllowance
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list sponsored allowances")
	}

	for i := range list {
		models, err := r.loadModels(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Models = models
	}

	return list, nil
}

// Update rewrites the allowance row; when sa.Models is non-nil the model
// joins are replaced wholesale in the same transaction.
func (r *SponsoredAllowanceRepository) Update(ctx context.Context, sa *allowance.SponsoredAllowance) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		UPDATE sponsored_allowances
		SET name = $2, sponsor_id = $3,
		    total_credit_limit = $4, monthly_credit_limit = $5
		WHERE id = $1`

	res, err := tx.ExecContext(ctx, query,
		sa.ID, sa.Name, sa.SponsorID,
		sa.TotalCreditLimit, sa.MonthlyCreditLimit,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(pkgerrors.ErrAlreadyExists, "sponsored allowance %q", sa.Name)
		}
		return pkgerrors.Wrap(err, "failed to update sponsored allowance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "sponsored allowance %s", sa.ID)
	}

	if sa.Models != nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM sponsored_allowance_models WHERE sponsored_allowance_id = $1`, sa.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to clear allowance models")
		}
		if err := insertAllowanceModels(ctx, tx, sa.ID, sa.Models); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit sponsored allowance update")
	}

	return nil
}

// Delete removes the allowance and its model joins. Usage rows keep their
// sponsored_allowance_id for historical accounting.
func (r *SponsoredAllowanceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`DELETE FROM sponsored_allowance_models WHERE sponsored_allowance_id = $1`, id)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to delete allowance models")
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sponsored_allowances WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to delete sponsored allowance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "sponsored allowance %s", id)
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit sponsored allowance delete")
	}

	return nil
}

func (r *SponsoredAllowanceRepository) loadModels(ctx context.Context, id uuid.UUID) ([]string, error) {
	query := `
		SELECT model_id FROM sponsored_allowance_models
		WHERE sponsored_allowance_id = $1
		ORDER BY model_id`

	var models []string
	if err := r.db.SelectContext(ctx, &models, query, id); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load allowance models")
	}

	return models, nil
}

func insertAllowanceModels(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, models []string) error {
	for _, m := range models {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sponsored_allowance_models (sponsored_allowance_id, model_id) VALUES ($1, $2)`,
			id, m)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to link model %s", m)
		}
	}
	return nil
}
