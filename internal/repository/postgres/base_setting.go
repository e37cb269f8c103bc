package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"creditgate/internal/domain/allowance"
	pkgerrors "creditgate/pkg/errors"
)

// Compile-time check
var _ allowance.SettingRepository = (*BaseSettingRepository)(nil)

// BaseSettingRepository implements allowance.SettingRepository using sqlx
type BaseSettingRepository struct {
	db DBTX
}

// NewBaseSettingRepository creates a new base setting repository
func NewBaseSettingRepository(db DBTX) *BaseSettingRepository {
	return &BaseSettingRepository{db: db}
}

// GetInt reads a setting row and parses its value as an integer. A missing
// row or an unparseable value is a configuration error: the deployment is
// expected to seed the base allowance before serving traffic.
func (r *BaseSettingRepository) GetInt(ctx context.Context, key string) (int64, error) {
	query := `SELECT setting_value FROM base_settings WHERE setting_key = $1`

	var raw string
	err := r.db.GetContext(ctx, &raw, query, key)
	if err == sql.ErrNoRows {
		return 0, pkgerrors.Wrapf(pkgerrors.ErrConfiguration, "setting %q is not defined", key)
	}
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to get base setting")
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(pkgerrors.ErrConfiguration, "setting %q is not an integer: %q", key, raw)
	}

	return v, nil
}

// Set upserts a setting row
func (r *BaseSettingRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO base_settings (setting_key, setting_value, description)
		VALUES ($1, $2, '')
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return pkgerrors.Wrap(err, "failed to set base setting")
	}

	return nil
}
