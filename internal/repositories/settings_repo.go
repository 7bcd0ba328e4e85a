package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/lantern/internal/database"
	"github.com/jackc/pgx/v5"
)

// Persisted setting keys
const (
	SettingProxyAuthEnabled        = "proxy_auth.enabled"
	SettingProxyAuthUsernameHeader = "proxy_auth.username_header"
	SettingProxyAuthEmailHeader    = "proxy_auth.email_header"
	SettingProxyAuthWhitelist      = "proxy_auth.whitelist"
	SettingDefaultGroup            = "default_group"
)

// SettingsRepository is a key/value store over the settings table
type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a single setting, or models.ErrNotFound
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return value, nil
}

// GetMany returns the stored values for the given keys; missing keys are absent from the map
func (r *SettingsRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT key, value FROM settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return values, nil
}

// SetMany upserts all values in one transaction
func (r *SettingsRepository) SetMany(ctx context.Context, values map[string]string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`
		for key, value := range values {
			if _, err := tx.Exec(ctx, query, key, value); err != nil {
				return database.MapPostgresError(err)
			}
		}
		return nil
	})
}
