package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/lantern/internal/database"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

// Create persists a session keyed by its token hash
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt,
		nullableString(session.IPAddress), nullableString(session.UserAgent),
	)
	return database.MapPostgresError(err)
}

// GetByTokenHash returns the session regardless of expiry; callers decide validity
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT token_hash, user_id, created_at, expires_at, ip_address, user_agent
		FROM sessions WHERE token_hash = $1
	`

	var session models.Session
	var ipAddress, userAgent *string

	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.TokenHash, &session.UserID, &session.CreatedAt, &session.ExpiresAt,
		&ipAddress, &userAgent,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if ipAddress != nil {
		session.IPAddress = *ipAddress
	}
	if userAgent != nil {
		session.UserAgent = *userAgent
	}

	return &session, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return database.MapPostgresError(err)
}

// DeleteByUserID removes every session owned by a user
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions whose expiry is at or before now (call periodically)
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
