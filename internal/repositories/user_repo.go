package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/lantern/internal/database"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, group_name, created_at, last_login_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var email, passwordHash *string
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &email, &passwordHash, &user.Group,
		&user.CreatedAt, &lastLoginAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		user.Email = *email
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

// Create inserts a user. A duplicate username yields models.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()

	if user.Group == "" {
		user.Group = models.GroupUser
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, group_name, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, nullableString(user.Email), nullableString(user.PasswordHash),
		user.Group, user.CreatedAt, user.LastLoginAt,
	))
}

// UpdateLastLogin stamps the last successful login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetEmailIfEmpty fills the email of a user that has none recorded
func (r *UserRepository) SetEmailIfEmpty(ctx context.Context, id, email string) error {
	query := `UPDATE users SET email = $1 WHERE id = $2 AND (email IS NULL OR email = '')`

	_, err := r.pool.Exec(ctx, query, email, id)
	return database.MapPostgresError(err)
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
