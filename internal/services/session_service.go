package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/lantern/internal/models"
	pkgauth "github.com/BradenHooton/lantern/pkg/auth"
)

// SessionRepository defines the interface for session persistence
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LookupOutcome classifies a session lookup
type LookupOutcome string

const (
	LookupFound    LookupOutcome = "found"
	LookupNotFound LookupOutcome = "not_found"
	LookupExpired  LookupOutcome = "expired"
	LookupError    LookupOutcome = "error"
)

// SessionLookup is the result of resolving a session token
type SessionLookup struct {
	Outcome LookupOutcome
	Session *models.Session
	User    *models.User
	Err     error
}

// SessionRecorder observes lookup outcomes (metrics)
type SessionRecorder interface {
	RecordSessionLookup(outcome string)
}

// SessionService issues, validates and revokes server-side sessions
type SessionService struct {
	sessions SessionRepository
	users    UserRepository
	recorder SessionRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a new SessionService. recorder may be nil.
func NewSessionService(sessions SessionRepository, users UserRepository, recorder SessionRecorder, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Create issues a new session for the user and returns the raw token.
// Only the token's hash is persisted.
func (s *SessionService) Create(ctx context.Context, user *models.User, ttl time.Duration, meta models.SessionMetadata) (string, *models.Session, error) {
	if user == nil || user.ID == "" {
		return "", nil, fmt.Errorf("create session: %w", models.ErrBadRequest)
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("create session: non-positive ttl: %w", models.ErrBadRequest)
	}

	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	session := &models.Session{
		TokenHash: pkgauth.HashToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("failed to persist session", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	return token, session, nil
}

// Lookup resolves a token. Expired sessions are deleted on sight.
func (s *SessionService) Lookup(ctx context.Context, token string) SessionLookup {
	result := s.lookup(ctx, token)
	if s.recorder != nil {
		s.recorder.RecordSessionLookup(string(result.Outcome))
	}
	return result
}

func (s *SessionService) lookup(ctx context.Context, token string) SessionLookup {
	if token == "" {
		return SessionLookup{Outcome: LookupNotFound}
	}

	tokenHash := pkgauth.HashToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SessionLookup{Outcome: LookupNotFound}
		}
		return SessionLookup{Outcome: LookupError, Err: err}
	}

	if !session.IsValidAt(s.now()) {
		if err := s.sessions.Delete(ctx, tokenHash); err != nil {
			s.logger.Warn("failed to delete expired session", slog.Any("error", err))
		}
		return SessionLookup{Outcome: LookupExpired, Session: session}
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SessionLookup{Outcome: LookupNotFound}
		}
		return SessionLookup{Outcome: LookupError, Err: err}
	}

	return SessionLookup{Outcome: LookupFound, Session: session, User: user}
}

// Validate returns the session owner, or false for missing, unknown,
// expired or unreadable sessions. Storage failures are logged, never raised.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.User, bool) {
	result := s.Lookup(ctx, token)

	switch result.Outcome {
	case LookupFound:
		return result.User, true
	case LookupError:
		s.logger.Error("session lookup failed; treating as unauthenticated", slog.Any("error", result.Err))
	}
	return nil, false
}

// Revoke deletes the session for a token. Revoking an unknown token succeeds.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, pkgauth.HashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every session owned by the user
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return n, nil
}

// CleanupExpired purges sessions past their expiry
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return n, nil
}
