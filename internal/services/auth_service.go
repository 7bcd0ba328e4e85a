package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/lantern/internal/models"
	pkgauth "github.com/BradenHooton/lantern/pkg/auth"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetEmailIfEmpty(ctx context.Context, id, email string) error
	Count(ctx context.Context) (int, error)
}

// SessionIssuer creates and revokes sessions
type SessionIssuer interface {
	Create(ctx context.Context, user *models.User, ttl time.Duration, meta models.SessionMetadata) (string, *models.Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// SessionLifetimes are the TTLs applied at login
type SessionLifetimes struct {
	Default    time.Duration
	RememberMe time.Duration
}

// LoginResult is a successful local login
type LoginResult struct {
	Token   string
	Session *models.Session
	User    *models.User
	TTL     time.Duration
}

// AuthService handles local username/password authentication
type AuthService struct {
	users       UserRepository
	sessions    SessionIssuer
	lifetimes   SessionLifetimes
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, sessions SessionIssuer, lifetimes SessionLifetimes, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		lifetimes:   lifetimes,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login verifies the password and opens a session. Unknown users, users
// without a local credential and wrong passwords all return ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string, rememberMe bool, meta models.SessionMetadata) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials")
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.BurnComparison(password)
			s.auditFailure(username, "", meta, "invalid_credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up user for login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.HasUsableCredential() {
		pkgauth.BurnComparison(password)
		s.auditFailure(username, user.ID, meta, "no_local_credential")
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.auditFailure(username, user.ID, meta, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	ttl := s.lifetimes.Default
	if rememberMe && s.lifetimes.RememberMe > 0 {
		ttl = s.lifetimes.RememberMe
	}

	token, session, err := s.sessions.Create(ctx, user, ttl, meta)
	if err != nil {
		s.logger.Error("failed to create session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Username:  user.Username,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &LoginResult{Token: token, Session: session, User: user, TTL: ttl}, nil
}

func (s *AuthService) auditFailure(username, userID string, meta models.SessionMetadata, reason string) {
	s.logger.Info("login failed", slog.String("reason", reason))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     pkglogger.EventLogin,
		UserID:        userID,
		Username:      username,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       false,
		FailureReason: reason,
	})
}

// Logout revokes the session behind token. Unknown tokens succeed.
func (s *AuthService) Logout(ctx context.Context, token string, user *models.User, meta models.SessionMetadata) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		s.logger.Error("failed to revoke session", slog.Any("error", err))
		return models.ErrInternalServer
	}

	event := pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	s.auditLogger.LogAuthAttempt(event)

	return nil
}

// LogoutEverywhere revokes every session the user holds, on any device
func (s *AuthService) LogoutEverywhere(ctx context.Context, user *models.User, meta models.SessionMetadata) (int64, error) {
	if user == nil {
		return 0, models.ErrUnauthorized
	}

	revoked, err := s.sessions.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to revoke user sessions",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLogoutEverywhere,
		UserID:    user.ID,
		Username:  user.Username,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Metadata:  map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)},
	})

	return revoked, nil
}

// BootstrapAdmin creates the first administrator when the user table is
// empty. It is a no-op once any account exists.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, nil
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("admin password rejected: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Group:        models.GroupAdmin,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, nil
		}
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: pkglogger.EventAdminBootstrap,
		UserID:    user.ID,
		Username:  user.Username,
	})

	return user, nil
}
