package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/lantern/internal/models"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
)

// GroupSource supplies the group for newly provisioned accounts
type GroupSource interface {
	DefaultGroup(ctx context.Context) string
}

// ProvisionRecorder observes account creation (metrics)
type ProvisionRecorder interface {
	RecordUserProvisioned()
}

// ProvisioningService creates local accounts for usernames asserted by a
// trusted proxy. Accounts it creates have no password and cannot log in locally.
type ProvisioningService struct {
	users       UserRepository
	groups      GroupSource
	recorder    ProvisionRecorder
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewProvisioningService creates a new ProvisioningService. recorder may be nil.
func NewProvisioningService(users UserRepository, groups GroupSource, recorder ProvisionRecorder, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *ProvisioningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisioningService{
		users:       users,
		groups:      groups,
		recorder:    recorder,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// EnsureUser returns the account for username, creating it on first sight.
// Concurrent calls for the same new username yield exactly one account:
// the loser of the insert race re-reads the winner's row.
func (s *ProvisioningService) EnsureUser(ctx context.Context, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, fmt.Errorf("ensure user: empty username: %w", models.ErrBadRequest)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return s.fillEmail(ctx, user, email), nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ensure user: lookup: %w", err)
	}

	group := models.GroupUser
	if s.groups != nil {
		group = s.groups.DefaultGroup(ctx)
	}

	created, err := s.users.Create(ctx, &models.User{
		Username: username,
		Email:    email,
		Group:    group,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			existing, getErr := s.users.GetByUsername(ctx, username)
			if getErr != nil {
				return nil, fmt.Errorf("ensure user: re-read after conflict: %w", getErr)
			}
			return s.fillEmail(ctx, existing, email), nil
		}
		return nil, fmt.Errorf("ensure user: create: %w", err)
	}

	metadata := map[string]string{"group": created.Group}
	if created.Email != "" {
		metadata["email"] = pkglogger.MaskEmail(created.Email)
	}

	s.logger.Info("provisioned user from proxy identity",
		slog.String("user_id", created.ID),
		slog.String("username", created.Username),
		slog.String("group", created.Group))
	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: pkglogger.EventUserProvisioned,
		UserID:    created.ID,
		Username:  created.Username,
		Metadata:  metadata,
	})
	if s.recorder != nil {
		s.recorder.RecordUserProvisioned()
	}

	return created, nil
}

// fillEmail records a proxy-supplied email on an account that has none.
// Failure is not fatal to authentication.
func (s *ProvisioningService) fillEmail(ctx context.Context, user *models.User, email string) *models.User {
	if email == "" || user.Email != "" {
		return user
	}
	if err := s.users.SetEmailIfEmpty(ctx, user.ID, email); err != nil {
		s.logger.Warn("failed to record proxy-supplied email",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return user
	}
	s.logger.Info("recorded proxy-supplied email",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.MaskEmail(email)))
	user.Email = email
	return user
}
