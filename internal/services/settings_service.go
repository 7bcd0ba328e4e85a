package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/BradenHooton/lantern/internal/repositories"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
)

// SettingsRepository defines the interface for the key/value settings store
type SettingsRepository interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
}

var proxySettingKeys = []string{
	repositories.SettingProxyAuthEnabled,
	repositories.SettingProxyAuthUsernameHeader,
	repositories.SettingProxyAuthEmailHeader,
	repositories.SettingProxyAuthWhitelist,
}

// SettingsService reads and writes administrator-managed settings.
// Every read goes to the store, so a saved change applies to the next request.
type SettingsService struct {
	repo         SettingsRepository
	defaultGroup string
	auditLogger  *pkglogger.AuditLogger
	logger       *slog.Logger
}

// NewSettingsService creates a new SettingsService. defaultGroup is used
// when the default_group setting is absent.
func NewSettingsService(repo SettingsRepository, defaultGroup string, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultGroup == "" {
		defaultGroup = models.GroupUser
	}
	return &SettingsService{
		repo:         repo,
		defaultGroup: defaultGroup,
		auditLogger:  auditLogger,
		logger:       logger,
	}
}

// GetProxyTrustConfig returns the saved proxy trust configuration with
// defaults filled in for absent keys
func (s *SettingsService) GetProxyTrustConfig(ctx context.Context) (models.ProxyTrustConfig, error) {
	values, err := s.repo.GetMany(ctx, proxySettingKeys...)
	if err != nil {
		return models.ProxyTrustConfig{}, fmt.Errorf("load proxy trust config: %w", err)
	}

	cfg := models.ProxyTrustConfig{
		UsernameHeader: models.DefaultUsernameHeader,
		EmailHeader:    models.DefaultEmailHeader,
	}

	if raw, ok := values[repositories.SettingProxyAuthEnabled]; ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			s.logger.Warn("unparsable proxy_auth.enabled value; proxy auth disabled", slog.String("value", raw))
		}
		cfg.Enabled = enabled
	}
	if v := strings.TrimSpace(values[repositories.SettingProxyAuthUsernameHeader]); v != "" {
		cfg.UsernameHeader = v
	}
	if v := strings.TrimSpace(values[repositories.SettingProxyAuthEmailHeader]); v != "" {
		cfg.EmailHeader = v
	}
	cfg.Whitelist = values[repositories.SettingProxyAuthWhitelist]

	return cfg, nil
}

// UpdateProxyTrustConfig saves the configuration atomically. The returned
// warnings list whitelist entries that will be ignored.
func (s *SettingsService) UpdateProxyTrustConfig(ctx context.Context, cfg models.ProxyTrustConfig, actor *models.User) (models.ProxyTrustConfig, []error, error) {
	cfg.UsernameHeader = strings.TrimSpace(cfg.UsernameHeader)
	if cfg.UsernameHeader == "" {
		cfg.UsernameHeader = models.DefaultUsernameHeader
	}
	cfg.EmailHeader = strings.TrimSpace(cfg.EmailHeader)
	if cfg.EmailHeader == "" {
		cfg.EmailHeader = models.DefaultEmailHeader
	}
	cfg.Whitelist = strings.TrimSpace(cfg.Whitelist)

	whitelist, warnings := auth.ParseWhitelist(cfg.Whitelist)
	if cfg.Enabled && whitelist.Len() == 0 {
		s.logger.Warn("proxy auth enabled with no usable whitelist entries; identity headers will be ignored")
	}

	err := s.repo.SetMany(ctx, map[string]string{
		repositories.SettingProxyAuthEnabled:        strconv.FormatBool(cfg.Enabled),
		repositories.SettingProxyAuthUsernameHeader: cfg.UsernameHeader,
		repositories.SettingProxyAuthEmailHeader:    cfg.EmailHeader,
		repositories.SettingProxyAuthWhitelist:      cfg.Whitelist,
	})
	if err != nil {
		s.logger.Error("failed to save proxy trust config", slog.Any("error", err))
		return models.ProxyTrustConfig{}, nil, fmt.Errorf("save proxy trust config: %w", err)
	}

	event := pkglogger.AuditEvent{
		EventType: pkglogger.EventProxyConfig,
		Metadata: map[string]string{
			"enabled":         strconv.FormatBool(cfg.Enabled),
			"whitelist_count": strconv.Itoa(whitelist.Len()),
		},
	}
	if actor != nil {
		event.UserID = actor.ID
		event.Username = actor.Username
	}
	s.auditLogger.LogAccountAction(event)

	return cfg, warnings, nil
}

// DefaultGroup returns the group assigned to provisioned users
func (s *SettingsService) DefaultGroup(ctx context.Context) string {
	values, err := s.repo.GetMany(ctx, repositories.SettingDefaultGroup)
	if err != nil {
		s.logger.Warn("failed to read default group; using configured fallback",
			slog.String("group", s.defaultGroup), slog.Any("error", err))
		return s.defaultGroup
	}

	if group := strings.TrimSpace(values[repositories.SettingDefaultGroup]); group != "" {
		return group
	}
	return s.defaultGroup
}
