package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/lantern/internal/models"
	"github.com/BradenHooton/lantern/internal/repositories"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsStore(values map[string]string) *MockSettingsRepository {
	return &MockSettingsRepository{
		GetManyFunc: func(ctx context.Context, keys ...string) (map[string]string, error) {
			out := make(map[string]string)
			for _, k := range keys {
				if v, ok := values[k]; ok {
					out[k] = v
				}
			}
			return out, nil
		},
		SetManyFunc: func(ctx context.Context, updates map[string]string) error {
			for k, v := range updates {
				values[k] = v
			}
			return nil
		},
	}
}

func newSettingsService(repo SettingsRepository) *SettingsService {
	logger := slog.Default()
	return NewSettingsService(repo, models.GroupUser, pkglogger.NewAuditLogger(logger), logger)
}

func TestGetProxyTrustConfig_Defaults(t *testing.T) {
	svc := newSettingsService(settingsStore(map[string]string{}))

	cfg, err := svc.GetProxyTrustConfig(context.Background())

	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, models.DefaultUsernameHeader, cfg.UsernameHeader)
	assert.Equal(t, models.DefaultEmailHeader, cfg.EmailHeader)
	assert.Empty(t, cfg.Whitelist)
}

func TestGetProxyTrustConfig_StoredValues(t *testing.T) {
	svc := newSettingsService(settingsStore(map[string]string{
		repositories.SettingProxyAuthEnabled:        "true",
		repositories.SettingProxyAuthUsernameHeader: "Remote-User",
		repositories.SettingProxyAuthWhitelist:      "172.19.0.0/16",
	}))

	cfg, err := svc.GetProxyTrustConfig(context.Background())

	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "Remote-User", cfg.UsernameHeader)
	assert.Equal(t, models.DefaultEmailHeader, cfg.EmailHeader)
	assert.Equal(t, "172.19.0.0/16", cfg.Whitelist)
}

func TestGetProxyTrustConfig_UnparsableEnabledIsOff(t *testing.T) {
	svc := newSettingsService(settingsStore(map[string]string{
		repositories.SettingProxyAuthEnabled:   "maybe",
		repositories.SettingProxyAuthWhitelist: "0.0.0.0/0",
	}))

	cfg, err := svc.GetProxyTrustConfig(context.Background())

	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestGetProxyTrustConfig_StoreError(t *testing.T) {
	svc := newSettingsService(&MockSettingsRepository{
		GetManyFunc: func(ctx context.Context, keys ...string) (map[string]string, error) {
			return nil, errors.New("timeout")
		},
	})

	_, err := svc.GetProxyTrustConfig(context.Background())

	assert.Error(t, err)
}

func TestUpdateProxyTrustConfig_VisibleOnNextRead(t *testing.T) {
	values := map[string]string{}
	svc := newSettingsService(settingsStore(values))
	admin := NewTestUser("a1", "root", models.GroupAdmin)

	saved, warnings, err := svc.UpdateProxyTrustConfig(context.Background(), models.ProxyTrustConfig{
		Enabled:   true,
		Whitelist: " 10.0.0.0/8, bogus ",
	}, admin)

	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, models.DefaultUsernameHeader, saved.UsernameHeader)
	assert.Equal(t, "10.0.0.0/8, bogus", saved.Whitelist)

	cfg, err := svc.GetProxyTrustConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "10.0.0.0/8, bogus", cfg.Whitelist)
	assert.Equal(t, "true", values[repositories.SettingProxyAuthEnabled])
}

func TestUpdateProxyTrustConfig_StoreError(t *testing.T) {
	svc := newSettingsService(&MockSettingsRepository{
		SetManyFunc: func(ctx context.Context, values map[string]string) error {
			return errors.New("read-only transaction")
		},
	})

	_, _, err := svc.UpdateProxyTrustConfig(context.Background(), models.ProxyTrustConfig{}, nil)

	assert.Error(t, err)
}

func TestDefaultGroup(t *testing.T) {
	stored := newSettingsService(settingsStore(map[string]string{repositories.SettingDefaultGroup: "viewers"}))
	assert.Equal(t, "viewers", stored.DefaultGroup(context.Background()))

	missing := newSettingsService(settingsStore(map[string]string{}))
	assert.Equal(t, models.GroupUser, missing.DefaultGroup(context.Background()))

	failing := newSettingsService(&MockSettingsRepository{
		GetManyFunc: func(ctx context.Context, keys ...string) (map[string]string, error) {
			return nil, errors.New("down")
		},
	})
	assert.Equal(t, models.GroupUser, failing.DefaultGroup(context.Background()))
}
