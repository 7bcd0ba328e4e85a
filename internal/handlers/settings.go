package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/models"
	pkghttp "github.com/BradenHooton/lantern/pkg/http"
)

// SettingsServiceInterface defines the settings operations exposed over HTTP
type SettingsServiceInterface interface {
	GetProxyTrustConfig(ctx context.Context) (models.ProxyTrustConfig, error)
	UpdateProxyTrustConfig(ctx context.Context, cfg models.ProxyTrustConfig, actor *models.User) (models.ProxyTrustConfig, []error, error)
}

// SettingsHandler serves administrator settings
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// ProxyAuthRequest is the body of PUT /settings/proxy-auth
type ProxyAuthRequest struct {
	Enabled        *bool  `json:"enabled" validate:"required"`
	UsernameHeader string `json:"username_header" validate:"omitempty,max=128,header_name"`
	EmailHeader    string `json:"email_header" validate:"omitempty,max=128,header_name"`
	Whitelist      string `json:"whitelist" validate:"max=4096"`
}

// ProxyAuthResponse shows the saved settings and how the whitelist was understood
type ProxyAuthResponse struct {
	Enabled          bool     `json:"enabled"`
	UsernameHeader   string   `json:"username_header"`
	EmailHeader      string   `json:"email_header"`
	Whitelist        string   `json:"whitelist"`
	EffectiveEntries []string `json:"effective_entries"`
	Warnings         []string `json:"warnings"`
}

func toProxyAuthResponse(cfg models.ProxyTrustConfig) ProxyAuthResponse {
	whitelist, errs := auth.ParseWhitelist(cfg.Whitelist)

	entries := make([]string, 0, whitelist.Len())
	for _, p := range whitelist.Prefixes() {
		entries = append(entries, p.String())
	}
	warnings := make([]string, 0, len(errs))
	for _, err := range errs {
		warnings = append(warnings, err.Error())
	}
	if cfg.Enabled && whitelist.Len() == 0 {
		warnings = append(warnings, "proxy authentication is enabled but no whitelist entry is usable; identity headers will be ignored")
	}

	return ProxyAuthResponse{
		Enabled:          cfg.Enabled,
		UsernameHeader:   cfg.UsernameHeader,
		EmailHeader:      cfg.EmailHeader,
		Whitelist:        cfg.Whitelist,
		EffectiveEntries: entries,
		Warnings:         warnings,
	}
}

// GetProxyAuth returns the proxy trust settings
// @Summary Get proxy authentication settings
// @Produce json
// @Success 200 {object} ProxyAuthResponse
// @Failure 403 {object} ErrorResponse
// @Router /settings/proxy-auth [get]
func (h *SettingsHandler) GetProxyAuth(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetProxyTrustConfig(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toProxyAuthResponse(cfg))
}

// UpdateProxyAuth saves the proxy trust settings. They apply from the next request.
// @Summary Update proxy authentication settings
// @Accept json
// @Param request body ProxyAuthRequest true "Proxy auth settings"
// @Produce json
// @Success 200 {object} ProxyAuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /settings/proxy-auth [put]
func (h *SettingsHandler) UpdateProxyAuth(w http.ResponseWriter, r *http.Request) {
	var req ProxyAuthRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	saved, _, err := h.service.UpdateProxyTrustConfig(r.Context(), models.ProxyTrustConfig{
		Enabled:        *req.Enabled,
		UsernameHeader: req.UsernameHeader,
		EmailHeader:    req.EmailHeader,
		Whitelist:      req.Whitelist,
	}, auth.GetUserFromContext(r))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toProxyAuthResponse(saved))
}
