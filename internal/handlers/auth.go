package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/models"
	"github.com/BradenHooton/lantern/internal/services"
	pkghttp "github.com/BradenHooton/lantern/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string, rememberMe bool, meta models.SessionMetadata) (*services.LoginResult, error)
	Logout(ctx context.Context, token string, user *models.User, meta models.SessionMetadata) error
	LogoutEverywhere(ctx context.Context, user *models.User, meta models.SessionMetadata) (int64, error)
}

// AuthHandler handles local login, logout and the current-identity endpoint
type AuthHandler struct {
	service     AuthServiceInterface
	cookie      auth.CookieConfig
	proxyConfig auth.ProxyConfigProvider
}

// NewAuthHandler creates a new AuthHandler. proxyConfig, when set, lets
// forwarding headers from whitelisted proxies supply the audit client IP.
func NewAuthHandler(service AuthServiceInterface, cookie auth.CookieConfig, proxyConfig auth.ProxyConfigProvider) *AuthHandler {
	return &AuthHandler{
		service:     service,
		cookie:      cookie,
		proxyConfig: proxyConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username   string `json:"username" validate:"required,max=255"`
	Password   string `json:"password" validate:"required,max=72"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is returned on successful login; the token travels only in the cookie
type LoginResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Login handles local username/password login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	result, err := h.service.Login(r.Context(), req.Username, req.Password, req.RememberMe, h.metadata(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.TTL, h.cookie)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		User:      toUserResponse(result.User),
		ExpiresAt: result.Session.ExpiresAt,
	})
}

// Logout revokes the caller's session and clears the cookie
// @Summary User logout
// @Success 204
// @Failure 500 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.GetSessionCookie(r, h.cookie.Name)

	if err := h.service.Logout(r.Context(), token, auth.GetUserFromContext(r), h.metadata(r)); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutEverywhereResponse reports how many sessions were closed
type LogoutEverywhereResponse struct {
	RevokedSessions int64 `json:"revoked_sessions"`
}

// LogoutEverywhere revokes all of the caller's sessions and clears the cookie
// @Summary Log out on every device
// @Produce json
// @Success 200 {object} LogoutEverywhereResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout/all [post]
func (h *AuthHandler) LogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.service.LogoutEverywhere(r.Context(), auth.GetUserFromContext(r), h.metadata(r))
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookie)
	pkghttp.WriteJSON(w, http.StatusOK, LogoutEverywhereResponse{RevokedSessions: revoked})
}

// Me returns the identity resolved for this request. A cookie that did not
// resolve to a session is cleared.
// @Summary Current identity
// @Produce json
// @Success 200 {object} IdentityResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentityFromContext(r)

	if !identity.Authenticated() {
		if token, err := auth.GetSessionCookie(r, h.cookie.Name); err == nil && token != "" {
			auth.ClearSessionCookie(w, h.cookie)
		}
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, IdentityResponse{
		User:       toUserResponse(identity.User),
		AuthMethod: string(identity.Method),
	})
}

func (h *AuthHandler) metadata(r *http.Request) models.SessionMetadata {
	return models.SessionMetadata{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfigFor(r.Context(), h.proxyConfig)),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// ipConfigFor trusts forwarding headers only from whitelisted proxies, and
// only while proxy auth is enabled
func ipConfigFor(ctx context.Context, provider auth.ProxyConfigProvider) *pkghttp.IPConfig {
	if provider == nil {
		return nil
	}
	cfg, err := provider.GetProxyTrustConfig(ctx)
	if err != nil || !cfg.Enabled {
		return nil
	}
	whitelist, _ := auth.ParseWhitelist(cfg.Whitelist)
	return &pkghttp.IPConfig{TrustedProxies: whitelist.Prefixes()}
}
