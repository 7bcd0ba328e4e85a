package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/lantern/internal/models"
)

// ProxyConfigProvider returns the current, administrator-saved proxy trust
// configuration. Implementations must not serve a value older than the
// last successful write.
type ProxyConfigProvider interface {
	GetProxyTrustConfig(ctx context.Context) (models.ProxyTrustConfig, error)
}

// SessionValidator resolves a session token to its owner.
// Missing, unknown, expired and failed lookups all return false.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.User, bool)
}

// Provisioner looks up, or creates, the local account for a proxy-asserted username
type Provisioner interface {
	EnsureUser(ctx context.Context, username, email string) (*models.User, error)
}

// ResolutionRecorder observes resolution outcomes (metrics)
type ResolutionRecorder interface {
	RecordResolution(method models.AuthMethod)
	RecordUntrustedProxyAttempt()
}

// Resolver decides who the caller is on every request. Nothing about a
// decision is cached between requests.
type Resolver struct {
	config      ProxyConfigProvider
	sessions    SessionValidator
	provisioner Provisioner
	cookieName  string
	recorder    ResolutionRecorder
	logger      *slog.Logger
}

// NewResolver creates a Resolver. recorder may be nil.
func NewResolver(
	config ProxyConfigProvider,
	sessions SessionValidator,
	provisioner Provisioner,
	cookieName string,
	recorder ResolutionRecorder,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		config:      config,
		sessions:    sessions,
		provisioner: provisioner,
		cookieName:  cookieName,
		recorder:    recorder,
		logger:      logger,
	}
}

// Resolve evaluates the request and returns its identity. It never
// returns nil; anonymous requests get an Identity with no User.
func (res *Resolver) Resolve(r *http.Request) *models.Identity {
	identity := res.resolve(r)
	if res.recorder != nil {
		res.recorder.RecordResolution(identity.Method)
	}
	return identity
}

func (res *Resolver) resolve(r *http.Request) *models.Identity {
	ctx := r.Context()
	anonymous := &models.Identity{Method: models.AuthMethodNone}

	cfg, err := res.config.GetProxyTrustConfig(ctx)
	if err != nil {
		res.logger.Error("failed to load proxy trust configuration; treating request as unauthenticated",
			slog.Any("error", err))
		return anonymous
	}

	if cfg.Enabled {
		identity, handled := res.resolveProxy(r, cfg)
		if handled {
			return identity
		}
	}

	return res.resolveSession(r)
}

// resolveProxy returns handled=true when a trusted proxy asserted a username;
// session cookies are then never consulted, even if provisioning fails.
func (res *Resolver) resolveProxy(r *http.Request, cfg models.ProxyTrustConfig) (*models.Identity, bool) {
	ctx := r.Context()

	whitelist, parseErrs := ParseWhitelist(cfg.Whitelist)
	for _, parseErr := range parseErrs {
		res.logger.Warn("skipping unparsable proxy whitelist entry", slog.Any("error", parseErr))
	}

	username := firstHeader(r, cfg.UsernameHeaders())

	if whitelist.Len() == 0 {
		if username != "" {
			res.logger.Warn("proxy auth enabled with empty whitelist; ignoring identity headers",
				slog.String("remote_addr", r.RemoteAddr))
		}
		return nil, false
	}

	if !whitelist.IsTrusted(r.RemoteAddr) {
		if username != "" {
			res.logger.Warn("identity headers from untrusted source ignored",
				slog.String("remote_addr", r.RemoteAddr))
			if res.recorder != nil {
				res.recorder.RecordUntrustedProxyAttempt()
			}
		}
		return nil, false
	}

	if username == "" {
		return nil, false
	}

	email := firstHeader(r, cfg.EmailHeaders())

	user, err := res.provisioner.EnsureUser(ctx, username, email)
	if err != nil {
		res.logger.Error("failed to provision proxy-authenticated user; treating request as unauthenticated",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return &models.Identity{Method: models.AuthMethodNone}, true
	}

	return &models.Identity{User: user, Method: models.AuthMethodProxy}, true
}

func (res *Resolver) resolveSession(r *http.Request) *models.Identity {
	token, err := GetSessionCookie(r, res.cookieName)
	if err != nil || token == "" {
		return &models.Identity{Method: models.AuthMethodNone}
	}

	user, ok := res.sessions.Validate(r.Context(), token)
	if !ok {
		return &models.Identity{Method: models.AuthMethodNone}
	}

	return &models.Identity{User: user, Method: models.AuthMethodSession}
}

// firstHeader returns the first non-empty value among the given header names
func firstHeader(r *http.Request, names []string) string {
	for _, name := range names {
		if value := strings.TrimSpace(r.Header.Get(name)); value != "" {
			return value
		}
	}
	return ""
}

// Middleware resolves the identity and stores it in the request context
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := res.Resolve(r)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
