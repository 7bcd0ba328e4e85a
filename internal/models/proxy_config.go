package models

// Conventional header names consulted after the configured ones, in order
var (
	FallbackUsernameHeaders = []string{"X-Forwarded-User", "Remote-User"}
	FallbackEmailHeaders    = []string{"X-Forwarded-Email", "Remote-Email"}
)

const (
	DefaultUsernameHeader = "X-authentik-username"
	DefaultEmailHeader    = "X-authentik-email"
)

// ProxyTrustConfig controls whether a reverse proxy may assert identity via headers
type ProxyTrustConfig struct {
	Enabled        bool   `json:"enabled"`
	UsernameHeader string `json:"username_header"`
	EmailHeader    string `json:"email_header"`
	Whitelist      string `json:"whitelist"` // Comma-separated IPs and CIDR ranges
}

// UsernameHeaders returns the username header names in precedence order
func (c ProxyTrustConfig) UsernameHeaders() []string {
	return withFallbacks(c.UsernameHeader, FallbackUsernameHeaders)
}

// EmailHeaders returns the email header names in precedence order
func (c ProxyTrustConfig) EmailHeaders() []string {
	return withFallbacks(c.EmailHeader, FallbackEmailHeaders)
}

func withFallbacks(configured string, fallbacks []string) []string {
	headers := make([]string, 0, len(fallbacks)+1)
	if configured != "" {
		headers = append(headers, configured)
	}
	return append(headers, fallbacks...)
}
