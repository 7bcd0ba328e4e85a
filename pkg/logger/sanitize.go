package logger

import (
	"net/url"
	"strings"
)

// sensitiveQueryKeys never appear in request logs. Matching is on the
// parameter name, so "?page=2" is logged while "?session=..." is not.
var sensitiveQueryKeys = []string{
	"password",
	"token",
	"session",
	"secret",
	"cookie",
	"email",
	"username",
	"auth",
}

// MaskEmail hides most of an address while keeping it recognisable to an
// operator: "alice@corp.example.com" becomes "a****@****.*******.com".
// Anything that is not a single local@domain pair is replaced wholesale.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	masked := local[:1] + strings.Repeat("*", len(local)-1)

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return masked + "@" + strings.Join(labels, ".")
}

// RedactQuery reports whether a raw query string carries a parameter that
// must be kept out of logs. Unparseable queries are redacted.
func RedactQuery(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}

	for key := range values {
		lower := strings.ToLower(key)
		for _, sensitive := range sensitiveQueryKeys {
			if strings.Contains(lower, sensitive) {
				return true
			}
		}
	}
	return false
}
