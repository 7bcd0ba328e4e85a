package models

import "time"

// Session is a server-side login session. The client only ever holds the
// raw token; the store keeps its hash.
type Session struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

// IsValidAt reports whether the session is still usable at the given instant
func (s *Session) IsValidAt(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// SessionMetadata is optional client information recorded for audit
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}
