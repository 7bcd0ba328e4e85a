package models

// AuthMethod records how an identity was established for a request
type AuthMethod string

const (
	AuthMethodNone    AuthMethod = "none"
	AuthMethodProxy   AuthMethod = "proxy"
	AuthMethodSession AuthMethod = "session"
)

// Identity is the outcome of per-request identity resolution.
// A nil User means the request is anonymous.
type Identity struct {
	User   *User
	Method AuthMethod
}

// Authenticated reports whether a user is attached
func (i *Identity) Authenticated() bool {
	return i != nil && i.User != nil
}

// ProxyAuthenticated reports whether the identity came from trusted proxy headers
func (i *Identity) ProxyAuthenticated() bool {
	return i.Authenticated() && i.Method == AuthMethodProxy
}
