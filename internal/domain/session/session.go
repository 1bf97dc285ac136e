// Package session manages the authenticated session lifecycle: the current
// bearer token and user profile, the persisted token mirror, and the
// proactive refresh schedule that renews the token ahead of expiry.
package session

// User is the profile record associated with a bearer token.
// The session layer carries it as an opaque payload; fields are only
// interpreted by callers (CLI output, route decisions).
type User struct {
	// ID is the platform-assigned user identifier.
	ID int64 `json:"id"`
	// Email is the login email address.
	Email string `json:"email"`
	// Name is the display name.
	Name string `json:"name"`
	// Role is the platform role (e.g. "admin", "manager", "viewer").
	Role string `json:"role"`
	// OrganizationID references the organization the user belongs to.
	OrganizationID int64 `json:"organization_id"`
	// TwoFactorEnabled reports whether the account requires a one-time
	// code at login.
	TwoFactorEnabled bool `json:"two_factor_enabled"`
}

// Session is the authenticated state: a bearer token and the user it
// belongs to. Token and User are set and cleared together; a session is
// never left half-updated.
type Session struct {
	// Token is the opaque bearer credential, structurally a signed token
	// with an embedded expiry claim.
	Token string
	// User is the profile associated with Token.
	User *User
}

// Authenticated reports whether the session holds both a token and a user.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}
