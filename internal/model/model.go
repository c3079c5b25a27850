// Package model defines domain entities used by services and repositories.
package model

import "time"

// Provider identifiers, matching the sign-in widget option names.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// User represents an account stored on the server. The password hash is never sent to clients.
type User struct {
	UID             string    `json:"uid"`
	Email           string    `json:"email,omitempty"`
	DisplayName     string    `json:"displayName,omitempty"`
	ProviderID      string    `json:"providerId"`
	ProviderSubject string    `json:"-"` // stable id at the federated provider
	PwdHash         string    `json:"-"` // encoded argon2id hash, empty for federated users
	CreatedAt       time.Time `json:"createdAt"`
}

// FederatedIdentity is the profile returned by an external identity provider.
type FederatedIdentity struct {
	ProviderID  string
	Subject     string
	Email       string
	DisplayName string
}

// Session binds a browser session id to a signed-in user.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	IDToken   string    `json:"idToken"`
	ExpiresAt time.Time `json:"expiresAt"` // id token expiry (for diagnostics)
}

// AuthState is one auth-state-changed notification. Session is nil when signed out.
type AuthState struct {
	Session *Session `json:"session"`
}

// SignedIn reports whether the notification carries a session.
func (s AuthState) SignedIn() bool { return s.Session != nil }

// Same reports whether o describes the same sign-in (or both are signed out).
func (s AuthState) Same(o AuthState) bool {
	if s.Session == nil || o.Session == nil {
		return s.Session == nil && o.Session == nil
	}
	return s.Session.ID == o.Session.ID && s.Session.User.UID == o.Session.User.UID &&
		s.Session.IDToken == o.Session.IDToken
}

// AuthUser is the user object delivered to the UI on sign-in.
type AuthUser struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	ProviderID  string    `json:"providerId"`
	IDToken     string    `json:"idToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AuthUserFromSession projects a session into the client-facing user object.
func AuthUserFromSession(s Session) AuthUser {
	return AuthUser{
		UID:         s.User.UID,
		Email:       s.User.Email,
		DisplayName: s.User.DisplayName,
		ProviderID:  s.User.ProviderID,
		IDToken:     s.IDToken,
		ExpiresAt:   s.ExpiresAt,
	}
}
