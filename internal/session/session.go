// Package session models signed-in users and keeps the current session
// in local storage between process runs.
package session

import "time"

// User is the identity attached to a session. Role is carried for the
// dashboards and never interpreted by the data layer.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

// Session is an authenticated session. ExpiresAt serializes as epoch
// seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// Expiry returns ExpiresAt as a time.
func (s Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0).UTC()
}
