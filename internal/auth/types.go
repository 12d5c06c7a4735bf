package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is the identity attached to a signed-in session.
type User struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// Session holds the tokens issued by the identity provider for one user.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// EventType names an auth state transition.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is delivered to listeners on every auth state change. Session is nil
// when no user is signed in.
type Event struct {
	Type    EventType
	Session *Session
}

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrNoRefreshToken     = errors.New("session has no refresh token")
	ErrRefreshUnavailable = errors.New("token refresh is not configured")
)
