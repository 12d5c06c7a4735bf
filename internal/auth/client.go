package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/doctorquest/quiz/internal/auth/jwt"
)

// TokenVerifier validates access tokens issued by the identity provider.
type TokenVerifier interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// DefaultEarlyExpiry is how long before expiry Refresh starts minting a new token.
const DefaultEarlyExpiry = time.Minute

// Client is the identity handle of one quiz session. It holds at most one
// signed-in user and notifies listeners of every change.
type Client struct {
	verifier    TokenVerifier
	refresher   Refresher
	earlyExpiry time.Duration
	notifier    *Notifier
	logger      zerolog.Logger

	mu      sync.Mutex
	session *Session
	source  *refreshSource
	reuse   oauth2.TokenSource
}

// NewClient creates a signed-out client. refresher may be nil, in which case
// Refresh reports ErrRefreshUnavailable.
func NewClient(verifier TokenVerifier, refresher Refresher, earlyExpiry time.Duration, logger zerolog.Logger) *Client {
	if earlyExpiry <= 0 {
		earlyExpiry = DefaultEarlyExpiry
	}
	return &Client{
		verifier:    verifier,
		refresher:   refresher,
		earlyExpiry: earlyExpiry,
		notifier:    NewNotifier(),
		logger:      logger,
	}
}

// GetSession returns a copy of the current session, or nil when signed out.
func (c *Client) GetSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// UserID returns the signed-in user's id.
func (c *Client) UserID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return uuid.Nil, false
	}
	return c.session.User.ID, true
}

// OnAuthStateChange registers fn and immediately delivers INITIAL_SESSION to it
// with the current session.
func (c *Client) OnAuthStateChange(fn Listener) *Subscription {
	sub := c.notifier.Subscribe(fn)
	fn(Event{Type: EventInitialSession, Session: c.GetSession()})
	return sub
}

// Listeners returns the number of registered auth listeners.
func (c *Client) Listeners() int {
	return c.notifier.Len()
}

// SignIn verifies accessToken and makes it the current session.
func (c *Client) SignIn(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := c.verifier.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	sess, err := sessionFromClaims(claims, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = sess
	c.resetSource()
	out := c.snapshot()
	c.mu.Unlock()

	c.logger.Debug().Str("user_id", sess.User.ID.String()).Msg("signed in")
	c.notifier.Publish(Event{Type: EventSignedIn, Session: out})
	return out, nil
}

// SignOut clears the current session.
func (c *Client) SignOut() {
	c.mu.Lock()
	c.clear()
	c.mu.Unlock()

	c.logger.Debug().Msg("signed out")
	c.notifier.Publish(Event{Type: EventSignedOut})
}

// Refresh returns a session whose access token is not within the early-expiry
// window, exchanging the refresh token when needed. TOKEN_REFRESHED is
// published only when a new token was minted. A failed exchange for an already
// expired session signs the user out.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	if c.reuse == nil {
		c.mu.Unlock()
		return nil, ErrRefreshUnavailable
	}

	c.source.setContext(ctx)
	tok, err := c.reuse.Token()
	c.source.setContext(nil)
	if err != nil {
		expired := c.session.Expired(time.Now())
		if expired {
			c.clear()
		}
		c.mu.Unlock()
		if expired {
			c.logger.Warn().Err(err).Msg("refresh failed for expired session, signing out")
			c.notifier.Publish(Event{Type: EventSignedOut})
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	if tok.AccessToken == c.session.AccessToken {
		out := c.snapshot()
		c.mu.Unlock()
		return out, nil
	}

	claims, err := c.verifier.ValidateAccessToken(tok.AccessToken)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("verify refreshed token: %w", err)
	}
	sess, err := sessionFromClaims(claims, tok.AccessToken, tok.RefreshToken)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !tok.Expiry.IsZero() {
		sess.ExpiresAt = tok.Expiry
	}
	c.session = sess
	out := c.snapshot()
	c.mu.Unlock()

	c.logger.Debug().Str("user_id", sess.User.ID.String()).Time("expires_at", sess.ExpiresAt).Msg("token refreshed")
	c.notifier.Publish(Event{Type: EventTokenRefreshed, Session: out})
	return out, nil
}

// caller holds c.mu
func (c *Client) resetSource() {
	c.source, c.reuse = nil, nil
	if c.refresher == nil || c.session == nil {
		return
	}
	c.source = &refreshSource{refresher: c.refresher, refreshToken: c.session.RefreshToken}
	current := &oauth2.Token{
		AccessToken:  c.session.AccessToken,
		RefreshToken: c.session.RefreshToken,
		Expiry:       c.session.ExpiresAt,
	}
	c.reuse = oauth2.ReuseTokenSourceWithExpiry(current, c.source, c.earlyExpiry)
}

// caller holds c.mu
func (c *Client) clear() {
	c.session = nil
	c.source, c.reuse = nil, nil
}

// caller holds c.mu
func (c *Client) snapshot() *Session {
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func sessionFromClaims(claims *jwt.Claims, accessToken, refreshToken string) (*Session, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, jwt.ErrInvalidToken
	}
	sess := &Session{
		User:         User{ID: id, Email: claims.Email, Role: claims.Role},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
