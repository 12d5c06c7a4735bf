package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// GoTrueRefresher calls the refresh-token grant of a GoTrue-compatible identity
// provider (POST {base}/token?grant_type=refresh_token).
type GoTrueRefresher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoTrueRefresher creates a refresher for the provider at baseURL.
func NewGoTrueRefresher(baseURL, apiKey string, httpClient *http.Client) *GoTrueRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoTrueRefresher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type goTrueTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh implements Refresher.
func (r *GoTrueRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/token?grant_type=refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("refresh rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload goTrueTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("refresh response missing access_token")
	}

	tok := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
	}
	switch {
	case payload.ExpiresAt > 0:
		tok.Expiry = time.Unix(payload.ExpiresAt, 0)
	case payload.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

// refreshSource adapts a Refresher to oauth2.TokenSource. The provider rotates
// refresh tokens, so the latest one is kept for the next exchange.
type refreshSource struct {
	refresher Refresher

	mu           sync.Mutex
	ctx          context.Context
	refreshToken string
}

func (s *refreshSource) setContext(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	tok, err := s.refresher.Refresh(ctx, s.refreshToken)
	if err != nil {
		return nil, err
	}
	s.refreshToken = tok.RefreshToken
	return tok, nil
}
