package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret"), Issuer: "https://id.example.com/auth/v1"})
	user := User{ID: uuid.New(), Email: "doc@example.com"}

	token, expires, err := m.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, "doc@example.com", claims.Email)
	assert.Equal(t, DefaultAudience, claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewManager(TokenConfig{Secret: []byte("one")})
	verifier := NewManager(TokenConfig{Secret: []byte("two")})

	token, _, err := issuer.GenerateAccessToken(User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret"), AccessTTL: -time.Minute})

	token, _, err := m.GenerateAccessToken(User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsWrongAudienceAndIssuer(t *testing.T) {
	other := NewManager(TokenConfig{Secret: []byte("secret"), Audience: "service_role"})
	token, _, err := other.GenerateAccessToken(User{ID: uuid.New()})
	require.NoError(t, err)

	m := NewManager(TokenConfig{Secret: []byte("secret")})
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	strict := NewManager(TokenConfig{Secret: []byte("secret"), Issuer: "https://expected"})
	loose, _, err := m.GenerateAccessToken(User{ID: uuid.New()})
	require.NoError(t, err)
	_, err = strict.ValidateAccessToken(loose)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNonUUIDSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Audience:  jwt.ClaimStrings{DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewManager(TokenConfig{Secret: []byte("secret")}).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
