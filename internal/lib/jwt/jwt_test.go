package jwt

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
)

const (
	accessSecret  = "test-access-secret"
	refreshSecret = "test-refresh-secret"
	accessTTL     = 15 * time.Minute
	refreshTTL    = 240 * time.Hour
)

func testConfig() Config {
	return Config{
		AccessSecret:  accessSecret,
		AccessTTL:     accessTTL,
		RefreshSecret: refreshSecret,
		RefreshTTL:    refreshTTL,
	}
}

func testUser() models.User {
	return models.User{
		ID:       ids.New(),
		Username: gofakeit.Username(),
		Email:    gofakeit.Email(),
	}
}

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()

	m, err := NewManager(testConfig(), opts...)
	require.NoError(t, err)
	return m
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := newManager(t)
	user := testUser()

	issuedAt := time.Now()
	token, err := m.IssueAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.ID, claims.Subject)

	const deltaSeconds = 1
	assert.InDelta(t, issuedAt.Add(accessTTL).Unix(), claims.ExpiresAt.Unix(), deltaSeconds)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m := newManager(t)
	user := testUser()

	issuedAt := time.Now()
	token, err := m.IssueRefreshToken(user)
	require.NoError(t, err)

	claims, err := m.VerifyRefreshToken(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.NotEmpty(t, claims.ID)

	const deltaSeconds = 1
	assert.InDelta(t, issuedAt.Add(refreshTTL).Unix(), claims.ExpiresAt.Unix(), deltaSeconds)
}

func TestRefreshToken_CarriesIdentityOnly(t *testing.T) {
	m := newManager(t)

	token, err := m.IssueRefreshToken(testUser())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.NotContains(t, claims, "username")
	assert.NotContains(t, claims, "email")
	assert.Contains(t, claims, "uid")
}

func TestRefreshToken_UniquePerIssue(t *testing.T) {
	m := newManager(t)
	user := testUser()

	first, err := m.IssueRefreshToken(user)
	require.NoError(t, err)
	second, err := m.IssueRefreshToken(user)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	m := newManager(t)
	user := testUser()

	pair, err := m.IssuePair(user)
	require.NoError(t, err)

	_, err = m.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.VerifyAccessToken(pair.AccessToken)
	assert.NoError(t, err)
	_, err = m.VerifyRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestExpiredTokensRejected(t *testing.T) {
	past := time.Now().Add(-2 * refreshTTL)
	issuer := newManager(t, WithClock(func() time.Time { return past }))
	verifier := newManager(t)
	user := testUser()

	pair, err := issuer.IssuePair(user)
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = verifier.VerifyRefreshToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_FailCases(t *testing.T) {
	m := newManager(t)
	user := testUser()

	foreign, err := NewManager(Config{
		AccessSecret:  "other-access",
		AccessTTL:     accessTTL,
		RefreshSecret: "other-refresh",
		RefreshTTL:    refreshTTL,
	})
	require.NoError(t, err)
	foreignToken, err := foreign.IssueAccessToken(user)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID:           user.ID,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}).SignedString([]byte(accessSecret))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(accessSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "foreign secret", token: foreignToken},
		{name: "alg none", token: noneToken},
		{name: "no expiry", token: noExpiry},
		{name: "no subject", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyAccessToken(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewManager_FailCases(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectedErr error
	}{
		{
			name:        "same secrets",
			mutate:      func(c *Config) { c.RefreshSecret = c.AccessSecret },
			expectedErr: ErrSameSecrets,
		},
		{
			name:        "empty access secret",
			mutate:      func(c *Config) { c.AccessSecret = "" },
			expectedErr: ErrEmptySecret,
		},
		{
			name:        "empty refresh secret",
			mutate:      func(c *Config) { c.RefreshSecret = "" },
			expectedErr: ErrEmptySecret,
		},
		{
			name:        "zero access ttl",
			mutate:      func(c *Config) { c.AccessTTL = 0 },
			expectedErr: ErrInvalidTTL,
		},
		{
			name:        "negative refresh ttl",
			mutate:      func(c *Config) { c.RefreshTTL = -time.Hour },
			expectedErr: ErrInvalidTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewManager(cfg)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
