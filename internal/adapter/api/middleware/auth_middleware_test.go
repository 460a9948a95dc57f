package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/pkg/config"
)

func signedDevToken(t *testing.T, secret, uid string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"uid": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyTokenAcceptsDevTokenInDevelopment(t *testing.T) {
	m := &AuthMiddleware{cfg: &config.Config{
		Environment: "development",
		JWTSecret:   "test-secret",
	}}

	uid, err := m.VerifyToken(context.Background(), signedDevToken(t, "test-secret", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestVerifyDevTokenRejectsWrongSecret(t *testing.T) {
	m := &AuthMiddleware{cfg: &config.Config{JWTSecret: "test-secret"}}

	_, err := m.verifyDevToken(signedDevToken(t, "other-secret", "user-1"))
	assert.Error(t, err)
}

func TestVerifyDevTokenRequiresUID(t *testing.T) {
	m := &AuthMiddleware{cfg: &config.Config{JWTSecret: "test-secret"}}

	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.verifyDevToken(token)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	e := echo.New()

	newContext := func(authHeader, query string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/v1/chats"+query, nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	assert.Equal(t, "abc", tokenFromRequest(newContext("Bearer abc", "")))
	assert.Equal(t, "", tokenFromRequest(newContext("Basic abc", "")))
	assert.Equal(t, "xyz", tokenFromRequest(newContext("", "?token=xyz")))
	assert.Equal(t, "", tokenFromRequest(newContext("", "")))

	// The header wins over the query parameter, even when malformed.
	assert.Equal(t, "", tokenFromRequest(newContext("Nonsense", "?token=xyz")))
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := &AuthMiddleware{cfg: &config.Config{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	next := func(c echo.Context) error { return nil }
	err := m.Authenticate(next)(c)

	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
