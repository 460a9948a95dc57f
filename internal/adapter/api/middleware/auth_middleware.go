package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"marketchat/pkg/config"
)

// Google publishes the keys used to sign Firebase ID tokens here. Verifying
// against this set avoids a round trip to the Admin SDK on every request.
const securetokenJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type AuthMiddleware struct {
	authClient *auth.Client
	jwks       *keyfunc.JWKS
	cfg        *config.Config
}

func NewAuthMiddleware(authClient *auth.Client, cfg *config.Config) (*AuthMiddleware, error) {
	m := &AuthMiddleware{
		authClient: authClient,
		cfg:        cfg,
	}

	if cfg.AuthVerifyMode == "jwks" {
		jwks, err := keyfunc.Get(securetokenJWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				log.Printf("JWKS refresh error: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load securetoken JWKS: %w", err)
		}
		m.jwks = jwks
	}

	return m, nil
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := tokenFromRequest(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		uid, err := m.VerifyToken(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", uid)

		return next(c)
	}
}

// tokenFromRequest prefers the Authorization header but also accepts a
// ?token= query parameter, which is how browser WebSocket clients pass it.
func tokenFromRequest(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return c.QueryParam("token")
}

// VerifyToken resolves a raw token to a user ID using the configured mode.
func (m *AuthMiddleware) VerifyToken(ctx context.Context, token string) (string, error) {
	if m.cfg.Environment == "development" {
		if uid, err := m.verifyDevToken(token); err == nil {
			return uid, nil
		}
	}

	if m.cfg.AuthVerifyMode == "jwks" {
		return m.verifyAgainstJWKS(token)
	}

	firebaseToken, err := m.authClient.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return firebaseToken.UID, nil
}

// verifyDevToken accepts the HS256 tokens minted by the dev token endpoint.
func (m *AuthMiddleware) verifyDevToken(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return "", fmt.Errorf("token has no uid claim")
	}

	return uid, nil
}

func (m *AuthMiddleware) verifyAgainstJWKS(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, m.jwks.Keyfunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	if aud, _ := claims["aud"].(string); aud != m.cfg.FirebaseProject {
		return "", fmt.Errorf("unexpected audience: %s", aud)
	}
	issuer := "https://securetoken.google.com/" + m.cfg.FirebaseProject
	if iss, _ := claims["iss"].(string); iss != issuer {
		return "", fmt.Errorf("unexpected issuer: %s", iss)
	}

	uid, _ := claims["user_id"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return "", fmt.Errorf("token has no user_id claim")
	}

	return uid, nil
}
