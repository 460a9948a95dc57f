package handler

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"marketchat/internal/infrastructure/firebase"
	"marketchat/pkg/config"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

// DevTokenHandler mints tokens for local testing so a full Firebase login
// flow is not needed to poke the chat endpoints. Only routed in development.
type DevTokenHandler struct {
	firebaseAuth *firebase.FirebaseAuthClient
	cfg          *config.Config
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(firebaseAuth *firebase.FirebaseAuthClient, cfg *config.Config) *DevTokenHandler {
	return &DevTokenHandler{
		firebaseAuth: firebaseAuth,
		cfg:          cfg,
	}
}

func SetupDevTokenHandler(firebaseAuth *firebase.FirebaseAuthClient, cfg *config.Config) {
	devTokenHandler = NewDevTokenHandler(firebaseAuth, cfg)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type devTokenRequest struct {
	UID string `json:"uid" validate:"required"`
}

// GenerateToken mints an HS256 token the auth middleware accepts directly
// in development mode.
func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"uid": req.UID,
		"sub": req.UID,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(h.cfg.JWTExpiry) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":      signed,
		"uid":        req.UID,
		"expires_at": now.Add(time.Duration(h.cfg.JWTExpiry) * time.Second).Format(time.RFC3339),
	})
}

// GenerateCustomToken mints a Firebase custom token for clients that want to
// exercise the real sign-in exchange.
func (h *DevTokenHandler) GenerateCustomToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, err := h.firebaseAuth.GenerateToken(c.Request().Context(), req.UID)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to generate custom token", err))
	}

	return response.Success(c, map[string]string{
		"custom_token": token,
		"uid":          req.UID,
	})
}
