package service

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/pkg/config"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

// AuthService verifies identity-provider session tokens. Clerk signs
// session JWTs with RS256; the instance public key is supplied via config
// so verification stays local with no network round trip per request.
type AuthService struct {
	publicKey *rsa.PublicKey
	logger    *zap.Logger
}

// NewAuthService parses the configured verification key.
func NewAuthService(cfg config.ClerkConfig, logger *zap.Logger) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &AuthService{logger: logger}
	if cfg.JWTPublicKey != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse session verification key: %w", err)
		}
		svc.publicKey = key
	}
	return svc, nil
}

// ValidateToken parses and validates a session token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	if s.publicKey == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session verification key not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid session token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid session claims")
	}

	return claims, nil
}
