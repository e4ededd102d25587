package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/service"
	"github.com/schedulrr/schedulrr-api/pkg/config"
)

func testAuthService(t *testing.T) (*service.AuthService, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	svc, err := service.NewAuthService(config.ClerkConfig{JWTPublicKey: string(publicPEM)}, zap.NewNop())
	require.NoError(t, err)
	return svc, key
}

func signSession(t *testing.T, key *rsa.PrivateKey, subject string, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func protectedRouter(authSvc *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(authSvc), func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub": claims.ClerkUserID()})
	})
	return r
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	authSvc, key := testAuthService(t)
	r := protectedRouter(authSvc)

	token := signSession(t, key, "clerk-1", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clerk-1")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	authSvc, _ := testAuthService(t)
	r := protectedRouter(authSvc)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsExpiredToken(t *testing.T) {
	authSvc, key := testAuthService(t)
	r := protectedRouter(authSvc)

	token := signSession(t, key, "clerk-1", time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsForeignKey(t *testing.T) {
	authSvc, _ := testAuthService(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	r := protectedRouter(authSvc)

	token := signSession(t, otherKey, "clerk-1", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	authSvc, _ := testAuthService(t)
	r := protectedRouter(authSvc)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
