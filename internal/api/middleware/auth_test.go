package middleware_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/api/middleware"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthenticator(t *testing.T) {
	key, publicPEM := generateKey(t)
	otherKey, _ := generateKey(t)

	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{
		JWTPublicKey: publicPEM,
		JWTAudience:  "amplifrens-admin",
		APIKeys:      []string{"key-1", " ", "key-2"},
	})
	require.NoError(t, err)

	valid := jwt.RegisteredClaims{
		Subject:   "admin",
		Audience:  jwt.ClaimStrings{"amplifrens-admin"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	t.Run("bearer token", func(t *testing.T) {
		result, err := auth.Authenticate("Bearer " + sign(t, key, valid))
		require.NoError(t, err)
		assert.Equal(t, middleware.AuthTypeJWT, result.AuthType)
		assert.Equal(t, "admin", result.AuthSubject)
	})

	t.Run("api key", func(t *testing.T) {
		result, err := auth.Authenticate("ApiKey key-2")
		require.NoError(t, err)
		assert.Equal(t, middleware.AuthTypeAPIKey, result.AuthType)
	})

	failures := map[string]string{
		"missing header":    "",
		"malformed header":  "Bearer",
		"unsupported type":  "Basic dXNlcjpwYXNz",
		"unknown api key":   "ApiKey key-3",
		"wrong signer":      "Bearer " + sign(t, otherKey, valid),
		"expired":           "Bearer " + sign(t, key, jwt.RegisteredClaims{Audience: valid.Audience, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}),
		"no expiry":         "Bearer " + sign(t, key, jwt.RegisteredClaims{Audience: valid.Audience}),
		"wrong audience":    "Bearer " + sign(t, key, jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"other"}, ExpiresAt: valid.ExpiresAt}),
		"not yet valid":     "Bearer " + sign(t, key, jwt.RegisteredClaims{Audience: valid.Audience, ExpiresAt: valid.ExpiresAt, NotBefore: jwt.NewNumericDate(time.Now().Add(time.Hour))}),
		"garbage token":     "Bearer not.a.jwt",
		"blank api key set": "ApiKey  ",
	}
	for name, header := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Authenticate(header)
			assert.Error(t, err)
		})
	}
}

func TestNewAuthenticator_InvalidKey(t *testing.T) {
	_, err := middleware.NewAuthenticator(middleware.AuthConfig{JWTPublicKey: "not a pem"})
	assert.Error(t, err)
}

func TestAuthenticator_WithoutPublicKey(t *testing.T) {
	key, _ := generateKey(t)
	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{})
	require.NoError(t, err)

	_, err = auth.Authenticate("Bearer " + sign(t, key, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}))
	assert.ErrorContains(t, err, "JWT public key not configured")

	_, err = auth.Authenticate("ApiKey anything")
	assert.ErrorContains(t, err, "no API keys configured")
}

func TestAuthMiddleware(t *testing.T) {
	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{APIKeys: []string{"secret"}})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/admin", middleware.Auth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.AUTH_TYPE_KEY))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "ApiKey secret")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.AuthTypeAPIKey, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
}
