package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() *AuthMiddleware {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAuthMiddleware("test-secret", "hako-backend", logger)
}

func TestTokenRoundTrip(t *testing.T) {
	auth := testAuth()

	token, err := auth.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", RoleOperator, time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", claims.Address)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	auth := testAuth()
	other := NewAuthMiddleware("another-secret", "hako-backend", logrus.New())

	token, err := other.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	auth := testAuth()
	other := NewAuthMiddleware("test-secret", "someone-else", logrus.New())

	token, err := other.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth := testAuth()

	token, err := auth.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := testAuth()

	router := gin.New()
	router.GET("/whoami", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"address": c.GetString("caller_address")})
	})

	// No header.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	token, err := auth.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "", time.Hour)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0x742d35Cc6634C0532925a3b0F26750C66d78EB66")
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := testAuth()

	router := gin.New()
	router.POST("/admin", auth.RequireAuth(), auth.RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	call := func(role string) int {
		token, err := auth.GenerateToken("0x742d35Cc6634C0532925a3b0F26750C66d78EB66", role, time.Hour)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call(RoleAdmin))
	assert.Equal(t, http.StatusForbidden, call(RoleOperator))
	assert.Equal(t, http.StatusForbidden, call(""))
}
