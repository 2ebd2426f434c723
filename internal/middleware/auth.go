package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Caller roles. Admin covers allowlist and fee administration, operator
// covers profit reports and vault allocation, relayer covers remote record
// delivery. Plain users hold no role claim.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleRelayer  = "relayer"
)

// Claims is the JWT payload carried by authenticated callers.
type Claims struct {
	Address string `json:"address"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and enforces role requirements.
type AuthMiddleware struct {
	secret []byte
	issuer string
	logger *logrus.Logger
}

func NewAuthMiddleware(secret, issuer string, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), issuer: issuer, logger: logger}
}

// GenerateToken issues a signed token. Used by tooling and tests.
func (a *AuthMiddleware) GenerateToken(address, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Address: address,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateToken parses and verifies a token string.
func (a *AuthMiddleware) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Address == "" {
		return nil, errors.New("token missing address claim")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's address and role in the request context.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authentication required",
				"code":    "MISSING_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("token validation failed")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid or expired token",
				"code":    "INVALID_TOKEN",
			})
			c.Abort()
			return
		}

		c.Set("caller_address", claims.Address)
		c.Set("caller_role", claims.Role)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role claim is not in the
// accepted set. Must run after RequireAuth.
func (a *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("caller_role")
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		a.logger.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"caller": c.GetString("caller_address"),
			"role":   role,
		}).Warn("caller lacks required role")
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Insufficient permissions",
			"code":    "FORBIDDEN",
		})
		c.Abort()
	}
}
