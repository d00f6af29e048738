package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vivesbank/backend/shared/models"
)

var (
	jwtMu        sync.RWMutex
	jwtSecretVal []byte
	jwtExpiry    = 24 * time.Hour
)

// ConfigureJWT sets the signing secret and token lifetime. Without it the
// secret is read once from JWT_SECRET.
func ConfigureJWT(secret string, expiry time.Duration) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecretVal = []byte(secret)
	if expiry > 0 {
		jwtExpiry = expiry
	}
}

func jwtSecret() []byte {
	jwtMu.RLock()
	secret := jwtSecretVal
	jwtMu.RUnlock()
	if len(secret) > 0 {
		return secret
	}
	env := os.Getenv("JWT_SECRET")
	if env == "" {
		panic("JWT_SECRET environment variable is not set")
	}
	ConfigureJWT(env, 0)
	return []byte(env)
}

type Claims struct {
	UserID   string        `json:"userId"`
	Username string        `json:"username"`
	Roles    []models.Role `json:"roles"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the user.
func IssueToken(userID, username string, roles []models.Role) (string, error) {
	jwtMu.RLock()
	expiry := jwtExpiry
	jwtMu.RUnlock()

	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ParseToken validates the signature, algorithm and expiry of a token.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return jwtSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization header required"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

func authenticate(c *gin.Context, tokenString string) bool {
	claims, err := ParseToken(tokenString)
	if err != nil {
		RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		c.Abort()
		return false
	}
	c.Set("userId", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("roles", claims.Roles)
	return true
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			RespondWithError(c, http.StatusUnauthorized, problem)
			c.Abort()
			return
		}
		if authenticate(c, tokenString) {
			c.Next()
		}
	}
}

// WebSocketAuth accepts the token in the "token" query parameter as browsers
// cannot set headers on a WebSocket handshake; the header still wins.
func WebSocketAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization token required")
			c.Abort()
			return
		}
		if authenticate(c, tokenString) {
			c.Next()
		}
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !models.RolesAllow(GetRoles(c), role) {
			RespondWithError(c, http.StatusForbidden, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

func GetUsername(c *gin.Context) (string, bool) {
	v, exists := c.Get("username")
	if !exists {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}

func GetRoles(c *gin.Context) []models.Role {
	v, exists := c.Get("roles")
	if !exists {
		return nil
	}
	roles, _ := v.([]models.Role)
	return roles
}
