package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// AuthMiddleware validates the Authorization bearer token and stores the
// authenticated user id in the request context. Credential issuance lives
// in an external auth service; this only verifies the shared-secret JWT.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := UserIDFromBearer(secret, header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// UserIDFromBearer extracts and verifies the user id from a
// "Bearer <token>" header value.
func UserIDFromBearer(secret string, header string) (int, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return 0, errInvalidToken
	}
	return ParseToken(secret, parts[1])
}

// ParseToken verifies an HS256 JWT and returns its user_id claim.
func ParseToken(secret string, token string) (int, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return 0, errInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidToken
	}
	raw, ok := claims["user_id"].(float64)
	if !ok || raw == 0 {
		return 0, errInvalidToken
	}
	return int(raw), nil
}

// IssueToken signs a token for the user id. Used by tests and local dev.
func IssueToken(secret string, userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID})
	return token.SignedString([]byte(secret))
}
