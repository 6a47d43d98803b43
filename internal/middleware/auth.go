package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys the auth middleware populates for downstream handlers.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "userRole"
)

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrInvalidToken = errors.New("invalid authorization token")
)

// Identity is the caller extracted from a verified token.
type Identity struct {
	UserID primitive.ObjectID
	Role   string
}

// ParseToken verifies an HMAC-signed JWT and extracts the caller identity
// from its userId and role claims.
func ParseToken(tokenString, secret string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	rawID, ok := claims["userId"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	return &Identity{UserID: userID, Role: role}, nil
}

// IdentityFromHeader parses a "Bearer <token>" Authorization header value.
func IdentityFromHeader(header, secret string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header || tokenString == "" {
		return nil, ErrInvalidToken
	}
	return ParseToken(tokenString, secret)
}

// AuthMiddleware rejects requests without a valid bearer token and puts
// the caller identity on the gin context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := IdentityFromHeader(c.GetHeader("Authorization"), secret)
		if err != nil {
			status := "invalid token"
			if errors.Is(err, ErrMissingToken) {
				status = "missing authorization header"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": status})
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, identity.UserID)
		c.Set(ContextRoleKey, identity.Role)
		c.Next()
	}
}
