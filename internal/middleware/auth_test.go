package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupAuthRouter() (*gin.Engine, *Identity) {
	gin.SetMode(gin.TestMode)
	captured := &Identity{}
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/protected", func(c *gin.Context) {
		captured.UserID = c.MustGet(ContextUserIDKey).(primitive.ObjectID)
		captured.Role, _ = c.MustGet(ContextRoleKey).(string)
		c.Status(http.StatusOK)
	})
	return r, captured
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	router, captured := setupAuthRouter()
	userID := primitive.NewObjectID()
	token := signToken(t, jwt.MapClaims{
		"userId": userID.Hex(),
		"role":   "student",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, "student", captured.Role)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	router, _ := setupAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	router, _ := setupAuthRouter()
	token := signToken(t, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}, "some-other-secret")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	router, _ := setupAuthRouter()
	token := signToken(t, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
		"exp":    time.Now().Add(-time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareMalformedBearer(t *testing.T) {
	router, _ := setupAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseTokenBadUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"userId": "not-an-object-id",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	_, err := ParseToken(token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityFromHeader(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signToken(t, jwt.MapClaims{
		"userId": userID.Hex(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	identity, err := IdentityFromHeader("Bearer "+token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)

	_, err = IdentityFromHeader("", testSecret)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = IdentityFromHeader(token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
