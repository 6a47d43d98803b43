package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	val, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	userID, ok := val.(primitive.ObjectID)
	if !ok || userID.IsZero() {
		return primitive.NilObjectID, false
	}
	return userID, true
}

func auditUserID(c *gin.Context) *string {
	if userID, ok := userIDFromContext(c); ok {
		hex := userID.Hex()
		return &hex
	}
	return nil
}
