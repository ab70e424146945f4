package middleware

import (
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
)

// MaxUserIDLength bounds the recording-user header
const MaxUserIDLength = 100

// UserIdentity records the caller named by X-User-ID. Authentication happens
// upstream; the ledger only stores who recorded a sale or write-off.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := c.GetHeader(HeaderUserID); user != "" && len(user) <= MaxUserIDLength {
			c.Set(logger.GinUserIDKey, user)
		}
		c.Next()
	}
}

// GetUserID returns the caller set by UserIdentity, or ""
func GetUserID(c *gin.Context) string {
	return c.GetString(logger.GinUserIDKey)
}
