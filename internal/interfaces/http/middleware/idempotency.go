package middleware

import (
	"net/http"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxIdempotencyKeyLength bounds the Idempotency-Key header
const MaxIdempotencyKeyLength = 200

// IdempotencyKey reads the Idempotency-Key header so the request logger and
// the Idempotent middleware can see it. It must run before logger.GinMiddleware.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			if len(key) > MaxIdempotencyKeyLength {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
					dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
				return
			}
			c.Set(logger.GinIdempotencyKeyKey, key)
		}
		c.Next()
	}
}

// Idempotent guards a workflow route. A request carrying a key that was
// already claimed on the same route gets 409. The claim is released when the
// workflow does not succeed, so the client may retry with the same key.
// Requests without a key run unguarded. Store failures are logged and the
// request proceeds.
func Idempotent(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(logger.GinIdempotencyKeyKey)
		if key == "" || store == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := c.Request.Method + " " + c.FullPath() + " " + key
		claimed, err := store.MarkProcessed(ctx, scoped, ttl)
		if err != nil {
			logger.L(ctx).Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest, "request with this Idempotency-Key was already processed", GetRequestID(c)))
			return
		}

		c.Next()

		if status := c.Writer.Status(); status < 200 || status >= 300 {
			if err := store.Release(ctx, scoped); err != nil {
				logger.L(ctx).Warn("release idempotency key", zap.Error(err))
			}
		}
	}
}
