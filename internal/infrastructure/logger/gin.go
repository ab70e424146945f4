package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gin context keys shared with the HTTP middleware chain
const (
	GinRequestIDKey      = "request_id"
	GinUserIDKey         = "user_id"
	GinIdempotencyKeyKey = "idempotency_key"
	ginLoggerKey         = "logger"
)

func ginString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// GinMiddleware logs one entry per request and stores a request-scoped
// logger both in the gin context and in the request's context.Context, so
// services reached from the handler can use L(ctx).
//
// It must run after the request-id and user middleware.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		ctx := c.Request.Context()
		reqLogger := base.With(zap.String("method", c.Request.Method), zap.String("path", path))
		if id := ginString(c, GinRequestIDKey); id != "" {
			ctx, reqLogger = WithRequestID(ctx, reqLogger, id)
		}
		if user := ginString(c, GinUserIDKey); user != "" {
			ctx, reqLogger = WithUserID(ctx, reqLogger, user)
		}
		if key := ginString(c, GinIdempotencyKeyKey); key != "" {
			ctx, reqLogger = WithIdempotencyKey(ctx, reqLogger, key)
		}
		ctx = WithContext(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		entry := WithTraceContext(c.Request.Context(), reqLogger)
		switch {
		case status >= 500:
			entry.Error("HTTP Request", fields...)
		case status >= 400:
			entry.Warn("HTTP Request", fields...)
		default:
			entry.Info("HTTP Request", fields...)
		}
	}
}

// Recovery turns a panic in a handler into a 500 with an ERR_INTERNAL error body
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				base.Error("Panic recovered",
					zap.String("request_id", ginString(c, GinRequestIDKey)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(500, gin.H{
					"success": false,
					"error":   gin.H{"code": "ERR_INTERNAL", "message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger, or a no-op logger
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}
