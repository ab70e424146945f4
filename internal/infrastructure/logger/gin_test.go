package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(t *testing.T, pre gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)
	router := gin.New()
	if pre != nil {
		router.Use(pre)
	}
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func requestEntry(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware_StatusLevels(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			router, recorded := newTestRouter(t, nil)
			router.GET("/lots", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lots?product=p1", nil))

			assert.Equal(t, tt.status, w.Code)
			entry := requestEntry(t, recorded)
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/lots", fields["path"])
			assert.Equal(t, "product=p1", fields["query"])
		})
	}
}

func TestGinMiddleware_PropagatesIdentity(t *testing.T) {
	router, recorded := newTestRouter(t, func(c *gin.Context) {
		c.Set(GinRequestIDKey, "req-123")
		c.Set(GinUserIDKey, "erin")
		c.Set(GinIdempotencyKeyKey, "idem-5")
		c.Next()
	})

	var seen struct{ requestID, userID, idem string }
	router.POST("/sales", func(c *gin.Context) {
		ctx := c.Request.Context()
		seen.requestID = GetRequestID(ctx)
		seen.userID = GetUserID(ctx)
		seen.idem = GetIdempotencyKey(ctx)
		L(ctx).Info("sale recorded")
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sales", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "req-123", seen.requestID)
	assert.Equal(t, "erin", seen.userID)
	assert.Equal(t, "idem-5", seen.idem)

	handlerLogs := recorded.FilterMessage("sale recorded").All()
	require.Len(t, handlerLogs, 1)
	assert.Equal(t, "erin", handlerLogs[0].ContextMap()["user_id"])

	fields := requestEntry(t, recorded).ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "idem-5", fields["idempotency_key"])
}

func TestGinMiddleware_RecordsErrors(t *testing.T) {
	router, recorded := newTestRouter(t, nil)
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusBadRequest)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	fields := requestEntry(t, recorded).ContextMap()
	assert.Contains(t, fields["errors"], assert.AnError.Error())
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_INTERNAL","message":"internal server error"}}`, w.Body.String())
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}

func TestGetGinLogger(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	var got *zap.Logger
	router.GET("/x", func(c *gin.Context) {
		got = GetGinLogger(c)
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotNil(t, got)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
