package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	handler := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/test", handler)
	r.POST("/test", handler)
	return r
}

func serve(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllowed string
	}{
		{name: "no origins configured", origins: nil, method: http.MethodGet, origin: "https://shop.example", wantStatus: http.StatusOK},
		{name: "allowed origin", origins: []string{"https://shop.example"}, method: http.MethodGet, origin: "https://shop.example", wantStatus: http.StatusOK, wantAllowed: "https://shop.example"},
		{name: "other origin", origins: []string{"https://shop.example"}, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK},
		{name: "wildcard", origins: []string{"*"}, method: http.MethodGet, origin: "https://any.example", wantStatus: http.StatusOK, wantAllowed: "*"},
		{name: "preflight allowed", origins: []string{"https://shop.example"}, method: http.MethodOptions, origin: "https://shop.example", wantStatus: http.StatusNoContent, wantAllowed: "https://shop.example"},
		{name: "preflight rejected still 204", origins: nil, method: http.MethodOptions, origin: "https://shop.example", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowOrigins = tt.origins
			w := serve(okRouter(CORS(cfg)), tt.method, "/test", map[string]string{"Origin": tt.origin})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllowed != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderIdempotencyKey)
				assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
			}
			if tt.wantAllowed == "*" {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/test", nil)
		assert.Len(t, seen, 32)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})

	t.Run("client supplied", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/test", map[string]string{HeaderRequestID: "req-42"})
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		serve(r, http.MethodGet, "/test", map[string]string{HeaderRequestID: strings.Repeat("x", MaxRequestIDLength+1)})
		assert.Len(t, seen, 32)
	})
}

func TestGenerateRequestID_Unique(t *testing.T) {
	assert.NotEqual(t, generateRequestID(), generateRequestID())
}

func TestSecure(t *testing.T) {
	w := serve(okRouter(Secure()), http.MethodGet, "/test", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestUserIdentity(t *testing.T) {
	var user string
	r := gin.New()
	r.Use(UserIdentity())
	r.GET("/test", func(c *gin.Context) {
		user = GetUserID(c)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/test", map[string]string{HeaderUserID: "ops@shop"})
	assert.Equal(t, "ops@shop", user)

	serve(r, http.MethodGet, "/test", map[string]string{HeaderUserID: strings.Repeat("u", MaxUserIDLength+1)})
	assert.Empty(t, user)

	serve(r, http.MethodGet, "/test", nil)
	assert.Empty(t, user)
}

func TestUserIdentity_FeedsRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), UserIdentity(), logger.GinMiddleware(zap.NewNop()))
	r.GET("/test", func(c *gin.Context) {
		assert.Equal(t, "ops", logger.GetUserID(c.Request.Context()))
		assert.NotEmpty(t, logger.GetRequestID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/test", map[string]string{HeaderUserID: "ops"})
	assert.Equal(t, http.StatusOK, w.Code)
}
