package middleware

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling labels each request's CPU samples with its route and the ledger
// workflow it drives, e.g. workflow=sales for POST /api/v1/sales/:id/return.
// Paths outside the API are left unlabelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if !strings.HasPrefix(route, "/api/") {
			c.Next()
			return
		}
		labels := map[string]string{
			telemetry.ProfilingLabelRoute:    c.Request.Method + " " + route,
			telemetry.ProfilingLabelWorkflow: resourceFromRoute(route),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceFromRoute returns the first path segment after /api/<version>,
// e.g. "/api/v1/purchase-orders/:id/receive" -> "purchase-orders"
func resourceFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || (s[0] != 'v' && s[0] != 'V') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
