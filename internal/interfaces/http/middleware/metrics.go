package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// unmatchedRoute labels requests that matched no route, keeping label cardinality bounded
const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight requests by route pattern.
// A nil metrics set disables the middleware.
func Metrics(m *telemetry.HTTPMetrics, skipPaths ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		done := m.Start()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		done(c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}
