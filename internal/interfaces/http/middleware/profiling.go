package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradeco/backoffice/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests get profiling labels attached.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are matched exactly, SkipPathPrefixes by prefix.
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig enables labeling and skips the probe endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: true,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
		},
		SkipPathPrefixes: []string{},
	}
}

// Profiling attaches Pyroscope labels to each request using the default
// configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig wraps handler execution in a labeled profiling context.
// Labels carry the HTTP method, the matched route pattern, the controller
// derived from the pattern, and the caller's primary role. All of them are
// low cardinality so they stay usable as Pyroscope filter dimensions.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		labels := profilingLabels(c)

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)

	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}

	// The matched pattern, not the raw path, keeps cardinality bounded.
	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}

	if controller := controllerFromRoute(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}

	if roles := GetJWTRoles(c); len(roles) > 0 {
		// The first role in the claims is the primary one.
		labels[telemetry.ProfilingLabelRole] = roles[0]
	}

	return labels
}

// controllerFromRoute picks the resource segment out of a route pattern,
// so "/api/v1/invoices/:id" yields "invoices".
func controllerFromRoute(route string) string {
	if route == "" {
		return ""
	}

	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{") {
			continue
		}
		return part
	}

	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 {
		return false
	}
	if segment[0] != 'v' && segment[0] != 'V' {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}

// ProfilingAttributeInjector is meant to run after the JWT middleware so the
// role claim is available for labeling.
func ProfilingAttributeInjector() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}
