package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/observability"
)

// correlatorKey is the gin context key carrying the request correlator.
const correlatorKey = "x_correlator"

// Correlator returns a middleware that propagates the x-correlator header.
// An absent or malformed inbound value is replaced with a fresh UUID. The
// resolved value is echoed on the response before the handler runs, so
// every response carries it, error paths included.
func Correlator() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlator := camara.EnsureCorrelator(c.GetHeader(camara.CorrelatorHeader))

		c.Set(correlatorKey, correlator)
		c.Header(camara.CorrelatorHeader, correlator)

		// Downstream NEF calls log under the same correlator.
		ctx := observability.ContextWithCorrelator(c.Request.Context(), correlator)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CorrelatorFrom returns the resolved correlator for the request, or an
// empty string when the middleware did not run.
func CorrelatorFrom(c *gin.Context) string {
	if v, ok := c.Get(correlatorKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
