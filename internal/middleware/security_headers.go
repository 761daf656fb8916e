package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig controls the security response headers added to
// every CAMARA API response.
type SecurityHeadersConfig struct {
	Enabled bool

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
	HSTSPreload           bool

	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string

	// TLSEnabled gates HSTS: the header is only meaningful over TLS.
	TLSEnabled bool
}

// DefaultSecurityHeadersConfig returns settings suited to a JSON API
// that serves no browser content: everything locked down, HSTS for a
// year once TLS is on.
func DefaultSecurityHeadersConfig() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		Enabled:               true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// SecurityHeaders returns a middleware adding the standard security
// headers. The header set is static per configuration, so it is built
// once here rather than per request. Cache-Control is no-store because
// session and SIM swap responses carry subscriber data that must not
// land in shared caches.
func SecurityHeaders(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityHeadersConfig()
	}

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         config.FrameOptions,
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": config.ContentSecurityPolicy,
		"Referrer-Policy":         config.ReferrerPolicy,
		"Cache-Control":           "no-store",
		"Permissions-Policy":      "geolocation=(), microphone=(), camera=()",
		// Cleared to avoid advertising the server implementation.
		"Server": "",
	}
	if config.TLSEnabled && config.HSTSMaxAge > 0 {
		headers["Strict-Transport-Security"] = BuildHSTSValue(config)
	}

	return func(c *gin.Context) {
		if config.Enabled {
			for name, value := range headers {
				c.Header(name, value)
			}
		}
		c.Next()
	}
}

// BuildHSTSValue renders the Strict-Transport-Security header value.
func BuildHSTSValue(config *SecurityHeadersConfig) string {
	value := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
	if config.HSTSIncludeSubDomains {
		value += "; includeSubDomains"
	}
	if config.HSTSPreload {
		value += "; preload"
	}
	return value
}
