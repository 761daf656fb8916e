package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("default headers applied", func(t *testing.T) {
		router := gin.New()
		router.Use(SecurityHeaders(nil))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
		// HSTS only when TLS is enabled
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("disabled skips headers", func(t *testing.T) {
		config := DefaultSecurityHeadersConfig()
		config.Enabled = false

		router := gin.New()
		router.Use(SecurityHeaders(config))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Empty(t, w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("hsts set when tls enabled", func(t *testing.T) {
		config := DefaultSecurityHeadersConfig()
		config.TLSEnabled = true

		router := gin.New()
		router.Use(SecurityHeaders(config))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "includeSubDomains")
	})
}

func TestBuildHSTSValue(t *testing.T) {
	tests := []struct {
		name   string
		config *SecurityHeadersConfig
		want   string
	}{
		{
			name:   "max age only",
			config: &SecurityHeadersConfig{HSTSMaxAge: 100},
			want:   "max-age=100",
		},
		{
			name:   "with subdomains",
			config: &SecurityHeadersConfig{HSTSMaxAge: 100, HSTSIncludeSubDomains: true},
			want:   "max-age=100; includeSubDomains",
		},
		{
			name:   "with preload",
			config: &SecurityHeadersConfig{HSTSMaxAge: 100, HSTSIncludeSubDomains: true, HSTSPreload: true},
			want:   "max-age=100; includeSubDomains; preload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildHSTSValue(tt.config))
		})
	}
}
