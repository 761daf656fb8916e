package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/camweave/internal/camara"
)

func TestCorrelator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *string) *gin.Engine {
		router := gin.New()
		router.Use(Correlator())
		router.GET("/test", func(c *gin.Context) {
			*captured = CorrelatorFrom(c)
			c.JSON(http.StatusOK, gin.H{})
		})
		return router
	}

	t.Run("echoes valid inbound correlator", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(camara.CorrelatorHeader, "client-req-42")
		router.ServeHTTP(w, req)

		assert.Equal(t, "client-req-42", w.Header().Get(camara.CorrelatorHeader))
		assert.Equal(t, "client-req-42", seen)
	})

	t.Run("mints uuid when absent", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		got := w.Header().Get(camara.CorrelatorHeader)
		require.NotEmpty(t, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err)
		assert.Equal(t, got, seen)
	})

	t.Run("replaces malformed correlator", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(camara.CorrelatorHeader, "bad value with spaces!")
		router.ServeHTTP(w, req)

		got := w.Header().Get(camara.CorrelatorHeader)
		require.NotEmpty(t, got)
		assert.NotEqual(t, "bad value with spaces!", got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err)
	})

	t.Run("replaces oversized correlator", func(t *testing.T) {
		var seen string
		router := newRouter(&seen)

		long := strings.Repeat("a", 300)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(camara.CorrelatorHeader, long)
		router.ServeHTTP(w, req)

		assert.NotEqual(t, long, w.Header().Get(camara.CorrelatorHeader))
	})

	t.Run("header present on error responses", func(t *testing.T) {
		router := gin.New()
		router.Use(Correlator())
		router.GET("/boom", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, camara.NotFound("no such session"))
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		req.Header.Set(camara.CorrelatorHeader, "err-path-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "err-path-1", w.Header().Get(camara.CorrelatorHeader))
	})
}
