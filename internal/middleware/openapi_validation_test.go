package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadedValidator(t *testing.T) *OpenAPIValidator {
	t.Helper()

	v, err := NewOpenAPIValidator(DefaultValidationConfig())
	require.NoError(t, err)

	spec, err := OpenAPISpecs.ReadFile("specs/camara-gateway.yaml")
	require.NoError(t, err)
	require.NoError(t, v.LoadSpec(spec))

	return v
}

func TestOpenAPIValidator_LoadSpec(t *testing.T) {
	v := loadedValidator(t)

	spec := v.Spec()
	require.NotNil(t, spec)
	assert.Equal(t, "CAMARA Gateway API", spec.Info.Title)
}

func TestOpenAPIValidator_LoadSpec_Invalid(t *testing.T) {
	v, err := NewOpenAPIValidator(nil)
	require.NoError(t, err)

	err = v.LoadSpec([]byte("not: [valid: openapi"))
	assert.Error(t, err)
}

func TestOpenAPIValidator_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(v *OpenAPIValidator) *gin.Engine {
		router := gin.New()
		router.Use(v.Middleware())
		router.POST("/quality-on-demand/v1/sessions", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"sessionId": "abc"})
		})
		router.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("valid request passes", func(t *testing.T) {
		v := loadedValidator(t)
		router := newRouter(v)

		body := `{
			"device": {"ipv4Address": {"publicAddress": "12.1.0.1"}},
			"applicationServer": {"ipv4Address": "198.51.100.7"},
			"qosProfile": "qos-e",
			"duration": 600
		}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/quality-on-demand/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("missing required field rejected", func(t *testing.T) {
		v := loadedValidator(t)
		router := newRouter(v)

		// No qosProfile, no duration.
		body := `{"applicationServer": {"ipv4Address": "198.51.100.7"}}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/quality-on-demand/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_ARGUMENT")
	})

	t.Run("wrong field type rejected", func(t *testing.T) {
		v := loadedValidator(t)
		router := newRouter(v)

		body := `{
			"applicationServer": {"ipv4Address": "198.51.100.7"},
			"qosProfile": "qos-e",
			"duration": "not-a-number"
		}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/quality-on-demand/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("excluded path skips validation", func(t *testing.T) {
		v := loadedValidator(t)
		router := newRouter(v)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("spec not loaded skips validation", func(t *testing.T) {
		v := &OpenAPIValidator{config: DefaultValidationConfig(), logger: zap.NewNop()}
		router := newRouter(v)

		body := `{"garbage": true}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/quality-on-demand/v1/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestNewOpenAPIValidator_LoadsEmbeddedSpec(t *testing.T) {
	v, err := NewOpenAPIValidator(nil)
	require.NoError(t, err)
	require.NotNil(t, v.Spec())
	assert.Equal(t, "CAMARA Gateway API", v.Spec().Info.Title)
}

func TestValidationMessage(t *testing.T) {
	assert.Empty(t, validationMessage(nil))
	assert.Contains(t, validationMessage(assert.AnError), "request validation failed")
}
