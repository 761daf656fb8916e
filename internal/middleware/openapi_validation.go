package middleware

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
)

// OpenAPISpecs embeds the CAMARA surface specification used for
// inbound request validation.
//
//go:embed specs/*.yaml
var OpenAPISpecs embed.FS

const embeddedSpecFile = "specs/camara-gateway.yaml"

// ValidationConfig configures the OpenAPI validation middleware.
type ValidationConfig struct {
	// SpecPath overrides the embedded spec with an on-disk file.
	SpecPath string

	// ValidateRequest rejects requests that do not match the OpenAPI document.
	ValidateRequest bool

	// ValidateResponse additionally checks outbound bodies. Responses
	// that fail are logged, never blocked, so this is safe to leave on
	// in staging.
	ValidateResponse bool

	// ExcludePaths lists path prefixes that bypass validation. When
	// nil, the health and metrics endpoints are excluded.
	ExcludePaths []string

	Logger *zap.Logger
}

// DefaultValidationConfig enables request validation with the probe
// endpoints excluded.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		ValidateRequest: true,
		ExcludePaths:    defaultExcludePaths(),
	}
}

func defaultExcludePaths() []string {
	return []string{"/health", "/ready", "/live", "/metrics"}
}

// OpenAPIValidator validates CAMARA requests against the gateway's
// OpenAPI document before they reach a handler.
type OpenAPIValidator struct {
	config *ValidationConfig
	logger *zap.Logger

	mu     sync.RWMutex
	spec   *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator builds a validator and loads its spec: from
// cfg.SpecPath when set, otherwise from the embedded document.
func NewOpenAPIValidator(cfg *ValidationConfig) (*OpenAPIValidator, error) {
	if cfg == nil {
		cfg = DefaultValidationConfig()
	}
	if cfg.ExcludePaths == nil {
		cfg.ExcludePaths = defaultExcludePaths()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &OpenAPIValidator{config: cfg, logger: logger}

	if cfg.SpecPath != "" {
		if err := v.LoadSpecFromFile(cfg.SpecPath); err != nil {
			return nil, err
		}
		return v, nil
	}

	content, err := OpenAPISpecs.ReadFile(embeddedSpecFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded OpenAPI spec: %w", err)
	}
	if err := v.LoadSpec(content); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadSpec parses, validates, and installs a spec document.
func (v *OpenAPIValidator) LoadSpec(content []byte) error {
	spec, err := openapi3.NewLoader().LoadFromData(content)
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}
	return v.install(spec, "embedded")
}

// LoadSpecFromFile loads a spec document from disk.
func (v *OpenAPIValidator) LoadSpecFromFile(path string) error {
	spec, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI spec from %s: %w", path, err)
	}
	return v.install(spec, path)
}

func (v *OpenAPIValidator) install(spec *openapi3.T, source string) error {
	if err := spec.Validate(context.Background()); err != nil {
		return fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		return fmt.Errorf("failed to build OpenAPI route table: %w", err)
	}

	v.mu.Lock()
	v.spec = spec
	v.router = router
	v.mu.Unlock()

	v.logger.Info("OpenAPI spec loaded",
		zap.String("source", source),
		zap.String("title", spec.Info.Title),
		zap.String("version", spec.Info.Version),
	)
	return nil
}

// Spec returns the installed spec document.
func (v *OpenAPIValidator) Spec() *openapi3.T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.spec
}

func (v *OpenAPIValidator) currentRouter() routers.Router {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.router
}

func (v *OpenAPIValidator) isExcluded(path string) bool {
	for _, prefix := range v.config.ExcludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns the gin middleware. Paths the document does not know
// pass through untouched so new routes can ship ahead of the document.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		router := v.currentRouter()
		if router == nil || v.isExcluded(c.Request.URL.Path) {
			c.Next()
			return
		}

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			v.logger.Debug("path not in OpenAPI spec, skipping validation",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		if v.config.ValidateRequest {
			if !v.validateRequest(c, route, pathParams) {
				return
			}
		}

		if v.config.ValidateResponse {
			v.observeResponse(c, route, pathParams)
			return
		}

		c.Next()
	}
}

// validateRequest checks the inbound request. It returns false when the
// request was rejected and the context aborted.
func (v *OpenAPIValidator) validateRequest(c *gin.Context, route *routers.Route, pathParams map[string]string) bool {
	input := &openapi3filter.RequestValidationInput{
		Request:    c.Request,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	// The body is consumed twice: once by the validator and once by
	// the handler's binding.
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			v.logger.Error("failed to read request body", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, camara.Internal())
			return false
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		input.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
		v.logger.Info("request rejected by OpenAPI validation",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusBadRequest, camara.InvalidArgument(validationMessage(err)))
		return false
	}

	c.Next()
	return true
}

// responseRecorder tees the response body so it can be validated after
// the handler runs.
type responseRecorder struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// observeResponse runs the handler, then checks what it wrote against
// the document. Violations are logged only: the response already left.
func (v *OpenAPIValidator) observeResponse(c *gin.Context, route *routers.Route, pathParams map[string]string) {
	recorder := &responseRecorder{
		ResponseWriter: c.Writer,
		body:           &bytes.Buffer{},
		statusCode:     http.StatusOK,
	}
	c.Writer = recorder

	c.Next()

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
		},
		Status:  recorder.statusCode,
		Header:  c.Writer.Header(),
		Body:    io.NopCloser(bytes.NewReader(recorder.body.Bytes())),
		Options: &openapi3filter.Options{MultiError: true},
	}

	if err := openapi3filter.ValidateResponse(c.Request.Context(), input); err != nil {
		v.logger.Warn("response does not match OpenAPI spec",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", recorder.statusCode),
			zap.Error(err),
		)
	}
}

// validationMessage turns a kin-openapi error chain into the short
// message carried in the CAMARA error body.
func validationMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "request body has an error"):
		if strings.Contains(msg, "doesn't match schema") {
			return "request body does not match schema: " + schemaDetail(msg)
		}
		return "invalid request body format"
	case strings.Contains(msg, "parameter"):
		return "invalid request parameters: " + msg
	default:
		return "request validation failed: " + msg
	}
}

func schemaDetail(msg string) string {
	if _, after, found := strings.Cut(msg, "property"); found {
		after = strings.TrimSpace(after)
		if name, _, ok := strings.Cut(after, " "); ok && name != "" {
			return "invalid property " + name
		}
	}
	if strings.Contains(msg, "missing") {
		return "missing required field"
	}
	if strings.Contains(msg, "type") {
		return "invalid field type"
	}
	return "schema validation failed"
}
