package camara

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "nil collapses to internal",
			err:        nil,
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
		{
			name:       "device not found sentinel",
			err:        ErrDeviceNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "wrapped device not found sentinel",
			err:        fmt.Errorf("coresim: %w", ErrDeviceNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "invalid device sentinel",
			err:        ErrInvalidDevice,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidArgument,
		},
		{
			name:       "capability not supported sentinel",
			err:        ErrCapabilityNotSupported,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeServiceUnavailable,
		},
		{
			name:       "core unavailable sentinel",
			err:        ErrCoreUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeServiceUnavailable,
		},
		{
			name:       "malformed response sentinel",
			err:        ErrMalformedResponse,
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
		{
			name:       "core text ue not connected",
			err:        errors.New("UE not connected"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "core text subscription not found",
			err:        errors.New("subscription Not Found"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "core text redis nil",
			err:        errors.New("redis: nil"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "core text failed to get ue",
			err:        errors.New("Failed to get UE from ue-identity"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "core text pcf policy",
			err:        errors.New("could not create pcf policy"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeDeviceNotFound,
		},
		{
			name:       "core text invalid",
			err:        errors.New("invalid msisdn format"),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidArgument,
		},
		{
			name:       "unmapped failure defaults to internal",
			err:        errors.New("connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToError(tt.err)

			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestToErrorPassesWireErrorsThrough(t *testing.T) {
	wire := ExtensionNotAllowed("Extension not allowed in current session state")

	assert.Same(t, wire, ToError(wire))
	assert.Same(t, wire, ToError(fmt.Errorf("handler: %w", wire)))
}

func TestToErrorNeverLeaksInternalDetail(t *testing.T) {
	got := ToError(errors.New("dial tcp 10.0.0.5:6379: connect: connection refused"))

	assert.Equal(t, CodeInternal, got.Code)
	assert.NotContains(t, got.Message, "10.0.0.5")
}
