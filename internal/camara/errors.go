package camara

import (
	"errors"
	"net/http"
	"strings"
)

// Tagged failure values returned by core adapters and the translation
// layer. ToError is the only place they are rendered to the wire.
var (
	// ErrDeviceNotFound signals the core does not know the device or the
	// device is not connected.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrInvalidDevice signals the device identifier could not be resolved
	// into a subscriber identity.
	ErrInvalidDevice = errors.New("invalid device identifier")

	// ErrCapabilityNotSupported signals the selected core adapter does not
	// implement the requested operation.
	ErrCapabilityNotSupported = errors.New("capability not supported")

	// ErrCoreUnavailable signals the core could not be reached at all.
	ErrCoreUnavailable = errors.New("network core unavailable")

	// ErrMalformedResponse signals the core answered with a body that does
	// not parse into the expected 3GPP shape.
	ErrMalformedResponse = errors.New("malformed core response")
)

// Error is the CAMARA wire error: exactly {status, code, message}.
// It is constructed only inside this package; handlers obtain one from the
// request validators or from ToError and write it verbatim.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Fixed vocabulary of CAMARA error codes.
const (
	CodeInvalidArgument            = "INVALID_ARGUMENT"
	CodeOutOfRange                 = "OUT_OF_RANGE"
	CodeUnauthenticated            = "UNAUTHENTICATED"
	CodePermissionDenied           = "PERMISSION_DENIED"
	CodeNotFound                   = "NOT_FOUND"
	CodeDeviceNotFound             = "DEVICE_NOT_FOUND"
	CodeIdentifierNotFound         = "IDENTIFIER_NOT_FOUND"
	CodeConflict                   = "CONFLICT"
	CodeDeniedWait                 = "DENIED_WAIT"
	CodeExtensionNotAllowed        = "QUALITY_ON_DEMAND.SESSION_EXTENSION_NOT_ALLOWED"
	CodeMissingIdentifier          = "MISSING_IDENTIFIER"
	CodeDeviceUnidentifiable       = "DEVICE_UNIDENTIFIABLE"
	CodeUnnecessaryIdentifier      = "UNNECESSARY_IDENTIFIER"
	CodeUnsupportedIdentifier      = "UNSUPPORTED_IDENTIFIER"
	CodeTooManyRequests            = "TOO_MANY_REQUESTS"
	CodeInternal                   = "INTERNAL"
	CodeServiceUnavailable         = "SERVICE_UNAVAILABLE"
)

// InvalidArgument builds a 400 INVALID_ARGUMENT error.
func InvalidArgument(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidArgument, Message: msg}
}

// OutOfRange builds a 400 OUT_OF_RANGE error.
func OutOfRange(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeOutOfRange, Message: msg}
}

// MissingIdentifier builds a 422 MISSING_IDENTIFIER error.
func MissingIdentifier(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeMissingIdentifier, Message: msg}
}

// DeviceUnidentifiable builds a 422 DEVICE_UNIDENTIFIABLE error.
func DeviceUnidentifiable(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeDeviceUnidentifiable, Message: msg}
}

// UnnecessaryIdentifier builds a 422 UNNECESSARY_IDENTIFIER error.
func UnnecessaryIdentifier(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeUnnecessaryIdentifier, Message: msg}
}

// UnsupportedIdentifier builds a 422 UNSUPPORTED_IDENTIFIER error.
func UnsupportedIdentifier(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeUnsupportedIdentifier, Message: msg}
}

// NotFound builds a 404 NOT_FOUND error.
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

// DeviceNotFound builds a 404 DEVICE_NOT_FOUND error.
func DeviceNotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeDeviceNotFound, Message: msg}
}

// IdentifierNotFound builds a 404 IDENTIFIER_NOT_FOUND error.
func IdentifierNotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeIdentifierNotFound, Message: msg}
}

// Conflict builds a 409 CONFLICT error.
func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

// DeniedWait builds a 409 DENIED_WAIT error.
func DeniedWait(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeDeniedWait, Message: msg}
}

// ExtensionNotAllowed builds the QoD-specific 409 extension error.
func ExtensionNotAllowed(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeExtensionNotAllowed, Message: msg}
}

// Internal builds a 500 INTERNAL error with a generic message. Internal
// detail never reaches the wire.
func Internal() *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
}

// ServiceUnavailable builds a 503 SERVICE_UNAVAILABLE error.
func ServiceUnavailable(msg string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: msg}
}

// Substrings in core failure text that indicate the device is unknown to or
// disconnected from the core.
var notFoundHints = []string{
	"not connected",
	"not found",
	"redis: nil",
	"failed to get ue",
	"could not create pcf policy",
}

// ToError is the single total mapping from internal failures to the CAMARA
// wire error. Every code path reaches it exactly once before a response
// leaves the system. Unmapped failures collapse to 500 INTERNAL.
func ToError(err error) *Error {
	if err == nil {
		return Internal()
	}

	// Already a wire error: pass through unchanged.
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return DeviceNotFound("Device not found or not connected")
	case errors.Is(err, ErrInvalidDevice):
		return InvalidArgument("Invalid device identifier")
	case errors.Is(err, ErrCapabilityNotSupported):
		return ServiceUnavailable("The selected core does not support this operation")
	case errors.Is(err, ErrCoreUnavailable):
		return ServiceUnavailable("Network core unavailable")
	case errors.Is(err, ErrMalformedResponse):
		return Internal()
	}

	// Raw core failure text carries the only signal we have.
	lower := strings.ToLower(err.Error())
	for _, hint := range notFoundHints {
		if strings.Contains(lower, hint) {
			return DeviceNotFound("Device not found or not connected")
		}
	}
	if strings.Contains(lower, "invalid") {
		return InvalidArgument("Invalid device identifier")
	}

	return Internal()
}
