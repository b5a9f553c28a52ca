package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure kinds. Every error returned by the gateway wraps exactly one of them.
var (
	ErrValidation      = fmt.Errorf("validation error")
	ErrUpload          = fmt.Errorf("upload error")
	ErrPersistence     = fmt.Errorf("persistence error")
	ErrTransport       = fmt.Errorf("transport error")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
)

var (
	ErrMissingPlanID = fmt.Errorf("%w: plan id is required", ErrValidation)
	ErrEmptyMessage  = fmt.Errorf("%w: message needs a text or an image", ErrValidation)
	ErrTextTooLong   = fmt.Errorf("%w: text is too long", ErrValidation)
	ErrInvalidImage  = fmt.Errorf("%w: image payload is not a valid image data URL", ErrValidation)
	ErrImageTooLarge = fmt.Errorf("%w: image payload is too large", ErrValidation)
	ErrInvalidRoom   = fmt.Errorf("%w: payload plan id does not match the room", ErrValidation)
	ErrInvalidToken  = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	ErrMissingToken  = fmt.Errorf("%w: authorization token is missing", ErrUnauthenticated)

	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrEmptyWords   = fmt.Errorf("no words have been found")
	ErrRelayClosed  = fmt.Errorf("%w: relay is not running", ErrTransport)
	ErrSlowConsumer = fmt.Errorf("%w: connection buffer is full", ErrTransport)
	ErrSinkClosed   = fmt.Errorf("%w: connection is closed", ErrTransport)

	ErrSearchDisabled = fmt.Errorf("search is disabled: no message index is configured")
	ErrSpoofedAuthor  = fmt.Errorf("%w: payload authorId does not match the connection user", ErrValidation)
)

// HTTPStatus maps an error to the status code returned by the gateway.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSearchDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
