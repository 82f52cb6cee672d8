package errors

import "net/http"

// HTTPStatus maps an error chain to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrNotFound), Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case Is(err, ErrInvalidInput), Is(err, ErrInvalidSignal), Is(err, ErrInvalidMeetingType):
		return http.StatusBadRequest
	case Is(err, ErrAlreadyExists), Is(err, ErrMeetingTypeAlreadySet):
		return http.StatusConflict
	case Is(err, ErrFailedPrecondition):
		return http.StatusPreconditionFailed
	case Is(err, ErrUnavailable), Is(err, ErrStateStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
