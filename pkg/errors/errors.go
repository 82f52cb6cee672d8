package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error sentinel values used throughout the application
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternalError      = errors.New("internal error")
	ErrUnavailable        = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrFailedPrecondition = errors.New("failed precondition")

	// Domain-specific error sentinel values
	ErrSessionNotFound       = errors.New("monitoring session not found")
	ErrInvalidSignal         = errors.New("invalid session signal")
	ErrInvalidMeetingType    = errors.New("invalid meeting type")
	ErrMeetingTypeAlreadySet = errors.New("meeting type already set for session")
	ErrStateStoreFailure     = errors.New("session state store failure")
)

// Error is a structured error carrying contextual fields and the location
// where it was created.
type Error struct {
	original error
	message  string
	fields   map[string]interface{}
	file     string
	line     int
}

// New creates a new structured error with the given message.
func New(message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context. Returns nil when
// err is nil.
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: err,
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

func firstOrEmpty(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 && fields[0] != nil {
		return fields[0]
	}
	return make(map[string]interface{})
}

// WithField returns a copy of the error with one extra context field.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	fields := make(map[string]interface{}, len(e.fields)+1)
	for k, v := range e.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{
		original: e.original,
		message:  e.message,
		fields:   fields,
		file:     e.file,
		line:     e.line,
	}
}

// Fields returns the contextual fields attached to the error.
func (e *Error) Fields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.message)
	if e.original != nil && e.original.Error() != e.message {
		b.WriteString(": ")
		b.WriteString(e.original.Error())
	}
	if len(e.fields) > 0 {
		b.WriteString(" (")
		first := true
		for k, v := range e.fields {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, v)
			first = false
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file and line where the error was created.
func (e *Error) Location() (string, int) {
	if e == nil {
		return "", 0
	}
	return e.file, e.line
}

// Is reports whether any error in the chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in the chain matching target.
func As(err error, target interface{}) bool { return errors.As(err, target) }
