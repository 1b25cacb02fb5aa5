package ingest

import (
	"errors"
	"net/http"
)

// ParseError reports a submission that is not usable XML. It is the
// client's fault.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "invalid XML: " + e.Msg + ": " + e.Err.Error()
	}
	return "invalid XML: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// InternalError reports an unexpected failure while walking a well-formed
// document.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "error processing XML: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// StatusFor maps a submission failure to the HTTP status of its reply.
func StatusFor(err error) int {
	var pe *ParseError
	if errors.As(err, &pe) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
