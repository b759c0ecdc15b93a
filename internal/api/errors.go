package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches (via errors.Is) a NetworkError carrying a 404.
var ErrNotFound = errors.New("not found")

// NetworkError covers transport failures and non-2xx responses.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, msg)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// DataShapeError means the response decoded but lacked an expected field.
type DataShapeError struct {
	Op    string
	Field string
	Err   error
}

func (e *DataShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: unexpected response: field %q missing or malformed", e.Op, e.Field)
	}
	return fmt.Sprintf("%s: unexpected response: field %q: %v", e.Op, e.Field, e.Err)
}

func (e *DataShapeError) Unwrap() error { return e.Err }

// ServerLogicError is a well-formed {success:false, error} reply.
type ServerLogicError struct {
	Op      string
	Message string
}

func (e *ServerLogicError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected by server", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
