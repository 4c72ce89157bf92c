package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the remote store has no record for the key.
var ErrNotFound = errors.New("remote: not found")

// ErrUnavailable indicates the remote store could not be reached, timed out,
// or answered with a non-success status.
type ErrUnavailable struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ErrUnavailable) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s unavailable (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrMalformedResponse indicates the remote answered but the body could not
// be decoded or was missing required fields. Callers treat it like
// ErrUnavailable.
type ErrMalformedResponse struct {
	Endpoint string
	Err      error
}

func (e *ErrMalformedResponse) Error() string {
	return fmt.Sprintf("remote %s returned a malformed response: %v", e.Endpoint, e.Err)
}

func (e *ErrMalformedResponse) Unwrap() error { return e.Err }

// IsUnavailable reports whether err means the caller should fall back to a
// local tier: an unreachable remote or a malformed response.
func IsUnavailable(err error) bool {
	var unavail *ErrUnavailable
	var malformed *ErrMalformedResponse
	return errors.As(err, &unavail) || errors.As(err, &malformed)
}
