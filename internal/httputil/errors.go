// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// DecodeError reports a response body that could not be parsed, such as a
// reply truncated by a dropped connection.
type DecodeError struct {
	// What names the response, e.g. "post search".
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Transient reports whether err is a failure another attempt may not hit:
// network errors and malformed responses. Cancellation never is. Callers
// check their own status errors first.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
