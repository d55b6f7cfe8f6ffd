package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// ShouldRetry reports whether err is a transient transport failure worth
// another attempt: a timeout, a failed dial or a connection dropped
// mid-request. Cancellation and errors reported by the remote service are
// final.
func ShouldRetry(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
