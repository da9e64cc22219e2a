package relay

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// classify buckets a pump termination error for the completion record.
// Nothing here is fatal; the bucket is only structured context for the log.
func classify(err error) string {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, net.ErrClosed):
		return "closed"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return "reset"
	default:
		return "error"
	}
}
