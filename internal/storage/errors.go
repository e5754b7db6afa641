package storage

import (
	"context"
	"database/sql/driver"
	"io"
	"net"

	"github.com/pkg/errors"
)

// ErrUnreachable marks failures to reach the store. A run that sees it stops:
// no later dataset can succeed without a connection.
var ErrUnreachable = errors.New("storage unreachable")

type unreachableError struct{ cause error }

func (e *unreachableError) Error() string        { return "storage unreachable: " + e.cause.Error() }
func (e *unreachableError) Unwrap() error        { return e.cause }
func (e *unreachableError) Cause() error         { return e.cause }
func (e *unreachableError) Is(target error) bool { return target == ErrUnreachable }

// Unreachable marks err as a connectivity failure. It returns nil for nil.
func Unreachable(err error) error {
	if err == nil || IsUnreachable(err) {
		return err
	}
	return &unreachableError{cause: err}
}

// IsUnreachable reports whether err is, or wraps, a connectivity failure.
func IsUnreachable(err error) bool { return errors.Is(err, ErrUnreachable) }

// MarkConnErr returns err marked Unreachable when it looks like a transport
// failure (dial errors, dropped connections, timeouts), and err unchanged
// otherwise. Backends run their driver errors through it.
func MarkConnErr(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	switch {
	case errors.As(err, &ne),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded):
		return Unreachable(err)
	}
	return err
}
