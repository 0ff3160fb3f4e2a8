package transport

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Sentinel errors for the bus transport.
var (
	// ErrNameTaken is returned when connecting with a service name that is
	// already registered on the broker.
	ErrNameTaken = errors.New("service name already registered")

	// ErrServiceUnknown is returned when calling a service that is not
	// connected to the broker.
	ErrServiceUnknown = errors.New("service not registered")

	// ErrMethodUnknown is returned when the target service has no handler
	// for the requested category/method.
	ErrMethodUnknown = errors.New("method not registered")

	// ErrConnClosed is returned when operating on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrCallNotFound is returned when cancelling a call token that has no
	// pending call or watch associated with it.
	ErrCallNotFound = errors.New("no call with that token")

	// ErrNoOrigin is returned when replying to a message that did not
	// arrive over a connection.
	ErrNoOrigin = errors.New("message has no origin connection")
)

// errorf wraps a sentinel with detail and a captured stack trace.
func errorf(sentinel error, detail string) error {
	return xerrors.WithStackTrace(fmt.Errorf("%w: %s", sentinel, detail), 1)
}
