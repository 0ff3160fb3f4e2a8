package subscription

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Sentinel errors for the subscription catalog.
var (
	// ErrInvalidPayload is returned when a wire payload is not valid JSON
	// or lacks a required field.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrWatchFailed is returned when registering a liveness watch with the
	// bus fails during Add. The catalog is left unchanged.
	ErrWatchFailed = errors.New("liveness watch registration failed")

	// ErrClosed is returned when operating on a closed catalog.
	ErrClosed = errors.New("catalog closed")
)

// xerrWatch wraps a bus failure during watch registration with the
// ErrWatchFailed sentinel and a captured stack.
func xerrWatch(err error) error {
	return xerrors.WithStackTrace(fmt.Errorf("%w: %w", ErrWatchFailed, err), 1)
}

// xerrInvalid reports a malformed wire payload with a captured stack.
func xerrInvalid(detail string) error {
	return xerrors.WithStackTrace(fmt.Errorf("%w: %s", ErrInvalidPayload, detail), 1)
}
