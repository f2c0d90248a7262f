package capture

import (
	"errors"
)

var (
	// ErrPermissionDenied means the microphone is not authorized; the session stays inert
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrNotOpen means the session has no device handle
	ErrNotOpen = errors.New("capture session not open")

	// ErrAlreadyOpen means Open was called on an open session
	ErrAlreadyOpen = errors.New("capture session already open")

	// ErrClosed means the session was closed, possibly while the operation was pending
	ErrClosed = errors.New("capture session closed")

	// ErrTimeout means a read exceeded its deadline
	ErrTimeout = errors.New("capture read timed out")

	// ErrBusy means another read is already in flight on the session
	ErrBusy = errors.New("capture read already in progress")

	// ErrDevice wraps failures reported by the underlying device
	ErrDevice = errors.New("capture device failure")

	// ErrInvalidArgument is returned for bad rates or window sizes
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStreamStopped is returned by streams read after Stop
	ErrStreamStopped = errors.New("stream stopped")

	// ErrUnsupportedFormat is returned by devices that cannot deliver the requested format
	ErrUnsupportedFormat = errors.New("unsupported stream format")
)

// SessionError records which session operation failed
type SessionError struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

func (e *SessionError) Error() string {
	return "capture " + e.Op + ": " + e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	return &SessionError{Op: op, Err: err}
}
