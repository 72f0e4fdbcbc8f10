package sio

import "errors"

// InternalError wraps errors internal to the library.
//
// If you see this error, the problem is neither a network error nor an
// error caused by you; the source of the error is the library itself.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "sio: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error {
	return e.err
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}

// errConnClosed marks a connect attempt abandoned because the
// transport went away mid-handshake. Nothing is sent back.
var errConnClosed = errors.New("sio: connection closed")
