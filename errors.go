// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package afg3021b

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by every instrument operation on a Session that
	// was never opened or has been closed.
	ErrNotOpen = errors.New("afg3021b: session is not open")

	// ErrInvalidValue is returned for a NaN parameter request.
	ErrInvalidValue = errors.New("afg3021b: invalid parameter value")
)

// ConnectionError reports that the serial port could not be opened or the
// GPIB adapter could not be configured over it.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to open the USB link to the AFG3021B on %q, make sure it is plugged in: %s", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InstrumentNotRespondingError reports that the adapter answered but the
// identity check failed or timed out, usually because the generator is off.
type InstrumentNotRespondingError struct {
	Port     string
	Response string
	Err      error
}

func (e *InstrumentNotRespondingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("AFG3021B on %q is not responding, make sure it is turned on: %s", e.Port, e.Err)
	}
	return fmt.Sprintf("AFG3021B on %q is not responding, make sure it is turned on (identity %q)", e.Port, e.Response)
}

func (e *InstrumentNotRespondingError) Unwrap() error { return e.Err }

// WriteError reports a failed command write, or a failed or unparsable
// read-back, on an open Session.
type WriteError struct {
	Command string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("error sending %q: %s", e.Command, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadTimeoutError reports that a query got no reply before the transport
// timeout.
type ReadTimeoutError struct {
	Command string
	Err     error
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("no reply to %q: %s", e.Command, e.Err)
}

func (e *ReadTimeoutError) Unwrap() error { return e.Err }
