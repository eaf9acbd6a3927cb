// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package afg3021b

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// DefaultReadTimeout bounds every blocking read on the serial port.
const DefaultReadTimeout = 5 * time.Second

// PortMode is the serial configuration of the Prologix virtual COM port:
// 9600 baud, 8N1, RTS and DTR asserted.
//
// go.bug.st/serial has no RTS/CTS flow control setting, so the best it can do
// is raise RTS when the port opens.
func PortMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{
			RTS: true,
			DTR: true,
		},
	}
}

// OpenPort opens name with PortMode and the given read timeout. A timed out
// read returns no bytes and no error.
func OpenPort(name string, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, PortMode())
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("failed to set read timeout on %s: %w", name, err),
			port.Close(),
		)
	}
	return port, nil
}
