// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package prologix drives a Prologix-compatible USB/GPIB controller over a
// virtual serial port.
package prologix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DefaultResetDelay is how long the controller needs after `++rst` before it
// accepts further commands. The controller offers nothing to poll, so this is
// a fixed wait.
const DefaultResetDelay = 7 * time.Second

// ErrReadTimeout is returned when a read yields no data before the transport
// timeout expires.
var ErrReadTimeout = errors.New("prologix: read timed out")

// Controller models a GPIB controller-in-charge.
type Controller struct {
	rw          io.ReadWriter
	primaryAddr int
	resetDelay  time.Duration
	readUntil   byte
	usbTerm     string
	eotChar     byte
	pending     []byte
	readErr     error
	logger      *slog.Logger
}

// inputResetter is implemented by go.bug.st/serial ports.
type inputResetter interface {
	ResetInputBuffer() error
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController resets the Prologix controller on rw, waits for it to come
// back, and configures it as controller-in-charge addressing the instrument
// at addr with read-after-write disabled.
func NewController(
	rw io.ReadWriter,
	addr int,
	opts ...ControllerOption,
) (*Controller, error) {
	c := Controller{
		rw:          rw,
		primaryAddr: addr,
		resetDelay:  DefaultResetDelay,
		readUntil:   '\n',
		usbTerm:     "\r\n",
		eotChar:     '\n',
		logger:      slog.New(slog.DiscardHandler),
	}

	// Apply options using the functional option pattern.
	for _, opt := range opts {
		opt(&c)
	}

	if !isPrimaryAddressValid(c.primaryAddr) {
		return nil, fmt.Errorf("invalid primary address %d (must by 0-30)", c.primaryAddr)
	}

	if err := c.CommandController("rst"); err != nil {
		return nil, err
	}
	if c.resetDelay > 0 {
		c.logger.Debug("waiting for controller reset", "delay", c.resetDelay)
		time.Sleep(c.resetDelay)
	}

	cmds := []string{
		"mode 1",                               // Switch to controller mode.
		"auto 0",                               // Turn off read-after-write.
		fmt.Sprintf("addr %d", c.primaryAddr), // Address the instrument.
	}
	for _, cmd := range cmds {
		if err := c.CommandController(cmd); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// WithResetDelay overrides DefaultResetDelay. A zero delay skips the wait.
func WithResetDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.resetDelay = d }
}

// WithReadUntil sets the character code passed to `++read`. The controller
// reads from the instrument until it sees that character or EOI.
func WithReadUntil(char byte) ControllerOption {
	return func(c *Controller) { c.readUntil = char }
}

// WithLogger logs controller traffic at debug level.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Address returns the GPIB primary address of the instrument.
func (c *Controller) Address() int { return c.primaryAddr }

// Write writes the given data to the instrument at the currently assigned GPIB
// address.
func (c *Controller) Write(p []byte) (n int, err error) {
	return c.rw.Write(p)
}

// Read reads from the instrument at the currently assigned GPIB address into
// the given byte slice. Bytes already buffered by a previous line read are
// returned first.
func (c *Controller) Read(p []byte) (n int, err error) {
	if len(c.pending) > 0 {
		n = copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	return c.rw.Read(p)
}

// Command formats according to a format specifier if provided and sends a
// SCPI/ASCII command to the instrument at the currently assigned GPIB address.
// All leading and trailing whitespace is removed before appending the USB
// terminator.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	c.logger.Debug("cmd", "text", cmd)
	_, err := fmt.Fprint(c.rw, cmd+c.usbTerm)
	return err
}

// Query sends cmd to the instrument, tells the controller to read the reply,
// and returns the reply without its line terminator. Read-after-write is off,
// so every query is followed by an explicit `++read`. Input still buffered
// from earlier queries, such as a reply that arrived after its read timed
// out, is discarded first.
func (c *Controller) Query(cmd string) (string, error) {
	if err := c.discardInput(); err != nil {
		return "", fmt.Errorf("error discarding stale input: %w", err)
	}
	if err := c.Command(cmd); err != nil {
		return "", fmt.Errorf("error writing command: %w", err)
	}
	readCmd := fmt.Sprintf("read %d", c.readUntil)
	if err := c.CommandController(readCmd); err != nil {
		return "", fmt.Errorf("error sending `++%s` command: %w", readCmd, err)
	}
	s, err := c.readLine()
	if err != nil {
		return "", err
	}
	s = strings.TrimRight(s, "\r\n")
	c.logger.Debug("read data", "query", cmd, "reply", s)
	return s, nil
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the Prologix controller, thereby not
// transmitting to the instrument over GPIB, two plus signs `++` are prepended.
func (c *Controller) CommandController(cmd string) error {
	cmd = "++" + strings.ToLower(strings.TrimSpace(cmd))
	c.logger.Debug("controller cmd", "text", cmd)
	_, err := fmt.Fprint(c.rw, cmd+c.usbTerm)
	return err
}

// Local returns the instrument to front panel control.
func (c *Controller) Local() error {
	return c.CommandController("loc")
}

func (c *Controller) discardInput() error {
	c.pending = nil
	if r, ok := c.rw.(inputResetter); ok {
		return r.ResetInputBuffer()
	}
	return nil
}

// readLine returns the next eotChar-terminated line. A read that returns no
// bytes and no error is how the serial driver reports its timeout. An error
// that arrives together with a complete line is returned by the next call.
func (c *Controller) readLine() (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(c.pending, c.eotChar); i >= 0 {
			line := string(c.pending[:i+1])
			c.pending = c.pending[i+1:]
			return line, nil
		}
		if err := c.readErr; err != nil {
			c.readErr = nil
			return "", err
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if bytes.IndexByte(c.pending, c.eotChar) >= 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				c.readErr = err
			}
			continue
		}
		switch {
		case errors.Is(err, io.EOF) && len(c.pending) > 0:
			line := string(c.pending)
			c.pending = nil
			return line, nil
		case errors.Is(err, io.EOF):
			return "", ErrReadTimeout
		case err != nil:
			return "", err
		case n == 0:
			// Partial replies are stale once the timeout hits.
			c.pending = nil
			return "", ErrReadTimeout
		}
	}
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0 and
// 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	if addr < 0 || addr > 30 {
		return false
	}
	return true
}
