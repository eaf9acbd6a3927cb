// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package afg3021b controls a Tektronix AFG3021B function generator through a
// Prologix USB/GPIB controller on a virtual serial port.
//
// A Session owns the serial port. It is not safe for concurrent use; every
// call writes a command and, for read-backs, blocks until the reply arrives
// or the read times out.
package afg3021b

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/gotmc/query"
	"go.uber.org/multierr"

	"github.com/gotmc/afg3021b/lib/prologix"
	"github.com/gotmc/afg3021b/lib/tek"
)

// Session is an open link to one AFG3021B. The zero value is a closed
// Session.
type Session struct {
	port     string
	rw       io.ReadWriteCloser
	ctrl     *prologix.Controller
	identity tek.Identity
	logger   *slog.Logger
	warn     WarningHandler
}

// Open opens the named serial port (e.g. "COM5" or "/dev/ttyUSB0"), resets
// and configures the GPIB adapter, resets the generator and checks its
// identity. It fails with a *ConnectionError when the port cannot be opened
// or configured and with an *InstrumentNotRespondingError when the identity
// check fails. On failure the port is closed again.
func Open(port string, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	rw, err := cfg.opener(port, cfg.readTimeout)
	if err != nil {
		return nil, &ConnectionError{Port: port, Err: err}
	}
	return start(port, rw, cfg)
}

// New is Open for a transport that is already open. The read timeout option
// does not apply; rw must time out reads on its own. rw is closed if New
// fails.
func New(rw io.ReadWriteCloser, opts ...Option) (*Session, error) {
	return start("", rw, newConfig(opts))
}

func start(port string, rw io.ReadWriteCloser, cfg *config) (*Session, error) {
	ctrl, err := prologix.NewController(rw, cfg.address,
		prologix.WithResetDelay(cfg.resetDelay),
		prologix.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, multierr.Append(&ConnectionError{Port: port, Err: err}, rw.Close())
	}
	s := &Session{
		port:   port,
		rw:     rw,
		ctrl:   ctrl,
		logger: cfg.logger,
		warn:   cfg.warn,
	}
	if err := s.identify(); err != nil {
		return nil, multierr.Append(err, rw.Close())
	}
	s.logger.Debug("instrument ready", "port", port, "identity", s.identity.String())
	return s, nil
}

func (s *Session) identify() error {
	if err := s.ctrl.Command("*RST"); err != nil {
		return &InstrumentNotRespondingError{Port: s.port, Err: err}
	}
	reply, err := query.String(s.ctrl, "*IDN?")
	if err != nil {
		return &InstrumentNotRespondingError{Port: s.port, Err: err}
	}
	id := tek.ParseIdentity(reply)
	if !id.Matches(InstrumentID) {
		return &InstrumentNotRespondingError{Port: s.port, Response: reply}
	}
	s.identity = id
	return nil
}

// IsOpen reports whether s holds an open transport.
func (s *Session) IsOpen() bool {
	return s != nil && s.ctrl != nil
}

// Port returns the name passed to Open.
func (s *Session) Port() string { return s.port }

// Identity returns the `*IDN?` reply read when the session was opened.
func (s *Session) Identity() tek.Identity { return s.identity }

// SetAmplitude sets the peak to peak amplitude in volts. The present offset
// is read first; amplitudes under MinAmplitude, or that together with the
// offset would exceed MaxPeakVolts, are clamped and reported as warnings.
func (s *Session) SetAmplitude(volts float64) error {
	if err := s.check(volts); err != nil {
		return err
	}
	offset, err := s.queryFloat("VOLTAGE:OFFSET?")
	if err != nil {
		return err
	}
	v, warnings := ClampAmplitude(volts, offset)
	s.report(warnings)
	return s.write("VOLTAGE:AMPLITUDE " + formatValue(v))
}

// SetOffset sets the DC offset in volts, clamped against the present
// amplitude so the peak stays within MaxPeakVolts.
func (s *Session) SetOffset(volts float64) error {
	if err := s.check(volts); err != nil {
		return err
	}
	amplitude, err := s.queryFloat("VOLTAGE:AMPLITUDE?")
	if err != nil {
		return err
	}
	v, warnings := ClampOffset(volts, amplitude)
	s.report(warnings)
	return s.write("VOLTAGE:OFFSET " + formatValue(v))
}

// SetFrequency sets the output frequency in hertz, clamped to
// [MinFrequency, MaxFrequency].
func (s *Session) SetFrequency(hertz float64) error {
	if err := s.check(hertz); err != nil {
		return err
	}
	v, warnings := ClampFrequency(hertz)
	s.report(warnings)
	return s.write("FREQUENCY " + formatValue(v))
}

// EnableOutput switches the output relay on.
func (s *Session) EnableOutput() error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	return s.write("OUTP ON")
}

// DisableOutput switches the output relay off.
func (s *Session) DisableOutput() error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	return s.write("OUTP OFF")
}

// Amplitude returns the present peak to peak amplitude in volts.
func (s *Session) Amplitude() (float64, error) {
	if !s.IsOpen() {
		return 0, ErrNotOpen
	}
	return s.queryFloat("VOLTAGE:AMPLITUDE?")
}

// Offset returns the present DC offset in volts.
func (s *Session) Offset() (float64, error) {
	if !s.IsOpen() {
		return 0, ErrNotOpen
	}
	return s.queryFloat("VOLTAGE:OFFSET?")
}

// Frequency returns the present output frequency in hertz.
func (s *Session) Frequency() (float64, error) {
	if !s.IsOpen() {
		return 0, ErrNotOpen
	}
	return s.queryFloat("FREQUENCY?")
}

// OutputEnabled reports whether the output relay is on.
func (s *Session) OutputEnabled() (bool, error) {
	if !s.IsOpen() {
		return false, ErrNotOpen
	}
	on, err := query.Bool(s.ctrl, "OUTP?")
	if err != nil {
		return false, s.queryError("OUTP?", err)
	}
	return on, nil
}

// Local returns the generator to front panel control. The session stays
// open; the next command puts the generator back in remote.
func (s *Session) Local() error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	if err := s.ctrl.Local(); err != nil {
		return &WriteError{Command: "++loc", Err: err}
	}
	return nil
}

// Close closes the transport. Closing a closed, zero or nil Session does
// nothing. Close never fails; a transport close error is only logged.
func (s *Session) Close() {
	if s == nil || s.rw == nil {
		return
	}
	if err := s.rw.Close(); err != nil {
		s.logger.Debug("error closing transport", "port", s.port, "err", err)
	}
	s.rw, s.ctrl = nil, nil
}

func (s *Session) check(v float64) error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	if math.IsNaN(v) {
		return ErrInvalidValue
	}
	return nil
}

func (s *Session) report(warnings []Warning) {
	if s.warn == nil {
		return
	}
	for _, w := range warnings {
		s.warn(w)
	}
}

func (s *Session) write(cmd string) error {
	if err := s.ctrl.Command(cmd); err != nil {
		return &WriteError{Command: cmd, Err: err}
	}
	return nil
}

func (s *Session) queryFloat(cmd string) (float64, error) {
	v, err := query.Float64(s.ctrl, cmd)
	if err != nil {
		return 0, s.queryError(cmd, err)
	}
	return v, nil
}

func (s *Session) queryError(cmd string, err error) error {
	if errors.Is(err, prologix.ErrReadTimeout) {
		return &ReadTimeoutError{Command: cmd, Err: err}
	}
	return &WriteError{Command: cmd, Err: err}
}
