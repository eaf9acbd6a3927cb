// Copyright (c) 2020–2026 The afg3021b developers. All rights reserved.
// Project site: https://github.com/gotmc/afg3021b
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package afg3021b

import (
	"io"
	"log/slog"
	"time"

	"github.com/gotmc/afg3021b/lib/prologix"
)

// Opener opens the named transport with the given read timeout.
type Opener func(name string, timeout time.Duration) (io.ReadWriteCloser, error)

type config struct {
	address     int
	resetDelay  time.Duration
	readTimeout time.Duration
	logger      *slog.Logger
	warn        WarningHandler
	opener      Opener
}

// Option configures a Session.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		address:     DefaultAddress,
		resetDelay:  prologix.DefaultResetDelay,
		readTimeout: DefaultReadTimeout,
		logger:      slog.Default(),
		opener:      OpenPort,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.warn == nil {
		logger := cfg.logger
		cfg.warn = func(w Warning) {
			logger.Warn(w.Reason,
				"parameter", string(w.Parameter),
				"requested", w.Requested,
				"applied", w.Applied)
		}
	}
	return cfg
}

// WithAddress sets the generator's GPIB primary address (default 11).
func WithAddress(addr int) Option {
	return func(c *config) { c.address = addr }
}

// WithResetDelay sets how long to wait after resetting the adapter. The
// default is prologix.DefaultResetDelay; tests use zero.
func WithResetDelay(d time.Duration) Option {
	return func(c *config) { c.resetDelay = d }
}

// WithReadTimeout sets the serial read timeout used by Open.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithLogger sets the logger for traffic (debug) and, unless
// WithWarningHandler is given, clamp warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWarningHandler receives clamp warnings instead of the logger.
func WithWarningHandler(h WarningHandler) Option {
	return func(c *config) { c.warn = h }
}

// WithOpener replaces OpenPort, e.g. to wrap the port with a recorder.
func WithOpener(o Opener) Option {
	return func(c *config) {
		if o != nil {
			c.opener = o
		}
	}
}
