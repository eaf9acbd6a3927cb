package connutil

import (
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/gotmc/afg3021b"
	"github.com/gotmc/afg3021b/lib/cmdlog"
	"github.com/gotmc/afg3021b/lib/find"
	"github.com/gotmc/afg3021b/lib/prologix"
)

// Conn holds the command-line settings for reaching the generator.
type Conn struct {
	SerialPort string
	GpibPAD    int
	Settle     time.Duration
	Timeout    time.Duration
	Verbose    bool
	Transcript string

	tty     string
	finderr error
	locate  func(find.FilterFn) (string, error)
	open    afg3021b.Opener
}

// AddFlags is to be called before [flag.Parse].
func (c *Conn) AddFlags(fs *flag.FlagSet) {
	if c.locate == nil {
		c.locate = find.Find
	}
	c.tty, c.finderr = c.locate(find.PrologixFilter)
	if c.finderr != nil {
		c.tty = "/dev/ttyUSB0"
	}
	if c.GpibPAD == 0 {
		c.GpibPAD = afg3021b.DefaultAddress
	}
	if c.Settle == 0 {
		c.Settle = prologix.DefaultResetDelay
	}
	if c.Timeout == 0 {
		c.Timeout = afg3021b.DefaultReadTimeout
	}

	// Get Virtual COM Port (VCP) serial port for Prologix.
	fs.StringVar(&c.SerialPort, "port", c.tty, "Serial port for Prologix VCP GPIB controller")
	fs.IntVar(&c.GpibPAD, "gpib", c.GpibPAD, "GPIB primary address of the AFG3021B")
	fs.DurationVar(&c.Settle, "settle", c.Settle, "wait after resetting the Prologix controller")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "serial read timeout")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "print adapter traffic")
	fs.StringVar(&c.Transcript, "transcript", c.Transcript, "write a CBOR transcript of adapter traffic to this file")
}

// Setup is to be called after both [(Conn).AddFlags] and [flag.Parse].
// cleanup returns the generator to front panel control and closes the port
// and transcript.
func (c *Conn) Setup(opts ...afg3021b.Option) (s *afg3021b.Session, cleanup func(), err error) {
	nocleanup := func() {}

	if c.finderr != nil && c.SerialPort == c.tty {
		// only print this if the port isn't overridden via flag
		log.Printf("locating serial port failed, guessing %s: %s", c.tty, c.finderr)
	}
	log.Printf("Serial port = %s", c.SerialPort)

	var transcript *os.File
	if c.Transcript != "" {
		transcript, err = os.Create(c.Transcript)
		if err != nil {
			return nil, nocleanup, err
		}
	}

	var recorderOpts []cmdlog.Option
	if c.Verbose {
		recorderOpts = append(recorderOpts, cmdlog.WithConsole(log.Default()))
	}
	if transcript != nil {
		recorderOpts = append(recorderOpts, cmdlog.WithTranscript(transcript))
	}

	open := c.open
	if open == nil {
		open = afg3021b.OpenPort
	}
	var rec *cmdlog.Recorder
	opener := func(name string, timeout time.Duration) (io.ReadWriteCloser, error) {
		port, err := open(name, timeout)
		if err != nil || len(recorderOpts) == 0 {
			return port, err
		}
		rec = cmdlog.NewRecorder(port, recorderOpts...)
		return rec, nil
	}

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts = append([]afg3021b.Option{
		afg3021b.WithAddress(c.GpibPAD),
		afg3021b.WithResetDelay(c.Settle),
		afg3021b.WithReadTimeout(c.Timeout),
		afg3021b.WithLogger(logger),
		afg3021b.WithOpener(opener),
	}, opts...)

	s, err = afg3021b.Open(c.SerialPort, opts...)
	if err != nil {
		if transcript != nil {
			err = multierr.Append(err, transcript.Close())
		}
		return nil, nocleanup, err
	}
	if rec != nil {
		log.Printf("Recording session %s", rec.SessionID())
	}

	cleanup = func() {
		// Return local control to the front panel.
		err := s.Local()
		s.Close()
		if rec != nil {
			err = multierr.Append(err, rec.Err())
		}
		if transcript != nil {
			err = multierr.Append(err, transcript.Close())
		}
		if err != nil {
			log.Printf("error during cleanup: %s", err)
		}
	}
	return s, cleanup, nil
}
