package cmdlog

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

func isAscii(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

var (
	CmdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	R1Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	R2Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Direction tells whether bytes went to the adapter or came from it.
type Direction uint8

const (
	DirectionOut Direction = iota + 1
	DirectionIn
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Event is one Write or non-empty Read on the recorded transport.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Data      []byte    `cbor:"4,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create transcript CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create transcript CBOR decoder mode: %v", err))
	}
}

// Recorder passes reads and writes through to a transport and records each
// of them as an Event.
type Recorder struct {
	rw      io.ReadWriteCloser
	id      string
	console *log.Logger
	enc     *cbor.Encoder
	now     func() time.Time
	err     error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithConsole prints every event, coloured, to l.
func WithConsole(l *log.Logger) Option { return func(r *Recorder) { r.console = l } }

// WithTranscript streams every event to w as a CBOR data item.
func WithTranscript(w io.Writer) Option {
	return func(r *Recorder) { r.enc = encMode.NewEncoder(w) }
}

// WithSessionID replaces the random session ID stamped on every event.
func WithSessionID(id string) Option { return func(r *Recorder) { r.id = id } }

// NewRecorder wraps rw.
func NewRecorder(rw io.ReadWriteCloser, opts ...Option) *Recorder {
	r := &Recorder{
		rw:  rw,
		id:  uuid.NewString(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionID returns the ID stamped on every event.
func (r *Recorder) SessionID() string { return r.id }

// Err returns the transcript write errors seen so far. They never affect the
// transport itself.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) Write(p []byte) (int, error) {
	n, err := r.rw.Write(p)
	if n > 0 {
		r.record(DirectionOut, p[:n])
	}
	return n, err
}

func (r *Recorder) Read(p []byte) (int, error) {
	n, err := r.rw.Read(p)
	if n > 0 {
		r.record(DirectionIn, p[:n])
	}
	return n, err
}

func (r *Recorder) Close() error { return r.rw.Close() }

// ResetInputBuffer discards unread input on the wrapped port when the port
// supports it.
func (r *Recorder) ResetInputBuffer() error {
	if rr, ok := r.rw.(interface{ ResetInputBuffer() error }); ok {
		return rr.ResetInputBuffer()
	}
	return nil
}

func (r *Recorder) record(d Direction, p []byte) {
	ev := Event{
		Timestamp: r.now(),
		SessionID: r.id,
		Direction: d,
		Data:      append([]byte(nil), p...),
	}
	if r.console != nil {
		r.console.Print(Render(ev))
	}
	if r.enc != nil {
		r.err = multierr.Append(r.err, r.enc.Encode(ev))
	}
}

// Render formats an event for the console: commands in CmdStyle, replies in
// R1Style, and hex for anything that is not printable.
func Render(ev Event) string {
	s := strings.TrimRight(string(ev.Data), "\r\n")
	arrow, style := ">", CmdStyle
	if ev.Direction == DirectionIn {
		arrow, style = "<", R1Style
	}
	if len(s) == 0 {
		return fmt.Sprintf("%s %s", arrow, R2Style.Render("<empty>"))
	}
	switch {
	case isAscii(s):
		return fmt.Sprintf("%s %s", arrow, style.Render(s))
	case len(s) < 32:
		return fmt.Sprintf("%s [%d] %s (% 2x)", arrow, len(s), style.Render(fmt.Sprintf("%q", s)), []byte(s))
	default:
		return fmt.Sprintf("%s [%d] % 2x", arrow, len(s), []byte(s))
	}
}

// ReadTranscript decodes the events written by WithTranscript.
func ReadTranscript(rd io.Reader) ([]Event, error) {
	dec := decMode.NewDecoder(rd)
	var events []Event
	for {
		var ev Event
		err := dec.Decode(&ev)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
