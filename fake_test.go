package afg3021b

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const fakeIDN = "TEKTRONIX,AFG3021B,C036492,SCPI:99.0 FV:3.1.1"

// fakeAFG stands in for the adapter and generator behind a serial port. It
// answers a query only after `++read`, and reports an empty read when it has
// nothing to say, as the serial driver does on timeout.
type fakeAFG struct {
	identity  string
	amplitude float64
	offset    float64
	frequency float64
	output    bool

	silent     bool   // never answer
	reply      string // answer every query with this instead
	failWrites bool
	closeErr   error

	lines   []string
	pending string
	unread  bytes.Buffer
	closed  int
}

func newFakeAFG() *fakeAFG {
	return &fakeAFG{identity: fakeIDN, amplitude: 1, frequency: 1e6}
}

func (f *fakeAFG) Write(p []byte) (int, error) {
	if f.failWrites {
		return 0, errors.New("input/output error")
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(p), "\r\n"), "\r\n") {
		f.lines = append(f.lines, line)
		f.handle(line)
	}
	return len(p), nil
}

func (f *fakeAFG) handle(line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "++read":
		if !f.silent && f.pending != "" {
			f.unread.WriteString(f.pending + "\n")
		}
		f.pending = ""
		return
	case "*IDN?":
		f.answer(f.identity)
	case "VOLTAGE:AMPLITUDE?":
		f.answer(fmt.Sprintf("%E", f.amplitude))
	case "VOLTAGE:OFFSET?":
		f.answer(fmt.Sprintf("%E", f.offset))
	case "FREQUENCY?":
		f.answer(fmt.Sprintf("%E", f.frequency))
	case "OUTP?":
		f.answer(map[bool]string{true: "1", false: "0"}[f.output])
	case "VOLTAGE:AMPLITUDE":
		f.amplitude, _ = strconv.ParseFloat(arg, 64)
	case "VOLTAGE:OFFSET":
		f.offset, _ = strconv.ParseFloat(arg, 64)
	case "FREQUENCY":
		f.frequency, _ = strconv.ParseFloat(arg, 64)
	case "OUTP":
		f.output = arg == "ON"
	}
}

func (f *fakeAFG) answer(s string) {
	if f.reply != "" {
		s = f.reply
	}
	f.pending = s
}

func (f *fakeAFG) Read(p []byte) (int, error) {
	if f.unread.Len() == 0 {
		return 0, nil
	}
	return f.unread.Read(p)
}

func (f *fakeAFG) ResetInputBuffer() error {
	f.unread.Reset()
	return nil
}

func (f *fakeAFG) Close() error {
	f.closed++
	return f.closeErr
}

// since returns the lines written from index i on.
func (f *fakeAFG) since(i int) []string {
	return append([]string(nil), f.lines[i:]...)
}

func (f *fakeAFG) opener() Opener {
	return func(string, time.Duration) (io.ReadWriteCloser, error) { return f, nil }
}
