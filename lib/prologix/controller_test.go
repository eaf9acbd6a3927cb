package prologix

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers each `++read` with the next queued reply and reports an
// empty read, the way the serial driver signals a timeout, when none is left.
type scripted struct {
	written bytes.Buffer
	replies []string
	unread  bytes.Buffer
	failOn  string
	resets  int
}

func (s *scripted) Write(p []byte) (int, error) {
	if s.failOn != "" && strings.HasPrefix(string(p), s.failOn) {
		return 0, errors.New("device gone")
	}
	s.written.Write(p)
	if strings.HasPrefix(string(p), "++read") && len(s.replies) > 0 {
		s.unread.WriteString(s.replies[0])
		s.replies = s.replies[1:]
	}
	return len(p), nil
}

func (s *scripted) Read(p []byte) (int, error) {
	if s.unread.Len() == 0 {
		return 0, nil
	}
	return s.unread.Read(p)
}

func (s *scripted) ResetInputBuffer() error {
	s.resets++
	s.unread.Reset()
	return nil
}

func (s *scripted) lines() []string {
	return strings.Split(strings.TrimSuffix(s.written.String(), "\r\n"), "\r\n")
}

func TestNewControllerConfiguresAdapter(t *testing.T) {
	rw := &scripted{}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)
	assert.Equal(t, 11, c.Address())
	assert.Equal(t, []string{"++rst", "++mode 1", "++auto 0", "++addr 11"}, rw.lines())
}

func TestNewControllerRejectsAddress(t *testing.T) {
	for _, addr := range []int{-1, 31} {
		rw := &scripted{}
		_, err := NewController(rw, addr, WithResetDelay(0))
		assert.Error(t, err, "addr %d", addr)
		assert.Zero(t, rw.written.Len(), "nothing may be written for addr %d", addr)
	}
}

func TestNewControllerWriteFailure(t *testing.T) {
	rw := &scripted{failOn: "++mode"}
	_, err := NewController(rw, 11, WithResetDelay(0))
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	rw := &scripted{replies: []string{"TEKTRONIX,AFG3021B,C012345,SCPI:99.0 FV:3.1.1\n"}}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)
	rw.written.Reset()

	s, err := c.Query("*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "TEKTRONIX,AFG3021B,C012345,SCPI:99.0 FV:3.1.1", s)
	assert.Equal(t, []string{"*IDN?", "++read 10"}, rw.lines())
}

func TestQueryDropsBufferedLines(t *testing.T) {
	rw := &scripted{replies: []string{"1.0\r\nstale\r\n", "2.0\r\n"}}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)

	first, err := c.Query("VOLTAGE:AMPLITUDE?")
	require.NoError(t, err)
	assert.Equal(t, "1.0", first)

	second, err := c.Query("VOLTAGE:OFFSET?")
	require.NoError(t, err)
	assert.Equal(t, "2.0", second)
}

func TestQueryDiscardsLateReply(t *testing.T) {
	rw := &scripted{}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)

	_, err = c.Query("VOLTAGE:AMPLITUDE?")
	require.ErrorIs(t, err, ErrReadTimeout)

	// The amplitude shows up after the read gave up on it.
	rw.unread.WriteString("4.800000E+00\n")
	rw.replies = []string{"1.000000E+00\n"}

	s, err := c.Query("VOLTAGE:AMPLITUDE?")
	require.NoError(t, err)
	assert.Equal(t, "1.000000E+00", s)
	assert.Equal(t, 2, rw.resets)
}

// flaky hands out one chunk together with an error, then times out.
type flaky struct {
	chunk string
	err   error
}

func (f *flaky) Write(p []byte) (int, error) { return len(p), nil }

func (f *flaky) Read(p []byte) (int, error) {
	if f.chunk == "" {
		return 0, nil
	}
	n := copy(p, f.chunk)
	f.chunk = ""
	return n, f.err
}

func TestReadErrorAfterLineIsKept(t *testing.T) {
	gone := errors.New("device reset")
	rw := &flaky{chunk: "0.5\n", err: gone}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)

	s, err := c.readLine()
	require.NoError(t, err)
	assert.Equal(t, "0.5\n", s)

	_, err = c.Query("VOLTAGE:OFFSET?")
	assert.ErrorIs(t, err, gone)

	_, err = c.Query("VOLTAGE:OFFSET?")
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestQueryTimeout(t *testing.T) {
	rw := &scripted{}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)

	_, err = c.Query("VOLTAGE:OFFSET?")
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestQueryEOFWithPartialLine(t *testing.T) {
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader("0.5"), io.Discard}
	c, err := NewController(rw, 11, WithResetDelay(0))
	require.NoError(t, err)

	s, err := c.Query("VOLTAGE:OFFSET?")
	require.NoError(t, err)
	assert.Equal(t, "0.5", s)
}

func TestCommandFormatting(t *testing.T) {
	rw := &scripted{}
	c, err := NewController(rw, 11, WithResetDelay(0), WithReadUntil('\r'))
	require.NoError(t, err)
	rw.written.Reset()

	require.NoError(t, c.Command("  OUTP ON "))
	require.NoError(t, c.Command("FREQUENCY %s", "1000.0"))
	require.NoError(t, c.Local())
	_, err = c.Query("OUTP?")
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.Equal(t, []string{"OUTP ON", "FREQUENCY 1000.0", "++loc", "OUTP?", "++read 13"}, rw.lines())
}
