// Package trace records the command streams submitted through a GPU
// connection.
//
// A trace Conn wraps another conn.Conn and writes every submitted stream to an
// io.Writer before forwarding it. Text traces are disassembly listings.
// Binary traces are a sequence of records, each a little-endian word count
// followed by the stream words, and can be read back with ReadAll for replay.
package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/stream"

	"honnef.co/go/safeish"
)

// Mode selects the trace encoding.
type Mode int

const (
	// Text writes a disassembly listing per submission.
	Text Mode = iota

	// Binary writes raw submission records.
	Binary
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "text" or "binary".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "text", "":
		return Text, nil
	case "binary":
		return Binary, nil
	}
	return 0, fmt.Errorf("trace: unknown mode %q", s)
}

// ErrTruncated is returned by ReadAll when a record ends early.
var ErrTruncated = errors.New("trace: truncated record")

// Conn is a conn.Conn that records submissions.
type Conn struct {
	conn.Conn

	w       io.Writer
	mode    Mode
	submits int
	words   int
	err     error
}

var _ conn.Conn = (*Conn)(nil)

// New wraps c, recording every submission to w.
func New(c conn.Conn, w io.Writer, mode Mode) *Conn {
	return &Conn{Conn: c, w: w, mode: mode}
}

// Submit records words and forwards them to the wrapped connection. A write
// failure stops recording but never fails the submission; see Err.
func (t *Conn) Submit(words []uint32) (conn.Fence, error) {
	if t.err == nil {
		t.err = t.record(words)
	}
	t.submits++
	t.words += len(words)
	return t.Conn.Submit(words)
}

func (t *Conn) record(words []uint32) error {
	switch t.mode {
	case Binary:
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(words)))
		if _, err := t.w.Write(hdr[:]); err != nil {
			return err
		}
		_, err := t.w.Write(littleEndian(words))
		return err
	default:
		if _, err := fmt.Fprintf(t.w, "# submit %d: %d words\n", t.submits+1, len(words)); err != nil {
			return err
		}
		return stream.Disassemble(t.w, words)
	}
}

// littleEndian returns the byte image of words in little-endian order. On
// little-endian hosts this aliases the word slice.
func littleEndian(words []uint32) []byte {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return safeish.SliceCast[[]byte](words)
	}
	b := make([]byte, 4*len(words))
	for i, v := range words {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

// Err returns the first write error, if any.
func (t *Conn) Err() error { return t.err }

// Submits returns the number of recorded submissions.
func (t *Conn) Submits() int { return t.submits }

// Words returns the total number of recorded words.
func (t *Conn) Words() int { return t.words }

// Unwrap returns the wrapped connection.
func (t *Conn) Unwrap() conn.Conn { return t.Conn }

// ReadAll reads every record of a binary trace.
func ReadAll(r io.Reader) ([][]uint32, error) {
	var out [][]uint32
	for {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		words := make([]uint32, n)
		if err := binary.Read(r, binary.LittleEndian, words); err != nil {
			return out, fmt.Errorf("%w: record %d: %w", ErrTruncated, len(out), err)
		}
		out = append(out, words)
	}
}

// Replay submits every stream to c and waits for the last one.
func Replay(c conn.Conn, streams [][]uint32) error {
	var last conn.Fence
	for i, words := range streams {
		f, err := c.Submit(words)
		if err != nil {
			return fmt.Errorf("trace: replay submission %d: %w", i, err)
		}
		last = f
	}
	if last == 0 {
		return nil
	}
	return c.Wait(last)
}
