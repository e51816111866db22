// Package stream builds the word-oriented command stream consumed by the GPU
// front-end.
//
// A Writer is a fixed-capacity buffer that is rewound after every
// submission. Every encode step reserves the exact number of words it will
// emit before emitting any of them; emitting past the reservation, reserving
// while a reservation is open, or starting a load-state run inside another
// are programming errors and panic.
package stream

import (
	"errors"
	"fmt"

	"honnef.co/go/safeish"

	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
)

// Stream errors.
var (
	// ErrNoSpace is returned when a reservation does not fit in the space
	// left in the buffer. Submitting the buffer and retrying will succeed.
	ErrNoSpace = errors.New("stream: insufficient space in command buffer")

	// ErrTooLarge is returned when a reservation exceeds the whole buffer.
	ErrTooLarge = errors.New("stream: reservation exceeds buffer capacity")
)

// AlignWords is the command alignment granularity: one quad-word.
const AlignWords = 2

// MinWords is the smallest buffer capacity NewWriter accepts. It holds the
// largest single operation the encoder can produce.
const MinWords = 1024

// DefaultWords is the default buffer capacity.
const DefaultWords = 32 * 1024

// Writer appends 32-bit words to a command buffer.
//
// Writer is NOT safe for concurrent use.
type Writer struct {
	buf      []uint32
	reserved int
	run      int
	total    uint64
}

// NewWriter creates a writer holding up to words 32-bit words. Capacities
// below MinWords are raised to MinWords.
func NewWriter(words int) *Writer {
	if words < MinWords {
		words = MinWords
	}
	//nolint:gosec // G115: words is positive
	words = int(pixel.AlignUp(uint(words), AlignWords))
	return &Writer{buf: make([]uint32, 0, words)}
}

// Cap returns the buffer capacity in words.
func (w *Writer) Cap() int { return cap(w.buf) }

// Len returns the number of words emitted since the last Reset.
func (w *Writer) Len() int { return len(w.buf) }

// Free returns the number of words that can still be reserved.
func (w *Writer) Free() int { return cap(w.buf) - len(w.buf) - w.reserved }

// Reserved returns the number of reserved words not yet emitted.
func (w *Writer) Reserved() int { return w.reserved }

// Total returns the number of words emitted over the writer's lifetime.
func (w *Writer) Total() uint64 { return w.total }

// Reserve opens a reservation of n words.
func (w *Writer) Reserve(n int) error {
	if w.reserved != 0 {
		panic("stream: reserve while a reservation is open")
	}
	if n <= 0 {
		panic(fmt.Sprintf("stream: invalid reservation of %d words", n))
	}
	if n > cap(w.buf) {
		return fmt.Errorf("%w: %d > %d words", ErrTooLarge, n, cap(w.buf))
	}
	if n > w.Free() {
		return fmt.Errorf("%w: need %d words, %d free", ErrNoSpace, n, w.Free())
	}
	w.reserved = n
	return nil
}

// End closes the open reservation and returns the number of reserved words
// that were never emitted.
func (w *Writer) End() int {
	if w.run != 0 {
		panic(fmt.Sprintf("stream: reservation closed with %d load-state words outstanding", w.run))
	}
	left := w.reserved
	w.reserved = 0
	return left
}

// Emit appends one word.
func (w *Writer) Emit(v uint32) {
	if w.reserved == 0 {
		panic("stream: emit beyond reservation")
	}
	w.buf = append(w.buf, v)
	w.reserved--
	w.total++
	if w.run > 0 {
		w.run--
	}
}

// EmitLoadState begins a run of count register writes starting at the byte
// address reg. The next count calls to Emit supply the register values.
func (w *Writer) EmitLoadState(reg uint32, count int, fixp bool) {
	if w.run != 0 {
		panic("stream: load-state inside an unfinished load-state run")
	}
	if count < 1 || count > regs.MaxLoadStateCount {
		panic(fmt.Sprintf("stream: invalid load-state count %d", count))
	}
	w.Emit(regs.LoadStateHeader(reg, count, fixp))
	w.run = count
}

// SetState writes a single register.
func (w *Writer) SetState(reg, v uint32) {
	w.EmitLoadState(reg, 1, false)
	w.Emit(v)
}

// Align pads the stream with zero words up to the next quad-word boundary.
// Padding counts against the open reservation.
func (w *Writer) Align() {
	if w.run != 0 {
		panic("stream: align inside a load-state run")
	}
	for len(w.buf)%AlignWords != 0 {
		w.Emit(0)
	}
}

// Words returns the emitted words. The slice is only valid until Reset.
func (w *Writer) Words() []uint32 { return w.buf }

// Bytes returns the emitted words as native-endian bytes, sharing storage
// with the writer. The slice is only valid until Reset.
func (w *Writer) Bytes() []byte { return safeish.SliceCast[[]byte](w.buf) }

// Reset rewinds the buffer after its contents were submitted.
func (w *Writer) Reset() {
	if w.reserved != 0 {
		panic("stream: reset with an open reservation")
	}
	w.buf = w.buf[:0]
}
