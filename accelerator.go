package blit

import (
	"errors"
	"fmt"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/surface"
)

// Accelerator drives the 2D engine of one GPU connection.
//
// Primitives return nil when the work was queued on the engine and an error
// matching ErrFallback when the caller must do it in software. A connection
// failure after part of a primitive was submitted is returned without the
// fallback mark, wrapping ErrUnavailable. Work is
// batched: it reaches the GPU on Idle, on Commit, when the command buffer
// fills, or when CPU access to a pixmap needs it.
//
// An Accelerator is NOT safe for concurrent use. Every call must come from
// the display server's control goroutine.
type Accelerator struct {
	conn     conn.Conn
	features conn.Feature
	caps     encode.Caps
	opts     options
	sched    *batch.Scheduler
	closed   bool

	// queued is set once the running primitive queued an operation;
	// queuedAt is the submission count at that moment.
	queued   bool
	queuedAt uint64
}

// New creates an accelerator on c. The connection stays owned by the caller
// and must outlive the accelerator.
func New(c conn.Conn, opts ...Option) (*Accelerator, error) {
	if c == nil {
		return nil, errors.New("blit: nil connection")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	a := &Accelerator{
		conn:     c,
		features: c.Features() & o.features,
		opts:     o,
	}
	a.caps = encode.Caps{ExtendedBlend: a.features.Has(conn.FeaturePE20)}
	a.sched = batch.New(c, a.caps, o.streamWords, mapper{c})
	Logger().Info("blit: accelerator ready",
		"features", a.features, "accelerate", o.accelerate,
		"words", o.streamWords, "maxRects", o.maxRects)
	return a, nil
}

// mapper binds caller memory into the GPU address space on first use.
type mapper struct{ c conn.Conn }

func (m mapper) MapGPU(s *surface.Surface) error {
	if s.Mem == nil {
		return errors.New("blit: surface has no memory to map")
	}
	bo, err := m.c.Import(s.Mem)
	if err != nil {
		return err
	}
	s.BO = bo
	return nil
}

// Features returns the engine features in use.
func (a *Accelerator) Features() conn.Feature { return a.features }

// Enabled reports whether primitives are currently accelerated.
func (a *Accelerator) Enabled() bool {
	return a.opts.accelerate && !a.closed && a.sched.Err() == nil
}

// Err returns the connection failure that disabled acceleration, if any.
func (a *Accelerator) Err() error { return a.sched.Err() }

// Submits returns the number of command buffers submitted to the GPU.
func (a *Accelerator) Submits() uint64 { return a.sched.Submits() }

// Pending returns the number of pixmaps with outstanding GPU writes.
func (a *Accelerator) Pending() int { return len(a.sched.Pending()) }

// Commit submits all queued work and waits until the GPU has finished it.
// Call it before another consumer reads a pixmap.
func (a *Accelerator) Commit() error {
	if err := a.sched.Flush(); err != nil {
		return err
	}
	return a.sched.Commit(true)
}

// Idle submits queued work without waiting and releases resources whose GPU
// work has retired. Display servers call it from their block handler.
func (a *Accelerator) Idle() error {
	if a.sched.Err() != nil {
		return a.sched.Err()
	}
	if a.sched.NeedCommit() {
		if err := a.sched.Commit(false); err != nil {
			return err
		}
	}
	a.sched.Retire()
	return a.sched.Err()
}

// Close waits for outstanding work and disables the accelerator. Pixmaps
// must not be used afterwards.
func (a *Accelerator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.sched.Close()
	Logger().Info("blit: accelerator closed", "submits", a.sched.Submits())
	return err
}

// ready returns a fallback error when the engine cannot take work. It starts
// a primitive.
func (a *Accelerator) ready(op string) error {
	a.queued = false
	switch {
	case a.closed:
		return fallback(op, conn.ErrClosed)
	case !a.opts.accelerate:
		return fallback(op, ErrDisabled)
	}
	if err := a.sched.Err(); err != nil {
		return fallback(op, err)
	}
	return nil
}

// target resolves a drawable to its surface.
func (a *Accelerator) target(d Drawable) (*surface.Surface, error) {
	p := d.Pixmap()
	if p == nil || p.s == nil {
		return nil, ErrDestroyed
	}
	if p.a != a {
		return nil, ErrOtherAccelerator
	}
	return p.s, nil
}

// writable checks that the engine can render into s.
func (a *Accelerator) writable(op string, s *surface.Surface) error {
	if err := dstValid(s, a.features); err != nil {
		return fallback(op, err)
	}
	return nil
}

// submit queues bop, split by the configured rectangle count.
func (a *Accelerator) submit(op string, bop batch.Op) error {
	boxes := bop.Boxes
	for len(boxes) > 0 {
		n := min(len(boxes), a.opts.maxRects)
		part := bop
		part.Boxes = boxes[:n]
		if err := a.sched.Submit(&part); err != nil {
			return a.failed(op, err)
		}
		if !a.queued {
			a.queued, a.queuedAt = true, a.sched.Submits()
		}
		boxes = boxes[n:]
	}
	return nil
}

// finish closes a primitive with a 2D cache flush.
func (a *Accelerator) finish(op string) error {
	if err := a.sched.Flush(); err != nil {
		return a.failed(op, err)
	}
	return nil
}

// failed classifies a scheduler error of the running primitive. Part of it
// reached the engine when a submission succeeded after its first queued
// operation; redoing it in software would apply those boxes twice, so the
// error is returned as is instead of as a fallback.
func (a *Accelerator) failed(op string, err error) error {
	if a.queued && a.sched.Submits() > a.queuedAt {
		Logger().Warn("blit: primitive partly executed", "op", op, "err", err)
		return fmt.Errorf("blit: %s partly executed: %w", op, err)
	}
	return fallback(op, err)
}

// dest returns the destination descriptor of a drawable: the write command
// and the offset of the drawable inside its pixmap.
func dest(d Drawable) encode.Dest {
	return encode.Dest{Cmd: destCommand, Offset: d.Origin()}
}

func (a *Accelerator) String() string {
	return fmt.Sprintf("blit.Accelerator{features: %v, enabled: %v}", a.features, a.Enabled())
}
