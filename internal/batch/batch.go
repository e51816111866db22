// Package batch accumulates encoded operations into one command buffer and
// decides when it is submitted to the GPU.
//
// The scheduler keeps an insertion-ordered set of surfaces with outstanding
// GPU writes. Work is only forced to completion when the CPU is about to touch
// a surface that is still pending (WaitFor), or when a caller needs every
// submitted operation retired (Commit with stall).
package batch

import (
	"errors"
	"fmt"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/residency"
	"github.com/gogpu/blit/internal/stream"
	"github.com/gogpu/blit/internal/surface"
)

// ErrUnavailable is returned once the GPU connection failed a submission or
// wait. The scheduler stays disabled for the rest of its lifetime.
var ErrUnavailable = errors.New("batch: accelerator unavailable")

// Op is one drawing request. Addresses, pitches, formats and source sizes in
// Desc are filled from the surfaces when the operation is submitted.
type Op struct {
	Dst   *surface.Surface
	Src   *surface.Surface
	Desc  encode.Op
	Boxes []encode.Box

	// KeepFormats keeps the formats already set in Desc, for callers that
	// view a surface through a different format of the same size.
	KeepFormats bool
}

// set is an insertion-ordered set of surfaces.
type set struct {
	order []*surface.Surface
	index map[surface.ID]struct{}
}

func newSet() set { return set{index: make(map[surface.ID]struct{})} }

func (p *set) add(s *surface.Surface) {
	if _, ok := p.index[s.ID()]; ok {
		return
	}
	p.index[s.ID()] = struct{}{}
	p.order = append(p.order, s)
}

func (p *set) contains(s *surface.Surface) bool {
	_, ok := p.index[s.ID()]
	return ok
}

func (p *set) remove(s *surface.Surface) {
	if !p.contains(s) {
		return
	}
	delete(p.index, s.ID())
	for i, o := range p.order {
		if o == s {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// filter keeps the surfaces for which keep returns true.
func (p *set) filter(keep func(*surface.Surface) bool) {
	out := p.order[:0]
	for _, s := range p.order {
		if keep(s) {
			out = append(out, s)
		} else {
			delete(p.index, s.ID())
		}
	}
	clear(p.order[len(out):])
	p.order = out
}

func (p *set) clear() {
	p.filter(func(*surface.Surface) bool { return false })
}

type deferred struct {
	fence conn.Fence
	fn    func()
}

// Scheduler owns the command buffer and the pending set.
//
// Scheduler is NOT safe for concurrent use.
type Scheduler struct {
	conn    conn.Conn
	caps    encode.Caps
	w       *stream.Writer
	tracker *residency.Tracker

	pending set // surfaces with outstanding GPU writes
	readers set // surfaces the GPU may still be reading

	needStall  bool
	needCommit bool

	lastFence conn.Fence
	deferred  []deferred
	queued    []func()

	err error

	submits uint64
}

// New creates a scheduler writing into a buffer of words words. mapper binds
// GPU buffers lazily and may be nil.
func New(c conn.Conn, caps encode.Caps, words int, mapper residency.Mapper) *Scheduler {
	s := &Scheduler{
		conn:    c,
		caps:    caps,
		w:       stream.NewWriter(words),
		pending: newSet(),
		readers: newSet(),
	}
	s.tracker = residency.New(s, mapper)
	return s
}

// Tracker returns the ownership tracker bound to this scheduler.
func (s *Scheduler) Tracker() *residency.Tracker { return s.tracker }

// Writer returns the command buffer.
func (s *Scheduler) Writer() *stream.Writer { return s.w }

// Err returns the latched submission error, if any.
func (s *Scheduler) Err() error { return s.err }

// NeedStall reports whether submitted work has not been observed retired.
func (s *Scheduler) NeedStall() bool { return s.needStall }

// NeedCommit reports whether the buffer holds unsubmitted work.
func (s *Scheduler) NeedCommit() bool { return s.needCommit }

// Pending returns the surfaces with outstanding GPU writes in submission
// order. The slice must not be modified.
func (s *Scheduler) Pending() []*surface.Surface { return s.pending.order }

// IsPending reports whether sf has outstanding GPU writes.
func (s *Scheduler) IsPending(sf *surface.Surface) bool { return s.pending.contains(sf) }

// Submits returns the number of command buffers submitted.
func (s *Scheduler) Submits() uint64 { return s.submits }

// Submit prepares the surfaces of op for GPU access and encodes it. Box lists
// longer than encode.MaxRects are split into several operations. An error
// before anything was encoded leaves the stream untouched; the caller falls
// back to software.
func (s *Scheduler) Submit(op *Op) error {
	if s.err != nil {
		return s.err
	}
	if len(op.Boxes) == 0 {
		return nil
	}
	if op.Dst == nil {
		panic("batch: operation without destination surface")
	}

	if op.Src != nil {
		if err := s.tracker.PrepareGPU(op.Src, residency.Read); err != nil {
			return err
		}
	}
	if err := s.tracker.PrepareGPU(op.Dst, residency.ReadWrite); err != nil {
		return err
	}

	desc := op.Desc
	if op.Src != nil {
		src := desc.Src
		if src == nil {
			src = &encode.Source{}
		}
		cp := *src
		cp.Addr = op.Src.BO.GPUAddress()
		cp.Pitch = op.Src.Pitch
		if !op.KeepFormats {
			cp.Format = op.Src.Format
		}
		cp.Width, cp.Height = op.Src.Width, op.Src.Height
		desc.Src = &cp
	}
	desc.Dst.Addr = op.Dst.BO.GPUAddress()
	desc.Dst.Pitch = op.Dst.Pitch
	if !op.KeepFormats {
		desc.Dst.Format = op.Dst.Format
	}

	boxes := op.Boxes
	for len(boxes) > 0 {
		n := min(len(boxes), encode.MaxRects)
		if err := s.encode(func() error { return encode.Encode(s.w, s.caps, &desc, boxes[:n]) }); err != nil {
			return err
		}
		slogger().Debug("batch: encoded",
			"dst", op.Dst.ID(), "rects", n, "words", encode.Budget(s.caps, &desc, n))
		boxes = boxes[n:]
	}

	op.Dst.NeedStall = true
	op.Dst.Fence = 0
	s.pending.add(op.Dst)
	if op.Src != nil && op.Src != op.Dst {
		op.Src.NeedStall = true
		op.Src.Fence = 0
		s.readers.add(op.Src)
	}
	s.needStall = true
	s.needCommit = true
	return nil
}

// Flush encodes a 2D cache flush. Primitives call it after their last
// operation.
func (s *Scheduler) Flush() error {
	if s.err != nil {
		return s.err
	}
	if !s.needCommit {
		return nil
	}
	return s.encode(func() error { return encode.EncodeFlush(s.w) })
}

// encode runs fn, committing the buffer and retrying once when it is full.
func (s *Scheduler) encode(fn func() error) error {
	err := fn()
	if !errors.Is(err, stream.ErrNoSpace) {
		return err
	}
	if err := s.Commit(false); err != nil {
		return err
	}
	return fn()
}

// Commit submits the accumulated command buffer. With stall it also waits for
// everything submitted so far to retire, after which the pending set is empty
// and both flags are clear. Without stall pending surfaces are tagged with
// the submission fence and removed later by Retire.
func (s *Scheduler) Commit(stall bool) error {
	if s.err != nil {
		return s.err
	}

	if s.w.Len() > 0 {
		fence, err := s.conn.Submit(s.w.Words())
		words := s.w.Len()
		s.w.Reset()
		if err != nil {
			return s.fail("submit", err)
		}
		s.submits++
		s.lastFence = fence
		tag := func(sf *surface.Surface) bool {
			if sf.Fence == 0 {
				sf.Fence = fence
			}
			return true
		}
		s.pending.filter(tag)
		s.readers.filter(tag)
		for _, fn := range s.queued {
			s.deferred = append(s.deferred, deferred{fence: fence, fn: fn})
		}
		s.queued = s.queued[:0]
		slogger().Debug("batch: submitted", "fence", fence, "words", words, "stall", stall)
	}
	s.needCommit = false

	if !stall {
		return nil
	}
	if s.lastFence != 0 && s.needStall {
		if err := s.conn.Wait(s.lastFence); err != nil {
			return s.fail("wait", err)
		}
	}
	s.retireAll()
	return nil
}

// WaitFor blocks until the GPU work on sf has retired. It is a no-op for
// surfaces that are not pending.
func (s *Scheduler) WaitFor(sf *surface.Surface) error {
	if !sf.NeedStall {
		return nil
	}
	if s.err == nil {
		s.Retire()
	}
	if !s.pending.contains(sf) && !s.readers.contains(sf) {
		sf.NeedStall = false
		return nil
	}
	slogger().Debug("batch: stalling for surface", "surface", sf.ID())
	return s.Commit(true)
}

// Retire polls the fences of submitted work and removes retired surfaces
// from the pending set, running deferred work whose submission retired.
func (s *Scheduler) Retire() {
	if s.err != nil {
		return
	}
	done := make(map[conn.Fence]bool)
	var pollErr error
	retired := func(f conn.Fence) bool {
		if f == 0 {
			return false
		}
		if r, ok := done[f]; ok {
			return r
		}
		r, err := s.conn.Retired(f)
		if err != nil {
			pollErr = err
			r = true
		}
		done[f] = r
		return r
	}
	keep := func(sf *surface.Surface) bool {
		if retired(sf.Fence) {
			sf.NeedStall = false
			return false
		}
		return true
	}
	s.pending.filter(keep)
	s.readers.filter(keep)

	run := s.deferred[:0]
	var funcs []func()
	for _, d := range s.deferred {
		if retired(d.fence) {
			funcs = append(funcs, d.fn)
		} else {
			run = append(run, d)
		}
	}
	s.deferred = run
	for _, fn := range funcs {
		fn()
	}
	if pollErr != nil {
		s.fail("poll", pollErr)
		return
	}

	if len(s.pending.order) == 0 && len(s.readers.order) == 0 && len(s.deferred) == 0 && len(s.queued) == 0 {
		s.needStall = false
	}
}

// Defer runs fn once the GPU no longer uses anything submitted so far.
func (s *Scheduler) Defer(fn func()) {
	switch {
	case s.w.Len() > 0:
		s.queued = append(s.queued, fn)
	case s.err == nil && s.lastFence != 0 && s.needStall:
		s.deferred = append(s.deferred, deferred{fence: s.lastFence, fn: fn})
	default:
		fn()
	}
}

// Forget drops sf from the pending sets. Call it when the surface is
// destroyed; its buffer must be released through Defer.
func (s *Scheduler) Forget(sf *surface.Surface) {
	s.pending.remove(sf)
	s.readers.remove(sf)
	sf.NeedStall = false
}

// Close waits for outstanding work and runs every deferred function.
func (s *Scheduler) Close() error {
	err := s.Commit(true)
	if err != nil {
		s.retireAll()
	}
	return err
}

func (s *Scheduler) retireAll() {
	for _, sf := range s.pending.order {
		sf.NeedStall = false
	}
	for _, sf := range s.readers.order {
		sf.NeedStall = false
	}
	s.pending.clear()
	s.readers.clear()

	funcs := make([]func(), 0, len(s.deferred)+len(s.queued))
	for _, d := range s.deferred {
		funcs = append(funcs, d.fn)
	}
	funcs = append(funcs, s.queued...)
	s.deferred = s.deferred[:0]
	s.queued = s.queued[:0]
	for _, fn := range funcs {
		fn()
	}
	s.needStall = false
	s.needCommit = false
}

// fail latches a connection error. Outstanding work is abandoned so later CPU
// accesses do not block on it.
func (s *Scheduler) fail(what string, err error) error {
	s.err = fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
	slogger().Warn("batch: disabling acceleration", "err", err)
	s.w.Reset()
	s.retireAll()
	return s.err
}
