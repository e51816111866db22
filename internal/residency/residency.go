// Package residency tracks which side owns each surface's content and
// performs the cache maintenance needed when ownership moves between the CPU
// and the GPU.
//
// Transitions:
//
//	None ──► CPU ◄──► GPU
//
// A CPU access that conflicts with outstanding GPU work first waits for that
// work to retire: reads wait for engine writes, writes wait for any engine
// access. Cached CPU views are invalidated when the engine wrote
// the memory, and cleaned lazily before the engine next reads memory the CPU
// wrote.
package residency

import (
	"errors"
	"fmt"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/surface"
)

// ErrUnmapped is returned by PrepareGPU when a surface's memory could not be
// made GPU-visible.
var ErrUnmapped = errors.New("residency: surface not mapped into GPU address space")

// Access is the kind of access being prepared.
type Access uint8

// Access kinds.
const (
	Read Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == Read {
		return "ro"
	}
	return "rw"
}

// Waiter blocks until the outstanding GPU work on a surface has retired.
type Waiter interface {
	WaitFor(s *surface.Surface) error
}

// Mapper binds a GPU buffer to a surface that has none.
type Mapper interface {
	MapGPU(s *surface.Surface) error
}

// Tracker applies ownership transitions.
type Tracker struct {
	waiter Waiter
	mapper Mapper
}

// New creates a tracker. mapper may be nil, in which case unbound surfaces
// can never be used by the GPU.
func New(w Waiter, m Mapper) *Tracker {
	return &Tracker{waiter: w, mapper: m}
}

// PrepareCPU makes the surface content coherent for CPU access. A write
// waits for outstanding GPU reads as well as writes, whoever owns the
// surface: an earlier CPU read does not retire a queued engine read.
func (t *Tracker) PrepareCPU(s *surface.Surface, acc Access) error {
	if s.NeedStall && (acc == ReadWrite || s.Has(surface.GPUWritten)) {
		if err := t.waiter.WaitFor(s); err != nil {
			return err
		}
	}

	if s.Has(surface.GPUWritten) && s.BO != nil {
		op := conn.CacheInvalidate
		if acc == ReadWrite {
			op = conn.CacheFlush
		}
		if err := s.BO.Cache(op); err != nil {
			return fmt.Errorf("residency: %v before cpu access: %w", op, err)
		}
		s.State &^= surface.GPUWritten
	}

	if s.Owner != surface.CPU {
		slogger().Debug("residency: cpu owns surface", "surface", s.ID(), "from", s.Owner, "access", acc)
	}
	s.Owner = surface.CPU
	return nil
}

// FinishCPU ends a CPU access. After a write the CPU cache must be cleaned
// before the engine reads the memory; the clean is deferred to PrepareGPU.
func (t *Tracker) FinishCPU(s *surface.Surface, acc Access) {
	if acc == ReadWrite {
		s.State |= surface.CPUDirty
	}
}

// PrepareGPU makes the surface usable by the engine. Surfaces without a GPU
// buffer are mapped through the Mapper; failure wraps ErrUnmapped and the
// caller must fall back to software.
func (t *Tracker) PrepareGPU(s *surface.Surface, acc Access) error {
	if s.BO == nil {
		if t.mapper == nil {
			return ErrUnmapped
		}
		if err := t.mapper.MapGPU(s); err != nil {
			return fmt.Errorf("%w: %w", ErrUnmapped, err)
		}
		if s.BO == nil {
			return ErrUnmapped
		}
	}

	if s.Has(surface.CPUDirty) {
		if err := s.BO.Cache(conn.CacheClean); err != nil {
			return fmt.Errorf("residency: clean before gpu access: %w", err)
		}
		s.State &^= surface.CPUDirty
	}

	if acc == ReadWrite {
		s.State |= surface.GPUWritten
	}
	if s.Owner != surface.GPU {
		slogger().Debug("residency: gpu owns surface", "surface", s.ID(), "from", s.Owner, "access", acc)
	}
	s.Owner = surface.GPU
	return nil
}
