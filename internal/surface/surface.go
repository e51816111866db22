// Package surface defines the accelerator-side record of a pixmap's backing
// store.
package surface

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/pixel"
)

// PitchAlign is the byte alignment of every surface pitch and address.
const PitchAlign = 64

// Owner names the side holding the authoritative copy of a surface.
type Owner uint8

// Owners.
const (
	// None is a fresh surface with undefined content.
	None Owner = iota
	CPU
	GPU
)

func (o Owner) String() string {
	switch o {
	case None:
		return "none"
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	}
	return fmt.Sprintf("Owner(%d)", uint8(o))
}

// State is a bitmask of pending cache obligations and sharing flags.
type State uint8

// State bits.
const (
	// CPUDirty means the CPU wrote through its cached view and the lines must
	// be cleaned before the engine reads the memory.
	CPUDirty State = 1 << iota

	// GPUWritten means the engine wrote the memory since the CPU last
	// synchronised its cached view.
	GPUWritten

	// Imported means the memory belongs to the caller and was mapped into
	// the GPU address space on demand.
	Imported

	// DMABuf marks a surface shared with another device.
	DMABuf
)

// ID identifies a surface for pending-set membership.
type ID uint64

var nextID atomic.Uint64

// Surface is the accelerator state of one pixmap.
//
// A Surface is only mutated from the accelerator's control goroutine.
type Surface struct {
	id ID

	Width, Height uint16
	Pitch         uint32

	// Format is the engine format used for raster ops; PictFormat is the
	// logical format the pixmap was created with.
	Format     format.Format
	PictFormat format.PictFormat

	// BO is the GPU buffer binding; nil until the memory is GPU-visible.
	BO conn.BO

	// Mem is caller-owned CPU memory for lazily mapped surfaces.
	Mem []byte

	State     State
	Owner     Owner
	NeedStall bool

	// Fence is the submission that last wrote the surface, or zero while the
	// write has not been submitted.
	Fence conn.Fence

	// Name is the cached export name; zero when never exported.
	Name uint32
}

// New creates an unowned surface with an aligned pitch and no binding.
func New(width, height uint16, pf format.PictFormat, f format.Format) *Surface {
	return &Surface{
		id:         ID(nextID.Add(1)),
		Width:      width,
		Height:     height,
		Pitch:      Pitch(width, f),
		Format:     f,
		PictFormat: pf,
	}
}

// Pitch returns the aligned row pitch of a surface. Tiled surfaces round the
// width up to whole tiles.
func Pitch(width uint16, f format.Format) uint32 {
	w := uint32(width)
	if f.Tiled {
		w = pixel.AlignUp(w, 4)
	}
	return pixel.AlignUp(w*uint32(f.Bytes()), PitchAlign)
}

// Size returns the number of bytes backing the surface.
func (s *Surface) Size() int {
	rows := uint32(s.Height)
	if s.Format.Tiled {
		rows = pixel.AlignUp(rows, 4)
	}
	return int(s.Pitch * rows)
}

// ID returns the surface identifier.
func (s *Surface) ID() ID { return s.id }

// Has reports whether all bits of st are set.
func (s *Surface) Has(st State) bool { return s.State&st == st }

// Bytes returns the CPU-visible view of the surface memory, or nil.
func (s *Surface) Bytes() []byte {
	if s.BO != nil {
		return s.BO.Map()
	}
	return s.Mem
}

func (s *Surface) String() string {
	return fmt.Sprintf("surface#%d %dx%d %v owner=%v", s.id, s.Width, s.Height, s.PictFormat, s.Owner)
}
