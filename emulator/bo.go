package emulator

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogpu/blit/conn"
)

// CacheLine is the granularity of the modelled CPU cache.
const CacheLine = 64

// ErrReleased is returned by operations on a released buffer.
var ErrReleased = errors.New("emulator: buffer released")

// BO is an emulated buffer object.
//
// The engine reads and writes device memory. The CPU sees the buffer through
// a write-back cache: Map returns the cached view, and changes only travel
// between the view and device memory on explicit cache maintenance. A line
// is dirty when the view differs from the memory contents it was last
// synchronised with.
type BO struct {
	c        *Conn
	addr     uint32
	mem      []byte // device memory
	view     []byte // CPU view
	synced   []byte // memory contents the view last matched
	name     uint32
	imported bool
	released bool
}

var _ conn.BO = (*BO)(nil)

func newBO(c *Conn, addr uint32, view []byte, imported bool) *BO {
	b := &BO{
		c:        c,
		addr:     addr,
		mem:      bytes.Clone(view),
		view:     view,
		synced:   bytes.Clone(view),
		imported: imported,
	}
	return b
}

// GPUAddress returns the buffer's GPU virtual address.
func (b *BO) GPUAddress() uint32 { return b.addr }

// Size returns the buffer size in bytes.
func (b *BO) Size() int { return len(b.mem) }

// Map returns the CPU view of the buffer.
func (b *BO) Map() []byte { return b.view }

// Memory returns the device memory of the buffer, bypassing the CPU cache.
func (b *BO) Memory() []byte { return b.mem }

// Imported reports whether the buffer maps caller memory.
func (b *BO) Imported() bool { return b.imported }

// Cache performs CPU cache maintenance.
func (b *BO) Cache(op conn.CacheOp) error {
	if b.released {
		return ErrReleased
	}
	switch op {
	case conn.CacheClean:
		b.clean()
	case conn.CacheInvalidate:
		b.invalidate()
	case conn.CacheFlush:
		b.clean()
		b.invalidate()
	default:
		return fmt.Errorf("emulator: unknown cache op %v", op)
	}
	b.c.stats.CacheOps++
	return nil
}

func (b *BO) clean() {
	for off := 0; off < len(b.view); off += CacheLine {
		end := min(off+CacheLine, len(b.view))
		if !bytes.Equal(b.view[off:end], b.synced[off:end]) {
			copy(b.mem[off:end], b.view[off:end])
			copy(b.synced[off:end], b.view[off:end])
		}
	}
}

func (b *BO) invalidate() {
	copy(b.view, b.mem)
	copy(b.synced, b.mem)
}

// Export returns a global name for the buffer. Repeated calls return the
// same name.
func (b *BO) Export() (uint32, error) {
	if b.released {
		return 0, ErrReleased
	}
	if b.imported {
		return 0, fmt.Errorf("%w: imported user memory", conn.ErrNoExport)
	}
	if b.name == 0 {
		b.c.nextName++
		b.name = b.c.nextName
		b.c.names[b.name] = b
	}
	return b.name, nil
}

// Release frees the buffer.
func (b *BO) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.c.release(b)
	return nil
}

func (b *BO) contains(addr uint32, n int) bool {
	return addr >= b.addr && uint64(addr)+uint64(n) <= uint64(b.addr)+uint64(len(b.mem))
}
