// Package emulator is a software model of a GPU with a fixed-function 2D
// drawing engine. It implements conn.Conn: buffers live in host memory behind
// a modelled CPU cache, submitted command streams are queued and executed in
// order when a fence is waited on or Step is called, and the engine applies
// raster operations and alpha blending the way the hardware does.
//
// The emulator registers itself with the conn registry as "emulator".
package emulator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/stream"
)

// Errors reported by the emulated engine.
var (
	// ErrFault is returned when a command accesses memory outside every
	// buffer or uses state the engine cannot execute.
	ErrFault = errors.New("emulator: engine fault")

	// ErrOutOfMemory is returned by Alloc when the memory limit is reached.
	ErrOutOfMemory = errors.New("emulator: out of memory")
)

const (
	pageSize = 4096
	baseAddr = 0x10000000
)

// Stats counts engine activity.
type Stats struct {
	Submits  int
	Words    int
	Draws    int
	Rects    int
	Pixels   int
	Flushes  int
	CacheOps int
}

// Option configures an emulated connection.
type Option func(*Conn)

// WithFeatures sets the emulated engine features.
func WithFeatures(f conn.Feature) Option {
	return func(c *Conn) { c.features = f }
}

// WithSynchronous executes every submission immediately.
func WithSynchronous(sync bool) Option {
	return func(c *Conn) { c.sync = sync }
}

// WithMemoryLimit caps the total size of allocated and imported buffers.
func WithMemoryLimit(bytes int) Option {
	return func(c *Conn) { c.limit = bytes }
}

type submission struct {
	fence conn.Fence
	words []uint32
}

// Conn is an emulated GPU connection.
//
// Conn is NOT safe for concurrent use.
type Conn struct {
	features conn.Feature
	sync     bool
	limit    int

	bos      []*BO // sorted by address
	nextAddr uint32
	used     int
	names    map[uint32]*BO
	nextName uint32

	queue   []submission
	next    conn.Fence
	retired conn.Fence
	fault   error

	regs  map[uint32]uint32
	stats Stats

	closed bool
}

var _ conn.Conn = (*Conn)(nil)

// New creates an emulated connection. Without options every feature is
// emulated and submissions execute when waited on.
func New(opts ...Option) *Conn {
	c := &Conn{
		features: conn.FeatureAll,
		nextAddr: baseAddr,
		names:    make(map[uint32]*BO),
		regs:     make(map[uint32]uint32),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.regs[regs.DEClipBottomRight] = regs.PackClip(0x7fff, 0x7fff)
	slogger().Debug("emulator: opened", "features", c.features)
	return c
}

func init() {
	conn.Register("emulator", 10, func(opts conn.Options) (conn.Conn, error) {
		f := opts.Features
		if f == 0 {
			f = conn.FeatureAll
		}
		return New(WithFeatures(f)), nil
	}, nil)
}

// Features returns the emulated engine features.
func (c *Conn) Features() conn.Feature { return c.features }

// Stats returns the activity counters.
func (c *Conn) Stats() Stats { return c.stats }

// Register returns the current value of an engine register.
func (c *Conn) Register(reg uint32) uint32 { return c.regs[reg] }

// Named returns the buffer exported under name.
func (c *Conn) Named(name uint32) (*BO, bool) {
	b, ok := c.names[name]
	return b, ok
}

// Buffers returns the number of live buffers.
func (c *Conn) Buffers() int { return len(c.bos) }

// Alloc allocates a zeroed buffer.
func (c *Conn) Alloc(size int) (conn.BO, error) {
	if c.closed {
		return nil, conn.ErrClosed
	}
	if size <= 0 {
		return nil, fmt.Errorf("emulator: invalid buffer size %d", size)
	}
	return c.bind(make([]byte, size), false)
}

// Import maps caller memory. The memory becomes the CPU view of the buffer.
func (c *Conn) Import(mem []byte) (conn.BO, error) {
	if c.closed {
		return nil, conn.ErrClosed
	}
	if len(mem) == 0 {
		return nil, fmt.Errorf("%w: empty memory", conn.ErrImportUnsupported)
	}
	return c.bind(mem, true)
}

func (c *Conn) bind(view []byte, imported bool) (*BO, error) {
	if c.limit > 0 && c.used+len(view) > c.limit {
		return nil, fmt.Errorf("%w: %d bytes in use, %d requested", ErrOutOfMemory, c.used, len(view))
	}
	span := pixel.AlignUp(uint64(len(view)), pageSize)
	if uint64(c.nextAddr)+span > 1<<32 {
		return nil, fmt.Errorf("%w: address space exhausted", ErrOutOfMemory)
	}
	b := newBO(c, c.nextAddr, view, imported)
	c.nextAddr += uint32(span)
	c.used += len(view)
	c.bos = append(c.bos, b)
	return b, nil
}

func (c *Conn) release(b *BO) {
	for i, o := range c.bos {
		if o == b {
			c.bos = append(c.bos[:i], c.bos[i+1:]...)
			break
		}
	}
	if b.name != 0 {
		delete(c.names, b.name)
	}
	c.used -= len(b.mem)
}

// lookup finds the buffer holding n bytes at addr.
func (c *Conn) lookup(addr uint32, n int) (*BO, error) {
	i := sort.Search(len(c.bos), func(i int) bool { return c.bos[i].addr > addr }) - 1
	if i < 0 || !c.bos[i].contains(addr, n) {
		return nil, fmt.Errorf("%w: no buffer at %#08x (+%d)", ErrFault, addr, n)
	}
	return c.bos[i], nil
}

// Submit validates and queues a command stream.
func (c *Conn) Submit(words []uint32) (conn.Fence, error) {
	if c.closed {
		return 0, conn.ErrClosed
	}
	if c.fault != nil {
		return 0, c.fault
	}
	if _, err := stream.Decode(words); err != nil {
		return 0, err
	}
	c.next++
	c.queue = append(c.queue, submission{fence: c.next, words: append([]uint32(nil), words...)})
	c.stats.Submits++
	c.stats.Words += len(words)
	if c.sync {
		if err := c.Wait(c.next); err != nil {
			return c.next, err
		}
	}
	return c.next, nil
}

// Step executes the oldest queued submission and reports whether there was
// one.
func (c *Conn) Step() (bool, error) {
	if len(c.queue) == 0 {
		return false, c.fault
	}
	sub := c.queue[0]
	c.queue = c.queue[1:]
	if c.fault == nil {
		if err := c.execute(sub.words); err != nil {
			c.fault = fmt.Errorf("fence %d: %w", sub.fence, err)
			slogger().Warn("emulator: fault", "fence", sub.fence, "err", err)
		}
	}
	c.retired = sub.fence
	return true, c.fault
}

// Wait executes queued submissions up to and including f.
func (c *Conn) Wait(f conn.Fence) error {
	if f == 0 || f > c.next {
		return fmt.Errorf("%w: %d", conn.ErrBadFence, f)
	}
	for c.retired < f {
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	return c.fault
}

// Retired reports whether f has executed.
func (c *Conn) Retired(f conn.Fence) (bool, error) {
	if f == 0 || f > c.next {
		return false, fmt.Errorf("%w: %d", conn.ErrBadFence, f)
	}
	return f <= c.retired, c.fault
}

// Queued returns the number of submissions not yet executed.
func (c *Conn) Queued() int { return len(c.queue) }

// Close executes outstanding work and closes the connection.
func (c *Conn) Close() error {
	if c.closed {
		return conn.ErrClosed
	}
	var err error
	if c.next > c.retired {
		err = c.Wait(c.next)
	}
	c.closed = true
	return err
}
