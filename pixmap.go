package blit

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/residency"
	"github.com/gogpu/blit/internal/surface"
)

// PictFormat is a logical pixel format.
type PictFormat = format.PictFormat

// Logical pixel formats.
const (
	A8R8G8B8    = format.A8R8G8B8
	X8R8G8B8    = format.X8R8G8B8
	A8B8G8R8    = format.A8B8G8R8
	X8B8G8R8    = format.X8B8G8R8
	B8G8R8A8    = format.B8G8R8A8
	R8G8B8A8    = format.R8G8B8A8
	R5G6B5      = format.R5G6B5
	A1R5G5B5    = format.A1R5G5B5
	X1R5G5B5    = format.X1R5G5B5
	A4R4G4B4    = format.A4R4G4B4
	A8          = format.A8
	A2R10G10B10 = format.A2R10G10B10
	C8          = format.C8
)

// ParseFormat resolves a format name such as "x8r8g8b8".
func ParseFormat(name string) (PictFormat, error) { return format.Parse(name) }

// Access is the kind of CPU access to a pixmap.
type Access = residency.Access

// CPU access kinds.
const (
	AccessRead      = residency.Read
	AccessReadWrite = residency.ReadWrite
)

// Usage selects how a pixmap is laid out.
type Usage uint8

const (
	// UsageDefault is a linear pixmap.
	UsageDefault Usage = 0

	// UsageTiled stores 4x4 pixel tiles. It needs conn.FeatureTiling.
	UsageTiled Usage = 1
)

// maxDimension is the largest coordinate the clip registers hold.
const maxDimension = 0x7fff

const destCommand = regs.DestConfigCommandBitBlt

// Drawable is a pixmap, or a window backed by a region of one.
type Drawable interface {
	// Pixmap returns the backing pixmap.
	Pixmap() *Pixmap
	// Origin returns the position of the drawable origin in the pixmap.
	Origin() Point
	// Bounds returns the drawable area in drawable coordinates.
	Bounds() Box
}

// Pixmap is an off-screen image whose memory the engine can render to.
type Pixmap struct {
	a *Accelerator
	s *surface.Surface
}

var _ Drawable = (*Pixmap)(nil)

// CreatePixmap allocates a pixmap in GPU memory. Formats without a direct
// engine equivalent are stored as raw bits of the same size: core drawing is
// accelerated for them, compositing is not.
func (a *Accelerator) CreatePixmap(width, height uint16, pf PictFormat, usage Usage) (*Pixmap, error) {
	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	f, err := format.Lookup(pf, true)
	if err != nil {
		return nil, err
	}
	if usage&UsageTiled != 0 {
		if !a.features.Has(conn.FeatureTiling) {
			return nil, fmt.Errorf("%w: tiled pixmap without tiling support", ErrUnsupported)
		}
		f.Tiled = true
	}
	s := surface.New(width, height, pf, f)
	bo, err := a.conn.Alloc(s.Size())
	if err != nil {
		return nil, fmt.Errorf("blit: allocate %v: %w", s, err)
	}
	s.BO = bo
	Logger().Debug("blit: pixmap created", "surface", s.ID(), "size", s.Size(), "format", pf, "tiled", f.Tiled)
	return &Pixmap{a: a, s: s}, nil
}

// CreatePixmapForTexture allocates a pixmap laid out like a WebGPU texture
// of the given format.
func (a *Accelerator) CreatePixmapForTexture(width, height uint16, tf gputypes.TextureFormat) (*Pixmap, error) {
	pf, ok := format.FromTextureFormat(tf)
	if !ok {
		return nil, fmt.Errorf("%w: texture format %v", ErrUnsupported, tf)
	}
	return a.CreatePixmap(width, height, pf, UsageDefault)
}

// NewPixmapFromMemory wraps caller memory as a pixmap. The memory is mapped
// into the GPU address space the first time the engine uses it; if that
// fails the primitive falls back to software. pitch 0 selects the aligned
// default. The caller must bracket its own writes with PrepareAccess and
// FinishAccess and keep mem alive until Destroy returns.
func (a *Accelerator) NewPixmapFromMemory(width, height uint16, pf PictFormat, mem []byte, pitch uint32) (*Pixmap, error) {
	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	f, err := format.Lookup(pf, true)
	if err != nil {
		return nil, err
	}
	s := surface.New(width, height, pf, f)
	if pitch != 0 {
		if pitch%surface.PitchAlign != 0 || pitch < uint32(width)*uint32(f.Bytes()) {
			return nil, fmt.Errorf("%w: pitch %d", ErrInvalidSize, pitch)
		}
		s.Pitch = pitch
	}
	if len(mem) < s.Size() {
		return nil, fmt.Errorf("%w: %d bytes for %d", ErrInvalidSize, len(mem), s.Size())
	}
	s.Mem = mem[:s.Size()]
	// The CPU may hold writes to the memory in its cache.
	s.State |= surface.Imported | surface.CPUDirty
	s.Owner = surface.CPU
	return &Pixmap{a: a, s: s}, nil
}

// Destroy releases the pixmap. Its GPU buffer is freed once the engine no
// longer uses it; caller memory is waited for before Destroy returns.
func (p *Pixmap) Destroy() error {
	s := p.s
	if s == nil {
		return ErrDestroyed
	}
	p.s = nil
	sched := p.a.sched

	var err error
	if s.Has(surface.Imported) && s.NeedStall {
		err = sched.WaitFor(s)
	}
	sched.Forget(s)
	if bo := s.BO; bo != nil {
		s.BO = nil
		s.Name = 0
		sched.Defer(func() {
			if rerr := bo.Release(); rerr != nil {
				Logger().Warn("blit: release buffer", "surface", s.ID(), "err", rerr)
			}
		})
	}
	return err
}

// Pixmap returns p.
func (p *Pixmap) Pixmap() *Pixmap { return p }

// Origin returns the zero point.
func (p *Pixmap) Origin() Point { return Point{} }

// Bounds returns the pixmap area.
func (p *Pixmap) Bounds() Box {
	if p.s == nil {
		return Box{}
	}
	return Box{X2: int16(p.s.Width), Y2: int16(p.s.Height)}
}

// Width returns the width in pixels.
func (p *Pixmap) Width() int { return int(p.s.Width) }

// Height returns the height in pixels.
func (p *Pixmap) Height() int { return int(p.s.Height) }

// Format returns the logical pixel format.
func (p *Pixmap) Format() PictFormat { return p.s.PictFormat }

// Depth returns the number of significant bits per pixel.
func (p *Pixmap) Depth() int { return p.s.PictFormat.Depth() }

// Pitch returns the row pitch in bytes.
func (p *Pixmap) Pitch() int { return int(p.s.Pitch) }

// Tiled reports whether the pixmap is stored in 4x4 tiles.
func (p *Pixmap) Tiled() bool { return p.s.Format.Tiled }

// Destroyed reports whether Destroy was called.
func (p *Pixmap) Destroyed() bool { return p.s == nil }

// Accelerator returns the accelerator that created p.
func (p *Pixmap) Accelerator() *Accelerator { return p.a }

func (p *Pixmap) String() string {
	if p.s == nil {
		return "pixmap(destroyed)"
	}
	return p.s.String()
}

// Export returns a global name other processes can open the pixmap's buffer
// with. The name stays valid until Destroy. Pixmaps wrapping caller memory
// cannot be exported.
func (p *Pixmap) Export() (uint32, error) {
	s := p.s
	if s == nil {
		return 0, ErrDestroyed
	}
	if s.Name != 0 {
		return s.Name, nil
	}
	if s.BO == nil || s.Has(surface.Imported) {
		return 0, fmt.Errorf("blit: export %v: %w", s, conn.ErrNoExport)
	}
	name, err := s.BO.Export()
	if err != nil {
		return 0, fmt.Errorf("blit: export %v: %w", s, err)
	}
	s.Name = name
	s.State |= surface.DMABuf
	return name, nil
}

// PrepareAccess makes the pixmap memory coherent for CPU access and returns
// it. Outstanding GPU work on the pixmap is waited for when needed. Every
// call must be paired with FinishAccess.
func (p *Pixmap) PrepareAccess(acc Access) ([]byte, error) {
	s := p.s
	if s == nil {
		return nil, ErrDestroyed
	}
	if err := p.a.sched.Tracker().PrepareCPU(s, acc); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// FinishAccess ends a CPU access started with PrepareAccess.
func (p *Pixmap) FinishAccess(acc Access) {
	if p.s != nil {
		p.a.sched.Tracker().FinishCPU(p.s, acc)
	}
}

// Pixel returns the raw pixel value at (x, y).
func (p *Pixmap) Pixel(x, y int) (uint32, error) {
	if x < 0 || y < 0 || x >= p.Width() || y >= p.Height() {
		return 0, fmt.Errorf("blit: pixel (%d,%d) outside %v", x, y, p)
	}
	mem, err := p.PrepareAccess(AccessRead)
	if err != nil {
		return 0, err
	}
	defer p.FinishAccess(AccessRead)
	return p.load(mem, x, y), nil
}

// Image returns a premultiplied RGBA copy of the pixmap.
func (p *Pixmap) Image() (*image.RGBA, error) {
	mem, err := p.PrepareAccess(AccessRead)
	if err != nil {
		return nil, err
	}
	defer p.FinishAccess(AccessRead)

	img := image.NewRGBA(image.Rect(0, 0, p.Width(), p.Height()))
	l := p.s.PictFormat.Layout()
	for y := 0; y < p.Height(); y++ {
		for x := 0; x < p.Width(); x++ {
			putRGBA(img, x, y, l.Unpack(p.load(mem, x, y)))
		}
	}
	return img, nil
}

func (p *Pixmap) offset(x, y int) int {
	return pixel.Offset(x, y, int(p.s.Pitch), p.s.Format.Bytes(), p.s.Format.Tiled)
}

func (p *Pixmap) load(mem []byte, x, y int) uint32 {
	return pixel.Load(mem, p.offset(x, y), p.s.Format.Bytes())
}

func (p *Pixmap) store(mem []byte, x, y int, v uint32) {
	pixel.Store(mem, p.offset(x, y), p.s.Format.Bytes(), v)
}

// putRGBA stores an A8R8G8B8 value into an RGBA image.
func putRGBA(img *image.RGBA, x, y int, argb uint32) {
	i := img.PixOffset(x, y)
	img.Pix[i+0] = uint8(argb >> 16)
	img.Pix[i+1] = uint8(argb >> 8)
	img.Pix[i+2] = uint8(argb)
	img.Pix[i+3] = uint8(argb >> 24)
}

// getRGBA loads an A8R8G8B8 value from an RGBA image.
func getRGBA(img *image.RGBA, x, y int) uint32 {
	i := img.PixOffset(x, y)
	return uint32(img.Pix[i+3])<<24 | uint32(img.Pix[i+0])<<16 | uint32(img.Pix[i+1])<<8 | uint32(img.Pix[i+2])
}

// Window is a drawable occupying a region of a pixmap, such as a window
// rendered into the screen pixmap.
type Window struct {
	pm     *Pixmap
	origin Point
	width  uint16
	height uint16
}

var _ Drawable = (*Window)(nil)

// Window returns a drawable covering width x height pixels of p starting at
// (x, y).
func (p *Pixmap) Window(x, y int16, width, height uint16) *Window {
	return &Window{pm: p, origin: Point{X: x, Y: y}, width: width, height: height}
}

// Pixmap returns the backing pixmap.
func (w *Window) Pixmap() *Pixmap { return w.pm }

// Origin returns the window position in the pixmap.
func (w *Window) Origin() Point { return w.origin }

// Bounds returns the part of the window inside its pixmap, in window
// coordinates.
func (w *Window) Bounds() Box {
	b := Box{X2: int16(w.width), Y2: int16(w.height)}
	pb := w.pm.Bounds().Translate(-w.origin.X, -w.origin.Y)
	r, _ := b.Intersect(pb)
	return r
}

// dstValid checks that the engine can write the surface format.
func dstValid(s *surface.Surface, f conn.Feature) error {
	return format.DstValid(s.Format, f.Has(conn.FeatureA8Target), f.Has(conn.FeatureTiling))
}

// srcValid checks that the engine can read the surface format.
func srcValid(s *surface.Surface, f conn.Feature) error {
	return format.SrcValid(s.Format, f.Has(conn.FeaturePE20), f.Has(conn.FeatureTiling))
}
