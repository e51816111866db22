package emulator

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/stream"
)

var (
	argb  = format.Format{Code: regs.FormatA8R8G8B8, Swizzle: regs.SwizzleARGB}
	xrgb  = format.Format{Code: regs.FormatX8R8G8B8, Swizzle: regs.SwizzleARGB}
	rgb16 = format.Format{Code: regs.FormatR5G6B5, Swizzle: regs.SwizzleARGB}
)

const (
	testW     = 32
	testH     = 32
	testPitch = testW * 4
)

func alloc(t *testing.T, c *Conn, size int) *BO {
	t.Helper()
	b, err := c.Alloc(size)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	return b.(*BO)
}

// run encodes ops into one stream, submits it and waits for it.
func run(t *testing.T, c *Conn, ops ...func(w *stream.Writer) error) {
	t.Helper()
	w := stream.NewWriter(stream.MinWords)
	for _, op := range ops {
		if err := op(w); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if err := encode.EncodeFlush(w); err != nil {
		t.Fatal(err)
	}
	f, err := c.Submit(w.Words())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := c.Wait(f); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func caps(c *Conn) encode.Caps { return encode.Caps{ExtendedBlend: c.Features().Has(conn.FeaturePE20)} }

func fill(c *Conn, dst *BO, f format.Format, pitch uint32, color uint32, clip *encode.Box, boxes ...encode.Box) func(*stream.Writer) error {
	return func(w *stream.Writer) error {
		op := &encode.Op{
			Dst:   encode.Dest{Addr: dst.GPUAddress(), Pitch: pitch, Format: f, Cmd: regs.DestConfigCommandBitBlt},
			Brush: &encode.Brush{Color: color},
			FgRop: 0xf0, BgRop: 0xf0,
			Clip:  clip,
		}
		return encode.Encode(w, caps(c), op, boxes)
	}
}

func px(mem []byte, x, y int) uint32 {
	return binary.LittleEndian.Uint32(mem[y*testPitch+x*4:])
}

func fullClip() *encode.Box { return &encode.Box{X1: 0, Y1: 0, X2: testW, Y2: testH} }

func TestSolidFill(t *testing.T) {
	c := New()
	dst := alloc(t, c, testPitch*testH)

	run(t, c, fill(c, dst, argb, testPitch, 0xff112233, fullClip(), encode.Box{X1: 2, Y1: 3, X2: 10, Y2: 8}))

	mem := dst.Memory()
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			want := uint32(0)
			if x >= 2 && x < 10 && y >= 3 && y < 8 {
				want = 0xff112233
			}
			if got := px(mem, x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %#08x, want %#08x", x, y, got, want)
			}
		}
	}
	if s := c.Stats(); s.Draws != 1 || s.Rects != 1 || s.Pixels != 40 || s.Flushes != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestClipAndDestinationOffset(t *testing.T) {
	c := New()
	dst := alloc(t, c, testPitch*testH)

	op := func(w *stream.Writer) error {
		return encode.Encode(w, caps(c), &encode.Op{
			Dst: encode.Dest{
				Addr: dst.GPUAddress(), Pitch: testPitch, Format: argb,
				Cmd: regs.DestConfigCommandBitBlt, Offset: encode.Point{X: 4, Y: 4},
			},
			Brush: &encode.Brush{Color: 0xffffffff},
			FgRop: 0xf0, BgRop: 0xf0,
			Clip:  &encode.Box{X1: 0, Y1: 0, X2: 4, Y2: 4},
		}, []encode.Box{{X1: 0, Y1: 0, X2: 8, Y2: 8}})
	}
	run(t, c, op)

	mem := dst.Memory()
	if px(mem, 3, 3) != 0 || px(mem, 4, 4) != 0xffffffff || px(mem, 7, 7) != 0xffffffff || px(mem, 8, 8) != 0 {
		t.Error("clip or offset not applied")
	}
}

func TestCopyAndFormatConversion(t *testing.T) {
	c := New()
	src := alloc(t, c, testPitch*testH)
	for i := 0; i < testW*testH; i++ {
		binary.LittleEndian.PutUint32(src.Memory()[i*4:], 0xff000000|uint32(i))
	}
	dstPitch := uint32(testW * 2)
	dst := alloc(t, c, int(dstPitch)*testH)

	run(t, c, func(w *stream.Writer) error {
		return encode.Encode(w, caps(c), &encode.Op{
			Src: &encode.Source{Addr: src.GPUAddress(), Pitch: testPitch, Format: argb, Relative: true,
				Origin: encode.Point{X: 1, Y: 2}, Width: testW, Height: testH},
			Dst:   encode.Dest{Addr: dst.GPUAddress(), Pitch: dstPitch, Format: rgb16, Cmd: regs.DestConfigCommandBitBlt},
			FgRop: 0xcc, BgRop: 0xcc,
			Clip:  fullClip(),
		}, []encode.Box{{X1: 0, Y1: 0, X2: 4, Y2: 4}})
	})

	l, _ := rgb16.Layout()
	sl, _ := argb.Layout()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			s := binary.LittleEndian.Uint32(src.Memory()[(y+2)*testPitch+(x+1)*4:])
			want := l.Pack(sl.Unpack(s))
			got := uint32(binary.LittleEndian.Uint16(dst.Memory()[y*int(dstPitch)+x*2:]))
			if got != want {
				t.Errorf("pixel (%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func TestOverlappingCopy(t *testing.T) {
	c := New()
	b := alloc(t, c, testPitch*testH)
	for x := 0; x < testW; x++ {
		binary.LittleEndian.PutUint32(b.Memory()[x*4:], uint32(x))
	}

	// Shift row 0 right by 1 within the same buffer.
	run(t, c, func(w *stream.Writer) error {
		return encode.Encode(w, caps(c), &encode.Op{
			Src: &encode.Source{Addr: b.GPUAddress(), Pitch: testPitch, Format: argb, Relative: true,
				Origin: encode.Point{X: -1}, Width: testW, Height: testH},
			Dst:   encode.Dest{Addr: b.GPUAddress(), Pitch: testPitch, Format: argb, Cmd: regs.DestConfigCommandBitBlt},
			FgRop: 0xcc, BgRop: 0xcc,
			Clip:  fullClip(),
		}, []encode.Box{{X1: 1, Y1: 0, X2: testW, Y2: 1}})
	})
	for x := 1; x < testW; x++ {
		if got := px(b.Memory(), x, 0); got != uint32(x-1) {
			t.Fatalf("pixel %d = %d, want %d", x, got, x-1)
		}
	}
}

func TestRasterOps(t *testing.T) {
	tests := []struct {
		rop  uint8
		want func(p, d uint32) uint32
	}{
		{0x00, func(p, d uint32) uint32 { return 0 }},
		{0xff, func(p, d uint32) uint32 { return 0xffffffff }},
		{0xa0, func(p, d uint32) uint32 { return p & d }},
		{0x5a, func(p, d uint32) uint32 { return p ^ d }},
		{0xfa, func(p, d uint32) uint32 { return p | d }},
		{0x55, func(p, d uint32) uint32 { return ^d }},
	}
	const p, d = 0xf0f0aa55, 0x0ff0cc33
	for _, tt := range tests {
		c := New()
		dst := alloc(t, c, testPitch*testH)
		binary.LittleEndian.PutUint32(dst.Memory(), d)
		run(t, c, func(w *stream.Writer) error {
			return encode.Encode(w, caps(c), &encode.Op{
				Dst:   encode.Dest{Addr: dst.GPUAddress(), Pitch: testPitch, Format: argb, Cmd: regs.DestConfigCommandBitBlt},
				Brush: &encode.Brush{Color: p},
				FgRop: tt.rop, BgRop: tt.rop,
				Clip:  fullClip(),
			}, []encode.Box{{X1: 0, Y1: 0, X2: 1, Y2: 1}})
		})
		if got := px(dst.Memory(), 0, 0); got != tt.want(p, d) {
			t.Errorf("rop %#02x = %#08x, want %#08x", tt.rop, got, tt.want(p, d))
		}
	}
}

func TestBlendOver(t *testing.T) {
	for _, pe20 := range []bool{false, true} {
		features := conn.FeatureTiling
		if pe20 {
			features |= conn.FeaturePE20
		}
		c := New(WithFeatures(features))
		src := alloc(t, c, testPitch*testH)
		dst := alloc(t, c, testPitch*testH)
		binary.LittleEndian.PutUint32(src.Memory(), 0x80800000) // premultiplied half red
		binary.LittleEndian.PutUint32(dst.Memory(), 0xff0000ff)

		run(t, c, func(w *stream.Writer) error {
			return encode.Encode(w, caps(c), &encode.Op{
				Src: &encode.Source{Addr: src.GPUAddress(), Pitch: testPitch, Format: argb, Relative: true, Width: testW, Height: testH},
				Dst: encode.Dest{Addr: dst.GPUAddress(), Pitch: testPitch, Format: argb, Cmd: regs.DestConfigCommandBitBlt},
				Blend: &encode.Blend{
					Modes: regs.AlphaModeGlobalSrc(regs.GlobalAlphaNormal) | regs.AlphaModeGlobalDst(regs.GlobalAlphaNormal) |
						regs.AlphaModeSrcBlend(regs.BlendOne) | regs.AlphaModeDstBlend(regs.BlendInversed),
					SrcAlpha: 0xff, DstAlpha: 0xff,
				},
				FgRop: 0xcc, BgRop: 0xcc,
				Clip:  fullClip(),
			}, []encode.Box{{X1: 0, Y1: 0, X2: 1, Y2: 1}})
		})
		want := pixel.Blend(0x80800000, 0xff0000ff, 0xff, 0x7f)
		if got := px(dst.Memory(), 0, 0); got != want {
			t.Errorf("pe20=%v: over = %#08x, want %#08x", pe20, got, want)
		}
	}
}

func TestTiledSource(t *testing.T) {
	c := New()
	src := alloc(t, c, testPitch*testH)
	dst := alloc(t, c, testPitch*testH)
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			off := pixel.Offset(x, y, testPitch, 4, true)
			binary.LittleEndian.PutUint32(src.Memory()[off:], uint32(y<<8|x))
		}
	}
	tiled := argb
	tiled.Tiled = true
	run(t, c, func(w *stream.Writer) error {
		return encode.Encode(w, caps(c), &encode.Op{
			Src:   &encode.Source{Addr: src.GPUAddress(), Pitch: testPitch, Format: tiled, Relative: true, Width: testW, Height: testH},
			Dst:   encode.Dest{Addr: dst.GPUAddress(), Pitch: testPitch, Format: argb, Cmd: regs.DestConfigCommandBitBlt},
			FgRop: 0xcc, BgRop: 0xcc,
			Clip:  fullClip(),
		}, []encode.Box{{X1: 0, Y1: 0, X2: testW, Y2: testH}})
	})
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			if got := px(dst.Memory(), x, y); got != uint32(y<<8|x) {
				t.Fatalf("detiled pixel (%d,%d) = %#x", x, y, got)
			}
		}
	}
}

func TestFeatureFaults(t *testing.T) {
	c := New(WithFeatures(0))
	dst := alloc(t, c, testPitch*testH)
	tiled := argb
	tiled.Tiled = true

	w := stream.NewWriter(stream.MinWords)
	_ = fill(c, dst, tiled, testPitch, 0xffffffff, fullClip(), encode.Box{X2: 4, Y2: 4})(w)
	f, err := c.Submit(w.Words())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(f); !errors.Is(err, ErrFault) {
		t.Errorf("tiled without tiling: err = %v, want ErrFault", err)
	}
	if _, err := c.Submit(w.Words()); !errors.Is(err, ErrFault) {
		t.Errorf("submit after fault: err = %v, want ErrFault", err)
	}
}

func TestOutOfBoundsFault(t *testing.T) {
	c := New()
	dst := alloc(t, c, testPitch*4)
	w := stream.NewWriter(stream.MinWords)
	_ = fill(c, dst, argb, testPitch, 0xffffffff, fullClip(), encode.Box{X2: testW, Y2: 8})(w)
	f, _ := c.Submit(w.Words())
	if err := c.Wait(f); !errors.Is(err, ErrFault) {
		t.Errorf("err = %v, want ErrFault", err)
	}
}

func TestCacheModel(t *testing.T) {
	c := New()
	b := alloc(t, c, testPitch*testH)

	// CPU write stays in the cache until cleaned.
	b.Map()[0] = 0xaa
	if b.Memory()[0] != 0 {
		t.Fatal("CPU write reached memory without a clean")
	}
	if err := b.Cache(conn.CacheClean); err != nil {
		t.Fatal(err)
	}
	if b.Memory()[0] != 0xaa {
		t.Fatal("clean did not write back")
	}

	// GPU write is invisible until invalidated.
	run(t, c, fill(c, b, argb, testPitch, 0xff445566, fullClip(), encode.Box{X2: 1, Y2: 1}))
	if px(b.Map(), 0, 0) == 0xff445566 {
		t.Fatal("GPU write visible through a stale CPU cache")
	}
	if err := b.Cache(conn.CacheInvalidate); err != nil {
		t.Fatal(err)
	}
	if got := px(b.Map(), 0, 0); got != 0xff445566 {
		t.Errorf("after invalidate = %#08x", got)
	}

	// Flush only writes back lines the CPU changed.
	run(t, c, fill(c, b, argb, testPitch, 0xff000001, fullClip(), encode.Box{X2: 1, Y2: 1}))
	b.Map()[testPitch*4] = 0x77
	if err := b.Cache(conn.CacheFlush); err != nil {
		t.Fatal(err)
	}
	if px(b.Map(), 0, 0) != 0xff000001 || b.Memory()[testPitch*4] != 0x77 {
		t.Error("flush lost GPU or CPU data")
	}
}

func TestFencesAndQueue(t *testing.T) {
	c := New()
	b := alloc(t, c, testPitch*testH)
	w := stream.NewWriter(stream.MinWords)
	_ = fill(c, b, argb, testPitch, 0xffffffff, fullClip(), encode.Box{X2: 1, Y2: 1})(w)

	f1, _ := c.Submit(w.Words())
	f2, _ := c.Submit(w.Words())
	if f2 <= f1 {
		t.Fatalf("fences not increasing: %d, %d", f1, f2)
	}
	if done, _ := c.Retired(f1); done {
		t.Fatal("retired before execution")
	}
	if c.Queued() != 2 {
		t.Fatalf("Queued() = %d", c.Queued())
	}
	if ok, err := c.Step(); !ok || err != nil {
		t.Fatalf("Step = %v, %v", ok, err)
	}
	if done, _ := c.Retired(f1); !done {
		t.Error("f1 not retired after Step")
	}
	if done, _ := c.Retired(f2); done {
		t.Error("f2 retired early")
	}
	if err := c.Wait(f2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Retired(f2 + 1); !errors.Is(err, conn.ErrBadFence) {
		t.Errorf("unknown fence: err = %v", err)
	}
	if _, err := c.Submit([]uint32{0xf8000000, 0}); !errors.Is(err, stream.ErrMalformed) {
		t.Errorf("malformed stream: err = %v", err)
	}
}

func TestSynchronous(t *testing.T) {
	c := New(WithSynchronous(true))
	b := alloc(t, c, testPitch*testH)
	w := stream.NewWriter(stream.MinWords)
	_ = fill(c, b, argb, testPitch, 0xffffffff, fullClip(), encode.Box{X2: 1, Y2: 1})(w)
	f, err := c.Submit(w.Words())
	if err != nil {
		t.Fatal(err)
	}
	if done, _ := c.Retired(f); !done {
		t.Error("synchronous submission not retired")
	}
}

func TestBuffers(t *testing.T) {
	c := New(WithMemoryLimit(8192))
	a := alloc(t, c, 4096)
	if _, err := c.Alloc(8192); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("over limit: err = %v", err)
	}

	name, err := a.Export()
	if err != nil {
		t.Fatal(err)
	}
	again, _ := a.Export()
	if name == 0 || again != name {
		t.Errorf("export names %d, %d", name, again)
	}
	if got, ok := c.Named(name); !ok || got != a {
		t.Error("Named did not resolve export")
	}

	user := make([]byte, 256)
	ib, err := c.Import(user)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ib.Export(); !errors.Is(err, conn.ErrNoExport) {
		t.Errorf("export of imported memory: err = %v", err)
	}
	if &ib.Map()[0] != &user[0] {
		t.Error("imported buffer does not map caller memory")
	}

	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if err := a.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("double release: err = %v", err)
	}
	if _, ok := c.Named(name); ok {
		t.Error("released buffer still named")
	}
	if c.Buffers() != 1 {
		t.Errorf("Buffers() = %d, want 1", c.Buffers())
	}
}

func TestRegistered(t *testing.T) {
	cn, err := conn.Open("emulator", conn.Options{Features: conn.FeaturePE20})
	if err != nil {
		t.Fatal(err)
	}
	if cn.Features() != conn.FeaturePE20 {
		t.Errorf("Features() = %v", cn.Features())
	}
	if err := cn.Close(); err != nil {
		t.Error(err)
	}
	if _, err := cn.Alloc(16); !errors.Is(err, conn.ErrClosed) {
		t.Errorf("alloc after close: err = %v", err)
	}
}

func TestOtherFormatsFill(t *testing.T) {
	c := New()
	dst := alloc(t, c, testPitch*testH)
	run(t, c, fill(c, dst, xrgb, testPitch, 0x80ff8040, fullClip(), encode.Box{X2: 1, Y2: 1}))
	if got := px(dst.Memory(), 0, 0); got != 0x00ff8040 {
		t.Errorf("x8r8g8b8 fill = %#08x, want %#08x", got, 0x00ff8040)
	}
}
