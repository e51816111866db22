package blit

import (
	"errors"
	"testing"

	"golang.org/x/image/math/f64"
)

// primitives is the method set shared by Accelerator and Software.
type primitives interface {
	FillSpans(d Drawable, gc *GC, spans []Span) error
	PolyFillRect(d Drawable, gc *GC, rects []Rectangle) error
	PolyFillRectSolid(d Drawable, gc *GC, rects []Rectangle) error
	PolyFillRectTiled(d Drawable, gc *GC, rects []Rectangle) error
	PolyPoint(d Drawable, gc *GC, mode CoordMode, pts []Point) error
	CopyArea(src, dst Drawable, gc *GC, srcX, srcY int16, width, height uint16, dstX, dstY int16) error
	CopyNtoN(src, dst Drawable, gc *GC, boxes []Box, dx, dy int16) error
	PutImage(d Drawable, gc *GC, depth int, x, y int16, width, height uint16, data []byte, stride int) error
	Composite(op Operator, src, mask, dst *Picture, xSrc, ySrc, xMask, yMask, xDst, yDst int16, width, height uint16) error
}

var (
	_ primitives = (*Accelerator)(nil)
	_ primitives = Software{}
	_ primitives = (*Renderer)(nil)
)

func gradient(x, y int) uint32 { return 0xff000000 | uint32(x*16)<<16 | uint32(y*16)<<8 | 0x40 }

func channelDiff(a, b uint32) uint32 {
	var d uint32
	for shift := uint(0); shift < 32; shift += 8 {
		x, y := a>>shift&0xff, b>>shift&0xff
		if x > y {
			d = max(d, x-y)
		} else {
			d = max(d, y-x)
		}
	}
	return d
}

// TestSoftwareMatchesEngine runs each scene once on the engine and once in
// software and compares every pixel.
func TestSoftwareMatchesEngine(t *testing.T) {
	tests := []struct {
		name      string
		tolerance uint32
		draw      func(t *testing.T, p primitives, a *Accelerator, dst *Pixmap) error
	}{
		{"solid xor clipped", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			gc := solidGC(0x00ffff00)
			gc.Function = GXxor
			gc.SetClipRectangles(1, 1, []Rectangle{{Width: 5, Height: 9}, {X: 7, Y: 2, Width: 3, Height: 3}})
			return p.PolyFillRectSolid(dst, gc, []Rectangle{{X: 2, Y: 0, Width: 12, Height: 6}})
		}},
		{"window spans", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			w := dst.Window(3, 2, 9, 9)
			return p.FillSpans(w, solidGC(0xff102030), []Span{{X: -2, Y: 0, Width: 5}, {X: 4, Y: 8, Width: 20}})
		}},
		{"tiled", 0, func(t *testing.T, p primitives, a *Accelerator, dst *Pixmap) error {
			tile := newTestPixmap(t, a, 3, 5, A8R8G8B8)
			setPixels(t, tile, func(x, y int) uint32 { return uint32(x<<4 | y) })
			gc := NewGC()
			gc.FillStyle = FillTiled
			gc.Tile = tile
			gc.TileOrigin = Point{X: -1, Y: 2}
			gc.Function = GXor
			return p.PolyFillRect(dst.Window(2, 2, 12, 12), gc, []Rectangle{{X: 1, Y: 1, Width: 10, Height: 7}})
		}},
		{"points", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			return p.PolyPoint(dst, solidGC(0xffffffff), CoordModePrevious, []Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 20, Y: 0}, {X: -7, Y: 5}})
		}},
		{"copy overlapping", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			return p.CopyArea(dst, dst, NewGC(), 0, 0, 12, 12, 3, 2)
		}},
		{"copy between windows", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			gc := NewGC()
			gc.Function = GXandInverted
			return p.CopyArea(dst.Window(8, 8, 8, 8), dst.Window(0, 4, 6, 6), gc, 1, 1, 6, 6, 0, 0)
		}},
		{"put image", 0, func(t *testing.T, p primitives, _ *Accelerator, dst *Pixmap) error {
			data := make([]byte, 5*4*3)
			for i := range data {
				data[i] = byte(i * 7)
			}
			return p.PutImage(dst, NewGC(), 32, 13, 1, 5, 3, data, 20)
		}},
		{"composite over", 2, func(t *testing.T, p primitives, a *Accelerator, dst *Pixmap) error {
			src := newTestPixmap(t, a, 6, 6, A8R8G8B8)
			setPixels(t, src, func(x, y int) uint32 { return uint32(0x20+x*0x20)<<24 | uint32(x*0x10)<<16 | uint32(y*4) })
			return p.Composite(OpOver, NewPicture(src), nil, NewPicture(dst), 0, 0, 0, 0, 4, 4, 8, 8)
		}},
		{"composite add", 2, func(t *testing.T, p primitives, a *Accelerator, dst *Pixmap) error {
			src := newTestPixmap(t, a, 6, 6, A8R8G8B8)
			setPixels(t, src, func(x, y int) uint32 { return 0x40102030 })
			return p.Composite(OpAdd, NewPicture(src), nil, NewPicture(dst), 1, 1, 0, 0, 0, 0, 6, 6)
		}},
		{"composite atop window", 2, func(t *testing.T, p primitives, a *Accelerator, dst *Pixmap) error {
			src := newTestPixmap(t, a, 6, 6, A8R8G8B8)
			setPixels(t, src, func(x, y int) uint32 { return 0x80402010 })
			return p.Composite(OpAtop, NewPicture(src), nil, NewPicture(dst.Window(5, 5, 10, 10)), 0, 0, 0, 0, 0, 0, 6, 6)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAccelerator(t)
			hw := newTestPixmap(t, a, 16, 16, A8R8G8B8)
			sw := newTestPixmap(t, a, 16, 16, A8R8G8B8)
			setPixels(t, hw, gradient)
			setPixels(t, sw, gradient)

			if err := tt.draw(t, a, a, hw); err != nil {
				t.Fatalf("engine: %v", err)
			}
			if err := tt.draw(t, Software{}, a, sw); err != nil {
				t.Fatalf("software: %v", err)
			}
			for y := 0; y < 16; y++ {
				for x := 0; x < 16; x++ {
					h, s := pixelAt(t, hw, x, y), pixelAt(t, sw, x, y)
					if channelDiff(h, s) > tt.tolerance {
						t.Errorf("(%d,%d): engine %#08x, software %#08x", x, y, h, s)
					}
				}
			}
		})
	}
}

func TestSoftwarePlaneMask(t *testing.T) {
	a, _ := newTestAccelerator(t)
	p := newTestPixmap(t, a, 4, 4, A8R8G8B8)
	setPixels(t, p, func(int, int) uint32 { return 0x12345678 })
	gc := solidGC(0xffffffff)
	gc.PlaneMask = 0x00ff00ff
	if err := (Software{}).PolyFillRectSolid(p, gc, []Rectangle{{Width: 4, Height: 4}}); err != nil {
		t.Fatal(err)
	}
	if got := pixelAt(t, p, 2, 2); got != 0x12ff56ff {
		t.Errorf("pixel = %#08x, want 0x12ff56ff", got)
	}
}

func TestSoftwareStipple(t *testing.T) {
	tests := []struct {
		style     FillStyle
		odd, even uint32
	}{
		{FillStippled, 1, 5},
		{FillOpaqueStippled, 9, 5},
	}
	for _, tt := range tests {
		t.Run(tt.style.String(), func(t *testing.T) {
			a, _ := newTestAccelerator(t)
			p := newTestPixmap(t, a, 6, 2, A8R8G8B8)
			setPixels(t, p, func(int, int) uint32 { return 1 })
			st := newTestPixmap(t, a, 2, 1, A8)
			setPixels(t, st, func(x, _ int) uint32 { return uint32(0xff * (1 - x)) })

			gc := solidGC(5)
			gc.Background = 9
			gc.FillStyle = tt.style
			gc.Stipple = st
			if err := (Software{}).PolyFillRect(p, gc, []Rectangle{{Width: 6, Height: 2}}); err != nil {
				t.Fatal(err)
			}
			for x := 0; x < 6; x++ {
				want := tt.even
				if x%2 == 1 {
					want = tt.odd
				}
				if got := pixelAt(t, p, x, 1); got != want {
					t.Errorf("x=%d: %d, want %d", x, got, want)
				}
			}
		})
	}
}

func TestSoftwareCopyConvertsFormats(t *testing.T) {
	a, _ := newTestAccelerator(t)
	src := newTestPixmap(t, a, 2, 2, X8R8G8B8)
	dst := newTestPixmap(t, a, 2, 2, X8B8G8R8)
	setPixels(t, src, func(int, int) uint32 { return 0x00112233 })
	if err := (Software{}).CopyArea(src, dst, NewGC(), 0, 0, 2, 2, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := pixelAt(t, dst, 1, 1) & 0x00ffffff; got != 0x00332211 {
		t.Errorf("pixel = %#08x, want 0x332211", got)
	}
}

func TestSoftwarePutImage(t *testing.T) {
	a, _ := newTestAccelerator(t)
	p := newTestPixmap(t, a, 4, 4, R5G6B5)
	data := []byte{0x1f, 0xf8, 0xe0, 0x07}
	if err := (Software{}).PutImage(p, NewGC(), 16, 1, 1, 2, 1, data, 4); err != nil {
		t.Fatal(err)
	}
	if got := pixelAt(t, p, 1, 1); got != 0xf81f {
		t.Errorf("(1,1) = %#04x, want 0xf81f", got)
	}
	if got := pixelAt(t, p, 2, 1); got != 0x07e0 {
		t.Errorf("(2,1) = %#04x, want 0x07e0", got)
	}

	tests := []struct {
		name  string
		depth int
		data  []byte
		want  error
	}{
		{"depth", 24, data, ErrImageDepth},
		{"short", 16, data[:3], nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (Software{}).PutImage(p, NewGC(), tt.depth, 0, 0, 2, 1, tt.data, 4)
			if err == nil {
				t.Fatal("PutImage succeeded")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSoftwareComposite(t *testing.T) {
	a, _ := newTestAccelerator(t)

	t.Run("repeat", func(t *testing.T) {
		src := newTestPixmap(t, a, 2, 1, A8R8G8B8)
		setPixels(t, src, func(x, _ int) uint32 { return uint32(0xff000001 + x) })
		dst := newTestPixmap(t, a, 6, 1, A8R8G8B8)
		sp := NewPicture(src)
		sp.Repeat = true
		if err := (Software{}).Composite(OpSrc, sp, nil, NewPicture(dst), 1, 0, 0, 0, 0, 0, 6, 1); err != nil {
			t.Fatal(err)
		}
		for x := 0; x < 6; x++ {
			if got, want := pixelAt(t, dst, x, 0), uint32(0xff000001+(x+1)%2); got != want {
				t.Errorf("x=%d: %#08x, want %#08x", x, got, want)
			}
		}
	})

	t.Run("mask", func(t *testing.T) {
		src := newTestPixmap(t, a, 1, 1, A8R8G8B8)
		setPixels(t, src, func(int, int) uint32 { return 0xff804020 })
		mask := newTestPixmap(t, a, 4, 4, A8)
		setPixels(t, mask, func(int, int) uint32 { return 0x80 })
		dst := newTestPixmap(t, a, 4, 4, A8R8G8B8)
		sp := NewPicture(src)
		sp.Repeat = true
		if err := (Software{}).Composite(OpSrc, sp, NewPicture(mask), NewPicture(dst), 0, 0, 0, 0, 0, 0, 4, 4); err != nil {
			t.Fatal(err)
		}
		if got := pixelAt(t, dst, 3, 3); got != 0x80402010 {
			t.Errorf("pixel = %#08x, want 0x80402010", got)
		}
	})

	t.Run("transform", func(t *testing.T) {
		src := newTestPixmap(t, a, 2, 2, A8R8G8B8)
		setPixels(t, src, func(x, y int) uint32 { return uint32(0xff000000 | y<<8 | x) })
		dst := newTestPixmap(t, a, 4, 4, A8R8G8B8)
		sp := NewPicture(src)
		sp.Transform = &f64.Aff3{0.5, 0, 0, 0, 0.5, 0}
		if err := (Software{}).Composite(OpSrc, sp, nil, NewPicture(dst), 0, 0, 0, 0, 0, 0, 4, 4); err != nil {
			t.Fatal(err)
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if got, want := pixelAt(t, dst, x, y), uint32(0xff000000|(y/2)<<8|x/2); got != want {
					t.Errorf("(%d,%d) = %#08x, want %#08x", x, y, got, want)
				}
			}
		}
	})

	t.Run("singular transform", func(t *testing.T) {
		src := newTestPixmap(t, a, 2, 2, A8R8G8B8)
		dst := newTestPixmap(t, a, 2, 2, A8R8G8B8)
		sp := NewPicture(src)
		sp.Transform = &f64.Aff3{0, 0, 0, 0, 0, 0}
		err := (Software{}).Composite(OpSrc, sp, nil, NewPicture(dst), 0, 0, 0, 0, 0, 0, 2, 2)
		if !errors.Is(err, ErrTransform) {
			t.Errorf("err = %v, want ErrTransform", err)
		}
	})

	t.Run("alpha map", func(t *testing.T) {
		src := newTestPixmap(t, a, 2, 2, A8R8G8B8)
		setPixels(t, src, func(int, int) uint32 { return 0xff112233 })
		am := newTestPixmap(t, a, 2, 2, A8)
		setPixels(t, am, func(x, _ int) uint32 { return uint32(x * 0x40) })
		dst := newTestPixmap(t, a, 2, 2, A8R8G8B8)
		sp := NewPicture(src)
		sp.AlphaMap = NewPicture(am)
		if err := (Software{}).Composite(OpSrc, sp, nil, NewPicture(dst), 0, 0, 0, 0, 0, 0, 2, 2); err != nil {
			t.Fatal(err)
		}
		if got := pixelAt(t, dst, 0, 0); got != 0x00112233 {
			t.Errorf("(0,0) = %#08x, want 0x00112233", got)
		}
		if got := pixelAt(t, dst, 1, 0); got != 0x40112233 {
			t.Errorf("(1,0) = %#08x, want 0x40112233", got)
		}
	})

	t.Run("alpha-less destination", func(t *testing.T) {
		src := newTestPixmap(t, a, 1, 1, A8R8G8B8)
		setPixels(t, src, func(int, int) uint32 { return 0x80800000 })
		dst := newTestPixmap(t, a, 1, 1, X8R8G8B8)
		if err := (Software{}).Composite(OpOver, NewPicture(src), nil, NewPicture(dst), 0, 0, 0, 0, 0, 0, 1, 1); err != nil {
			t.Fatal(err)
		}
		if got := pixelAt(t, dst, 0, 0); got != 0x00800000 {
			t.Errorf("pixel = %#08x, want 0x00800000", got)
		}
	})

	t.Run("operator", func(t *testing.T) {
		src := newTestPixmap(t, a, 1, 1, A8R8G8B8)
		err := (Software{}).Composite(Operator(99), NewPicture(src), nil, NewPicture(src), 0, 0, 0, 0, 0, 0, 1, 1)
		if !errors.Is(err, ErrOperator) {
			t.Errorf("err = %v, want ErrOperator", err)
		}
	})
}

func TestSoftwareDestroyed(t *testing.T) {
	a, _ := newTestAccelerator(t)
	p := newTestPixmap(t, a, 2, 2, A8R8G8B8)
	if err := p.Destroy(); err != nil {
		t.Fatal(err)
	}
	err := (Software{}).PolyFillRectSolid(p, solidGC(1), []Rectangle{{Width: 1, Height: 1}})
	if !errors.Is(err, ErrDestroyed) {
		t.Errorf("err = %v, want ErrDestroyed", err)
	}
}
