package main

import (
	"fmt"

	"github.com/gogpu/blit"
	"github.com/gogpu/blit/internal/pixel"
)

type scene struct {
	a   *blit.Accelerator
	r   *blit.Renderer
	pf  blit.PictFormat
	dst *blit.Pixmap
	w   int
	h   int
}

// colour converts an a8r8g8b8 value to the scene's pixel format.
func (s *scene) colour(argb uint32) uint32 { return s.pf.Layout().Pack(argb) }

func (s *scene) draw() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"background", s.background},
		{"checker", s.checker},
		{"image", s.image},
		{"copies", s.copies},
		{"overlay", s.overlay},
		{"masked", s.masked},
		{"points", s.points},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return nil
}

// background fills horizontal bands of a vertical gradient.
func (s *scene) background() error {
	const bands = 32
	gc := blit.NewGC()
	for i := 0; i < bands; i++ {
		t := uint32(i * 255 / (bands - 1))
		gc.Foreground = s.colour(0xff000000 | (0x18+t/4)<<16 | (0x30+t/3)<<8 | (0x60 + t/3))
		y0 := i * s.h / bands
		y1 := (i + 1) * s.h / bands
		r := blit.Rectangle{Y: int16(y0), Width: uint16(s.w), Height: uint16(y1 - y0)}
		if err := s.r.PolyFillRectSolid(s.dst, gc, []blit.Rectangle{r}); err != nil {
			return err
		}
	}
	return nil
}

// checker tiles the top-left quarter with an 8x8 two-colour tile.
func (s *scene) checker() error {
	tile, err := s.a.CreatePixmap(8, 8, s.pf, blit.UsageDefault)
	if err != nil {
		return err
	}
	defer tile.Destroy()

	gc := blit.NewGC()
	gc.Foreground = s.colour(0xfff0f0f0)
	if err := s.r.PolyFillRectSolid(tile, gc, []blit.Rectangle{{Width: 8, Height: 8}}); err != nil {
		return err
	}
	gc.Foreground = s.colour(0xff303030)
	dark := []blit.Rectangle{{Width: 4, Height: 4}, {X: 4, Y: 4, Width: 4, Height: 4}}
	if err := s.r.PolyFillRectSolid(tile, gc, dark); err != nil {
		return err
	}

	gc = blit.NewGC()
	gc.FillStyle = blit.FillTiled
	gc.Tile = tile
	gc.TileOrigin = blit.Point{X: 2, Y: 2}
	area := blit.Rectangle{X: 8, Y: 8, Width: uint16(s.w / 2), Height: uint16(s.h / 2)}
	return s.r.PolyFillRectTiled(s.dst, gc, []blit.Rectangle{area})
}

// image uploads a generated colour ramp.
func (s *scene) image() error {
	const size = 48
	cpp := s.pf.BitsPerPixel() / 8
	stride := size * cpp
	data := make([]byte, stride*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			argb := 0xff000000 | uint32(x*255/size)<<16 | uint32(y*255/size)<<8 | 0x80
			pixel.Store(data, y*stride+x*cpp, cpp, s.colour(argb))
		}
	}
	gc := blit.NewGC()
	x, y := int16(s.w-size-16), int16(16)
	return s.r.PutImage(s.dst, gc, s.pf.Depth(), x, y, size, size, data, stride)
}

// copies duplicates the uploaded image and scrolls a strip over itself.
func (s *scene) copies() error {
	gc := blit.NewGC()
	sx, sy := int16(s.w-64), int16(16)
	if err := s.r.CopyArea(s.dst, s.dst, gc, sx, sy, 48, 48, sx, sy+56); err != nil {
		return err
	}
	gc.Function = blit.GXxor
	if err := s.r.CopyArea(s.dst, s.dst, gc, sx, sy, 48, 48, sx-56, sy); err != nil {
		return err
	}
	gc.Function = blit.GXcopy
	strip := s.h / 4
	return s.r.CopyArea(s.dst, s.dst, gc, 0, int16(s.h-strip), uint16(s.w/2), uint16(strip), 8, int16(s.h-strip-4))
}

// overlay blends a translucent panel and a repeating stripe over the scene.
func (s *scene) overlay() error {
	panel, err := s.a.CreatePixmap(uint16(s.w/3), uint16(s.h/3), blit.A8R8G8B8, blit.UsageDefault)
	if err != nil {
		return err
	}
	defer panel.Destroy()

	gc := blit.NewGC()
	gc.Foreground = pixel.Premultiply(0xa0e08020, 0xa0)
	full := []blit.Rectangle{{Width: uint16(panel.Width()), Height: uint16(panel.Height())}}
	if err := s.r.PolyFillRectSolid(panel, gc, full); err != nil {
		return err
	}
	dst := blit.NewPicture(s.dst)
	x, y := int16(s.w/3), int16(s.h/3)
	if err := s.r.Composite(blit.OpOver, blit.NewPicture(panel), nil, dst,
		0, 0, 0, 0, x, y, uint16(panel.Width()), uint16(panel.Height())); err != nil {
		return err
	}

	// A repeating source has no engine path and is drawn in software.
	stripe := blit.NewPicture(panel.Window(0, 0, 4, 4))
	stripe.Repeat = true
	return s.r.Composite(blit.OpAdd, stripe, nil, dst, 0, 0, 0, 0, 0, int16(s.h-12), uint16(s.w), 8)
}

// masked draws through a plane mask and a stipple.
func (s *scene) masked() error {
	gc := blit.NewGC()
	gc.Foreground = s.colour(0xffffffff)
	gc.PlaneMask = s.colour(0xff00ff00)
	r := blit.Rectangle{X: int16(s.w / 8), Y: int16(s.h * 5 / 8), Width: uint16(s.w / 4), Height: uint16(s.h / 8)}
	if err := s.r.PolyFillRect(s.dst, gc, []blit.Rectangle{r}); err != nil {
		return err
	}

	stipple, err := s.a.CreatePixmap(4, 4, blit.A8, blit.UsageDefault)
	if err != nil {
		return err
	}
	defer stipple.Destroy()
	on := blit.NewGC()
	on.Foreground = 0xff
	if err := s.r.PolyFillRectSolid(stipple, on, []blit.Rectangle{{Width: 2, Height: 2}, {X: 2, Y: 2, Width: 2, Height: 2}}); err != nil {
		return err
	}
	gc = blit.NewGC()
	gc.FillStyle = blit.FillStippled
	gc.Stipple = stipple
	gc.Foreground = s.colour(0xff10c040)
	r.X += int16(s.w / 2)
	return s.r.PolyFillRect(s.dst, gc, []blit.Rectangle{r})
}

// points plots a diagonal through a clipped window.
func (s *scene) points() error {
	win := s.dst.Window(int16(s.w/2), int16(s.h/2), uint16(s.w/2), uint16(s.h/2))
	gc := blit.NewGC()
	gc.Foreground = s.colour(0xffff2040)
	gc.SetClipRectangles(0, 0, []blit.Rectangle{{Width: uint16(s.w / 4), Height: uint16(s.h / 4)}})
	pts := make([]blit.Point, 0, s.w/2)
	pts = append(pts, blit.Point{})
	for i := 1; i < s.w/2; i++ {
		pts = append(pts, blit.Point{X: 1, Y: 1})
	}
	return s.r.PolyPoint(win, gc, blit.CoordModePrevious, pts)
}
