package blit

import "errors"

// Renderer runs each primitive on the engine and repeats it in software when
// the engine declines. It is what a display server installs as its drawing
// hooks.
//
// Like the Accelerator it wraps, a Renderer is NOT safe for concurrent use.
type Renderer struct {
	a     *Accelerator
	sw    Software
	stats Stats
}

// Stats counts how primitives were executed.
type Stats struct {
	Accelerated uint64
	Fallbacks   uint64

	// Reasons counts fallbacks per reason, keyed by the reason's message.
	Reasons map[string]uint64
}

// NewRenderer returns a renderer drawing through a.
func NewRenderer(a *Accelerator) *Renderer {
	return &Renderer{a: a, stats: Stats{Reasons: make(map[string]uint64)}}
}

// Accelerator returns the accelerator the renderer draws through.
func (r *Renderer) Accelerator() *Accelerator { return r.a }

// Stats returns a copy of the execution counters.
func (r *Renderer) Stats() Stats {
	s := r.stats
	s.Reasons = make(map[string]uint64, len(r.stats.Reasons))
	for k, v := range r.stats.Reasons {
		s.Reasons[k] = v
	}
	return s
}

// run tries accel and, if it reports a fallback, soft.
func (r *Renderer) run(accel, soft func() error) error {
	err := accel()
	var fe *FallbackError
	if !errors.As(err, &fe) {
		if err == nil {
			r.stats.Accelerated++
		}
		return err
	}
	r.stats.Fallbacks++
	r.stats.Reasons[fe.Reason.Error()]++
	Logger().Warn("blit: software fallback", "op", fe.Op, "reason", fe.Reason)
	return soft()
}

// FillSpans fills horizontal spans with the GC fill style.
func (r *Renderer) FillSpans(d Drawable, gc *GC, spans []Span) error {
	return r.run(
		func() error { return r.a.FillSpans(d, gc, spans) },
		func() error { return r.sw.FillSpans(d, gc, spans) })
}

// PolyFillRect fills rectangles with the GC fill style.
func (r *Renderer) PolyFillRect(d Drawable, gc *GC, rects []Rectangle) error {
	return r.run(
		func() error { return r.a.PolyFillRect(d, gc, rects) },
		func() error { return r.sw.PolyFillRect(d, gc, rects) })
}

// PolyFillRectSolid fills rectangles with the GC foreground.
func (r *Renderer) PolyFillRectSolid(d Drawable, gc *GC, rects []Rectangle) error {
	return r.run(
		func() error { return r.a.PolyFillRectSolid(d, gc, rects) },
		func() error { return r.sw.PolyFillRectSolid(d, gc, rects) })
}

// PolyFillRectTiled fills rectangles with the GC tile.
func (r *Renderer) PolyFillRectTiled(d Drawable, gc *GC, rects []Rectangle) error {
	return r.run(
		func() error { return r.a.PolyFillRectTiled(d, gc, rects) },
		func() error { return r.sw.PolyFillRectTiled(d, gc, rects) })
}

// PolyPoint draws single pixels in the GC foreground.
func (r *Renderer) PolyPoint(d Drawable, gc *GC, mode CoordMode, pts []Point) error {
	return r.run(
		func() error { return r.a.PolyPoint(d, gc, mode, pts) },
		func() error { return r.sw.PolyPoint(d, gc, mode, pts) })
}

// CopyArea copies an area between drawables.
func (r *Renderer) CopyArea(src, dst Drawable, gc *GC, srcX, srcY int16, width, height uint16, dstX, dstY int16) error {
	return r.run(
		func() error { return r.a.CopyArea(src, dst, gc, srcX, srcY, width, height, dstX, dstY) },
		func() error { return r.sw.CopyArea(src, dst, gc, srcX, srcY, width, height, dstX, dstY) })
}

// CopyNtoN copies boxes of dst from src at an offset of (dx, dy).
func (r *Renderer) CopyNtoN(src, dst Drawable, gc *GC, boxes []Box, dx, dy int16) error {
	return r.run(
		func() error { return r.a.CopyNtoN(src, dst, gc, boxes, dx, dy) },
		func() error { return r.sw.CopyNtoN(src, dst, gc, boxes, dx, dy) })
}

// PutImage draws a ZPixmap image at (x, y).
func (r *Renderer) PutImage(d Drawable, gc *GC, depth int, x, y int16, width, height uint16, data []byte, stride int) error {
	return r.run(
		func() error { return r.a.PutImage(d, gc, depth, x, y, width, height, data, stride) },
		func() error { return r.sw.PutImage(d, gc, depth, x, y, width, height, data, stride) })
}

// Composite blends src, optionally through mask, into dst with op.
func (r *Renderer) Composite(op Operator, src, mask, dst *Picture, xSrc, ySrc, xMask, yMask, xDst, yDst int16, width, height uint16) error {
	return r.run(
		func() error {
			return r.a.Composite(op, src, mask, dst, xSrc, ySrc, xMask, yMask, xDst, yDst, width, height)
		},
		func() error {
			return r.sw.Composite(op, src, mask, dst, xSrc, ySrc, xMask, yMask, xDst, yDst, width, height)
		})
}
