package blit

import (
	"cmp"
	"slices"

	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/encode"
)

// CopyArea copies a width x height area of src at (srcX, srcY) to dst at
// (dstX, dstY), applying the GC function.
func (a *Accelerator) CopyArea(src, dst Drawable, gc *GC, srcX, srcY int16, width, height uint16, dstX, dstY int16) error {
	box := Box{X1: dstX, Y1: dstY, X2: dstX + int16(width), Y2: dstY + int16(height)}
	return a.CopyNtoN(src, dst, gc, []Box{box}, srcX-dstX, srcY-dstY)
}

// CopyNtoN copies boxes of dst from src. Each destination pixel (x, y) takes
// the source pixel (x+dx, y+dy).
func (a *Accelerator) CopyNtoN(src, dst Drawable, gc *GC, boxes []Box, dx, dy int16) error {
	const op = "CopyNtoN"
	if err := a.ready(op); err != nil {
		return err
	}
	ds, err := a.target(dst)
	if err != nil {
		return err
	}
	ss, err := a.target(src)
	if err != nil {
		return err
	}
	if err := a.writable(op, ds); err != nil {
		return err
	}
	if err := srcValid(ss, a.features); err != nil {
		return fallback(op, err)
	}
	if ss.PictFormat.Depth() != ds.PictFormat.Depth() {
		return fallback(op, ErrDepth)
	}
	if !gc.planeMaskFull(ds.PictFormat.Depth()) {
		return fallback(op, ErrPlaneMask)
	}

	clip := gc.clipBoxes(dst.Bounds())
	boxes = clipList(boxes, clip)
	boxes = clipList(boxes, []Box{src.Bounds().Translate(-dx, -dy)})
	if len(boxes) == 0 {
		return nil
	}
	if ss == ds {
		orderForOverlap(boxes, dx, dy)
	}

	ext := extents(clip)
	so, do := src.Origin(), dst.Origin()
	rop := gc.Function.CopyRop()
	desc := encode.Op{
		Src: &encode.Source{
			Relative: true,
			Origin:   Point{X: dx + so.X - do.X, Y: dy + so.Y - do.Y},
		},
		Dst:   dest(dst),
		FgRop: rop,
		BgRop: rop,
		Clip:  &ext,
	}
	if err := a.submit(op, batch.Op{Dst: ds, Src: ss, Desc: desc, Boxes: boxes}); err != nil {
		return err
	}
	return a.finish(op)
}

// orderForOverlap sorts boxes so that a copy within one pixmap never reads
// a pixel an earlier box already overwrote: when the source lies above
// (dy < 0) the bottom boxes go first, when it lies to the left the right
// boxes go first.
func orderForOverlap(boxes []Box, dx, dy int16) {
	slices.SortStableFunc(boxes, func(p, q Box) int {
		if c := cmp.Compare(p.Y1, q.Y1); c != 0 {
			if dy < 0 {
				return -c
			}
			return c
		}
		c := cmp.Compare(p.X1, q.X1)
		if dx < 0 {
			return -c
		}
		return c
	})
}
