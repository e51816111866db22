package blit

import (
	"fmt"

	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/surface"
)

// imageRows copies a width x height image with the given stride into mem
// with pitch.
func imageRows(mem []byte, pitch int, data []byte, stride, rowBytes, height int) error {
	if stride < rowBytes || len(data) < stride*(height-1)+rowBytes {
		return fmt.Errorf("blit: image data of %d bytes too short for %d rows of %d", len(data), height, rowBytes)
	}
	for y := 0; y < height; y++ {
		copy(mem[y*pitch:y*pitch+rowBytes], data[y*stride:y*stride+rowBytes])
	}
	return nil
}

// PutImage draws a ZPixmap image of the drawable's depth at (x, y). Rows are
// stride bytes apart and hold pixels in the drawable's format. The image is
// staged in a temporary GPU buffer released once the copy retires.
func (a *Accelerator) PutImage(d Drawable, gc *GC, depth int, x, y int16, width, height uint16, data []byte, stride int) error {
	const op = "PutImage"
	if err := a.ready(op); err != nil {
		return err
	}
	s, err := a.target(d)
	if err != nil {
		return err
	}
	if depth != s.PictFormat.Depth() {
		return fmt.Errorf("%w: image depth %d, drawable depth %d", ErrImageDepth, depth, s.PictFormat.Depth())
	}
	if width == 0 || height == 0 {
		return nil
	}
	if err := a.writable(op, s); err != nil {
		return err
	}
	if !gc.planeMaskFull(depth) {
		return fallback(op, ErrPlaneMask)
	}

	clip := gc.clipBoxes(d.Bounds())
	boxes := clipList([]Box{{X1: x, Y1: y, X2: x + int16(width), Y2: y + int16(height)}}, clip)
	if len(boxes) == 0 {
		return nil
	}

	f := s.Format
	f.Tiled = false
	tmp := surface.New(width, height, s.PictFormat, f)
	bo, err := a.conn.Alloc(tmp.Size())
	if err != nil {
		return fallback(op, err)
	}
	rowBytes := int(width) * f.Bytes()
	if err := imageRows(bo.Map(), int(tmp.Pitch), data, stride, rowBytes, int(height)); err != nil {
		_ = bo.Release()
		return err
	}
	tmp.BO = bo
	tmp.Owner = surface.CPU
	tmp.State |= surface.CPUDirty

	ext := extents(clip)
	off := d.Origin()
	rop := gc.Function.CopyRop()
	desc := encode.Op{
		Src: &encode.Source{
			Relative: true,
			Origin:   Point{X: -x - off.X, Y: -y - off.Y},
		},
		Dst:   dest(d),
		FgRop: rop,
		BgRop: rop,
		Clip:  &ext,
	}
	err = a.submit(op, batch.Op{Dst: s, Src: tmp, Desc: desc, Boxes: boxes})
	if err == nil {
		err = a.finish(op)
	}
	a.sched.Forget(tmp)
	a.sched.Defer(func() {
		if rerr := bo.Release(); rerr != nil {
			Logger().Warn("blit: release staging buffer", "err", rerr)
		}
	})
	return err
}
