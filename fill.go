package blit

import (
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/surface"
)

// fillTarget checks the destination of a fill and returns its surface.
func (a *Accelerator) fillTarget(op string, d Drawable, gc *GC) (*surface.Surface, error) {
	if err := a.ready(op); err != nil {
		return nil, err
	}
	s, err := a.target(d)
	if err != nil {
		return nil, err
	}
	if err := a.writable(op, s); err != nil {
		return nil, err
	}
	if !gc.planeMaskFull(s.PictFormat.Depth()) {
		return nil, fallback(op, ErrPlaneMask)
	}
	return s, nil
}

// FillSpans fills horizontal spans with the GC fill style.
func (a *Accelerator) FillSpans(d Drawable, gc *GC, spans []Span) error {
	boxes := make([]Box, 0, len(spans))
	for _, sp := range spans {
		boxes = append(boxes, Box{X1: sp.X, Y1: sp.Y, X2: sp.X + int16(sp.Width), Y2: sp.Y + 1})
	}
	return a.fillBoxes("FillSpans", d, gc, boxes)
}

// PolyFillRect fills rectangles with the GC fill style.
func (a *Accelerator) PolyFillRect(d Drawable, gc *GC, rects []Rectangle) error {
	return a.fillBoxes("PolyFillRect", d, gc, rectBoxes(rects))
}

// PolyFillRectSolid fills rectangles with the GC foreground.
func (a *Accelerator) PolyFillRectSolid(d Drawable, gc *GC, rects []Rectangle) error {
	return a.solidFill("PolyFillRectSolid", d, gc, gc.Foreground, rectBoxes(rects))
}

// PolyFillRectTiled fills rectangles with the GC tile.
func (a *Accelerator) PolyFillRectTiled(d Drawable, gc *GC, rects []Rectangle) error {
	return a.tiledFill("PolyFillRectTiled", d, gc, rectBoxes(rects))
}

// PolyPoint draws single pixels in the GC foreground.
func (a *Accelerator) PolyPoint(d Drawable, gc *GC, mode CoordMode, pts []Point) error {
	return a.solidFill("PolyPoint", d, gc, gc.Foreground, pointBoxes(mode, pts))
}

func (a *Accelerator) fillBoxes(op string, d Drawable, gc *GC, boxes []Box) error {
	switch gc.FillStyle {
	case FillSolid:
		return a.solidFill(op, d, gc, gc.Foreground, boxes)
	case FillTiled:
		return a.tiledFill(op, d, gc, boxes)
	default:
		if err := a.ready(op); err != nil {
			return err
		}
		return fallback(op, ErrFillStyle)
	}
}

// solidFill fills boxes with fg through the brush.
func (a *Accelerator) solidFill(op string, d Drawable, gc *GC, fg uint32, boxes []Box) error {
	s, err := a.fillTarget(op, d, gc)
	if err != nil {
		return err
	}
	clip := gc.clipBoxes(d.Bounds())
	boxes = clipList(boxes, clip)
	if len(boxes) == 0 {
		return nil
	}

	// The engine expands the brush colour from A8R8G8B8 into the target
	// format; unpacking through the same layout keeps raw pixel values.
	l, _ := s.Format.Layout()
	ext := extents(clip)
	rop := gc.Function.FillRop()
	desc := encode.Op{
		Dst:   dest(d),
		Brush: &encode.Brush{Color: l.Unpack(fg)},
		FgRop: rop,
		BgRop: rop,
		Clip:  &ext,
	}
	if err := a.submit(op, batch.Op{Dst: s, Desc: desc, Boxes: boxes}); err != nil {
		return err
	}
	return a.finish(op)
}

// tiledFill covers boxes with copies of the GC tile, one operation per tile
// cell. A 1x1 tile is a solid fill.
func (a *Accelerator) tiledFill(op string, d Drawable, gc *GC, boxes []Box) error {
	if gc.Tile == nil {
		if err := a.ready(op); err != nil {
			return err
		}
		return fallback(op, ErrFillStyle)
	}
	tile, err := a.target(gc.Tile)
	if err != nil {
		return err
	}
	s, err := a.fillTarget(op, d, gc)
	if err != nil {
		return err
	}
	if tile.PictFormat.Depth() != s.PictFormat.Depth() {
		return fallback(op, ErrDepth)
	}
	if tile.Width == 1 && tile.Height == 1 {
		v, err := gc.Tile.Pixel(0, 0)
		if err != nil {
			return fallback(op, err)
		}
		return a.solidFill(op, d, gc, v, boxes)
	}

	if err := srcValid(tile, a.features); err != nil {
		return fallback(op, err)
	}
	clip := gc.clipBoxes(d.Bounds())
	boxes = clipList(boxes, clip)
	if len(boxes) == 0 {
		return nil
	}

	ext := extents(clip)
	cover := extents(boxes)
	off := d.Origin()
	rop := gc.Function.CopyRop()
	tw, th := int(tile.Width), int(tile.Height)
	ox, oy := int(gc.TileOrigin.X), int(gc.TileOrigin.Y)
	startX := ox + floorDiv(int(cover.X1)-ox, tw)*tw
	startY := oy + floorDiv(int(cover.Y1)-oy, th)*th

	for cy := startY; cy < int(cover.Y2); cy += th {
		for cx := startX; cx < int(cover.X2); cx += tw {
			cell := Box{
				X1: int16(max(cx, int(cover.X1))), Y1: int16(max(cy, int(cover.Y1))),
				X2: int16(min(cx+tw, int(cover.X2))), Y2: int16(min(cy+th, int(cover.Y2))),
			}
			parts := clipList(boxes, []Box{cell})
			if len(parts) == 0 {
				continue
			}
			desc := encode.Op{
				Src: &encode.Source{
					Relative: true,
					Origin:   Point{X: int16(-cx - int(off.X)), Y: int16(-cy - int(off.Y))},
				},
				Dst:   dest(d),
				FgRop: rop,
				BgRop: rop,
				Clip:  &ext,
			}
			if err := a.submit(op, batch.Op{Dst: s, Src: tile, Desc: desc, Boxes: parts}); err != nil {
				return err
			}
		}
	}
	return a.finish(op)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func rectBoxes(rects []Rectangle) []Box {
	boxes := make([]Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, r.Box())
	}
	return boxes
}

func pointBoxes(mode CoordMode, pts []Point) []Box {
	boxes := make([]Box, 0, len(pts))
	var x, y int16
	for i, p := range pts {
		if mode == CoordModePrevious && i > 0 {
			x, y = x+p.X, y+p.Y
		} else {
			x, y = p.X, p.Y
		}
		boxes = append(boxes, Box{X1: x, Y1: y, X2: x + 1, Y2: y + 1})
	}
	return boxes
}
