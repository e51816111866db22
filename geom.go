package blit

import "github.com/gogpu/blit/internal/encode"

// Box is a half-open rectangle [X1,X2)x[Y1,Y2) in drawable coordinates.
type Box = encode.Box

// Point is a position in drawable coordinates.
type Point = encode.Point

// Rectangle is an X protocol rectangle: an origin and a size.
type Rectangle struct {
	X, Y          int16
	Width, Height uint16
}

// Box returns the rectangle as a box.
func (r Rectangle) Box() Box {
	return Box{X1: r.X, Y1: r.Y, X2: r.X + int16(r.Width), Y2: r.Y + int16(r.Height)}
}

// Span is one horizontal run of pixels.
type Span struct {
	X, Y  int16
	Width uint16
}

// CoordMode selects how PolyPoint interprets its points.
type CoordMode uint8

const (
	// CoordModeOrigin means every point is relative to the drawable origin.
	CoordModeOrigin CoordMode = iota

	// CoordModePrevious means every point after the first is relative to the
	// previous one.
	CoordModePrevious
)

// clipList intersects every box with every clip box. Empty results are
// dropped.
func clipList(boxes, clip []Box) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		for _, c := range clip {
			if r, ok := b.Intersect(c); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// extents returns the bounding box of boxes.
func extents(boxes []Box) Box {
	if len(boxes) == 0 {
		return Box{}
	}
	e := boxes[0]
	for _, b := range boxes[1:] {
		e.X1, e.Y1 = min(e.X1, b.X1), min(e.Y1, b.Y1)
		e.X2, e.Y2 = max(e.X2, b.X2), max(e.Y2, b.Y2)
	}
	return e
}

func translate(boxes []Box, dx, dy int16) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = b.Translate(dx, dy)
	}
	return out
}
