package blit

import "fmt"

// Function is an X graphics function: how source and destination bits
// combine.
type Function uint8

// Graphics functions, in X protocol order.
const (
	GXclear Function = iota
	GXand
	GXandReverse
	GXcopy
	GXandInverted
	GXnoop
	GXxor
	GXor
	GXnor
	GXequiv
	GXinvert
	GXorReverse
	GXcopyInverted
	GXorInverted
	GXnand
	GXset
)

var functionNames = [16]string{
	"clear", "and", "andReverse", "copy", "andInverted", "noop", "xor", "or",
	"nor", "equiv", "invert", "orReverse", "copyInverted", "orInverted", "nand", "set",
}

func (f Function) String() string {
	if int(f) < len(functionNames) {
		return functionNames[f]
	}
	return fmt.Sprintf("Function(%d)", uint8(f))
}

// Ternary raster operations for each function with the source operand
// (0xcc) and with the pattern operand (0xf0) against the destination (0xaa).
var (
	copyRops = [16]uint8{
		0x00, 0x88, 0x44, 0xcc, 0x22, 0xaa, 0x66, 0xee,
		0x11, 0x99, 0x55, 0xdd, 0x33, 0xbb, 0x77, 0xff,
	}
	fillRops = [16]uint8{
		0x00, 0xa0, 0x50, 0xf0, 0x0a, 0xaa, 0x5a, 0xfa,
		0x05, 0xa5, 0x55, 0xf5, 0x0f, 0xaf, 0x5f, 0xff,
	}
)

// CopyRop returns the raster operation applying f with a source surface.
func (f Function) CopyRop() uint8 { return copyRops[f&0xf] }

// FillRop returns the raster operation applying f with a solid pattern.
func (f Function) FillRop() uint8 { return fillRops[f&0xf] }

// FillStyle selects how fills are coloured.
type FillStyle uint8

// Fill styles.
const (
	FillSolid FillStyle = iota
	FillTiled
	FillStippled
	FillOpaqueStippled
)

func (s FillStyle) String() string {
	switch s {
	case FillSolid:
		return "solid"
	case FillTiled:
		return "tiled"
	case FillStippled:
		return "stippled"
	case FillOpaqueStippled:
		return "opaque-stippled"
	}
	return fmt.Sprintf("FillStyle(%d)", uint8(s))
}

// GC is a graphics context.
//
// Foreground and Background are pixel values in the destination format.
// Clip, when non-nil, lists the boxes drawing is restricted to, in drawable
// coordinates; an empty non-nil list clips everything.
type GC struct {
	Function   Function
	PlaneMask  uint32
	Foreground uint32
	Background uint32

	FillStyle FillStyle
	Tile      *Pixmap
	// Stipple is an A8 pixmap; non-zero pixels are set bits.
	Stipple    *Pixmap
	TileOrigin Point

	Clip []Box
}

// NewGC returns a GC with the X defaults: GXcopy, all planes, solid fill
// and no clip.
func NewGC() *GC {
	return &GC{
		Function:   GXcopy,
		PlaneMask:  ^uint32(0),
		Foreground: 0,
		Background: 1,
		FillStyle:  FillSolid,
	}
}

// SetClipRectangles restricts drawing to rects translated by the clip
// origin.
func (gc *GC) SetClipRectangles(xOrigin, yOrigin int16, rects []Rectangle) {
	gc.Clip = make([]Box, 0, len(rects))
	for _, r := range rects {
		b := r.Box().Translate(xOrigin, yOrigin)
		if !b.Empty() {
			gc.Clip = append(gc.Clip, b)
		}
	}
}

// ClearClip removes the clip.
func (gc *GC) ClearClip() { gc.Clip = nil }

func depthMask(depth int) uint32 {
	if depth >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<depth - 1
}

// planeMaskFull reports whether the plane mask covers every bit of a
// drawable of the given depth.
func (gc *GC) planeMaskFull(depth int) bool {
	m := depthMask(depth)
	return gc.PlaneMask&m == m
}

// clipBoxes returns the clip boxes of gc within bounds.
func (gc *GC) clipBoxes(bounds Box) []Box {
	if gc == nil || gc.Clip == nil {
		return []Box{bounds}
	}
	return clipList(gc.Clip, []Box{bounds})
}
