// Package format maps logical pixmap formats onto 2D engine format codes.
package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
)

// ErrUnsupported is returned when a logical format has no engine encoding.
var ErrUnsupported = errors.New("format: no engine equivalent")

// PictFormat is a logical pixel format as named by the window system.
type PictFormat uint32

// Logical formats.
const (
	Unknown PictFormat = iota
	A8R8G8B8
	X8R8G8B8
	A8B8G8R8
	X8B8G8R8
	B8G8R8A8
	B8G8R8X8
	R8G8B8A8
	R8G8B8X8
	R5G6B5
	B5G6R5
	A1R5G5B5
	X1R5G5B5
	A1B5G5R5
	X1B5G5R5
	A4R4G4B4
	X4R4G4B4
	A4B4G4R4
	X4B4G4R4
	A8
	// Formats with no direct engine equivalent.
	R8G8B8
	A2R10G10B10
	C8
)

// Format is the engine-side encoding of a surface's pixels.
type Format struct {
	Code    uint32
	Swizzle uint32
	Tiled   bool
}

// Layout returns the pixel layout of the engine format.
func (f Format) Layout() (pixel.Layout, bool) {
	return pixel.EngineLayout(f.Code, f.Swizzle)
}

// Bytes returns the bytes per pixel, or 0 for unaddressable formats.
func (f Format) Bytes() int {
	l, ok := f.Layout()
	if !ok {
		return 0
	}
	return l.Bytes
}

func (f Format) String() string {
	s := fmt.Sprintf("fmt%d/swz%d", f.Code, f.Swizzle)
	if f.Tiled {
		s += "/tiled"
	}
	return s
}

type info struct {
	name   string
	bpp    int
	depth  int
	engine Format
	direct bool
	layout pixel.Layout
}

func engine(code, swizzle uint32) Format { return Format{Code: code, Swizzle: swizzle} }

var table = map[PictFormat]info{
	A8R8G8B8: {name: "a8r8g8b8", bpp: 32, depth: 32, engine: engine(regs.FormatA8R8G8B8, regs.SwizzleARGB), direct: true},
	X8R8G8B8: {name: "x8r8g8b8", bpp: 32, depth: 24, engine: engine(regs.FormatX8R8G8B8, regs.SwizzleARGB), direct: true},
	A8B8G8R8: {name: "a8b8g8r8", bpp: 32, depth: 32, engine: engine(regs.FormatA8R8G8B8, regs.SwizzleABGR), direct: true},
	X8B8G8R8: {name: "x8b8g8r8", bpp: 32, depth: 24, engine: engine(regs.FormatX8R8G8B8, regs.SwizzleABGR), direct: true},
	B8G8R8A8: {name: "b8g8r8a8", bpp: 32, depth: 32, engine: engine(regs.FormatA8R8G8B8, regs.SwizzleBGRA), direct: true},
	B8G8R8X8: {name: "b8g8r8x8", bpp: 32, depth: 24, engine: engine(regs.FormatX8R8G8B8, regs.SwizzleBGRA), direct: true},
	R8G8B8A8: {name: "r8g8b8a8", bpp: 32, depth: 32, engine: engine(regs.FormatA8R8G8B8, regs.SwizzleRGBA), direct: true},
	R8G8B8X8: {name: "r8g8b8x8", bpp: 32, depth: 24, engine: engine(regs.FormatX8R8G8B8, regs.SwizzleRGBA), direct: true},
	R5G6B5:   {name: "r5g6b5", bpp: 16, depth: 16, engine: engine(regs.FormatR5G6B5, regs.SwizzleARGB), direct: true},
	B5G6R5:   {name: "b5g6r5", bpp: 16, depth: 16, engine: engine(regs.FormatR5G6B5, regs.SwizzleABGR), direct: true},
	A1R5G5B5: {name: "a1r5g5b5", bpp: 16, depth: 16, engine: engine(regs.FormatA1R5G5B5, regs.SwizzleARGB), direct: true},
	X1R5G5B5: {name: "x1r5g5b5", bpp: 16, depth: 15, engine: engine(regs.FormatX1R5G5B5, regs.SwizzleARGB), direct: true},
	A1B5G5R5: {name: "a1b5g5r5", bpp: 16, depth: 16, engine: engine(regs.FormatA1R5G5B5, regs.SwizzleABGR), direct: true},
	X1B5G5R5: {name: "x1b5g5r5", bpp: 16, depth: 15, engine: engine(regs.FormatX1R5G5B5, regs.SwizzleABGR), direct: true},
	A4R4G4B4: {name: "a4r4g4b4", bpp: 16, depth: 16, engine: engine(regs.FormatA4R4G4B4, regs.SwizzleARGB), direct: true},
	X4R4G4B4: {name: "x4r4g4b4", bpp: 16, depth: 12, engine: engine(regs.FormatX4R4G4B4, regs.SwizzleARGB), direct: true},
	A4B4G4R4: {name: "a4b4g4r4", bpp: 16, depth: 16, engine: engine(regs.FormatA4R4G4B4, regs.SwizzleABGR), direct: true},
	X4B4G4R4: {name: "x4b4g4r4", bpp: 16, depth: 12, engine: engine(regs.FormatX4R4G4B4, regs.SwizzleABGR), direct: true},
	A8:       {name: "a8", bpp: 8, depth: 8, engine: engine(regs.FormatA8, regs.SwizzleARGB), direct: true},

	R8G8B8: {name: "r8g8b8", bpp: 24, depth: 24, layout: pixel.Layout{
		Bytes: 3, R: pixel.Channel{Shift: 16, Width: 8}, G: pixel.Channel{Shift: 8, Width: 8}, B: pixel.Channel{Width: 8},
	}},
	A2R10G10B10: {name: "a2r10g10b10", bpp: 32, depth: 32, layout: pixel.Layout{
		Bytes: 4, A: pixel.Channel{Shift: 30, Width: 2}, R: pixel.Channel{Shift: 22, Width: 8},
		G: pixel.Channel{Shift: 12, Width: 8}, B: pixel.Channel{Shift: 2, Width: 8},
	}},
	C8: {name: "c8", bpp: 8, depth: 8, layout: pixel.Layout{
		Bytes: 1, B: pixel.Channel{Width: 8},
	}},
}

func init() {
	for k, v := range table {
		if v.direct {
			v.layout, _ = v.engine.Layout()
			table[k] = v
		}
	}
}

func (f PictFormat) String() string {
	if i, ok := table[f]; ok {
		return i.name
	}
	return fmt.Sprintf("PictFormat(%d)", uint32(f))
}

// BitsPerPixel returns the storage size of one pixel in bits.
func (f PictFormat) BitsPerPixel() int { return table[f].bpp }

// Depth returns the number of significant bits per pixel.
func (f PictFormat) Depth() int { return table[f].depth }

// Layout returns the channel layout used by software conversions.
// Wide channels of formats without a direct encoding are approximated.
func (f PictFormat) Layout() pixel.Layout { return table[f].layout }

// HasAlpha reports whether the format stores alpha.
func (f PictFormat) HasAlpha() bool { return table[f].layout.HasAlpha() }

// Lookup returns the engine format for a logical format. Without force only
// formats with a direct engine equivalent succeed. With force, any format
// whose pixel size matches an engine format is accepted and treated as raw
// bits, which is exact for copies and raster ops between surfaces sharing
// the same logical format but wrong for blending.
func Lookup(f PictFormat, force bool) (Format, error) {
	i, ok := table[f]
	if !ok {
		return Format{}, fmt.Errorf("%w: %v", ErrUnsupported, f)
	}
	if i.direct {
		return i.engine, nil
	}
	if force {
		switch i.bpp {
		case 32:
			return engine(regs.FormatA8R8G8B8, regs.SwizzleARGB), nil
		case 16:
			return engine(regs.FormatR5G6B5, regs.SwizzleARGB), nil
		case 8:
			return engine(regs.FormatIndex8, regs.SwizzleARGB), nil
		}
	}
	return Format{}, fmt.Errorf("%w: %v", ErrUnsupported, f)
}

// Parse resolves a format name such as "a8r8g8b8".
func Parse(name string) (PictFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, v := range table {
		if v.name == name {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("format: unknown format %q", name)
}

// ForDepth returns the default logical format for a drawable depth.
func ForDepth(depth int) (PictFormat, bool) {
	switch depth {
	case 32:
		return A8R8G8B8, true
	case 24:
		return X8R8G8B8, true
	case 16:
		return R5G6B5, true
	case 15:
		return X1R5G5B5, true
	case 8:
		return A8, true
	}
	return Unknown, false
}

// FromTextureFormat maps a WebGPU texture format onto a logical format.
func FromTextureFormat(tf gputypes.TextureFormat) (PictFormat, bool) {
	switch tf {
	case gputypes.TextureFormatBGRA8Unorm:
		return A8R8G8B8, true
	case gputypes.TextureFormatRGBA8Unorm:
		return A8B8G8R8, true
	case gputypes.TextureFormatR8Unorm:
		return A8, true
	}
	return Unknown, false
}

// TextureFormat returns the WebGPU texture format with the same memory
// layout, or gputypes.TextureFormatUndefined.
func (f PictFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case A8R8G8B8:
		return gputypes.TextureFormatBGRA8Unorm
	case A8B8G8R8:
		return gputypes.TextureFormatRGBA8Unorm
	case A8:
		return gputypes.TextureFormatR8Unorm
	}
	return gputypes.TextureFormatUndefined
}

// SrcValid reports whether the engine can read the format. A8 sources need
// the PE 2.0 pixel engine; tiled sources need tiling support.
func SrcValid(f Format, pe20, tiling bool) error {
	if f.Bytes() == 0 {
		return fmt.Errorf("%w: source %v", ErrUnsupported, f)
	}
	if f.Code == regs.FormatA8 && !pe20 {
		return fmt.Errorf("%w: A8 source needs PE 2.0", ErrUnsupported)
	}
	if f.Tiled && !tiling {
		return fmt.Errorf("%w: tiled source", ErrUnsupported)
	}
	return nil
}

// DstValid reports whether the engine can write the format.
func DstValid(f Format, a8Target, tiling bool) error {
	switch f.Code {
	case regs.FormatYUY2, regs.FormatUYVY, regs.FormatYV12, regs.FormatNV12, regs.FormatMonochrome:
		return fmt.Errorf("%w: destination %v", ErrUnsupported, f)
	case regs.FormatA8:
		if !a8Target {
			return fmt.Errorf("%w: A8 target", ErrUnsupported)
		}
	}
	if f.Bytes() == 0 {
		return fmt.Errorf("%w: destination %v", ErrUnsupported, f)
	}
	if f.Tiled && !tiling {
		return fmt.Errorf("%w: tiled destination", ErrUnsupported)
	}
	return nil
}
