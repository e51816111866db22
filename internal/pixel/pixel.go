// Package pixel holds pixel-level helpers shared by the engine model and the
// software fallback: channel layouts, ARGB8888 conversion, tiled addressing,
// ternary raster operations and engine blend factors.
package pixel

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"

	"github.com/gogpu/blit/internal/regs"
)

// AlignUp rounds v up to a multiple of a. a must be a power of two.
func AlignUp[T constraints.Unsigned](v, a T) T {
	return (v + a - 1) &^ (a - 1)
}

// Channel is one colour channel inside a packed pixel.
type Channel struct {
	Shift uint8
	Width uint8
}

func (c Channel) extract(v uint32) uint32 {
	if c.Width == 0 {
		return 0
	}
	m := uint32(1)<<c.Width - 1
	x := (v >> c.Shift) & m
	if c.Width == 8 {
		return x
	}
	return (x*255 + m/2) / m
}

func (c Channel) insert(x8 uint32) uint32 {
	if c.Width == 0 {
		return 0
	}
	return (x8 >> (8 - c.Width)) << c.Shift
}

// Layout describes where each channel lives inside a packed pixel.
// A zero-width alpha channel means the format carries no alpha.
type Layout struct {
	Bytes      int
	A, R, G, B Channel
}

// HasAlpha reports whether the layout stores alpha.
func (l Layout) HasAlpha() bool { return l.A.Width != 0 }

// Unpack converts a packed pixel to A8R8G8B8. Formats without alpha unpack
// as opaque.
func (l Layout) Unpack(v uint32) uint32 {
	a := uint32(0xff)
	if l.HasAlpha() {
		a = l.A.extract(v)
	}
	return a<<24 | l.R.extract(v)<<16 | l.G.extract(v)<<8 | l.B.extract(v)
}

// Pack converts an A8R8G8B8 value to the layout.
func (l Layout) Pack(argb uint32) uint32 {
	return l.A.insert(argb>>24) |
		l.R.insert((argb>>16)&0xff) |
		l.G.insert((argb>>8)&0xff) |
		l.B.insert(argb&0xff)
}

// channel order from most to least significant bits, per swizzle.
var swizzleOrder = [4][4]byte{
	regs.SwizzleARGB: {'a', 'r', 'g', 'b'},
	regs.SwizzleRGBA: {'r', 'g', 'b', 'a'},
	regs.SwizzleABGR: {'a', 'b', 'g', 'r'},
	regs.SwizzleBGRA: {'b', 'g', 'r', 'a'},
}

// channel widths (a, r, g, b) per engine format; x formats carry padding in
// the alpha position.
type widths struct {
	bytes      int
	a, r, g, b uint8
	pad        uint8
}

var engineWidths = map[uint32]widths{
	regs.FormatX4R4G4B4: {bytes: 2, r: 4, g: 4, b: 4, pad: 4},
	regs.FormatA4R4G4B4: {bytes: 2, a: 4, r: 4, g: 4, b: 4},
	regs.FormatX1R5G5B5: {bytes: 2, r: 5, g: 5, b: 5, pad: 1},
	regs.FormatA1R5G5B5: {bytes: 2, a: 1, r: 5, g: 5, b: 5},
	regs.FormatR5G6B5:   {bytes: 2, r: 5, g: 6, b: 5},
	regs.FormatX8R8G8B8: {bytes: 4, r: 8, g: 8, b: 8, pad: 8},
	regs.FormatA8R8G8B8: {bytes: 4, a: 8, r: 8, g: 8, b: 8},
	regs.FormatA8:       {bytes: 1, a: 8},
	regs.FormatIndex8:   {bytes: 1, b: 8},
}

// EngineLayout returns the layout of an engine format code with the given
// swizzle. ok is false for formats the model does not address per pixel
// (planar YUV, monochrome).
func EngineLayout(code, swizzle uint32) (l Layout, ok bool) {
	w, ok := engineWidths[code]
	if !ok || swizzle > regs.SwizzleBGRA {
		return Layout{}, false
	}
	l.Bytes = w.bytes
	shift := uint8(w.bytes * 8)
	for _, ch := range swizzleOrder[swizzle] {
		var width uint8
		switch ch {
		case 'a':
			width = w.a + w.pad
		case 'r':
			width = w.r
		case 'g':
			width = w.g
		case 'b':
			width = w.b
		}
		shift -= width
		c := Channel{Shift: shift, Width: width}
		switch ch {
		case 'a':
			if w.a != 0 {
				l.A = Channel{Shift: shift, Width: w.a}
			}
		case 'r':
			l.R = c
		case 'g':
			l.G = c
		case 'b':
			l.B = c
		}
	}
	return l, true
}

// Offset returns the byte offset of pixel (x, y) in a surface with the given
// pitch and bytes per pixel. Tiled surfaces store 4x4 pixel tiles, each tile
// row spanning four scanlines of pitch bytes.
func Offset(x, y, pitch, cpp int, tiled bool) int {
	if !tiled {
		return y*pitch + x*cpp
	}
	return (y>>2)*pitch*4 + (x>>2)*16*cpp + ((y&3)*4+(x&3))*cpp
}

// Load reads a little-endian pixel of cpp bytes.
func Load(mem []byte, off, cpp int) uint32 {
	switch cpp {
	case 1:
		return uint32(mem[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(mem[off:]))
	default:
		return binary.LittleEndian.Uint32(mem[off:])
	}
}

// Store writes a little-endian pixel of cpp bytes.
func Store(mem []byte, off, cpp int, v uint32) {
	switch cpp {
	case 1:
		mem[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(mem[off:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(mem[off:], v)
	}
}

// Rop3 evaluates a ternary raster operation bitwise over pattern p, source s
// and destination d. Bit k of rop gives the result for the minterm
// k = P<<2 | S<<1 | D.
func Rop3(rop uint8, p, s, d uint32) uint32 {
	switch rop {
	case 0xcc:
		return s
	case 0xf0:
		return p
	case 0xaa:
		return d
	}
	var out uint32
	for k := uint(0); k < 8; k++ {
		if rop>>k&1 == 0 {
			continue
		}
		term := ^uint32(0)
		if k&4 != 0 {
			term &= p
		} else {
			term &= ^p
		}
		if k&2 != 0 {
			term &= s
		} else {
			term &= ^s
		}
		if k&1 != 0 {
			term &= d
		} else {
			term &= ^d
		}
		out |= term
	}
	return out
}

// Factor returns the 8-bit blend factor for an engine blending mode given
// the alpha it refers to: destination alpha for the source factor and
// source alpha for the destination factor.
func Factor(mode uint32, alpha uint32) uint32 {
	switch mode {
	case regs.BlendZero:
		return 0
	case regs.BlendOne:
		return 0xff
	case regs.BlendNormal:
		return alpha
	case regs.BlendInversed:
		return 0xff - alpha
	default:
		return 0xff
	}
}

// Blend combines premultiplied A8R8G8B8 source and destination values with
// the given per-side factors: out = s*fs + d*fd, saturated.
func Blend(s, d, fs, fd uint32) uint32 {
	var out uint32
	for shift := uint(0); shift < 32; shift += 8 {
		sc := (s >> shift) & 0xff
		dc := (d >> shift) & 0xff
		v := (sc*fs + dc*fd + 127) / 255
		if v > 0xff {
			v = 0xff
		}
		out |= v << shift
	}
	return out
}

// Premultiply scales the colour channels of an A8R8G8B8 value by alpha.
func Premultiply(argb, alpha uint32) uint32 {
	out := argb & 0xff000000
	for shift := uint(0); shift < 24; shift += 8 {
		c := (argb >> shift) & 0xff
		out |= ((c*alpha + 127) / 255) << shift
	}
	return out
}

// Demultiply divides the colour channels of a premultiplied A8R8G8B8 value
// by its alpha.
func Demultiply(argb uint32) uint32 {
	a := argb >> 24
	if a == 0 || a == 0xff {
		return argb
	}
	out := argb & 0xff000000
	for shift := uint(0); shift < 24; shift += 8 {
		c := (argb >> shift) & 0xff
		v := (c*255 + a/2) / a
		if v > 0xff {
			v = 0xff
		}
		out |= v << shift
	}
	return out
}
