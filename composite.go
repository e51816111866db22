package blit

import (
	"fmt"

	"golang.org/x/image/math/f64"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/surface"
)

// Operator is a Render compositing operator.
type Operator uint8

// Porter-Duff operators.
const (
	OpClear Operator = iota
	OpSrc
	OpDst
	OpOver
	OpOverReverse
	OpIn
	OpInReverse
	OpOut
	OpOutReverse
	OpAtop
	OpAtopReverse
	OpXor
	OpAdd
)

var operatorNames = [...]string{
	"clear", "src", "dst", "over", "over-reverse", "in", "in-reverse",
	"out", "out-reverse", "atop", "atop-reverse", "xor", "add",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("Operator(%d)", uint8(op))
}

// blendFactors are the engine blending modes of the source and destination
// terms of an operator.
type blendFactors struct{ src, dst uint32 }

var porterDuff = [...]blendFactors{
	OpClear:       {regs.BlendZero, regs.BlendZero},
	OpSrc:         {regs.BlendOne, regs.BlendZero},
	OpDst:         {regs.BlendZero, regs.BlendOne},
	OpOver:        {regs.BlendOne, regs.BlendInversed},
	OpOverReverse: {regs.BlendInversed, regs.BlendOne},
	OpIn:          {regs.BlendNormal, regs.BlendZero},
	OpInReverse:   {regs.BlendZero, regs.BlendNormal},
	OpOut:         {regs.BlendInversed, regs.BlendZero},
	OpOutReverse:  {regs.BlendZero, regs.BlendInversed},
	OpAtop:        {regs.BlendNormal, regs.BlendInversed},
	OpAtopReverse: {regs.BlendInversed, regs.BlendNormal},
	OpXor:         {regs.BlendInversed, regs.BlendInversed},
	OpAdd:         {regs.BlendOne, regs.BlendOne},
}

// Picture is a drawable viewed through a pixel format for compositing.
// Pixel values are premultiplied.
type Picture struct {
	Drawable Drawable

	// Format defaults to the format of the drawable's pixmap. Otherwise it
	// must have the same pixel size.
	Format PictFormat

	Repeat bool

	// Transform maps destination coordinates to source coordinates. Nil
	// and the identity mean no transform.
	Transform *f64.Aff3

	// AlphaMap replaces the alpha channel; its origin sits at AlphaOrigin.
	AlphaMap    *Picture
	AlphaOrigin Point

	// Clip, when non-nil, restricts the picture in drawable coordinates.
	Clip []Box
}

// NewPicture returns a picture of d in its pixmap's format.
func NewPicture(d Drawable) *Picture { return &Picture{Drawable: d} }

func (p *Picture) format() PictFormat {
	if p.Format != format.Unknown {
		return p.Format
	}
	return p.Drawable.Pixmap().s.PictFormat
}

func (p *Picture) bounds() []Box {
	b := p.Drawable.Bounds()
	if p.Clip == nil {
		return []Box{b}
	}
	return clipList(p.Clip, []Box{b})
}

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

func transformed(t *f64.Aff3) bool { return t != nil && *t != identity }

// pictureFormat returns the engine format of a picture. It has to be a
// direct encoding of the picture's logical format with the size of the
// surface pixels.
func pictureFormat(p *Picture, s *surface.Surface) (format.Format, error) {
	f, err := format.Lookup(p.format(), false)
	if err != nil {
		return format.Format{}, err
	}
	if f.Bytes() != s.Format.Bytes() {
		return format.Format{}, fmt.Errorf("%w: %v picture on %v pixmap", ErrUnsupported, p.format(), s.PictFormat)
	}
	f.Tiled = s.Format.Tiled
	return f, nil
}

// Composite blends a width x height area of src at (xSrc, ySrc) into dst at
// (xDst, yDst) with op. Masks, transforms, repeating sources and alpha maps
// fall back.
func (a *Accelerator) Composite(op Operator, src, mask, dst *Picture, xSrc, ySrc, xMask, yMask, xDst, yDst int16, width, height uint16) error {
	const name = "Composite"
	if err := a.ready(name); err != nil {
		return err
	}
	switch {
	case int(op) >= len(porterDuff):
		return fallback(name, fmt.Errorf("%w: %v", ErrOperator, op))
	case mask != nil:
		return fallback(name, ErrMask)
	case transformed(src.Transform) || transformed(dst.Transform):
		return fallback(name, ErrTransform)
	case src.Repeat:
		return fallback(name, ErrRepeat)
	case src.AlphaMap != nil || dst.AlphaMap != nil:
		return fallback(name, ErrAlphaMap)
	}

	ds, err := a.target(dst.Drawable)
	if err != nil {
		return err
	}
	ss, err := a.target(src.Drawable)
	if err != nil {
		return err
	}
	df, err := pictureFormat(dst, ds)
	if err != nil {
		return fallback(name, err)
	}
	sf, err := pictureFormat(src, ss)
	if err != nil {
		return fallback(name, err)
	}
	if err := format.DstValid(df, a.features.Has(conn.FeatureA8Target), a.features.Has(conn.FeatureTiling)); err != nil {
		return fallback(name, err)
	}
	if err := format.SrcValid(sf, a.features.Has(conn.FeaturePE20), a.features.Has(conn.FeatureTiling)); err != nil {
		return fallback(name, err)
	}

	dx, dy := xSrc-xDst, ySrc-yDst
	clip := dst.bounds()
	boxes := clipList([]Box{{X1: xDst, Y1: yDst, X2: xDst + int16(width), Y2: yDst + int16(height)}}, clip)
	boxes = clipList(boxes, translate(src.bounds(), -dx, -dy))
	if len(boxes) == 0 {
		return nil
	}
	if ss == ds {
		orderForOverlap(boxes, dx, dy)
	}

	pd := porterDuff[op]
	gsrc, gdst := regs.GlobalAlphaNormal, regs.GlobalAlphaNormal
	if !src.format().HasAlpha() {
		gsrc = regs.GlobalAlphaGlobal
	}
	if !dst.format().HasAlpha() {
		gdst = regs.GlobalAlphaGlobal
	}

	ext := extents(clip)
	so, do := src.Drawable.Origin(), dst.Drawable.Origin()
	desc := encode.Op{
		Src: &encode.Source{
			Format:   sf,
			Relative: true,
			Origin:   Point{X: dx + so.X - do.X, Y: dy + so.Y - do.Y},
		},
		Dst: encode.Dest{Format: df, Cmd: destCommand, Offset: do},
		Blend: &encode.Blend{
			Modes: regs.AlphaModeGlobalSrc(gsrc) | regs.AlphaModeGlobalDst(gdst) |
				regs.AlphaModeSrcBlend(pd.src) | regs.AlphaModeDstBlend(pd.dst),
			SrcAlpha: 0xff,
			DstAlpha: 0xff,
		},
		FgRop: 0xcc,
		BgRop: 0xcc,
		Clip:  &ext,
	}
	if err := a.submit(name, batch.Op{Dst: ds, Src: ss, Desc: desc, Boxes: boxes, KeepFormats: true}); err != nil {
		return err
	}
	return a.finish(name)
}
