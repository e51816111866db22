package blit

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/blit/internal/pixel"
)

// Software performs the primitives on the CPU through the pixmaps' access
// brackets. It produces the pixels the engine would and also covers what the
// engine cannot: partial plane masks, stipples, formats without an engine
// encoding, composite masks, transforms, repeating sources and alpha maps.
type Software struct{}

// view is a pixmap opened for CPU access.
type view struct {
	p    *Pixmap
	mem  []byte
	acc  Access
	cpp  int
	mask uint32
}

func open(d Drawable, acc Access) (*view, error) {
	if d == nil {
		return nil, errors.New("blit: nil drawable")
	}
	p := d.Pixmap()
	if p == nil || p.s == nil {
		return nil, ErrDestroyed
	}
	mem, err := p.PrepareAccess(acc)
	if err != nil {
		return nil, err
	}
	cpp := p.s.Format.Bytes()
	return &view{p: p, mem: mem, acc: acc, cpp: cpp, mask: depthMask(8 * cpp)}, nil
}

func (v *view) close() { v.p.FinishAccess(v.acc) }

// get and set address pixmap coordinates.
func (v *view) get(x, y int) uint32 { return v.p.load(v.mem, x, y) }
func (v *view) set(x, y int, val uint32) { v.p.store(v.mem, x, y, val) }

// converter returns a function translating raw pixels of one logical format
// into another; nil when no conversion is needed.
func converter(from, to PictFormat) func(uint32) uint32 {
	if from == to {
		return nil
	}
	fl, tl := from.Layout(), to.Layout()
	return func(v uint32) uint32 { return tl.Pack(fl.Unpack(v)) }
}

// writeBoxes replaces every pixel of boxes, given in drawable coordinates,
// with fn applied through the GC plane mask. fn returns false to leave a
// pixel untouched.
func writeBoxes(dv *view, d Drawable, gc *GC, boxes []Box, fn func(x, y int, old uint32) (uint32, bool)) {
	org := d.Origin()
	pm := dv.mask
	if gc != nil {
		pm &= gc.PlaneMask
	}
	for _, b := range boxes {
		for y := int(b.Y1); y < int(b.Y2); y++ {
			for x := int(b.X1); x < int(b.X2); x++ {
				px, py := x+int(org.X), y+int(org.Y)
				old := dv.get(px, py)
				nv, ok := fn(x, y, old)
				if !ok {
					continue
				}
				dv.set(px, py, (nv&pm|old&^pm)&dv.mask)
			}
		}
	}
}

// live reports ErrDestroyed for drawables whose pixmap is gone.
func live(ds ...Drawable) error {
	for _, d := range ds {
		if p := d.Pixmap(); p == nil || p.s == nil {
			return ErrDestroyed
		}
	}
	return nil
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// FillSpans fills horizontal spans with the GC fill style.
func (sw Software) FillSpans(d Drawable, gc *GC, spans []Span) error {
	boxes := make([]Box, 0, len(spans))
	for _, sp := range spans {
		boxes = append(boxes, Box{X1: sp.X, Y1: sp.Y, X2: sp.X + int16(sp.Width), Y2: sp.Y + 1})
	}
	return sw.fill(d, gc, gc.FillStyle, boxes)
}

// PolyFillRect fills rectangles with the GC fill style.
func (sw Software) PolyFillRect(d Drawable, gc *GC, rects []Rectangle) error {
	return sw.fill(d, gc, gc.FillStyle, rectBoxes(rects))
}

// PolyFillRectSolid fills rectangles with the GC foreground.
func (sw Software) PolyFillRectSolid(d Drawable, gc *GC, rects []Rectangle) error {
	return sw.fill(d, gc, FillSolid, rectBoxes(rects))
}

// PolyFillRectTiled fills rectangles with the GC tile.
func (sw Software) PolyFillRectTiled(d Drawable, gc *GC, rects []Rectangle) error {
	return sw.fill(d, gc, FillTiled, rectBoxes(rects))
}

// PolyPoint draws single pixels in the GC foreground.
func (sw Software) PolyPoint(d Drawable, gc *GC, mode CoordMode, pts []Point) error {
	return sw.fill(d, gc, FillSolid, pointBoxes(mode, pts))
}

func (Software) fill(d Drawable, gc *GC, style FillStyle, boxes []Box) error {
	if err := live(d); err != nil {
		return err
	}
	boxes = clipList(boxes, gc.clipBoxes(d.Bounds()))
	if len(boxes) == 0 {
		return nil
	}

	var pat *view
	var err error
	switch style {
	case FillSolid:
	case FillTiled:
		if gc.Tile == nil {
			return fmt.Errorf("%w: tiled fill without tile", ErrFillStyle)
		}
		pat, err = open(gc.Tile, AccessRead)
	case FillStippled, FillOpaqueStippled:
		if gc.Stipple == nil {
			return fmt.Errorf("%w: stippled fill without stipple", ErrFillStyle)
		}
		pat, err = open(gc.Stipple, AccessRead)
	default:
		return fmt.Errorf("%w: %v", ErrFillStyle, style)
	}
	if err != nil {
		return err
	}
	if pat != nil {
		defer pat.close()
	}

	dv, err := open(d, AccessReadWrite)
	if err != nil {
		return err
	}
	defer dv.close()

	fillRop, copyRop := gc.Function.FillRop(), gc.Function.CopyRop()
	fg, bg := gc.Foreground, gc.Background
	switch style {
	case FillSolid:
		writeBoxes(dv, d, gc, boxes, func(_, _ int, old uint32) (uint32, bool) {
			return pixel.Rop3(fillRop, fg, 0, old), true
		})

	case FillTiled:
		conv := converter(pat.p.s.PictFormat, dv.p.s.PictFormat)
		tw, th := pat.p.Width(), pat.p.Height()
		ox, oy := int(gc.TileOrigin.X), int(gc.TileOrigin.Y)
		writeBoxes(dv, d, gc, boxes, func(x, y int, old uint32) (uint32, bool) {
			s := pat.get(mod(x-ox, tw), mod(y-oy, th))
			if conv != nil {
				s = conv(s)
			}
			return pixel.Rop3(copyRop, 0, s, old), true
		})

	default:
		opaque := style == FillOpaqueStippled
		sw, sh := pat.p.Width(), pat.p.Height()
		ox, oy := int(gc.TileOrigin.X), int(gc.TileOrigin.Y)
		writeBoxes(dv, d, gc, boxes, func(x, y int, old uint32) (uint32, bool) {
			if pat.get(mod(x-ox, sw), mod(y-oy, sh)) != 0 {
				return pixel.Rop3(fillRop, fg, 0, old), true
			}
			if opaque {
				return pixel.Rop3(fillRop, bg, 0, old), true
			}
			return 0, false
		})
	}
	return nil
}

// CopyArea copies a width x height area of src at (srcX, srcY) to dst at
// (dstX, dstY).
func (sw Software) CopyArea(src, dst Drawable, gc *GC, srcX, srcY int16, width, height uint16, dstX, dstY int16) error {
	box := Box{X1: dstX, Y1: dstY, X2: dstX + int16(width), Y2: dstY + int16(height)}
	return sw.CopyNtoN(src, dst, gc, []Box{box}, srcX-dstX, srcY-dstY)
}

// CopyNtoN copies boxes of dst from src at an offset of (dx, dy).
func (Software) CopyNtoN(src, dst Drawable, gc *GC, boxes []Box, dx, dy int16) error {
	if err := live(src, dst); err != nil {
		return err
	}
	boxes = clipList(boxes, gc.clipBoxes(dst.Bounds()))
	boxes = clipList(boxes, []Box{src.Bounds().Translate(-dx, -dy)})
	if len(boxes) == 0 {
		return nil
	}
	sv, err := open(src, AccessRead)
	if err != nil {
		return err
	}
	defer sv.close()
	dv, err := open(dst, AccessReadWrite)
	if err != nil {
		return err
	}
	defer dv.close()
	if sv.p == dv.p {
		orderForOverlap(boxes, dx, dy)
	}

	conv := converter(sv.p.s.PictFormat, dv.p.s.PictFormat)
	so := src.Origin()
	rop := gc.Function.CopyRop()
	for _, b := range boxes {
		w := int(b.X2 - b.X1)
		buf := make([]uint32, 0, w*int(b.Y2-b.Y1))
		for y := int(b.Y1); y < int(b.Y2); y++ {
			for x := int(b.X1); x < int(b.X2); x++ {
				s := sv.get(x+int(dx)+int(so.X), y+int(dy)+int(so.Y))
				if conv != nil {
					s = conv(s)
				}
				buf = append(buf, s)
			}
		}
		x1, y1 := int(b.X1), int(b.Y1)
		writeBoxes(dv, dst, gc, []Box{b}, func(x, y int, old uint32) (uint32, bool) {
			return pixel.Rop3(rop, 0, buf[(y-y1)*w+x-x1], old), true
		})
	}
	return nil
}

// PutImage draws a ZPixmap image of the drawable's depth at (x, y).
func (Software) PutImage(d Drawable, gc *GC, depth int, x, y int16, width, height uint16, data []byte, stride int) error {
	p := d.Pixmap()
	if p == nil || p.s == nil {
		return ErrDestroyed
	}
	if depth != p.Depth() {
		return fmt.Errorf("%w: image depth %d, drawable depth %d", ErrImageDepth, depth, p.Depth())
	}
	cpp := p.s.Format.Bytes()
	rowBytes := int(width) * cpp
	if height == 0 || width == 0 {
		return nil
	}
	if stride < rowBytes || len(data) < stride*(int(height)-1)+rowBytes {
		return fmt.Errorf("blit: image data of %d bytes too short for %d rows of %d", len(data), height, rowBytes)
	}
	boxes := clipList([]Box{{X1: x, Y1: y, X2: x + int16(width), Y2: y + int16(height)}}, gc.clipBoxes(d.Bounds()))
	if len(boxes) == 0 {
		return nil
	}
	dv, err := open(d, AccessReadWrite)
	if err != nil {
		return err
	}
	defer dv.close()

	rop := gc.Function.CopyRop()
	ix, iy := int(x), int(y)
	writeBoxes(dv, d, gc, boxes, func(px, py int, old uint32) (uint32, bool) {
		s := pixel.Load(data, (py-iy)*stride+(px-ix)*cpp, cpp)
		return pixel.Rop3(rop, 0, s, old), true
	})
	return nil
}

// Composite blends a width x height area of src, optionally through mask,
// into dst with op.
func (Software) Composite(op Operator, src, mask, dst *Picture, xSrc, ySrc, xMask, yMask, xDst, yDst int16, width, height uint16) error {
	if int(op) >= len(porterDuff) {
		return fmt.Errorf("%w: %v", ErrOperator, op)
	}
	if err := live(src.Drawable, dst.Drawable); err != nil {
		return err
	}
	boxes := clipList([]Box{{X1: xDst, Y1: yDst, X2: xDst + int16(width), Y2: yDst + int16(height)}}, dst.bounds())
	if !src.Repeat && !transformed(src.Transform) {
		boxes = clipList(boxes, translate(src.bounds(), xDst-xSrc, yDst-ySrc))
	}
	if len(boxes) == 0 {
		return nil
	}

	pics := []*Picture{src, src.AlphaMap, mask}
	if mask != nil {
		pics = append(pics, mask.AlphaMap)
	}
	var views []*view
	defer func() {
		for _, v := range views {
			v.close()
		}
	}()
	opened := make(map[*Picture]*view)
	for _, pic := range pics {
		if pic == nil {
			continue
		}
		v, err := open(pic.Drawable, AccessRead)
		if err != nil {
			return err
		}
		views = append(views, v)
		opened[pic] = v
	}
	dv, err := open(dst.Drawable, AccessReadWrite)
	if err != nil {
		return err
	}
	views = append(views, dv)
	dl := dst.format().Layout()
	if dl.Bytes != dv.cpp {
		return fmt.Errorf("%w: %v picture on %v pixmap", ErrUnsupported, dst.format(), dv.p.Format())
	}

	w, h := int(width), int(height)
	simg, err := sampled(src, opened, int(xSrc), int(ySrc), w, h)
	if err != nil {
		return err
	}
	if mask != nil {
		mimg, err := sampled(mask, opened, int(xMask), int(yMask), w, h)
		if err != nil {
			return err
		}
		for i := 3; i < len(simg.Pix); i += 4 {
			ma := uint32(mimg.Pix[i])
			for c := i - 3; c <= i; c++ {
				simg.Pix[c] = uint8((uint32(simg.Pix[c])*ma + 127) / 255)
			}
		}
	}

	dimg := image.NewRGBA(image.Rect(0, 0, w, h))
	org := dst.Drawable.Origin()
	for _, b := range boxes {
		for y := int(b.Y1); y < int(b.Y2); y++ {
			for x := int(b.X1); x < int(b.X2); x++ {
				v := dv.get(x+int(org.X), y+int(org.Y))
				putRGBA(dimg, x-int(xDst), y-int(yDst), dl.Unpack(v))
			}
		}
	}

	switch op {
	case OpSrc:
		xdraw.Draw(dimg, dimg.Bounds(), simg, image.Point{}, xdraw.Src)
	case OpOver:
		xdraw.Draw(dimg, dimg.Bounds(), simg, image.Point{}, xdraw.Over)
	default:
		pd := porterDuff[op]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				s, d := getRGBA(simg, x, y), getRGBA(dimg, x, y)
				putRGBA(dimg, x, y, pixel.Blend(s, d, pixel.Factor(pd.src, d>>24), pixel.Factor(pd.dst, s>>24)))
			}
		}
	}

	for _, b := range boxes {
		for y := int(b.Y1); y < int(b.Y2); y++ {
			for x := int(b.X1); x < int(b.X2); x++ {
				v := dl.Pack(getRGBA(dimg, x-int(xDst), y-int(yDst)))
				dv.set(x+int(org.X), y+int(org.Y), v&dv.mask)
			}
		}
	}
	return nil
}

// sampled returns a w x h image of pic sampled at (x0+u, y0+v) for every
// (u, v), applying repeat, transform and alpha map.
func sampled(pic *Picture, views map[*Picture]*view, x0, y0, w, h int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if transformed(pic.Transform) && !pic.Repeat {
		full := pictureImage(pic, views)
		s2d, err := sourceToSample(*pic.Transform, x0, y0)
		if err != nil {
			return nil, err
		}
		xdraw.NearestNeighbor.Transform(img, s2d, full, full.Bounds(), xdraw.Src, nil)
		return img, nil
	}
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			sx, sy := x0+u, y0+v
			if pic.Transform != nil {
				sx, sy = apply(*pic.Transform, sx, sy)
			}
			putRGBA(img, u, v, fetch(pic, views, sx, sy))
		}
	}
	return img, nil
}

// fetch returns the premultiplied A8R8G8B8 value of pic at (x, y), or
// transparent outside a non-repeating picture.
func fetch(pic *Picture, views map[*Picture]*view, x, y int) uint32 {
	b := pic.Drawable.Bounds()
	bw, bh := int(b.X2-b.X1), int(b.Y2-b.Y1)
	if bw <= 0 || bh <= 0 {
		return 0
	}
	if pic.Repeat {
		x, y = int(b.X1)+mod(x-int(b.X1), bw), int(b.Y1)+mod(y-int(b.Y1), bh)
	} else if x < int(b.X1) || y < int(b.Y1) || x >= int(b.X2) || y >= int(b.Y2) {
		return 0
	}
	v := views[pic]
	org := pic.Drawable.Origin()
	argb := pic.format().Layout().Unpack(v.get(x+int(org.X), y+int(org.Y)))
	if am := pic.AlphaMap; am != nil {
		a := fetch(am, views, x-int(pic.AlphaOrigin.X), y-int(pic.AlphaOrigin.Y)) >> 24
		argb = argb&0x00ffffff | a<<24
	}
	return argb
}

// pictureImage returns the whole picture as an RGBA image.
func pictureImage(pic *Picture, views map[*Picture]*view) *image.RGBA {
	b := pic.Drawable.Bounds()
	img := image.NewRGBA(image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)))
	for y := int(b.Y1); y < int(b.Y2); y++ {
		for x := int(b.X1); x < int(b.X2); x++ {
			putRGBA(img, x, y, fetch(pic, views, x, y))
		}
	}
	return img
}

// apply maps the centre of pixel (x, y) through t and returns the pixel it
// lands in.
func apply(t f64.Aff3, x, y int) (int, int) {
	fx, fy := float64(x)+0.5, float64(y)+0.5
	sx := t[0]*fx + t[1]*fy + t[2]
	sy := t[3]*fx + t[4]*fy + t[5]
	return floor(sx), floor(sy)
}

func floor(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}

// sourceToSample inverts a destination-to-source transform and moves the
// result so that sample (0, 0) corresponds to destination (x0, y0).
func sourceToSample(t f64.Aff3, x0, y0 int) (f64.Aff3, error) {
	det := t[0]*t[4] - t[1]*t[3]
	if det == 0 {
		return f64.Aff3{}, fmt.Errorf("%w: singular matrix", ErrTransform)
	}
	inv := f64.Aff3{
		t[4] / det, -t[1] / det, (t[1]*t[5] - t[2]*t[4]) / det,
		-t[3] / det, t[0] / det, (t[2]*t[3] - t[0]*t[5]) / det,
	}
	inv[2] -= float64(x0)
	inv[5] -= float64(y0)
	return inv, nil
}
