package emulator

import (
	"fmt"

	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/pixel"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/stream"
)

func (c *Conn) execute(words []uint32) error {
	cmds, err := stream.Decode(words)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		switch cmd.Op {
		case regs.OpLoadState:
			for j, v := range cmd.Values {
				reg := cmd.Reg + uint32(4*j)
				c.regs[reg] = v
				if reg == regs.GLFlushCache {
					c.stats.Flushes++
				}
			}
		case regs.OpDraw2D:
			if err := c.draw(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

// surfaceState is a decoded source or destination register block.
type surfaceState struct {
	bo     *BO
	base   int
	pitch  int
	layout pixel.Layout
	code   uint32
	swz    uint32
	tiled  bool
}

func (s *surfaceState) offset(x, y int) (int, error) {
	if x < 0 || y < 0 {
		return 0, fmt.Errorf("%w: negative coordinate (%d,%d)", ErrFault, x, y)
	}
	off := s.base + pixel.Offset(x, y, s.pitch, s.layout.Bytes, s.tiled)
	if off+s.layout.Bytes > len(s.bo.mem) {
		return 0, fmt.Errorf("%w: pixel (%d,%d) outside buffer at %#08x", ErrFault, x, y, s.bo.addr)
	}
	return off, nil
}

func (s *surfaceState) load(x, y int) (uint32, error) {
	off, err := s.offset(x, y)
	if err != nil {
		return 0, err
	}
	return pixel.Load(s.bo.mem, off, s.layout.Bytes), nil
}

func (s *surfaceState) store(x, y int, v uint32) error {
	off, err := s.offset(x, y)
	if err != nil {
		return err
	}
	pixel.Store(s.bo.mem, off, s.layout.Bytes, v)
	return nil
}

func (c *Conn) bindSurface(addr, stride, code, swz uint32, tiled bool) (*surfaceState, error) {
	l, ok := pixel.EngineLayout(code, swz)
	if !ok {
		return nil, fmt.Errorf("%w: format %d swizzle %d", ErrFault, code, swz)
	}
	bo, err := c.lookup(addr, l.Bytes)
	if err != nil {
		return nil, err
	}
	return &surfaceState{
		bo:     bo,
		base:   int(addr - bo.addr),
		pitch:  int(stride),
		layout: l,
		code:   code,
		swz:    swz,
		tiled:  tiled,
	}, nil
}

// usesSource reports whether a ternary rop depends on the source operand.
func usesSource(rop uint8) bool { return (rop^rop>>2)&0x33 != 0 }

// blendState is the decoded alpha blending configuration.
type blendState struct {
	globalSrc, globalDst uint32
	srcMode, dstMode     uint32
	srcAlpha, dstAlpha   uint32

	srcPremultiply, dstPremultiply, dstDemultiply bool
	srcGlobalPremultiply                          uint32
}

func (c *Conn) blend() (*blendState, bool) {
	on, sa, da := regs.AlphaControlFields(c.regs[regs.DEAlphaControl])
	if !on {
		return nil, false
	}
	b := &blendState{srcAlpha: uint32(sa), dstAlpha: uint32(da)}
	b.globalSrc, b.globalDst, b.srcMode, b.dstMode = regs.AlphaModeFields(c.regs[regs.DEAlphaModes])
	if c.features.Has(conn.FeaturePE20) {
		b.srcAlpha = c.regs[regs.DEGlobalSrcColor] >> 24
		b.dstAlpha = c.regs[regs.DEGlobalDestColor] >> 24
		m := c.regs[regs.DEColorMultiplyModes]
		b.srcPremultiply = m&regs.ColorMultiplySrcPremultiplyEnable != 0
		b.dstPremultiply = m&regs.ColorMultiplyDstPremultiplyEnable != 0
		b.dstDemultiply = m&regs.ColorMultiplyDstDemultiplyEnable != 0
		b.srcGlobalPremultiply = regs.ColorMultiplySrcGlobal(m)
	}
	return b, true
}

// apply blends source and destination A8R8G8B8 values. Formats without
// alpha unpack as opaque.
func (b *blendState) apply(s, d uint32) uint32 {
	sa := s >> 24
	switch b.globalSrc {
	case regs.GlobalAlphaGlobal:
		sa = b.srcAlpha
	case regs.GlobalAlphaScaled:
		sa = sa * b.srcAlpha / 0xff
	}
	da := d >> 24
	switch b.globalDst {
	case regs.GlobalAlphaGlobal:
		da = b.dstAlpha
	case regs.GlobalAlphaScaled:
		da = da * b.dstAlpha / 0xff
	}
	s = s&0x00ffffff | sa<<24
	d = d&0x00ffffff | da<<24

	if b.srcPremultiply {
		s = pixel.Premultiply(s, sa)
	}
	if b.srcGlobalPremultiply != 0 {
		s = pixel.Premultiply(s, b.srcAlpha)
	}
	if b.dstPremultiply {
		d = pixel.Premultiply(d, da)
	}

	out := pixel.Blend(s, d, pixel.Factor(b.srcMode, da), pixel.Factor(b.dstMode, sa))
	if b.dstDemultiply {
		out = pixel.Demultiply(out)
	}
	return out
}

func (c *Conn) draw(cmd stream.Command) error {
	r := c.regs
	dfmt, dswz, dcmd := regs.DestConfigFields(r[regs.DEDestConfig])
	if dcmd != regs.DestConfigCommandBitBlt && dcmd != regs.DestConfigCommandClear {
		return fmt.Errorf("%w: unsupported draw command %#x", ErrFault, dcmd)
	}
	tiledDst := r[regs.DEDestConfig]&regs.DestConfigTiledEnable != 0
	if tiledDst && !c.features.Has(conn.FeatureTiling) {
		return fmt.Errorf("%w: tiled destination without tiling support", ErrFault)
	}
	if dfmt == regs.FormatA8 && !c.features.Has(conn.FeatureA8Target) {
		return fmt.Errorf("%w: A8 destination without A8 target support", ErrFault)
	}
	dst, err := c.bindSurface(r[regs.DEDestAddress], regs.Stride(r[regs.DEDestStride]), dfmt, dswz, tiledDst)
	if err != nil {
		return err
	}

	rop, _ := regs.RopFields(r[regs.DERop])
	bl, blending := c.blend()

	var src *surfaceState
	var srcRelative bool
	var ox, oy int
	if blending || usesSource(rop) {
		scfg := r[regs.DESrcConfig]
		sfmt, sswz := regs.SrcConfigFields(scfg)
		tiledSrc := scfg&regs.SrcConfigTiledEnable != 0
		if tiledSrc && !c.features.Has(conn.FeatureTiling) {
			return fmt.Errorf("%w: tiled source without tiling support", ErrFault)
		}
		if sfmt == regs.FormatA8 && !c.features.Has(conn.FeaturePE20) {
			return fmt.Errorf("%w: A8 source without PE 2.0", ErrFault)
		}
		src, err = c.bindSurface(r[regs.DESrcAddress], regs.Stride(r[regs.DESrcStride]), sfmt, sswz, tiledSrc)
		if err != nil {
			return err
		}
		srcRelative = scfg&regs.SrcConfigRelative != 0
		ox, oy = regs.UnpackXY(r[regs.DESrcOrigin])
	}

	pattern := dst.layout.Pack(r[regs.DEPatternFGColor])
	cx1, cy1 := regs.UnpackClip(r[regs.DEClipTopLeft])
	cx2, cy2 := regs.UnpackClip(r[regs.DEClipBottomRight])
	mask := uint32(1)<<(8*dst.layout.Bytes) - 1
	if dst.layout.Bytes == 4 {
		mask = ^uint32(0)
	}
	sameFormat := src != nil && src.code == dst.code && src.swz == dst.swz

	c.stats.Draws++
	for i := 0; i < cmd.RectCount(); i++ {
		x1, y1, x2, y2 := cmd.Rect(i)
		c.stats.Rects++
		rx1, ry1 := max(x1, cx1), max(y1, cy1)
		rx2, ry2 := min(x2, cx2), min(y2, cy2)
		if rx1 >= rx2 || ry1 >= ry2 {
			continue
		}

		// Gather the source first so overlapping copies read unmodified
		// pixels.
		var srcPix []uint32
		w := rx2 - rx1
		if src != nil {
			srcPix = make([]uint32, w*(ry2-ry1))
			for y := ry1; y < ry2; y++ {
				for x := rx1; x < rx2; x++ {
					sx, sy := x+ox, y+oy
					if !srcRelative {
						sx, sy = ox+(x-x1), oy+(y-y1)
					}
					v, err := src.load(sx, sy)
					if err != nil {
						return err
					}
					srcPix[(y-ry1)*w+(x-rx1)] = v
				}
			}
		}

		for y := ry1; y < ry2; y++ {
			for x := rx1; x < rx2; x++ {
				d, err := dst.load(x, y)
				if err != nil {
					return err
				}
				var s uint32
				if src != nil {
					s = srcPix[(y-ry1)*w+(x-rx1)]
				}

				var out uint32
				if blending {
					var sargb uint32
					if src != nil {
						sargb = src.layout.Unpack(s)
					}
					out = dst.layout.Pack(bl.apply(sargb, dst.layout.Unpack(d)))
				} else {
					if src != nil && !sameFormat {
						s = dst.layout.Pack(src.layout.Unpack(s))
					}
					out = pixel.Rop3(rop, pattern, s, d) & mask
				}
				if err := dst.store(x, y, out); err != nil {
					return err
				}
				c.stats.Pixels++
			}
		}
	}
	return nil
}
