// Package encode turns one 2D drawing operation into front-end commands.
//
// Emission order is fixed: source registers (optional), destination
// registers, brush (optional), blend state, raster-op and clip, then the
// draw command with its rectangles. The exact word count of an operation is
// computed up front by Budget and reserved in one call, so an operation is
// either fully encoded or not encoded at all.
package encode

import (
	"fmt"

	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/regs"
	"github.com/gogpu/blit/internal/stream"
)

// MaxRects is the largest number of rectangles one operation may carry.
// Callers split longer lists.
const MaxRects = regs.MaxRects

// Block sizes in words, including alignment padding.
const (
	SourceWords        = 8
	DestWords          = 6
	BrushWords         = 8
	BlendOffWords      = 2
	BlendWords         = 4
	ExtendedBlendWords = 4
	RopWords           = 2
	ClipWords          = 2
	DrawHeaderWords    = 2
	RectWords          = 2
	FlushWords         = 2
)

// Point is a 16-bit coordinate pair.
type Point struct {
	X, Y int16
}

// Box is an axis-aligned rectangle with exclusive bottom-right corner.
type Box struct {
	X1, Y1, X2, Y2 int16
}

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool { return b.X1 >= b.X2 || b.Y1 >= b.Y2 }

// Intersect returns the intersection of b and c; ok is false when empty.
func (b Box) Intersect(c Box) (Box, bool) {
	out := Box{
		X1: max(b.X1, c.X1), Y1: max(b.Y1, c.Y1),
		X2: min(b.X2, c.X2), Y2: min(b.Y2, c.Y2),
	}
	return out, !out.Empty()
}

// Translate returns b moved by (dx, dy).
func (b Box) Translate(dx, dy int16) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Caps are the engine capabilities the encoder depends on.
type Caps struct {
	// ExtendedBlend is set on PE 2.0 engines, which take global colours and
	// colour multiply modes in addition to the alpha control registers.
	ExtendedBlend bool
}

// Source describes the surface an operation reads from.
type Source struct {
	Addr   uint32
	Pitch  uint32
	Format format.Format

	// Relative selects an origin relative to the destination coordinates.
	Relative bool
	Origin   Point

	Width, Height uint16
}

// Dest describes the surface an operation writes to.
type Dest struct {
	Addr   uint32
	Pitch  uint32
	Format format.Format

	// Cmd is the engine write command (regs.DestConfigCommand*).
	Cmd uint32

	// Offset is added to every emitted clip and rectangle coordinate.
	Offset Point
}

// Brush is a solid pattern: full mask with a foreground colour in
// A8R8G8B8.
type Brush struct {
	Color uint32
}

// Blend holds the alpha blending state of an operation.
type Blend struct {
	// Modes is a packed DE_ALPHA_MODES value.
	Modes uint32

	SrcAlpha, DstAlpha uint8

	// Colour multiply modes, only emitted on extended-blend engines.
	SrcPremultiply       bool
	DstPremultiply       bool
	SrcGlobalPremultiply uint32
	DstDemultiply        bool
}

// Op is one drawing operation.
type Op struct {
	Src   *Source
	Dst   Dest
	Brush *Brush
	Blend *Blend

	FgRop, BgRop uint8

	// Clip, when set, restricts drawing to the box. It is expressed in the
	// same coordinate space as the rectangles.
	Clip *Box
}

// Budget returns the exact number of words Encode emits for op with n
// rectangles.
func Budget(caps Caps, op *Op, n int) int {
	words := DestWords + RopWords + DrawHeaderWords + n*RectWords
	if op.Src != nil {
		words += SourceWords
	}
	if op.Brush != nil {
		words += BrushWords
	}
	switch {
	case op.Blend == nil:
		words += BlendOffWords
	case caps.ExtendedBlend:
		words += BlendWords + ExtendedBlendWords
	default:
		words += BlendWords
	}
	if op.Clip != nil {
		words += ClipWords
	}
	return words
}

// Encode emits op for the given rectangles into w. An empty rectangle list
// is a no-op. More than MaxRects rectangles or a missing destination panic.
// If the reservation fails nothing is emitted and the error is returned.
func Encode(w *stream.Writer, caps Caps, op *Op, boxes []Box) error {
	if len(boxes) == 0 {
		return nil
	}
	if len(boxes) > MaxRects {
		panic(fmt.Sprintf("encode: %d rectangles exceed the engine maximum of %d", len(boxes), MaxRects))
	}
	if op.Dst.Addr == 0 {
		panic("encode: operation without destination surface")
	}

	n := Budget(caps, op, len(boxes))
	if err := w.Reserve(n); err != nil {
		return err
	}

	if op.Src != nil {
		emitSource(w, op.Src)
	}
	emitDest(w, &op.Dst)
	if op.Brush != nil {
		emitBrush(w, op.Brush.Color)
	}
	emitBlend(w, caps, op.Blend)
	emitRopClip(w, op.FgRop, op.BgRop, op.Clip, op.Dst.Offset)
	emitDraw(w, boxes, op.Dst.Offset)

	if left := w.End(); left != 0 {
		panic(fmt.Sprintf("encode: %d of %d reserved words unused", left, n))
	}
	return nil
}

// EncodeFlush emits a 2D pixel-engine cache flush.
func EncodeFlush(w *stream.Writer) error {
	if err := w.Reserve(FlushWords); err != nil {
		return err
	}
	w.SetState(regs.GLFlushCache, regs.FlushCachePE2D)
	w.End()
	return nil
}

// SrcConfig returns the DE_SRC_CONFIG value for a source format.
func SrcConfig(f format.Format, relative bool) uint32 {
	cfg := regs.SrcConfigPE10Format(f.Code) |
		regs.SrcConfigTransparency(0) |
		regs.SrcConfigLocationMem |
		regs.SrcConfigPackPacked8 |
		regs.SrcConfigSwizzle(f.Swizzle) |
		regs.SrcConfigFormat(f.Code)
	if relative {
		cfg |= regs.SrcConfigRelative
	}
	if f.Tiled {
		cfg |= regs.SrcConfigTiledEnable
	}
	return cfg
}

// DestConfig returns the DE_DEST_CONFIG value for a destination format and
// write command.
func DestConfig(f format.Format, cmd uint32) uint32 {
	cfg := regs.DestConfigFormat(f.Code) | cmd | regs.DestConfigSwizzle(f.Swizzle)
	if f.Tiled {
		cfg |= regs.DestConfigTiledEnable
	}
	return cfg
}

func emitSource(w *stream.Writer, src *Source) {
	w.EmitLoadState(regs.DESrcAddress, 6, false)
	w.Emit(src.Addr)
	w.Emit(regs.Stride(src.Pitch))
	w.Emit(regs.RotationDisable)
	w.Emit(SrcConfig(src.Format, src.Relative))
	w.Emit(regs.PackXY(int(src.Origin.X), int(src.Origin.Y)))
	w.Emit(regs.PackXY(int(src.Width), int(src.Height)))
	w.Align()
}

func emitDest(w *stream.Writer, dst *Dest) {
	w.EmitLoadState(regs.DEDestAddress, 4, false)
	w.Emit(dst.Addr)
	w.Emit(regs.Stride(dst.Pitch))
	w.Emit(regs.RotationDisable)
	w.Emit(DestConfig(dst.Format, dst.Cmd))
	w.Align()
}

func emitBrush(w *stream.Writer, fg uint32) {
	w.EmitLoadState(regs.DEPatternMaskLow, 4, false)
	w.Emit(^uint32(0))
	w.Emit(^uint32(0))
	w.Emit(0)
	w.Emit(fg)
	w.Align()
	w.EmitLoadState(regs.DEPatternConfig, 1, false)
	w.Emit(regs.PatternConfigInitTrigger(3))
}

func emitBlend(w *stream.Writer, caps Caps, b *Blend) {
	if b == nil {
		w.SetState(regs.DEAlphaControl, regs.AlphaControlEnableOff)
		return
	}

	w.EmitLoadState(regs.DEAlphaControl, 2, false)
	w.Emit(regs.AlphaControlEnableOn |
		regs.AlphaControlGlobalSrcAlpha(b.SrcAlpha) |
		regs.AlphaControlGlobalDstAlpha(b.DstAlpha))
	w.Emit(b.Modes)
	w.Align()

	if caps.ExtendedBlend {
		w.EmitLoadState(regs.DEGlobalSrcColor, 3, false)
		w.Emit(uint32(b.SrcAlpha) << 24)
		w.Emit(uint32(b.DstAlpha) << 24)
		w.Emit(colorMultiplyModes(b))
	}
}

func colorMultiplyModes(b *Blend) uint32 {
	m := regs.ColorMultiplySrcPremultiplyDisable |
		regs.ColorMultiplyDstPremultiplyDisable |
		regs.ColorMultiplyDstDemultiplyDisable |
		b.SrcGlobalPremultiply&(regs.ColorMultiplySrcGlobalAlpha|regs.ColorMultiplySrcGlobalColor)
	if b.SrcPremultiply {
		m |= regs.ColorMultiplySrcPremultiplyEnable
	}
	if b.DstPremultiply {
		m |= regs.ColorMultiplyDstPremultiplyEnable
	}
	if b.DstDemultiply {
		m |= regs.ColorMultiplyDstDemultiplyEnable
	}
	return m
}

func emitRopClip(w *stream.Writer, fg, bg uint8, clip *Box, off Point) {
	n := 1
	if clip != nil {
		n = 3
	}
	w.EmitLoadState(regs.DERop, n, false)
	w.Emit(regs.Rop(fg, bg))
	if clip != nil {
		w.Emit(regs.PackClip(int(clip.X1)+int(off.X), int(clip.Y1)+int(off.Y)))
		w.Emit(regs.PackClip(int(clip.X2)+int(off.X), int(clip.Y2)+int(off.Y)))
	}
}

func emitDraw(w *stream.Writer, boxes []Box, off Point) {
	w.Emit(regs.Draw2DHeader(len(boxes), 0))
	w.Emit(0)
	for _, b := range boxes {
		w.Emit(regs.PackXY(int(off.X)+int(b.X1), int(off.Y)+int(b.Y1)))
		w.Emit(regs.PackXY(int(off.X)+int(b.X2), int(off.Y)+int(b.Y2)))
	}
}
