// Package regs holds the register-space constants of the fixed-function 2D
// drawing engine (DE) and its front-end (FE) command processor.
//
// Register addresses are byte addresses in the GPU state space. Load-state
// headers carry them divided by four. Field helpers pack a value into its bit
// position and mask away anything that does not fit.
//
// These values are a protocol contract with the hardware and are not
// configurable.
package regs

// Front-end opcodes (bits 27..31 of a command header).
const (
	OpMask      uint32 = 0xf8000000
	OpLoadState uint32 = 0x08000000
	OpEnd       uint32 = 0x10000000
	OpNop       uint32 = 0x18000000
	OpDraw2D    uint32 = 0x20000000
	OpWait      uint32 = 0x38000000
	OpLink      uint32 = 0x40000000
	OpStall     uint32 = 0x48000000
)

// Load-state header fields.
const (
	LoadStateFixp        uint32 = 0x04000000
	loadStateCountShift         = 16
	loadStateCountMask   uint32 = 0x03ff0000
	loadStateOffsetMask  uint32 = 0x0000ffff
	MaxLoadStateCount           = 1024
)

// LoadStateHeader builds a load-state header for count consecutive registers
// starting at the byte address reg.
func LoadStateHeader(reg uint32, count int, fixp bool) uint32 {
	h := OpLoadState |
		(uint32(count)<<loadStateCountShift)&loadStateCountMask |
		(reg>>2)&loadStateOffsetMask
	if fixp {
		h |= LoadStateFixp
	}
	return h
}

// LoadStateFields decodes a load-state header into its register byte address
// and register count. A count field of zero means 1024 registers.
func LoadStateFields(h uint32) (reg uint32, count int, fixp bool) {
	count = int((h & loadStateCountMask) >> loadStateCountShift)
	if count == 0 {
		count = MaxLoadStateCount
	}
	return (h & loadStateOffsetMask) << 2, count, h&LoadStateFixp != 0
}

// Draw-2D header fields.
const (
	draw2DCountShift            = 8
	draw2DCountMask      uint32 = 0x0000ff00
	draw2DDataCountShift        = 16
	draw2DDataCountMask  uint32 = 0x07ff0000
)

// MaxRects is the largest rectangle count a single draw header can carry.
const MaxRects = 255

// Draw2DHeader builds a draw-2D header for n rectangles and dataCount
// trailing data words.
func Draw2DHeader(n, dataCount int) uint32 {
	return OpDraw2D |
		(uint32(n)<<draw2DCountShift)&draw2DCountMask |
		(uint32(dataCount)<<draw2DDataCountShift)&draw2DDataCountMask
}

// Draw2DFields decodes a draw-2D header.
func Draw2DFields(h uint32) (n, dataCount int) {
	return int((h & draw2DCountMask) >> draw2DCountShift),
		int((h & draw2DDataCountMask) >> draw2DDataCountShift)
}

// PackXY packs a coordinate pair into the 16:16 layout used by draw
// rectangles, source origin and source size.
func PackXY(x, y int) uint32 {
	return uint32(x)&0xffff | (uint32(y)&0xffff)<<16
}

// UnpackXY is the inverse of PackXY. Coordinates are sign-extended.
func UnpackXY(v uint32) (x, y int) {
	return int(int16(v & 0xffff)), int(int16(v >> 16))
}

// PackClip packs a coordinate pair into the 15-bit clip register layout.
func PackClip(x, y int) uint32 {
	return uint32(x)&0x7fff | (uint32(y)&0x7fff)<<16
}

// UnpackClip is the inverse of PackClip.
func UnpackClip(v uint32) (x, y int) {
	return int(v & 0x7fff), int((v >> 16) & 0x7fff)
}

// 2D engine register addresses.
const (
	DESrcAddress         uint32 = 0x01200
	DESrcStride          uint32 = 0x01204
	DESrcRotationConfig  uint32 = 0x01208
	DESrcConfig          uint32 = 0x0120c
	DESrcOrigin          uint32 = 0x01210
	DESrcSize            uint32 = 0x01214
	DESrcColorBG         uint32 = 0x01218
	DESrcColorFG         uint32 = 0x0121c
	DEDestAddress        uint32 = 0x01228
	DEDestStride         uint32 = 0x0122c
	DEDestRotationConfig uint32 = 0x01230
	DEDestConfig         uint32 = 0x01234
	DEPatternAddress     uint32 = 0x01238
	DEPatternConfig      uint32 = 0x0123c
	DEPatternLow         uint32 = 0x01240
	DEPatternHigh        uint32 = 0x01244
	DEPatternMaskLow     uint32 = 0x01248
	DEPatternMaskHigh    uint32 = 0x0124c
	DEPatternBGColor     uint32 = 0x01250
	DEPatternFGColor     uint32 = 0x01254
	DERop                uint32 = 0x0125c
	DEClipTopLeft        uint32 = 0x01260
	DEClipBottomRight    uint32 = 0x01264
	DEConfig             uint32 = 0x0126c
	DEAlphaControl       uint32 = 0x0127c
	DEAlphaModes         uint32 = 0x01280
	DEGlobalSrcColor     uint32 = 0x012c8
	DEGlobalDestColor    uint32 = 0x012cc
	DEColorMultiplyModes uint32 = 0x012d0
	GLFlushCache         uint32 = 0x0380c
)

// Stride registers.
const strideMask uint32 = 0x0003ffff

// Stride packs a pitch in bytes into a stride register value.
func Stride(pitch uint32) uint32 { return pitch & strideMask }

// Rotation config.
const RotationDisable uint32 = 0

// DE_SRC_CONFIG fields.
const (
	SrcConfigRelative     uint32 = 0x00000040
	SrcConfigTiledEnable  uint32 = 0x00000080
	SrcConfigLocationMem  uint32 = 0x00000000
	SrcConfigPackPacked8  uint32 = 0x00000000
	srcConfigFormatShift         = 24
	srcConfigSwizzleShift        = 20
)

// SrcConfigPE10Format packs the legacy 4-bit source format field.
func SrcConfigPE10Format(f uint32) uint32 { return f & 0xf }

// SrcConfigTransparency packs the transparency mode field.
func SrcConfigTransparency(t uint32) uint32 { return (t & 0x3) << 4 }

// SrcConfigSwizzle packs the source channel swizzle.
func SrcConfigSwizzle(s uint32) uint32 { return (s & 0x3) << srcConfigSwizzleShift }

// SrcConfigFormat packs the 5-bit source format field.
func SrcConfigFormat(f uint32) uint32 { return (f & 0x1f) << srcConfigFormatShift }

// SrcConfigFields extracts format and swizzle from a source config word.
func SrcConfigFields(v uint32) (format, swizzle uint32) {
	return (v >> srcConfigFormatShift) & 0x1f, (v >> srcConfigSwizzleShift) & 0x3
}

// DE_DEST_CONFIG fields.
const (
	DestConfigTiledEnable uint32 = 0x00000100
	destConfigSwizzleShift       = 16

	DestConfigCommandMask         uint32 = 0x0000f000
	DestConfigCommandClear        uint32 = 0x00000000
	DestConfigCommandLine         uint32 = 0x00001000
	DestConfigCommandBitBlt       uint32 = 0x00002000
	DestConfigCommandBitBltRevers uint32 = 0x00003000
	DestConfigCommandStretchBlt   uint32 = 0x00004000
)

// DestConfigFormat packs the destination format field.
func DestConfigFormat(f uint32) uint32 { return f & 0x1f }

// DestConfigSwizzle packs the destination channel swizzle.
func DestConfigSwizzle(s uint32) uint32 { return (s & 0x3) << destConfigSwizzleShift }

// DestConfigFields extracts format, swizzle and the write command.
func DestConfigFields(v uint32) (format, swizzle, cmd uint32) {
	return v & 0x1f, (v >> destConfigSwizzleShift) & 0x3, v & DestConfigCommandMask
}

// PatternConfigInitTrigger packs the pattern init trigger.
func PatternConfigInitTrigger(t uint32) uint32 { return (t & 0x3) << 4 }

// DE_ROP fields.
const (
	RopTypeRop2Pattern uint32 = 0x00000000
	RopTypeRop2Source  uint32 = 0x00100000
	RopTypeRop3        uint32 = 0x00200000
	RopTypeRop4        uint32 = 0x00300000
)

// Rop packs foreground and background raster-op codes with the ROP4 type.
func Rop(fg, bg uint8) uint32 {
	return uint32(fg) | uint32(bg)<<8 | RopTypeRop4
}

// RopFields extracts the foreground and background codes.
func RopFields(v uint32) (fg, bg uint8) {
	return uint8(v), uint8(v >> 8)
}

// DE_ALPHA_CONTROL fields.
const (
	AlphaControlEnableOff uint32 = 0x00000000
	AlphaControlEnableOn  uint32 = 0x00000001
)

// AlphaControlGlobalSrcAlpha packs the legacy global source alpha.
func AlphaControlGlobalSrcAlpha(a uint8) uint32 { return uint32(a) << 16 }

// AlphaControlGlobalDstAlpha packs the legacy global destination alpha.
func AlphaControlGlobalDstAlpha(a uint8) uint32 { return uint32(a) << 24 }

// AlphaControlFields extracts enable and the global alpha values.
func AlphaControlFields(v uint32) (enable bool, src, dst uint8) {
	return v&AlphaControlEnableOn != 0, uint8(v >> 16), uint8(v >> 24)
}

// DE_ALPHA_MODES fields.
const (
	AlphaModeSrcInversed    uint32 = 0x00000001
	AlphaModeDstInversed    uint32 = 0x00000010
	AlphaModeSrcAlphaFactor uint32 = 0x08000000
	AlphaModeDstAlphaFactor uint32 = 0x80000000
)

// Global alpha modes.
const (
	GlobalAlphaNormal uint32 = 0
	GlobalAlphaGlobal uint32 = 1
	GlobalAlphaScaled uint32 = 2
)

// Blending modes.
const (
	BlendZero            uint32 = 0
	BlendOne             uint32 = 1
	BlendNormal          uint32 = 2
	BlendInversed        uint32 = 3
	BlendColor           uint32 = 4
	BlendColorInversed   uint32 = 5
	BlendSaturatedAlpha  uint32 = 6
	BlendSaturatedDstAlp uint32 = 7
)

// AlphaModeGlobalSrc packs the global source alpha mode.
func AlphaModeGlobalSrc(m uint32) uint32 { return (m & 0x3) << 8 }

// AlphaModeGlobalDst packs the global destination alpha mode.
func AlphaModeGlobalDst(m uint32) uint32 { return (m & 0x3) << 12 }

// AlphaModeSrcBlend packs the source blending mode.
func AlphaModeSrcBlend(m uint32) uint32 { return (m & 0x7) << 24 }

// AlphaModeDstBlend packs the destination blending mode.
func AlphaModeDstBlend(m uint32) uint32 { return (m & 0x7) << 28 }

// AlphaModeFields extracts the global alpha and blending modes.
func AlphaModeFields(v uint32) (globalSrc, globalDst, srcBlend, dstBlend uint32) {
	return (v >> 8) & 0x3, (v >> 12) & 0x3, (v >> 24) & 0x7, (v >> 28) & 0x7
}

// DE_COLOR_MULTIPLY_MODES fields.
const (
	ColorMultiplySrcPremultiplyDisable uint32 = 0x00000000
	ColorMultiplySrcPremultiplyEnable  uint32 = 0x00000001
	ColorMultiplyDstPremultiplyDisable uint32 = 0x00000000
	ColorMultiplyDstPremultiplyEnable  uint32 = 0x00000010
	ColorMultiplySrcGlobalDisable      uint32 = 0x00000000
	ColorMultiplySrcGlobalAlpha        uint32 = 0x00000100
	ColorMultiplySrcGlobalColor        uint32 = 0x00000200
	ColorMultiplyDstDemultiplyDisable  uint32 = 0x00000000
	ColorMultiplyDstDemultiplyEnable   uint32 = 0x00100000
	colorMultiplySrcGlobalMask         uint32 = 0x00000300
)

// ColorMultiplySrcGlobal extracts the source global premultiply mode.
func ColorMultiplySrcGlobal(v uint32) uint32 { return v & colorMultiplySrcGlobalMask }

// GL_FLUSH_CACHE fields.
const (
	FlushCacheDepth uint32 = 0x00000001
	FlushCacheColor uint32 = 0x00000002
	FlushCachePE2D  uint32 = 0x00000008
)

// Engine pixel format codes.
const (
	FormatX4R4G4B4   uint32 = 0
	FormatA4R4G4B4   uint32 = 1
	FormatX1R5G5B5   uint32 = 2
	FormatA1R5G5B5   uint32 = 3
	FormatR5G6B5     uint32 = 4
	FormatX8R8G8B8   uint32 = 5
	FormatA8R8G8B8   uint32 = 6
	FormatYUY2       uint32 = 7
	FormatUYVY       uint32 = 8
	FormatIndex8     uint32 = 9
	FormatMonochrome uint32 = 10
	FormatYV12       uint32 = 15
	FormatA8         uint32 = 16
	FormatNV12       uint32 = 17
)

// Channel swizzles.
const (
	SwizzleARGB uint32 = 0
	SwizzleRGBA uint32 = 1
	SwizzleABGR uint32 = 2
	SwizzleBGRA uint32 = 3
)

var names = map[uint32]string{
	DESrcAddress:         "DE.SRC_ADDRESS",
	DESrcStride:          "DE.SRC_STRIDE",
	DESrcRotationConfig:  "DE.SRC_ROTATION_CONFIG",
	DESrcConfig:          "DE.SRC_CONFIG",
	DESrcOrigin:          "DE.SRC_ORIGIN",
	DESrcSize:            "DE.SRC_SIZE",
	DESrcColorBG:         "DE.SRC_COLOR_BG",
	DESrcColorFG:         "DE.SRC_COLOR_FG",
	DEDestAddress:        "DE.DEST_ADDRESS",
	DEDestStride:         "DE.DEST_STRIDE",
	DEDestRotationConfig: "DE.DEST_ROTATION_CONFIG",
	DEDestConfig:         "DE.DEST_CONFIG",
	DEPatternAddress:     "DE.PATTERN_ADDRESS",
	DEPatternConfig:      "DE.PATTERN_CONFIG",
	DEPatternLow:         "DE.PATTERN_LOW",
	DEPatternHigh:        "DE.PATTERN_HIGH",
	DEPatternMaskLow:     "DE.PATTERN_MASK_LOW",
	DEPatternMaskHigh:    "DE.PATTERN_MASK_HIGH",
	DEPatternBGColor:     "DE.PATTERN_BG_COLOR",
	DEPatternFGColor:     "DE.PATTERN_FG_COLOR",
	DERop:                "DE.ROP",
	DEClipTopLeft:        "DE.CLIP_TOP_LEFT",
	DEClipBottomRight:    "DE.CLIP_BOTTOM_RIGHT",
	DEConfig:             "DE.CONFIG",
	DEAlphaControl:       "DE.ALPHA_CONTROL",
	DEAlphaModes:         "DE.ALPHA_MODES",
	DEGlobalSrcColor:     "DE.GLOBAL_SRC_COLOR",
	DEGlobalDestColor:    "DE.GLOBAL_DEST_COLOR",
	DEColorMultiplyModes: "DE.COLOR_MULTIPLY_MODES",
	GLFlushCache:         "GL.FLUSH_CACHE",
}

// Name returns the symbolic name of a register address, or "" if unknown.
func Name(reg uint32) string {
	return names[reg]
}
