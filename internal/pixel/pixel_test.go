package pixel

import (
	"testing"

	"github.com/gogpu/blit/internal/regs"
)

func mustLayout(t *testing.T, code, swizzle uint32) Layout {
	t.Helper()
	l, ok := EngineLayout(code, swizzle)
	if !ok {
		t.Fatalf("EngineLayout(%d, %d) not addressable", code, swizzle)
	}
	return l
}

func TestUnpack(t *testing.T) {
	tests := []struct {
		name    string
		code    uint32
		swizzle uint32
		in      uint32
		want    uint32
	}{
		{"a8r8g8b8", regs.FormatA8R8G8B8, regs.SwizzleARGB, 0x80102030, 0x80102030},
		{"x8r8g8b8 is opaque", regs.FormatX8R8G8B8, regs.SwizzleARGB, 0x00102030, 0xff102030},
		{"a8b8g8r8", regs.FormatA8R8G8B8, regs.SwizzleABGR, 0xff0000ff, 0xffff0000},
		{"r8g8b8a8", regs.FormatA8R8G8B8, regs.SwizzleRGBA, 0xff000080, 0x80ff0000},
		{"r5g6b5 red", regs.FormatR5G6B5, regs.SwizzleARGB, 0xf800, 0xffff0000},
		{"r5g6b5 green", regs.FormatR5G6B5, regs.SwizzleARGB, 0x07e0, 0xff00ff00},
		{"b5g6r5 red", regs.FormatR5G6B5, regs.SwizzleABGR, 0x001f, 0xffff0000},
		{"x1r5g5b5", regs.FormatX1R5G5B5, regs.SwizzleARGB, 0x7c00, 0xffff0000},
		{"a1r5g5b5", regs.FormatA1R5G5B5, regs.SwizzleARGB, 0x8000, 0xff000000},
		{"a4r4g4b4", regs.FormatA4R4G4B4, regs.SwizzleARGB, 0xf0f8, 0xff00ff88},
		{"a8", regs.FormatA8, regs.SwizzleARGB, 0x7f, 0x7f000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLayout(t, tt.code, tt.swizzle)
			if got := l.Unpack(tt.in); got != tt.want {
				t.Errorf("Unpack(%#x) = %#08x, want %#08x", tt.in, got, tt.want)
			}
		})
	}
}

func TestPack(t *testing.T) {
	tests := []struct {
		name    string
		code    uint32
		swizzle uint32
		in      uint32
		want    uint32
	}{
		{"r5g6b5", regs.FormatR5G6B5, regs.SwizzleARGB, 0xffff0000, 0xf800},
		{"r5g6b5 drops alpha", regs.FormatR5G6B5, regs.SwizzleARGB, 0x000000ff, 0x001f},
		{"x8r8g8b8 clears padding", regs.FormatX8R8G8B8, regs.SwizzleARGB, 0x80123456, 0x00123456},
		{"b8g8r8a8", regs.FormatA8R8G8B8, regs.SwizzleBGRA, 0x80ff0000, 0x0000ff80},
		{"a4r4g4b4", regs.FormatA4R4G4B4, regs.SwizzleARGB, 0xff80ff00, 0xf8f0},
		{"a8", regs.FormatA8, regs.SwizzleARGB, 0x40ffffff, 0x40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLayout(t, tt.code, tt.swizzle)
			if got := l.Pack(tt.in); got != tt.want {
				t.Errorf("Pack(%#08x) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestEngineLayoutUnaddressable(t *testing.T) {
	for _, code := range []uint32{regs.FormatYUY2, regs.FormatNV12, regs.FormatMonochrome} {
		if _, ok := EngineLayout(code, regs.SwizzleARGB); ok {
			t.Errorf("format %d reported addressable", code)
		}
	}
	if _, ok := EngineLayout(regs.FormatA8R8G8B8, 7); ok {
		t.Error("invalid swizzle accepted")
	}
}

func TestOffset(t *testing.T) {
	tests := []struct {
		x, y, pitch, cpp int
		tiled            bool
		want             int
	}{
		{3, 2, 64, 4, false, 2*64 + 12},
		{0, 0, 64, 4, true, 0},
		{1, 0, 64, 4, true, 4},
		{0, 1, 64, 4, true, 16},
		{4, 0, 64, 4, true, 64},
		{0, 4, 64, 4, true, 256},
		{5, 6, 64, 4, true, 256 + 64 + 36},
		{5, 6, 32, 2, true, 128 + 32 + 18},
	}
	for _, tt := range tests {
		if got := Offset(tt.x, tt.y, tt.pitch, tt.cpp, tt.tiled); got != tt.want {
			t.Errorf("Offset(%d, %d, %d, %d, %v) = %d, want %d",
				tt.x, tt.y, tt.pitch, tt.cpp, tt.tiled, got, tt.want)
		}
	}
}

func TestLoadStore(t *testing.T) {
	mem := make([]byte, 8)
	Store(mem, 0, 4, 0x11223344)
	Store(mem, 4, 2, 0xaabbcc)
	Store(mem, 6, 1, 0x1ff)
	want := []byte{0x44, 0x33, 0x22, 0x11, 0xcc, 0xbb, 0xff, 0}
	for i := range want {
		if mem[i] != want[i] {
			t.Fatalf("memory = % x, want % x", mem, want)
		}
	}
	if got := Load(mem, 0, 4); got != 0x11223344 {
		t.Errorf("Load 4 = %#x", got)
	}
	if got := Load(mem, 4, 2); got != 0xbbcc {
		t.Errorf("Load 2 = %#x", got)
	}
	if got := Load(mem, 6, 1); got != 0xff {
		t.Errorf("Load 1 = %#x", got)
	}
}

func TestRop3(t *testing.T) {
	const p, s, d = 0xff00ff00, 0xf0f0f0f0, 0xcccccccc
	tests := []struct {
		rop  uint8
		want uint32
	}{
		{0x00, 0},
		{0xff, 0xffffffff},
		{0xcc, s},
		{0xf0, p},
		{0xaa, d},
		{0x33, ^uint32(s)},
		{0x55, ^uint32(d)},
		{0x88, s & d},
		{0xee, s | d},
		{0x66, s ^ d},
		{0xa0, p & d},
		{0x5a, p ^ d},
		{0xb8, (p &^ s) | (d & s)},
	}
	for _, tt := range tests {
		if got := Rop3(tt.rop, p, s, d); got != tt.want {
			t.Errorf("Rop3(%#02x) = %#08x, want %#08x", tt.rop, got, tt.want)
		}
	}
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name         string
		s, d, fs, fd uint32
		want         uint32
	}{
		{"src", 0x80800000, 0xff0000ff, 0xff, 0, 0x80800000},
		{"over", 0x80800000, 0xff0000ff, 0xff, 0xff - 0x80, 0xff80007f},
		{"add saturates", 0xc0c00000, 0xc0c00000, 0xff, 0xff, 0xffff0000},
		{"clear", 0xffffffff, 0xffffffff, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Blend(tt.s, tt.d, tt.fs, tt.fd); got != tt.want {
				t.Errorf("Blend = %#08x, want %#08x", got, tt.want)
			}
		})
	}
}

func TestFactor(t *testing.T) {
	tests := []struct {
		mode, alpha, want uint32
	}{
		{regs.BlendZero, 0x40, 0},
		{regs.BlendOne, 0x40, 0xff},
		{regs.BlendNormal, 0x40, 0x40},
		{regs.BlendInversed, 0x40, 0xbf},
	}
	for _, tt := range tests {
		if got := Factor(tt.mode, tt.alpha); got != tt.want {
			t.Errorf("Factor(%d, %#x) = %#x, want %#x", tt.mode, tt.alpha, got, tt.want)
		}
	}
}

func TestPremultiply(t *testing.T) {
	if got := Premultiply(0x80ff8000, 0x80); got != 0x80804000 {
		t.Errorf("Premultiply = %#08x, want 0x80804000", got)
	}
	if got := Demultiply(0x80400000); got != 0x80800000 {
		t.Errorf("Demultiply = %#08x, want 0x80800000", got)
	}
	for _, v := range []uint32{0, 0xff123456} {
		if got := Demultiply(v); got != v {
			t.Errorf("Demultiply(%#08x) = %#08x", v, got)
		}
	}
}

func TestAlignUp(t *testing.T) {
	if got := AlignUp[uint32](13, 8); got != 16 {
		t.Errorf("AlignUp(13, 8) = %d", got)
	}
	if got := AlignUp[uint](64, 64); got != 64 {
		t.Errorf("AlignUp(64, 64) = %d", got)
	}
}
