package video

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"nesemu/internal/config"
)

func TestParseKeyResolvesKnownNames(t *testing.T) {
	b := parseKey("KeyJ")
	if !b.valid || b.key != ebiten.KeyJ {
		t.Fatalf("parseKey(KeyJ) = %+v, want valid ebiten.KeyJ", b)
	}
}

func TestParseKeyRejectsUnknownNames(t *testing.T) {
	b := parseKey("NotARealKey")
	if b.valid {
		t.Fatalf("parseKey of a bogus name should not resolve, got %+v", b)
	}
}

func TestKeysFromMappingOrderMatchesControllerButtons(t *testing.T) {
	km := config.KeyMapping{
		A: "KeyJ", B: "KeyK", Select: "Space", Start: "Enter",
		Up: "ArrowUp", Down: "ArrowDown", Left: "ArrowLeft", Right: "ArrowRight",
	}
	bindings := keysFromMapping(km)
	want := []ebiten.Key{
		ebiten.KeyJ, ebiten.KeyK, ebiten.KeySpace, ebiten.KeyEnter,
		ebiten.KeyArrowUp, ebiten.KeyArrowDown, ebiten.KeyArrowLeft, ebiten.KeyArrowRight,
	}
	for i, w := range want {
		if !bindings[i].valid || bindings[i].key != w {
			t.Fatalf("binding %d = %+v, want valid %v", i, bindings[i], w)
		}
	}
}

func TestNESPaletteHas64Entries(t *testing.T) {
	if len(NESPalette) != 64 {
		t.Fatalf("NESPalette has %d entries, want 64", len(NESPalette))
	}
}

func TestConvertFrameToRGBAWritesOpaquePixels(t *testing.T) {
	var frame [nesWidth * nesHeight]uint8
	frame[0] = 0x30
	out := make([]byte, nesWidth*nesHeight*4)
	convertFrameToRGBA(&frame, out)

	if out[3] != 255 {
		t.Fatalf("converted pixel alpha = %d, want 255", out[3])
	}
	want := NESPalette[0x30]
	if out[0] != want[0] || out[1] != want[1] || out[2] != want[2] {
		t.Fatalf("converted pixel RGB = %v, want %v", out[:3], want)
	}
}

func TestConvertFrameToRGBAMasksIndexTo6Bits(t *testing.T) {
	var frame [nesWidth * nesHeight]uint8
	frame[1] = 0xFF // out-of-range index should wrap into the 64-entry table
	out := make([]byte, nesWidth*nesHeight*4)
	convertFrameToRGBA(&frame, out)

	want := NESPalette[0xFF&0x3F]
	o := 4
	if out[o] != want[0] || out[o+1] != want[1] || out[o+2] != want[2] {
		t.Fatalf("converted pixel RGB = %v, want %v", out[o:o+3], want)
	}
}
