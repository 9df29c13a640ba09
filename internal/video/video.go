// Package video is the one place this repository imports
// github.com/hajimehoshi/ebiten/v2: a thin framebuffer presenter and
// keyboard-to-controller input poller. The core (internal/nes/...) has
// no rendering dependency at all; this package is an external
// collaborator the host binary wires in, per spec.md's scoping of the
// window/GL layer out of the emulation core.
package video

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"nesemu/internal/config"
)

// errQuit is returned from Update to unwind ebiten.RunGame cleanly once
// the window has requested to close; Run treats it as a normal exit
// rather than a crash.
var errQuit = errors.New("video: window closed")

const (
	nesWidth  = 256
	nesHeight = 240
)

// Backend presents NES framebuffers through an ebiten window and polls
// keyboard state into the two controller ports' 8-bit button layout
// (A, B, Select, Start, Up, Down, Left, Right), matching
// internal/nes/controller.Button's ordering.
type Backend struct {
	title string
	scale int

	frameImage *ebiten.Image
	pixels     []byte // reused RGBA staging buffer, avoids a per-frame allocation

	keymap  [2][8]keyBinding
	buttons [2][8]bool

	closeRequested bool
}

// NewBackend constructs a Backend from the two controller ports' key
// bindings. Unrecognized key names fall back to ebiten.KeyUnknown (and
// so are simply never pressed), rather than failing construction.
func NewBackend(title string, scale int, player1, player2 config.KeyMapping) *Backend {
	b := &Backend{
		title:      title,
		scale:      scale,
		frameImage: ebiten.NewImage(nesWidth, nesHeight),
		pixels:     make([]byte, nesWidth*nesHeight*4),
	}
	b.keymap[0] = keysFromMapping(player1)
	b.keymap[1] = keysFromMapping(player2)
	return b
}

// keyBinding pairs a parsed ebiten.Key with whether the name resolved
// to one at all, so an unrecognized binding can be skipped at poll time
// instead of querying ebiten with a meaningless key value.
type keyBinding struct {
	key   ebiten.Key
	valid bool
}

// keysFromMapping resolves a KeyMapping's button->key-name strings into
// ebiten.Key values, in controller.Button order (A, B, Select, Start,
// Up, Down, Left, Right).
func keysFromMapping(km config.KeyMapping) [8]keyBinding {
	return [8]keyBinding{
		parseKey(km.A),
		parseKey(km.B),
		parseKey(km.Select),
		parseKey(km.Start),
		parseKey(km.Up),
		parseKey(km.Down),
		parseKey(km.Left),
		parseKey(km.Right),
	}
}

var keyNames = map[string]ebiten.Key{
	"KeyA": ebiten.KeyA, "KeyB": ebiten.KeyB, "KeyC": ebiten.KeyC, "KeyD": ebiten.KeyD,
	"KeyE": ebiten.KeyE, "KeyF": ebiten.KeyF, "KeyG": ebiten.KeyG, "KeyH": ebiten.KeyH,
	"KeyI": ebiten.KeyI, "KeyJ": ebiten.KeyJ, "KeyK": ebiten.KeyK, "KeyL": ebiten.KeyL,
	"KeyM": ebiten.KeyM, "KeyN": ebiten.KeyN, "KeyO": ebiten.KeyO, "KeyP": ebiten.KeyP,
	"KeyQ": ebiten.KeyQ, "KeyR": ebiten.KeyR, "KeyS": ebiten.KeyS, "KeyT": ebiten.KeyT,
	"KeyU": ebiten.KeyU, "KeyV": ebiten.KeyV, "KeyW": ebiten.KeyW, "KeyX": ebiten.KeyX,
	"KeyY": ebiten.KeyY, "KeyZ": ebiten.KeyZ,
	"ArrowUp": ebiten.KeyArrowUp, "ArrowDown": ebiten.KeyArrowDown,
	"ArrowLeft": ebiten.KeyArrowLeft, "ArrowRight": ebiten.KeyArrowRight,
	"Enter": ebiten.KeyEnter, "Space": ebiten.KeySpace, "Escape": ebiten.KeyEscape,
	"ShiftRight": ebiten.KeyShiftRight, "ShiftLeft": ebiten.KeyShiftLeft,
	"ControlRight": ebiten.KeyControlRight, "ControlLeft": ebiten.KeyControlLeft,
}

func parseKey(name string) keyBinding {
	if k, ok := keyNames[name]; ok {
		return keyBinding{key: k, valid: true}
	}
	return keyBinding{}
}

// convertFrameToRGBA expands a palette-index framebuffer into the RGBA
// byte layout ebiten.Image.WritePixels expects. Kept free of any
// ebiten dependency so it can be tested without a graphics context.
func convertFrameToRGBA(frame *[nesWidth * nesHeight]uint8, out []byte) {
	for i, idx := range frame {
		c := NESPalette[idx&0x3F]
		o := i * 4
		out[o], out[o+1], out[o+2], out[o+3] = c[0], c[1], c[2], 255
	}
}

// Present copies a palette-index framebuffer into the ebiten image that
// Draw displays. cmd/gones calls it once per emulated frame from its
// emulation goroutine, not from Update.
func (b *Backend) Present(frame *[nesWidth * nesHeight]uint8) {
	convertFrameToRGBA(frame, b.pixels)
	b.frameImage.WritePixels(b.pixels)
}

// PollInput reports each controller port's currently held buttons.
func (b *Backend) PollInput() [2][8]bool { return b.buttons }

// ShouldClose reports whether Escape has been pressed. Closing the window
// through the OS ends Run but does not set this flag.
func (b *Backend) ShouldClose() bool { return b.closeRequested }

func (b *Backend) pollKeys() {
	for port := 0; port < 2; port++ {
		for i, binding := range b.keymap[port] {
			b.buttons[port][i] = binding.valid && ebiten.IsKeyPressed(binding.key)
		}
	}
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		b.closeRequested = true
	}
}

// Update implements ebiten.Game: it only samples input, since frame
// advance is driven by the host's own emulation loop via Present.
func (b *Backend) Update() error {
	b.pollKeys()
	if b.closeRequested {
		return errQuit
	}
	return nil
}

// Draw implements ebiten.Game: scales the last-presented frame to fit
// the window, centered, preserving aspect ratio.
func (b *Backend) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scaleX := float64(sw) / float64(nesWidth)
	scaleY := float64(sh) / float64(nesHeight)
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}
	offsetX := (float64(sw) - float64(nesWidth)*scale) / 2
	offsetY := (float64(sh) - float64(nesHeight)*scale) / 2

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	screen.DrawImage(b.frameImage, op)
}

// Layout implements ebiten.Game.
func (b *Backend) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Run opens the window and blocks in ebiten's game loop until the user
// closes it or Update returns errQuit (Escape pressed).
func (b *Backend) Run() error {
	ebiten.SetWindowTitle(b.title)
	ebiten.SetWindowSize(nesWidth*b.scale, nesHeight*b.scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(b); err != nil && !errors.Is(err, errQuit) {
		return fmt.Errorf("video: run: %w", err)
	}
	return nil
}
