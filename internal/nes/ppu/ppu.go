// Package ppu implements the Ricoh 2C02 Picture Processing Unit: register
// ports, the scanline/dot state machine, the background and sprite
// pixel pipelines, and the combinatorial NMI output line.
package ppu

// VideoBus is the CHR-side memory the PPU renders through: the
// cartridge's mapper, which owns CHR ROM/RAM and reports its current
// nametable mirroring mode.
type VideoBus interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, value uint8)
	Mirroring() MirrorMode
}

// MirrorMode mirrors cartridge.MirrorMode's values without importing the
// cartridge package, keeping ppu free of a dependency on cartridge
// internals beyond this tiny enum that both packages share in spirit.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleLower
	MirrorSingleUpper
	MirrorFourScreen
)

const (
	ctrlNMIEnable     = 0x80
	ctrlSpriteHeight  = 0x20
	ctrlBGPatternBase = 0x10
	ctrlSpritePatternBase = 0x08
	ctrlIncrement32   = 0x04
	ctrlNametableMask = 0x03

	maskShowBG           = 0x08
	maskShowSprites      = 0x10
	maskShowBGLeft       = 0x02
	maskShowSpritesLeft  = 0x04

	statusVBlank   = 0x80
	statusSprite0  = 0x40
	statusOverflow = 0x20
)

// PPU is the 2C02 core. Callers drive it one dot at a time via Step and
// observe the combinatorial NMI line via NMIOutput, mirroring the way
// the CPU exposes SetNMILine for the bus to wire the two together.
type PPU struct {
	ctrl   uint8
	mask   uint8
	status uint8
	oamAddr uint8

	v, t uint16
	x    uint8
	w    bool

	readBuffer uint8

	nametables [0x800]uint8
	palette    [32]uint8
	oam        [256]uint8
	secondaryOAM [32]uint8
	spriteIndexes [8]uint8
	spriteCount   int

	bus VideoBus

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	sprite0HitThisFrame bool

	frameBuffer [256 * 240]uint8 // stores NES palette indices (0-63), video layer maps to RGB

	a12Low int // carried in save states; trackA12 does not update it
	onA12Rise func()
}

// New constructs a PPU with no video bus attached; call SetVideoBus
// before Step or register access touches CHR memory.
func New() *PPU {
	p := &PPU{scanline: 261, dot: 0}
	return p
}

// SetVideoBus attaches the cartridge mapper CHR is routed through.
func (p *PPU) SetVideoBus(bus VideoBus) { p.bus = bus }

// SetA12RiseCallback installs the hook MMC3's scanline IRQ counter
// clocks on. The PPU invokes it through trackA12's once-per-scanline
// approximation of the A12 rising edge, not on every real A12 transition.
func (p *PPU) SetA12RiseCallback(cb func()) { p.onA12Rise = cb }

// Reset returns the PPU to its post-power-up state.
func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status = 0, 0, 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.scanline, p.dot = 261, 0
	p.frame = 0
	p.oddFrame = false
	p.sprite0HitThisFrame = false
	for i := range p.oam {
		p.oam[i] = 0
	}
}

// FrameBuffer returns the current frame's NES palette-index pixels,
// row-major, 256x240.
func (p *PPU) FrameBuffer() *[256 * 240]uint8 { return &p.frameBuffer }

// FrameCount returns the number of frames completed so far.
func (p *PPU) FrameCount() uint64 { return p.frame }

// Scanline returns the current scanline (0-261).
func (p *PPU) Scanline() int { return p.scanline }

// Dot returns the current dot within the scanline (0-340).
func (p *PPU) Dot() int { return p.dot }

// NMIOutput reports the PPU's combinatorial NMI line: true whenever
// PPUCTRL's NMI-enable bit and PPUSTATUS's VBlank flag are both set.
func (p *PPU) NMIOutput() bool {
	return p.ctrl&ctrlNMIEnable != 0 && p.status&statusVBlank != 0
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8
// bytes through $3FFF by the bus).
func (p *PPU) ReadRegister(reg uint16) uint8 {
	switch reg & 7 {
	case 2: // PPUSTATUS
		v := p.status
		p.status &^= statusVBlank // only VBlank clears on read; sprite0/overflow persist (invariant)
		p.w = false
		return v
	case 4: // OAMDATA
		return p.oam[p.oamAddr]
	case 7: // PPUDATA
		return p.readData()
	default:
		return 0
	}
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(reg uint16, value uint8) {
	switch reg & 7 {
	case 0: // PPUCTRL
		p.ctrl = value
		p.t = (p.t &^ 0x0C00) | (uint16(value&ctrlNametableMask) << 10)
	case 1: // PPUMASK
		p.mask = value
	case 3: // OAMADDR
		p.oamAddr = value
	case 4: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5: // PPUSCROLL
		if !p.w {
			p.t = (p.t &^ 0x001F) | uint16(value>>3)
			p.x = value & 0x07
			p.w = true
		} else {
			p.t = (p.t &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value&0xF8) << 2)
			p.w = false
		}
	case 6: // PPUADDR
		if !p.w {
			p.t = (p.t &^ 0x7F00) | (uint16(value&0x3F) << 8)
			p.w = true
		} else {
			p.t = (p.t &^ 0x00FF) | uint16(value)
			p.v = p.t
			p.w = false
		}
	case 7: // PPUDATA
		p.writeData(value)
	}
}

// WriteOAMByte is used by OAM DMA: it bypasses OAMADDR auto-increment
// semantics used by $2004 and writes directly at the given index.
func (p *PPU) WriteOAMByte(index uint8, value uint8) { p.oam[index] = value }

// OAMAddr reports the current OAMADDR, used by the bus to
// know where a DMA transfer should begin writing (OAM DMA always starts
// at whatever OAMADDR currently holds).
func (p *PPU) OAMAddr() uint8 { return p.oamAddr }

func (p *PPU) renderingEnabled() bool {
	return p.mask&(maskShowBG|maskShowSprites) != 0
}

func (p *PPU) readData() uint8 {
	addr := p.v & 0x3FFF
	var data uint8
	if addr >= 0x3F00 {
		data = p.readPalette(addr)
		p.readBuffer = p.readVRAMThrough(addr & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.readVRAMThrough(addr)
	}
	p.advanceVRAMAddr()
	return data
}

func (p *PPU) writeData(value uint8) {
	addr := p.v & 0x3FFF
	if addr >= 0x3F00 {
		p.writePalette(addr, value)
	} else {
		p.writeVRAMThrough(addr, value)
	}
	p.advanceVRAMAddr()
}

func (p *PPU) advanceVRAMAddr() {
	if p.ctrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

func (p *PPU) readVRAMThrough(addr uint16) uint8 {
	if addr < 0x2000 {
		return p.bus.ReadCHR(addr)
	}
	return p.nametables[p.mirrorAddr(addr)]
}

func (p *PPU) writeVRAMThrough(addr uint16, value uint8) {
	if addr < 0x2000 {
		p.bus.WriteCHR(addr, value)
		return
	}
	p.nametables[p.mirrorAddr(addr)] = value
}

func (p *PPU) mirrorAddr(addr uint16) uint16 {
	addr = (addr - 0x2000) & 0x0FFF
	table := addr / 0x400
	offset := addr % 0x400

	mode := MirrorHorizontal
	if p.bus != nil {
		mode = p.bus.Mirroring()
	}

	var physical uint16
	switch mode {
	case MirrorVertical:
		physical = table % 2
	case MirrorHorizontal:
		physical = table / 2
	case MirrorSingleLower:
		physical = 0
	case MirrorSingleUpper:
		physical = 1
	default: // four-screen: not backed by the usual 2KB VRAM, wrap harmlessly
		physical = table % 2
	}
	return physical*0x400 + offset
}

func (p *PPU) readPalette(addr uint16) uint8 {
	return p.palette[paletteIndex(addr)]
}

func (p *PPU) writePalette(addr uint16, value uint8) {
	p.palette[paletteIndex(addr)] = value & 0x3F
}

// paletteIndex folds the $3F00-$3FFF mirror and the sprite-backdrop
// aliasing ($3F10/$3F14/$3F18/$3F1C mirror their background equivalents).
func paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1F
	if idx >= 0x10 && idx%4 == 0 {
		idx -= 0x10
	}
	return idx
}

// Step advances the PPU by exactly one dot.
func (p *PPU) Step() {
	if p.scanline == 261 && p.dot == 339 && p.oddFrame && p.renderingEnabled() {
		// Odd-frame dot skip: the idle dot at the end of the pre-render
		// line is dropped when rendering is on, shortening that frame
		// by a single PPU cycle.
		p.dot = 340
	}

	p.processDot()

	p.dot++
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline > 261 {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) processDot() {
	switch {
	case p.scanline == 241 && p.dot == 1:
		p.status |= statusVBlank
	case p.scanline == 261 && p.dot == 1:
		p.status &^= statusVBlank | statusSprite0 | statusOverflow
		p.sprite0HitThisFrame = false
	}

	if p.scanline == 261 && p.renderingEnabled() && p.dot >= 280 && p.dot <= 304 {
		p.copyY()
	}

	visible := p.scanline < 240
	prerender := p.scanline == 261
	if !visible && !prerender {
		return
	}
	if !p.renderingEnabled() {
		return
	}

	if p.dot >= 1 && p.dot <= 256 {
		if visible {
			p.renderPixel(p.dot-1, p.scanline)
		}
		if p.dot%8 == 0 {
			p.incrementCoarseX()
			p.trackA12(p.dot)
		}
	}
	if p.dot == 256 {
		p.incrementY()
	}
	if p.dot == 257 {
		p.copyX()
		if visible {
			p.evaluateSprites(p.scanline)
		}
	}
}

// trackA12 approximates the A12 rising edge MMC3 counts: it fires the
// callback once per rendered scanline, at dot 8, and only when PPUCTRL
// selects the $1000 pattern table for the background. Sprite pattern
// fetches are not tracked, so a layout with the background at $0000 and
// sprites at $1000 never fires the callback, and no low-period
// filtering is applied.
func (p *PPU) trackA12(dot int) {
	if p.onA12Rise == nil {
		return
	}
	usesHighBGTable := p.ctrl&ctrlBGPatternBase != 0
	if usesHighBGTable && dot == 8 {
		p.onA12Rise()
	}
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyX() { p.v = (p.v &^ 0x041F) | (p.t & 0x041F) }
func (p *PPU) copyY() { p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0) }

func (p *PPU) bgPatternBase() uint16 {
	if p.ctrl&ctrlBGPatternBase != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) spritePatternBase(tileIndex uint8, height int) (base uint16, tile uint8) {
	if height == 16 {
		base = uint16(tileIndex&1) * 0x1000
		tile = tileIndex &^ 1
		return
	}
	if p.ctrl&ctrlSpritePatternBase != 0 {
		base = 0x1000
	}
	tile = tileIndex
	return
}

type pixel struct {
	color       uint8 // 0-3
	palette     uint8
	transparent bool
	priority    bool // true = behind background (sprites only)
	isSprite0   bool
}

func (p *PPU) renderPixel(x, y int) {
	bg := p.backgroundPixelAt()
	spr := p.spritePixelAt(x, y)

	if spr.isSprite0 && !bg.transparent && !spr.transparent && !p.sprite0HitThisFrame {
		if x != 255 && (x >= 8 || (p.mask&maskShowBGLeft != 0 && p.mask&maskShowSpritesLeft != 0)) {
			p.sprite0HitThisFrame = true
			p.status |= statusSprite0
		}
	}

	var nesColor uint8
	switch {
	case bg.transparent && spr.transparent:
		nesColor = p.palette[0]
	case bg.transparent:
		nesColor = p.spritePaletteColor(spr)
	case spr.transparent:
		nesColor = p.bgPaletteColor(bg)
	case spr.priority:
		nesColor = p.bgPaletteColor(bg)
	default:
		nesColor = p.spritePaletteColor(spr)
	}

	p.frameBuffer[y*256+x] = nesColor & 0x3F
}

func (p *PPU) bgPaletteColor(px pixel) uint8 {
	if px.color == 0 {
		return p.palette[0]
	}
	return p.palette[paletteIndex(0x3F00+uint16(px.palette)*4+uint16(px.color))]
}

func (p *PPU) spritePaletteColor(px pixel) uint8 {
	return p.palette[paletteIndex(0x3F10+uint16(px.palette)*4+uint16(px.color))]
}

func (p *PPU) backgroundPixelAt() pixel {
	if p.mask&maskShowBG == 0 {
		return pixel{transparent: true}
	}
	fineX := int(p.x)
	coarseX := int(p.v & 0x001F)
	coarseY := int((p.v >> 5) & 0x001F)
	fineY := int((p.v >> 12) & 0x07)
	nametable := (p.v >> 10) & 0x03

	nametableAddr := 0x2000 | (nametable << 10) | uint16(coarseY*32+coarseX)
	tileID := p.readVRAMThrough(nametableAddr)

	attrAddr := 0x23C0 | (nametable << 10) | uint16((coarseY/4)*8+(coarseX/4))
	attrByte := p.readVRAMThrough(attrAddr)
	quadrant := ((coarseX % 4) / 2) + ((coarseY%4)/2)*2
	paletteSel := (attrByte >> (uint(quadrant) * 2)) & 0x03

	patternAddr := p.bgPatternBase() + uint16(tileID)*16 + uint16(fineY)
	lo := p.bus.ReadCHR(patternAddr)
	hi := p.bus.ReadCHR(patternAddr + 8)
	shift := 7 - fineX
	color := ((hi>>uint(shift))&1)<<1 | (lo>>uint(shift))&1

	return pixel{color: color, palette: paletteSel, transparent: color == 0}
}

func (p *PPU) spritePixelAt(x, y int) pixel {
	if p.mask&maskShowSprites == 0 {
		return pixel{transparent: true}
	}
	height := 8
	if p.ctrl&ctrlSpriteHeight != 0 {
		height = 16
	}
	for i := 0; i < p.spriteCount; i++ {
		base := i * 4
		sy := int(p.secondaryOAM[base])
		tile := p.secondaryOAM[base+1]
		attr := p.secondaryOAM[base+2]
		sx := int(p.secondaryOAM[base+3])

		if x < sx || x >= sx+8 {
			continue
		}
		row := y - (sy + 1)
		if row < 0 || row >= height {
			continue
		}
		col := x - sx
		if attr&0x40 != 0 {
			col = 7 - col
		}
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		base16, tileIdx := p.spritePatternBase(tile, height)
		if height == 16 && row >= 8 {
			tileIdx++
			row -= 8
		}
		addr := base16 + uint16(tileIdx)*16 + uint16(row)
		lo := p.bus.ReadCHR(addr)
		hi := p.bus.ReadCHR(addr + 8)
		shift := 7 - col
		color := ((hi>>uint(shift))&1)<<1 | (lo>>uint(shift))&1
		if color == 0 {
			continue
		}
		return pixel{
			color:     color,
			palette:   attr & 0x03,
			priority:  attr&0x20 != 0,
			isSprite0: p.spriteIndexes[i] == 0,
		}
	}
	return pixel{transparent: true}
}

// evaluateSprites fills secondary OAM for the NEXT scanline's rendering
// from the primary OAM, reproducing the hardware's diagonal-scan
// overflow bug: once 8 sprites are found, evaluation continues but
// increments both the sprite and byte-within-sprite index together,
// so it frequently reports overflow against sprites that are not
// actually in range on this scanline.
func (p *PPU) evaluateSprites(scanline int) {
	height := 8
	if p.ctrl&ctrlSpriteHeight != 0 {
		height = 16
	}

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}
	p.spriteCount = 0
	p.status &^= statusOverflow

	next := scanline + 1
	n := 0
	for ; n < 64 && p.spriteCount < 8; n++ {
		y := int(p.oam[n*4])
		if next < y+1 || next >= y+1+height {
			continue
		}
		copy(p.secondaryOAM[p.spriteCount*4:], p.oam[n*4:n*4+4])
		p.spriteIndexes[p.spriteCount] = uint8(n)
		p.spriteCount++
	}

	// Diagonal-scan bug: continue scanning with a buggy (m,n) increment
	// once 8 sprites are already committed, matching the hardware
	// quirk where the comparator's byte offset keeps advancing even
	// though it is no longer copying to secondary OAM.
	if p.spriteCount == 8 {
		m := 0
		for ; n < 64; n++ {
			y := int(p.oam[n*4+m])
			if next >= y+1 && next < y+1+height {
				p.status |= statusOverflow
				break
			}
			m = (m + 1) % 4
		}
	}
}

// State is the PPU's complete serializable state, exported for
// save-state snapshotting. The video bus (cartridge CHR/mirroring) is
// not included; the caller restores a cartridge separately.
type State struct {
	Ctrl, Mask, Status, OAMAddr uint8
	V, T                        uint16
	X                           uint8
	W                           bool
	ReadBuffer                  uint8
	Nametables                  [0x800]uint8
	Palette                     [32]uint8
	OAM                         [256]uint8
	Scanline, Dot               int
	Frame                       uint64
	OddFrame                    bool
	Sprite0HitThisFrame         bool
	FrameBuffer                 [256 * 240]uint8
	A12Low                      int
}

// Snapshot captures the PPU's current state.
func (p *PPU) Snapshot() State {
	return State{
		Ctrl: p.ctrl, Mask: p.mask, Status: p.status, OAMAddr: p.oamAddr,
		V: p.v, T: p.t, X: p.x, W: p.w,
		ReadBuffer:          p.readBuffer,
		Nametables:          p.nametables,
		Palette:             p.palette,
		OAM:                 p.oam,
		Scanline:            p.scanline,
		Dot:                 p.dot,
		Frame:               p.frame,
		OddFrame:            p.oddFrame,
		Sprite0HitThisFrame: p.sprite0HitThisFrame,
		FrameBuffer:         p.frameBuffer,
		A12Low:              p.a12Low,
	}
}

// Restore replaces the PPU's state with a previously captured Snapshot.
// The video bus and A12-rise callback, being external collaborators,
// are left untouched.
func (p *PPU) Restore(s State) {
	p.ctrl, p.mask, p.status, p.oamAddr = s.Ctrl, s.Mask, s.Status, s.OAMAddr
	p.v, p.t, p.x, p.w = s.V, s.T, s.X, s.W
	p.readBuffer = s.ReadBuffer
	p.nametables = s.Nametables
	p.palette = s.Palette
	p.oam = s.OAM
	p.scanline, p.dot = s.Scanline, s.Dot
	p.frame = s.Frame
	p.oddFrame = s.OddFrame
	p.sprite0HitThisFrame = s.Sprite0HitThisFrame
	p.frameBuffer = s.FrameBuffer
	p.a12Low = s.A12Low
}
