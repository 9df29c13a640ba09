package cartridge

// nrom implements iNES mapper 0. No bank switching: 16KB PRG-ROM is
// mirrored across $8000-$FFFF, 32KB PRG-ROM is mapped directly. CHR is
// either a fixed 8KB ROM bank or, when the header carries no CHR-ROM,
// 8KB of CHR-RAM.
type nrom struct {
	prgROM []uint8
	chrMem []uint8
	sram   [0x2000]uint8
	prgMask16K bool
	chrIsRAM   bool
	mirror     MirrorMode
}

func newNROM(prgROM, chrROM []uint8, chrIsRAM bool, mirror MirrorMode) *nrom {
	return &nrom{
		prgROM:     prgROM,
		chrMem:     chrROM,
		prgMask16K: len(prgROM) == prgBankSize,
		chrIsRAM:   chrIsRAM,
		mirror:     mirror,
	}
}

func (m *nrom) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x8000:
		offset := addr - 0x8000
		if m.prgMask16K {
			offset &= 0x3FFF
		}
		return m.prgROM[offset]
	case addr >= 0x6000:
		return m.sram[addr-0x6000]
	}
	return 0
}

func (m *nrom) WritePRG(addr uint16, value uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.sram[addr-0x6000] = value
	}
}

func (m *nrom) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chrMem) {
		return m.chrMem[addr]
	}
	return 0
}

func (m *nrom) WriteCHR(addr uint16, value uint8) {
	if m.chrIsRAM && int(addr) < len(m.chrMem) {
		m.chrMem[addr] = value
	}
}

func (m *nrom) Mirroring() MirrorMode { return m.mirror }

// PRGRAM implements cartridge.Battery.
func (m *nrom) PRGRAM() []uint8 { return m.sram[:] }

func (m *nrom) SaveState() MapperState {
	s := MapperState{SRAM: append([]uint8(nil), m.sram[:]...)}
	if m.chrIsRAM {
		s.CHRRAM = append([]uint8(nil), m.chrMem...)
	}
	return s
}

func (m *nrom) LoadState(s MapperState) {
	copy(m.sram[:], s.SRAM)
	if m.chrIsRAM {
		copy(m.chrMem, s.CHRRAM)
	}
}
