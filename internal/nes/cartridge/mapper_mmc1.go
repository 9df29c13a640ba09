package cartridge

// mmc1 implements iNES mapper 1. All control writes go through a 5-bit
// serial shift register clocked on consecutive $8000-$FFFF writes; the
// 5th write commits the accumulated value to one of four internal
// registers selected by the write's address range. A write with bit 7
// set resets the shift register and forces PRG mode 3 regardless of
// which write in the sequence it interrupts.
type mmc1 struct {
	prgROM []uint8
	chrMem []uint8
	sram   [0x2000]uint8

	prgBanks uint8
	chrIsRAM bool

	shift      uint8
	shiftCount uint8

	control  uint8 // mirroring(1:0) prgMode(3:2) chrMode(4)
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8
}

func newMMC1(prgROM, chrROM []uint8, chrIsRAM bool, mirror MirrorMode) *mmc1 {
	m := &mmc1{
		prgROM:   prgROM,
		chrMem:   chrROM,
		prgBanks: uint8(len(prgROM) / prgBankSize),
		chrIsRAM: chrIsRAM,
		shift:    0x10,
		control:  0x0C, // prgMode=3 (fix last), chrMode=0, mirror bits set below
	}
	switch mirror {
	case MirrorVertical:
		m.control |= 0x02
	case MirrorHorizontal:
		m.control |= 0x03
	}
	return m
}

func (m *mmc1) ReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.sram[addr-0x6000]
	case addr >= 0x8000 && addr < 0xC000:
		return m.prgROM[uint32(m.firstPRGBank())*prgBankSize+uint32(addr-0x8000)]
	case addr >= 0xC000:
		return m.prgROM[uint32(m.secondPRGBank())*prgBankSize+uint32(addr-0xC000)]
	}
	return 0
}

func (m *mmc1) firstPRGBank() uint8 {
	switch (m.control >> 2) & 0x03 {
	case 0, 1:
		return m.prgBank &^ 1
	case 2:
		return 0
	default: // 3: fix last
		return m.prgBank
	}
}

func (m *mmc1) secondPRGBank() uint8 {
	switch (m.control >> 2) & 0x03 {
	case 0, 1:
		return (m.prgBank &^ 1) | 1
	case 2:
		return m.prgBank
	default: // 3: fix last
		return m.prgBanks - 1
	}
}

func (m *mmc1) WritePRG(addr uint16, value uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.sram[addr-0x6000] = value
		return
	}
	if addr < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shift = 0x10
		m.shiftCount = 0
		m.control |= 0x0C
		return
	}

	m.shift = (m.shift >> 1) | ((value & 1) << 4)
	m.shiftCount++
	if m.shiftCount < 5 {
		return
	}

	committed := m.shift
	switch {
	case addr < 0xA000:
		m.control = committed & 0x1F
	case addr < 0xC000:
		m.chrBank0 = committed & 0x1F
	case addr < 0xE000:
		m.chrBank1 = committed & 0x1F
	default:
		m.prgBank = committed & 0x0F
	}
	m.shift = 0x10
	m.shiftCount = 0
}

func (m *mmc1) ReadCHR(addr uint16) uint8 {
	offset := m.chrOffset(addr)
	if int(offset) < len(m.chrMem) {
		return m.chrMem[offset]
	}
	return 0
}

func (m *mmc1) WriteCHR(addr uint16, value uint8) {
	if !m.chrIsRAM {
		return
	}
	offset := m.chrOffset(addr)
	if int(offset) < len(m.chrMem) {
		m.chrMem[offset] = value
	}
}

func (m *mmc1) chrOffset(addr uint16) uint32 {
	const chrWindow = 0x1000
	if m.control&0x10 == 0 { // 8KB mode
		bank := m.chrBank0 &^ 1
		if addr >= chrWindow {
			bank |= 1
		}
		return uint32(bank)*chrWindow + uint32(addr&(chrWindow-1))
	}
	if addr < chrWindow {
		return uint32(m.chrBank0)*chrWindow + uint32(addr)
	}
	return uint32(m.chrBank1)*chrWindow + uint32(addr-chrWindow)
}

func (m *mmc1) Mirroring() MirrorMode {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleLower
	case 1:
		return MirrorSingleUpper
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

// PRGRAM implements cartridge.Battery.
func (m *mmc1) PRGRAM() []uint8 { return m.sram[:] }

func (m *mmc1) SaveState() MapperState {
	s := MapperState{
		SRAM: append([]uint8(nil), m.sram[:]...),
		U8:   []uint8{m.shift, m.shiftCount, m.control, m.chrBank0, m.chrBank1, m.prgBank},
	}
	if m.chrIsRAM {
		s.CHRRAM = append([]uint8(nil), m.chrMem...)
	}
	return s
}

func (m *mmc1) LoadState(s MapperState) {
	copy(m.sram[:], s.SRAM)
	if m.chrIsRAM {
		copy(m.chrMem, s.CHRRAM)
	}
	if len(s.U8) >= 6 {
		m.shift, m.shiftCount, m.control, m.chrBank0, m.chrBank1, m.prgBank =
			s.U8[0], s.U8[1], s.U8[2], s.U8[3], s.U8[4], s.U8[5]
	}
}
