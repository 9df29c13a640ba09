package bus

import (
	"bytes"
	"testing"

	"nesemu/internal/nes/cartridge"
)

// buildNROM constructs a minimal 32KB-PRG/8KB-CHR NROM image with the
// reset vector pointed at $8000 so a freshly loaded machine starts
// executing from the first PRG byte.
func buildNROM(prg [0x8000]uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(2) // 32KB PRG
	buf.WriteByte(1) // 8KB CHR
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))
	buf.Write(prg[:])
	buf.Write(make([]byte, 0x2000)) // CHR
	return buf.Bytes()
}

func newTestMachine(t *testing.T, prg [0x8000]uint8) *Machine {
	t.Helper()
	prg[0x7FFC] = 0x00 // reset vector low -> $8000
	prg[0x7FFD] = 0x80 // reset vector high
	data := buildNROM(prg)
	cart, err := cartridge.LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load cartridge: %v", err)
	}
	m := New()
	m.LoadCartridge(cart)
	return m
}

func TestResetVectorLoadsFromCartridge(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	if m.CPU.PC != 0x8000 {
		t.Fatalf("PC = %04X, want 8000", m.CPU.PC)
	}
}

func TestRAMMirroring(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	m.bus.Write(0x0000, 0x42)
	if got := m.bus.Read(0x0800); got != 0x42 {
		t.Fatalf("RAM should mirror every $800 bytes, got %02X", got)
	}
	if got := m.bus.Read(0x1800); got != 0x42 {
		t.Fatalf("RAM should mirror at $1800 too, got %02X", got)
	}
}

func TestPPURegisterMirroringEvery8Bytes(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	m.bus.Write(0x2000, 0x80) // PPUCTRL, NMI enable
	m.bus.Write(0x2008, 0x00) // mirrors $2000
	if m.PPU.NMIOutput() {
		t.Fatalf("second write mirroring onto PPUCTRL should have cleared NMI-enable")
	}
	if m.PPU.Snapshot().Ctrl&0x80 != 0 {
		t.Fatalf("$2008 write should land on PPUCTRL and clear its NMI-enable bit")
	}
}

func TestControllerStrobeReachesBothPorts(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	m.SetButtons(0, [8]bool{true}) // A held on controller 1
	m.SetButtons(1, [8]bool{true}) // A held on controller 2
	m.bus.Write(0x4016, 1)
	m.bus.Write(0x4016, 0)
	if got := m.bus.Read(0x4016); got&0x01 == 0 {
		t.Fatalf("first $4016 read should report button A pressed")
	}
	if got := m.bus.Read(0x4017); got&0x01 == 0 {
		t.Fatalf("first $4017 read should report button A pressed on controller 2")
	}
}

func TestOAMDMACopiesPageIntoOAM(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	for i := 0; i < 256; i++ {
		m.bus.Write(uint16(0x0200+i), uint8(i))
	}
	m.triggerOAMDMA(0x02)
	if m.dmaStallCycles != 513 && m.dmaStallCycles != 514 {
		t.Fatalf("OAM DMA should schedule a 513/514-cycle stall, got %d", m.dmaStallCycles)
	}
	m.PPU.WriteRegister(0x2003, 0) // OAMADDR = 0, so we can read OAMDATA sequentially
	got := m.PPU.ReadRegister(0x2004)
	if got != 0 {
		t.Fatalf("OAM byte 0 after DMA from page $02 = %02X, want 00", got)
	}
	m.PPU.WriteRegister(0x2003, 0xAB)
	if got := m.PPU.ReadRegister(0x2004); got != 0xAB {
		t.Fatalf("OAM byte $AB after DMA from page $02 = %02X, want AB", got)
	}
}

func TestAPUStatusWriteAndRead(t *testing.T) {
	var prg [0x8000]uint8
	m := newTestMachine(t, prg)
	m.bus.Write(0x4003, 0x08) // pulse1 timer high + length load
	m.bus.Write(0x4015, 0x01) // enable pulse1
	if m.bus.Read(0x4015)&0x01 == 0 {
		t.Fatalf("status should report pulse1's length counter nonzero after enabling it")
	}
}

func TestMapperRegionDispatchesToCartridge(t *testing.T) {
	var prg [0x8000]uint8
	prg[0] = 0xEA // NOP at $8000, irrelevant here
	m := newTestMachine(t, prg)
	if got := m.bus.Read(0x8000); got != 0xEA {
		t.Fatalf("read at $8000 should go through to the cartridge PRG ROM, got %02X", got)
	}
}
