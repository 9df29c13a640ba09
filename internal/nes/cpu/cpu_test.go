package cpu

import "testing"

// flatMemory is a minimal 64KiB Memory implementation for unit tests.
type flatMemory struct {
	data [65536]uint8
}

func (m *flatMemory) Read(addr uint16) uint8        { return m.data[addr] }
func (m *flatMemory) Write(addr uint16, value uint8) { m.data[addr] = value }

func newTestCPU() (*CPU, *flatMemory) {
	mem := &flatMemory{}
	mem.data[resetVector] = 0x00
	mem.data[resetVector+1] = 0x80
	c := New(mem)
	c.Reset()
	return c, mem
}

func TestResetVector(t *testing.T) {
	c, _ := newTestCPU()
	if c.PC != 0x8000 {
		t.Fatalf("PC after reset = %04X, want 8000", c.PC)
	}
	if c.SP != 0xFD {
		t.Fatalf("SP after reset = %02X, want FD", c.SP)
	}
	if !c.I {
		t.Fatalf("I flag should be set after reset")
	}
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0xA9 // LDA #$00
	mem.data[0x8001] = 0x00
	cycles := c.Step()
	if cycles != 2 {
		t.Fatalf("LDA #imm cycles = %d, want 2", cycles)
	}
	if !c.Z {
		t.Fatalf("Z flag should be set after loading 0")
	}
	if c.N {
		t.Fatalf("N flag should be clear after loading 0")
	}

	mem.data[0x8002] = 0xA9 // LDA #$80
	mem.data[0x8003] = 0x80
	c.Step()
	if !c.N {
		t.Fatalf("N flag should be set after loading 0x80")
	}
	if c.Z {
		t.Fatalf("Z flag should be clear after loading 0x80")
	}
}

func TestAbsoluteXPageCrossExtraCycle(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0xBD // LDA $80FF,X
	mem.data[0x8001] = 0xFF
	mem.data[0x8002] = 0x80
	mem.data[0x8103] = 0x42
	c.X = 0x04 // 0x80FF + 4 = 0x8103, crosses page

	cycles := c.Step()
	if cycles != 5 {
		t.Fatalf("LDA abs,X page-crossing cycles = %d, want 5", cycles)
	}
	if c.A != 0x42 {
		t.Fatalf("A = %02X, want 42", c.A)
	}
}

func TestAbsoluteXNoPageCross(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0xBD // LDA $8000,X
	mem.data[0x8001] = 0x00
	mem.data[0x8002] = 0x80
	mem.data[0x8001+1] = 0x00
	mem.data[0x8002] = 0x80
	mem.data[0x8000+3] = 0x00
	mem.data[0x8003] = 0x37
	c.X = 0x03

	cycles := c.Step()
	if cycles != 4 {
		t.Fatalf("LDA abs,X same-page cycles = %d, want 4", cycles)
	}
}

func TestStoreNeverPaysPageCrossPenalty(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0x9D // STA $80FF,X (always 5 cycles, cross or not)
	mem.data[0x8001] = 0xFF
	mem.data[0x8002] = 0x80
	c.X = 0x04
	c.A = 0x99

	cycles := c.Step()
	if cycles != 5 {
		t.Fatalf("STA abs,X cycles = %d, want 5", cycles)
	}
	if mem.data[0x8103] != 0x99 {
		t.Fatalf("store did not land at expected address")
	}
}

func TestBranchTakenAndPageCrossCycles(t *testing.T) {
	c, mem := newTestCPU()
	c.Z = true
	mem.data[0x8000] = 0xF0 // BEQ +2
	mem.data[0x8001] = 0x02
	cycles := c.Step()
	if cycles != 3 {
		t.Fatalf("BEQ taken same-page cycles = %d, want 3", cycles)
	}
	if c.PC != 0x8004 {
		t.Fatalf("PC after taken branch = %04X, want 8004", c.PC)
	}

	mem.data[0x8004] = 0xF0 // BEQ -128, target $7F86 on the previous page
	mem.data[0x8005] = 0x80
	cycles = c.Step()
	if cycles != 4 {
		t.Fatalf("BEQ taken page-crossing cycles = %d, want 4", cycles)
	}
	if c.PC != 0x7F86 {
		t.Fatalf("PC after page-crossing branch = %04X, want 7F86", c.PC)
	}
}

func TestBranchNotTaken(t *testing.T) {
	c, mem := newTestCPU()
	c.Z = false
	mem.data[0x8000] = 0xF0 // BEQ +2, not taken
	mem.data[0x8001] = 0x02
	cycles := c.Step()
	if cycles != 2 {
		t.Fatalf("BEQ not-taken cycles = %d, want 2", cycles)
	}
	if c.PC != 0x8002 {
		t.Fatalf("PC after non-taken branch = %04X, want 8002", c.PC)
	}
}

func TestJMPIndirectPageWrapBug(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0x6C // JMP ($30FF)
	mem.data[0x8001] = 0xFF
	mem.data[0x8002] = 0x30
	mem.data[0x30FF] = 0x40
	mem.data[0x3000] = 0x12 // wrap reads from $3000, not $3100
	mem.data[0x3100] = 0xFF

	c.Step()
	if c.PC != 0x1240 {
		t.Fatalf("JMP indirect page-wrap PC = %04X, want 1240", c.PC)
	}
}

func TestBRKPushesBFlagSet(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[irqVector] = 0x00
	mem.data[irqVector+1] = 0x90
	mem.data[0x8000] = 0x00 // BRK
	c.Step()

	pushedStatus := mem.data[stackBase+uint16(c.SP)+1]
	if pushedStatus&bFlagMask == 0 {
		t.Fatalf("BRK must push status with B flag set")
	}
	if c.PC != 0x9000 {
		t.Fatalf("PC after BRK = %04X, want 9000", c.PC)
	}
	if !c.I {
		t.Fatalf("I flag should be set after servicing BRK")
	}
}

func TestNMIPushesBFlagClear(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[nmiVector] = 0x00
	mem.data[nmiVector+1] = 0xA0
	mem.data[0x8000] = 0xEA // NOP, gives SetNMILine something to preempt

	c.SetNMILine(true)
	cycles := c.Step()
	if cycles != 7 {
		t.Fatalf("NMI service cycles = %d, want 7", cycles)
	}
	pushedStatus := mem.data[stackBase+uint16(c.SP)+1]
	if pushedStatus&bFlagMask != 0 {
		t.Fatalf("NMI must push status with B flag clear")
	}
	if c.PC != 0xA000 {
		t.Fatalf("PC after NMI = %04X, want A000", c.PC)
	}
}

func TestNMIIsEdgeTriggeredNotLevel(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[nmiVector] = 0x00
	mem.data[nmiVector+1] = 0xA0
	mem.data[0x8000] = 0xEA
	mem.data[0x8001] = 0xEA

	c.SetNMILine(true)
	c.Step() // services the NMI, PC -> 0xA000
	mem.data[0xA000] = 0xEA
	c.SetNMILine(true) // still high, no new edge
	pcBefore := c.PC
	c.Step()
	if c.PC != pcBefore+1 {
		t.Fatalf("held-high NMI line re-triggered service unexpectedly")
	}
}

func TestIRQMaskedByIFlag(t *testing.T) {
	c, mem := newTestCPU()
	c.I = true
	mem.data[0x8000] = 0xEA // NOP
	c.SetIRQLine(true)
	pcBefore := c.PC
	c.Step()
	if c.PC != pcBefore+1 {
		t.Fatalf("masked IRQ should not have been serviced")
	}
}

func TestIRQServicedWhenUnmasked(t *testing.T) {
	c, mem := newTestCPU()
	c.I = false
	mem.data[irqVector] = 0x00
	mem.data[irqVector+1] = 0xB0
	c.SetIRQLine(true)
	c.Step()
	if c.PC != 0xB000 {
		t.Fatalf("PC after serviced IRQ = %04X, want B000", c.PC)
	}
}

func TestUnknownOpcodeFallsBackToTwoCycleNOP(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0x02 // unassigned opcode
	cycles := c.Step()
	if cycles != 2 {
		t.Fatalf("unknown opcode cycles = %d, want 2 (NOP-equivalent)", cycles)
	}
	if c.PC != 0x8001 {
		t.Fatalf("unknown opcode should still advance PC by its implied byte count")
	}
}

func TestADCIgnoresDecimalFlag(t *testing.T) {
	c, mem := newTestCPU()
	c.D = true
	c.A = 0x09
	c.C = false
	mem.data[0x8000] = 0x69 // ADC #$01
	mem.data[0x8001] = 0x01
	c.Step()
	if c.A != 0x0A {
		t.Fatalf("ADC with D set = %02X, want binary result 0A (NES 2A03 has no BCD)", c.A)
	}
}

func TestStatusByteRoundTrip(t *testing.T) {
	c, _ := newTestCPU()
	c.N, c.V, c.D, c.I, c.Z, c.C = true, true, true, true, true, true
	b := c.statusByte()
	c2 := &CPU{}
	c2.setStatusByte(b)
	if c2.N != c.N || c2.V != c.V || c2.D != c.D || c2.I != c.I || c2.Z != c.Z || c2.C != c.C {
		t.Fatalf("status byte round trip lost a flag: %08b", b)
	}
}

func TestTraceFormatsNestedStyleLine(t *testing.T) {
	c, mem := newTestCPU()
	mem.data[0x8000] = 0xA9
	mem.data[0x8001] = 0x10
	line := c.Trace()
	if len(line) == 0 {
		t.Fatalf("Trace returned empty string")
	}
	if line[:4] != "8000" {
		t.Fatalf("Trace line should lead with PC, got %q", line)
	}
}
