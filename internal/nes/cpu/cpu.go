// Package cpu implements the Ricoh 2A03's 6502-derived CPU core.
package cpu

import (
	"fmt"
)

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0x00FF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Interrupt identifies the kind of interrupt latched for servicing at the
// next instruction boundary. RESET outranks NMI which outranks IRQ.
type Interrupt uint8

const (
	None Interrupt = iota
	IRQ
	NMI
	Reset
)

// Instruction describes one opcode's static shape: the base cycle count
// excludes page-cross/branch-taken corrections, applied in Step.
type Instruction struct {
	Name   string
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// Memory is the bus interface the CPU reads and writes through. Every
// memory effect the CPU produces must go through this interface — direct
// field access across components is never permitted (invariant i, §3).
type Memory interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// CPU is the 6502-derivative interpreter. The NES variant omits BCD: ADC
// and SBC ignore the D flag entirely.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	N, V, B, D, I, Z, C bool

	mem Memory

	cycles uint64

	pending Interrupt
	nmiLine bool // level of the PPU NMI output, for edge detection

	instructions [256]Instruction
}

// New creates a CPU bound to the given bus view. Call Reset before Step.
func New(mem Memory) *CPU {
	c := &CPU{mem: mem}
	c.initInstructions()
	return c
}

// Reset performs the 6502 reset sequence: loads PC from the reset vector,
// sets I, and leaves SP at its documented post-reset value ($FD).
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.N, c.V, c.D, c.Z, c.C = false, false, false, false, false
	c.B = false
	c.I = true
	c.pending = None
	c.nmiLine = false
	low := uint16(c.mem.Read(resetVector))
	high := uint16(c.mem.Read(resetVector + 1))
	c.PC = (high << 8) | low
	c.cycles = 0
}

// SetPC forces the program counter, used by automated test harnesses
// (e.g. nestest's $C000 entry point) that bypass the reset vector.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Cycles returns the monotonic CPU cycle counter.
func (c *CPU) Cycles() uint64 { return c.cycles }

// SetNMILine updates the level of the PPU's combinatorial NMI output.
// NMI is edge-triggered: it latches only on a 0->1 transition.
func (c *CPU) SetNMILine(level bool) {
	if level && !c.nmiLine {
		c.pending = NMI
	}
	c.nmiLine = level
}

// SetIRQLine updates the level-sensitive IRQ line (shared by the APU
// frame sequencer, DMC, and MMC3's scanline counter).
func (c *CPU) SetIRQLine(level bool) {
	if level && c.pending == None {
		c.pending = IRQ
	}
	if !level && c.pending == IRQ {
		c.pending = None
	}
}

// Step executes exactly one instruction (or, if an interrupt is latched,
// services that interrupt instead) and returns the number of CPU cycles
// consumed.
func (c *CPU) Step() uint8 {
	if c.pending != None && c.pending != IRQ {
		return c.service(c.pending)
	}
	if c.pending == IRQ && !c.I {
		return c.service(IRQ)
	}

	opcode := c.mem.Read(c.PC)
	inst := c.instructions[opcode]

	addr, pageCrossed := c.operandAddress(inst.Mode)
	extra := c.execute(opcode, addr, pageCrossed)

	if pageCrossed && readPenalizesPageCross(opcode) {
		extra++
	}

	total := inst.Cycles + extra
	c.cycles += uint64(total)
	return total
}

// service pushes PC/status and vectors to the interrupt handler. Costs 7
// cycles uniformly, matching spec.md §4.2.
func (c *CPU) service(kind Interrupt) uint8 {
	if kind == Reset {
		c.Reset()
		return 7
	}

	c.pushWord(c.PC)
	status := c.statusByte() &^ bFlagMask
	status |= unusedMask
	c.push(status)
	c.I = true

	var vector uint16
	if kind == NMI {
		vector = nmiVector
	} else {
		vector = irqVector
	}
	low := uint16(c.mem.Read(vector))
	high := uint16(c.mem.Read(vector + 1))
	c.PC = (high << 8) | low

	if kind == IRQ {
		c.pending = None
	} else {
		c.pending = None
	}
	c.cycles += 7
	return 7
}

// readPenalizesPageCross reports whether the given opcode pays the extra
// page-cross cycle on a read (stores and RMW ops always pay it via their
// addressing mode's base cycle count and are excluded here).
func readPenalizesPageCross(opcode uint8) bool {
	switch opcode {
	case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31,
		0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1,
		0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC,
		0xBF, 0xB3:
		return true
	}
	return false
}

func (c *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		c.PC++
		return 0, false

	case Immediate:
		addr := c.PC + 1
		c.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(c.mem.Read(c.PC + 1))
		c.PC += 2
		return addr, false

	case ZeroPageX:
		base := c.mem.Read(c.PC + 1)
		c.PC += 2
		return uint16((base + c.X) & 0xFF), false

	case ZeroPageY:
		base := c.mem.Read(c.PC + 1)
		c.PC += 2
		return uint16((base + c.Y) & 0xFF), false

	case Relative:
		offset := int8(c.mem.Read(c.PC + 1))
		oldPC := c.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		c.PC = oldPC
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		lo := uint16(c.mem.Read(c.PC + 1))
		hi := uint16(c.mem.Read(c.PC + 2))
		c.PC += 3
		return (hi << 8) | lo, false

	case AbsoluteX:
		lo := uint16(c.mem.Read(c.PC + 1))
		hi := uint16(c.mem.Read(c.PC + 2))
		base := (hi << 8) | lo
		addr := base + uint16(c.X)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		lo := uint16(c.mem.Read(c.PC + 1))
		hi := uint16(c.mem.Read(c.PC + 2))
		base := (hi << 8) | lo
		addr := base + uint16(c.Y)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect: // JMP only; reproduces the page-wrap bug
		lo := uint16(c.mem.Read(c.PC + 1))
		hi := uint16(c.mem.Read(c.PC + 2))
		ptr := (hi << 8) | lo
		c.PC += 3
		var addrLo, addrHi uint16
		addrLo = uint16(c.mem.Read(ptr))
		if (ptr & 0xFF) == 0xFF {
			addrHi = uint16(c.mem.Read(ptr & pageMask))
		} else {
			addrHi = uint16(c.mem.Read(ptr + 1))
		}
		return (addrHi << 8) | addrLo, false

	case IndexedIndirect:
		base := c.mem.Read(c.PC + 1)
		c.PC += 2
		ptr := (base + c.X) & 0xFF
		lo := uint16(c.mem.Read(uint16(ptr)))
		hi := uint16(c.mem.Read(uint16((ptr + 1) & 0xFF)))
		return (hi << 8) | lo, false

	case IndirectIndexed:
		ptr := uint16(c.mem.Read(c.PC + 1))
		c.PC += 2
		lo := uint16(c.mem.Read(ptr))
		hi := uint16(c.mem.Read((ptr + 1) & zeroPageMask))
		base := (hi << 8) | lo
		addr := base + uint16(c.Y)
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

func (c *CPU) push(v uint8) {
	c.mem.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.mem.Read(stackBase + uint16(c.SP))
}

func (c *CPU) pushWord(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) popWord() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return (hi << 8) | lo
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

func (c *CPU) statusByte() uint8 {
	var s uint8
	if c.N {
		s |= nFlagMask
	}
	if c.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if c.B {
		s |= bFlagMask
	}
	if c.D {
		s |= dFlagMask
	}
	if c.I {
		s |= iFlagMask
	}
	if c.Z {
		s |= zFlagMask
	}
	if c.C {
		s |= cFlagMask
	}
	return s
}

func (c *CPU) setStatusByte(s uint8) {
	c.N = s&nFlagMask != 0
	c.V = s&vFlagMask != 0
	c.B = s&bFlagMask != 0
	c.D = s&dFlagMask != 0
	c.I = s&iFlagMask != 0
	c.Z = s&zFlagMask != 0
	c.C = s&cFlagMask != 0
}

// Trace renders a Nintendulator-style single-line disassembly of the
// instruction about to execute, for diffing against nestest's log.
func (c *CPU) Trace() string {
	opcode := c.mem.Read(c.PC)
	inst := c.instructions[opcode]
	b1, b2 := uint8(0), uint8(0)
	if inst.Bytes > 1 {
		b1 = c.mem.Read(c.PC + 1)
	}
	if inst.Bytes > 2 {
		b2 = c.mem.Read(c.PC + 2)
	}
	return fmt.Sprintf("%04X  %02X %02X %02X  %s A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		c.PC, opcode, b1, b2, inst.Name, c.A, c.X, c.Y, c.statusByte(), c.SP, c.cycles)
}

// State is the CPU's complete serializable register and interrupt-latch
// state, exported for save-state snapshotting.
type State struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16
	Status  uint8
	Cycles  uint64
	Pending Interrupt
	NMILine bool
}

// Snapshot captures the CPU's current state.
func (c *CPU) Snapshot() State {
	return State{
		A: c.A, X: c.X, Y: c.Y, SP: c.SP, PC: c.PC,
		Status:  c.statusByte(),
		Cycles:  c.cycles,
		Pending: c.pending,
		NMILine: c.nmiLine,
	}
}

// Restore replaces the CPU's state with a previously captured Snapshot.
func (c *CPU) Restore(s State) {
	c.A, c.X, c.Y, c.SP, c.PC = s.A, s.X, s.Y, s.SP, s.PC
	c.setStatusByte(s.Status)
	c.cycles = s.Cycles
	c.pending = s.Pending
	c.nmiLine = s.NMILine
}
