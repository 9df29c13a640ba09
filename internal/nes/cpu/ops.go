package cpu

// execute dispatches one fetched opcode against its resolved operand
// address, mutating CPU/bus state, and returns any additional cycles
// earned by branch-taken/page-cross corrections beyond the opcode's
// base Cycles (branches only; read-page-cross is handled by the caller).
func (c *CPU) execute(opcode uint8, addr uint16, pageCrossed bool) uint8 {
	switch opcode {
	// Loads
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		c.lda(addr)
	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		c.ldx(addr)
	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		c.ldy(addr)

	// Stores
	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		c.sta(addr)
	case 0x86, 0x96, 0x8E:
		c.stx(addr)
	case 0x84, 0x94, 0x8C:
		c.sty(addr)

	// Arithmetic
	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		c.adc(addr)
	case 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1, 0xEB:
		c.sbc(addr)

	// Logic
	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		c.and(addr)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		c.ora(addr)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		c.eor(addr)

	// Shifts / rotates
	case 0x0A:
		c.A = c.shiftLeft(c.A)
	case 0x06, 0x16, 0x0E, 0x1E:
		c.asl(addr)
	case 0x4A:
		c.A = c.shiftRight(c.A)
	case 0x46, 0x56, 0x4E, 0x5E:
		c.lsr(addr)
	case 0x2A:
		c.A = c.rotateLeft(c.A)
	case 0x26, 0x36, 0x2E, 0x3E:
		c.rol(addr)
	case 0x6A:
		c.A = c.rotateRight(c.A)
	case 0x66, 0x76, 0x6E, 0x7E:
		c.ror(addr)

	// Compares
	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		c.compare(c.A, addr)
	case 0xE0, 0xE4, 0xEC:
		c.compare(c.X, addr)
	case 0xC0, 0xC4, 0xCC:
		c.compare(c.Y, addr)

	// Increments / decrements
	case 0xE6, 0xF6, 0xEE, 0xFE:
		c.inc(addr)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		c.dec(addr)
	case 0xE8:
		c.X++
		c.setZN(c.X)
	case 0xCA:
		c.X--
		c.setZN(c.X)
	case 0xC8:
		c.Y++
		c.setZN(c.Y)
	case 0x88:
		c.Y--
		c.setZN(c.Y)

	// Register transfers
	case 0xAA:
		c.X = c.A
		c.setZN(c.X)
	case 0x8A:
		c.A = c.X
		c.setZN(c.A)
	case 0xA8:
		c.Y = c.A
		c.setZN(c.Y)
	case 0x98:
		c.A = c.Y
		c.setZN(c.A)
	case 0xBA:
		c.X = c.SP
		c.setZN(c.X)
	case 0x9A:
		c.SP = c.X

	// Stack
	case 0x48:
		c.push(c.A)
	case 0x68:
		c.A = c.pop()
		c.setZN(c.A)
	case 0x08:
		c.push(c.statusByte() | bFlagMask)
	case 0x28:
		c.setStatusByte(c.pop())

	// Flags
	case 0x18:
		c.C = false
	case 0x38:
		c.C = true
	case 0x58:
		c.I = false
	case 0x78:
		c.I = true
	case 0xB8:
		c.V = false
	case 0xD8:
		c.D = false
	case 0xF8:
		c.D = true

	// Control flow
	case 0x4C, 0x6C:
		c.PC = addr
	case 0x20:
		c.pushWord(c.PC - 1)
		c.PC = addr
	case 0x60:
		c.PC = c.popWord() + 1
	case 0x40:
		c.setStatusByte(c.pop())
		c.PC = c.popWord()
	case 0x00:
		c.brk()

	// Branches
	case 0x90:
		return c.branch(!c.C, addr, pageCrossed)
	case 0xB0:
		return c.branch(c.C, addr, pageCrossed)
	case 0xD0:
		return c.branch(!c.Z, addr, pageCrossed)
	case 0xF0:
		return c.branch(c.Z, addr, pageCrossed)
	case 0x10:
		return c.branch(!c.N, addr, pageCrossed)
	case 0x30:
		return c.branch(c.N, addr, pageCrossed)
	case 0x50:
		return c.branch(!c.V, addr, pageCrossed)
	case 0x70:
		return c.branch(c.V, addr, pageCrossed)

	case 0x24, 0x2C:
		c.bit(addr)

	// Official NOP
	case 0xEA:

	// Undocumented opcodes
	case 0xA7, 0xB7, 0xAF, 0xBF, 0xA3, 0xB3:
		c.lax(addr)
	case 0x87, 0x97, 0x8F, 0x83:
		c.sax(addr)
	case 0xC7, 0xD7, 0xCF, 0xDF, 0xDB, 0xC3, 0xD3:
		c.dcp(addr)
	case 0xE7, 0xF7, 0xEF, 0xFF, 0xFB, 0xE3, 0xF3:
		c.isb(addr)
	case 0x07, 0x17, 0x0F, 0x1F, 0x1B, 0x03, 0x13:
		c.slo(addr)
	case 0x27, 0x37, 0x2F, 0x3F, 0x3B, 0x23, 0x33:
		c.rla(addr)
	case 0x47, 0x57, 0x4F, 0x5F, 0x5B, 0x43, 0x53:
		c.sre(addr)
	case 0x67, 0x77, 0x6F, 0x7F, 0x7B, 0x63, 0x73:
		c.rra(addr)

	// Unofficial NOPs: various addressing modes, no effect beyond the fetch
	case 0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA,
		0x80, 0x82, 0x89, 0xC2, 0xE2,
		0x04, 0x44, 0x64, 0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4,
		0x0C, 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC:

	default:
		glogUnknownOpcode(opcode, c.PC)
	}
	return 0
}

func (c *CPU) branch(take bool, target uint16, pageCrossed bool) uint8 {
	if !take {
		return 0
	}
	extra := uint8(1)
	if pageCrossed {
		extra++
	}
	c.PC = target
	return extra
}

func (c *CPU) lda(addr uint16) {
	c.A = c.mem.Read(addr)
	c.setZN(c.A)
}

func (c *CPU) ldx(addr uint16) {
	c.X = c.mem.Read(addr)
	c.setZN(c.X)
}

func (c *CPU) ldy(addr uint16) {
	c.Y = c.mem.Read(addr)
	c.setZN(c.Y)
}

func (c *CPU) sta(addr uint16) { c.mem.Write(addr, c.A) }
func (c *CPU) stx(addr uint16) { c.mem.Write(addr, c.X) }
func (c *CPU) sty(addr uint16) { c.mem.Write(addr, c.Y) }

// adc/sbc never consult D: the 2A03 omits decimal mode entirely.
func (c *CPU) adc(addr uint16) {
	value := c.mem.Read(addr)
	c.addWithCarry(value)
}

func (c *CPU) sbc(addr uint16) {
	value := c.mem.Read(addr)
	c.addWithCarry(value ^ 0xFF)
}

func (c *CPU) addWithCarry(value uint8) {
	carry := uint16(0)
	if c.C {
		carry = 1
	}
	sum := uint16(c.A) + uint16(value) + carry
	result := uint8(sum)
	c.V = (c.A^value)&0x80 == 0 && (c.A^result)&0x80 != 0
	c.C = sum > 0xFF
	c.A = result
	c.setZN(c.A)
}

func (c *CPU) and(addr uint16) {
	c.A &= c.mem.Read(addr)
	c.setZN(c.A)
}

func (c *CPU) ora(addr uint16) {
	c.A |= c.mem.Read(addr)
	c.setZN(c.A)
}

func (c *CPU) eor(addr uint16) {
	c.A ^= c.mem.Read(addr)
	c.setZN(c.A)
}

func (c *CPU) shiftLeft(v uint8) uint8 {
	c.C = v&0x80 != 0
	v <<= 1
	c.setZN(v)
	return v
}

func (c *CPU) asl(addr uint16) { c.mem.Write(addr, c.shiftLeft(c.mem.Read(addr))) }

func (c *CPU) shiftRight(v uint8) uint8 {
	c.C = v&0x01 != 0
	v >>= 1
	c.setZN(v)
	return v
}

func (c *CPU) lsr(addr uint16) { c.mem.Write(addr, c.shiftRight(c.mem.Read(addr))) }

func (c *CPU) rotateLeft(v uint8) uint8 {
	carryIn := uint8(0)
	if c.C {
		carryIn = 1
	}
	c.C = v&0x80 != 0
	v = (v << 1) | carryIn
	c.setZN(v)
	return v
}

func (c *CPU) rol(addr uint16) { c.mem.Write(addr, c.rotateLeft(c.mem.Read(addr))) }

func (c *CPU) rotateRight(v uint8) uint8 {
	carryIn := uint8(0)
	if c.C {
		carryIn = 0x80
	}
	c.C = v&0x01 != 0
	v = (v >> 1) | carryIn
	c.setZN(v)
	return v
}

func (c *CPU) ror(addr uint16) { c.mem.Write(addr, c.rotateRight(c.mem.Read(addr))) }

func (c *CPU) compare(reg uint8, addr uint16) {
	value := c.mem.Read(addr)
	result := reg - value
	c.C = reg >= value
	c.setZN(result)
}

func (c *CPU) inc(addr uint16) {
	v := c.mem.Read(addr) + 1
	c.mem.Write(addr, v)
	c.setZN(v)
}

func (c *CPU) dec(addr uint16) {
	v := c.mem.Read(addr) - 1
	c.mem.Write(addr, v)
	c.setZN(v)
}

func (c *CPU) bit(addr uint16) {
	value := c.mem.Read(addr)
	c.Z = (c.A & value) == 0
	c.N = value&nFlagMask != 0
	c.V = value&vFlagMask != 0
}

// brk pushes the BRK address plus 2 (the Implied addressing-mode resolver
// has advanced PC past the opcode only, so PC+1 also skips the padding
// byte) and status with B=1, per spec.md §4.2.
func (c *CPU) brk() {
	c.pushWord(c.PC + 1)
	c.push(c.statusByte() | bFlagMask)
	c.I = true
	low := uint16(c.mem.Read(irqVector))
	high := uint16(c.mem.Read(irqVector + 1))
	c.PC = (high << 8) | low
}

// Undocumented opcodes.

func (c *CPU) lax(addr uint16) {
	v := c.mem.Read(addr)
	c.A = v
	c.X = v
	c.setZN(v)
}

func (c *CPU) sax(addr uint16) { c.mem.Write(addr, c.A&c.X) }

func (c *CPU) dcp(addr uint16) {
	v := c.mem.Read(addr) - 1
	c.mem.Write(addr, v)
	c.C = c.A >= v
	c.setZN(c.A - v)
}

func (c *CPU) isb(addr uint16) {
	v := c.mem.Read(addr) + 1
	c.mem.Write(addr, v)
	c.addWithCarry(v ^ 0xFF)
}

func (c *CPU) slo(addr uint16) {
	v := c.shiftLeft(c.mem.Read(addr))
	c.mem.Write(addr, v)
	c.A |= v
	c.setZN(c.A)
}

func (c *CPU) rla(addr uint16) {
	v := c.rotateLeft(c.mem.Read(addr))
	c.mem.Write(addr, v)
	c.A &= v
	c.setZN(c.A)
}

func (c *CPU) sre(addr uint16) {
	v := c.shiftRight(c.mem.Read(addr))
	c.mem.Write(addr, v)
	c.A ^= v
	c.setZN(c.A)
}

func (c *CPU) rra(addr uint16) {
	v := c.rotateRight(c.mem.Read(addr))
	c.mem.Write(addr, v)
	c.addWithCarry(v)
}
