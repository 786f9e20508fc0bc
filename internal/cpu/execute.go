package cpu

// ALU helpers, shared by register, (HL), and immediate operand forms.

func add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	return res, res == 0, false, ((a & 0x0F) + (b & 0x0F)) > 0x0F, r > 0xFF
}

func adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	var ci byte
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	return res, res == 0, false, ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F, r > 0xFF
}

func sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	return res, res == 0, true, (a & 0x0F) < (b & 0x0F), int16(a) < int16(b)
}

func sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	var ci byte
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	return res, res == 0, true, (a & 0x0F) < (b&0x0F)+ci, int16(a) < int16(b)+int16(ci)
}

func and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	return res, res == 0, false, true, false
}

func xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	return res, res == 0, false, false, false
}

func or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	return res, res == 0, false, false, false
}

func cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = sub8(a, b)
	return
}

// aluSrc resolves the 3-bit source-register field shared by the 0x80-0xBF,
// 0xC6-0xFE, and CB-prefixed opcode blocks; idx 6 means (HL), ticking a read.
func (c *CPU) aluSrc(idx byte) byte {
	if idx == 6 {
		return c.read8(c.HL())
	}
	return *c.reg8(idx)
}

func (c *CPU) getR(idx byte) byte {
	if idx == 6 {
		return c.read8(c.HL())
	}
	return *c.reg8(idx)
}

func (c *CPU) setR(idx byte, v byte) {
	if idx == 6 {
		c.write8(c.HL(), v)
		return
	}
	*c.reg8(idx) = v
}

// execOpcode executes the main (non-CB) instruction identified by op, whose
// byte has already been fetched and whose operand/internal M-cycles this
// function ticks as it goes.
func (c *CPU) execOpcode(op byte) {
	switch op {
	case 0x00: // NOP

	case 0x10: // STOP
		c.execStop()

	case 0x76: // HALT
		if !c.IME && c.bus.Interrupt().Pending() {
			c.haltBug = true // next fetch repeats this byte
		} else {
			c.halted = true
		}

	// LD r,d8
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x3E:
		*c.reg8((op >> 3) & 7) = c.fetch8()

	// LD (HL),d8
	case 0x36:
		v := c.fetch8()
		c.write8(c.HL(), v)

	// LD r,r' / LD r,(HL) / LD (HL),r — the 0x40-0x7F block minus HALT
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		d := (op >> 3) & 7
		s := op & 7
		c.setR(d, c.getR(s))

	// 16-bit loads
	case 0x01:
		c.SetBC(c.fetch16())
	case 0x11:
		c.SetDE(c.fetch16())
	case 0x21:
		c.SetHL(c.fetch16())
	case 0x31:
		c.SP = c.fetch16()
	case 0x08: // LD (a16),SP
		addr := c.fetch16()
		c.write16(addr, c.SP)

	case 0x02:
		c.write8(c.BC(), c.A)
	case 0x12:
		c.write8(c.DE(), c.A)
	case 0x0A:
		c.A = c.read8(c.BC())
	case 0x1A:
		c.A = c.read8(c.DE())

	case 0x22: // LD (HL+),A
		hl := c.HL()
		c.write8(hl, c.A)
		c.SetHL(hl + 1)
	case 0x2A: // LD A,(HL+)
		hl := c.HL()
		c.A = c.read8(hl)
		c.SetHL(hl + 1)
	case 0x32: // LD (HL-),A
		hl := c.HL()
		c.write8(hl, c.A)
		c.SetHL(hl - 1)
	case 0x3A: // LD A,(HL-)
		hl := c.HL()
		c.A = c.read8(hl)
		c.SetHL(hl - 1)

	case 0xE0:
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
	case 0xF0:
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
	case 0xE2:
		c.write8(0xFF00+uint16(c.C), c.A)
	case 0xF2:
		c.A = c.read8(0xFF00 + uint16(c.C))

	case 0xEA: // LD (a16),A
		addr := c.fetch16()
		c.write8(addr, c.A)
	case 0xFA: // LD A,(a16)
		addr := c.fetch16()
		c.A = c.read8(addr)

	// Rotates/flags on A
	case 0x07: // RLCA
		cy := (c.A >> 7) & 1
		c.A = (c.A << 1) | cy
		c.SetZNHC(false, false, false, cy == 1)
	case 0x0F: // RRCA
		cy := c.A & 1
		c.A = (c.A >> 1) | (cy << 7)
		c.SetZNHC(false, false, false, cy == 1)
	case 0x17: // RLA
		cy := (c.A >> 7) & 1
		var cin byte
		if c.Carry() {
			cin = 1
		}
		c.A = (c.A << 1) | cin
		c.SetZNHC(false, false, false, cy == 1)
	case 0x1F: // RRA
		cy := c.A & 1
		var cin byte
		if c.Carry() {
			cin = 1 << 7
		}
		c.A = (c.A >> 1) | cin
		c.SetZNHC(false, false, false, cy == 1)
	case 0x27: // DAA
		a := c.A
		cf := c.Carry()
		if !c.Subtract() {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.HalfCarry() || (a&0x0F) > 9 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if c.HalfCarry() {
				a -= 0x06
			}
		}
		c.A = a
		c.SetZNHC(c.A == 0, c.Subtract(), false, cf)
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
	case 0x3F: // CCF
		c.F = (c.F & (flagZ | flagC)) ^ flagC

	// INC/DEC r, (HL)
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C:
		idx := (op >> 3) & 7
		p := c.reg8(idx)
		old := *p
		*p++
		c.SetZNHC(*p == 0, false, (old&0x0F) == 0x0F, c.Carry())
	case 0x34:
		addr := c.HL()
		old := c.read8(addr)
		v := old + 1
		c.write8(addr, v)
		c.SetZNHC(v == 0, false, (old&0x0F) == 0x0F, c.Carry())
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D:
		idx := (op >> 3) & 7
		p := c.reg8(idx)
		old := *p
		*p--
		c.SetZNHC(*p == 0, true, (old&0x0F) == 0x00, c.Carry())
	case 0x35:
		addr := c.HL()
		old := c.read8(addr)
		v := old - 1
		c.write8(addr, v)
		c.SetZNHC(v == 0, true, (old&0x0F) == 0x00, c.Carry())

	// ALU A,r / A,(HL) / A,d8
	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87:
		r, z, n, h, cy := add8(c.A, c.aluSrc(op&7))
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F:
		r, z, n, h, cy := adc8(c.A, c.aluSrc(op&7), c.Carry())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97:
		r, z, n, h, cy := sub8(c.A, c.aluSrc(op&7))
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F:
		r, z, n, h, cy := sbc8(c.A, c.aluSrc(op&7), c.Carry())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7:
		r, z, n, h, cy := and8(c.A, c.aluSrc(op&7))
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF:
		r, z, n, h, cy := xor8(c.A, c.aluSrc(op&7))
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		r, z, n, h, cy := or8(c.A, c.aluSrc(op&7))
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		z, n, h, cy := cp8(c.A, c.aluSrc(op&7))
		c.SetZNHC(z, n, h, cy)

	case 0xC6:
		r, z, n, h, cy := add8(c.A, c.fetch8())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xCE:
		r, z, n, h, cy := adc8(c.A, c.fetch8(), c.Carry())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xD6:
		r, z, n, h, cy := sub8(c.A, c.fetch8())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xDE:
		r, z, n, h, cy := sbc8(c.A, c.fetch8(), c.Carry())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xE6:
		r, z, n, h, cy := and8(c.A, c.fetch8())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xEE:
		r, z, n, h, cy := xor8(c.A, c.fetch8())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xF6:
		r, z, n, h, cy := or8(c.A, c.fetch8())
		c.A = r
		c.SetZNHC(z, n, h, cy)
	case 0xFE:
		z, n, h, cy := cp8(c.A, c.fetch8())
		c.SetZNHC(z, n, h, cy)

	// Jumps
	case 0xC3: // JP a16
		addr := c.fetch16()
		c.PC = addr
		c.internalCycle()
	case 0xE9: // JP (HL)
		c.PC = c.HL()
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		c.internalCycle()
	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		off := int8(c.fetch8())
		if c.condTaken(op) {
			c.PC = uint16(int32(c.PC) + int32(off))
			c.internalCycle()
		}
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.condTaken(op) {
			c.PC = addr
			c.internalCycle()
		}

	// CALL/RET/RST
	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.internalCycle()
		c.push16(c.PC)
		c.PC = addr
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.condTaken(op) {
			c.internalCycle()
			c.push16(c.PC)
			c.PC = addr
		}
	case 0xC9: // RET
		c.internalCycle()
		c.PC = c.pop16()
	case 0xD9: // RETI
		c.internalCycle()
		c.PC = c.pop16()
		c.IME = true
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		c.internalCycle() // condition-check cycle, always taken
		if c.condTaken(op) {
			c.PC = c.pop16()
			c.internalCycle()
		}
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST t
		c.internalCycle()
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)

	// 16-bit INC/DEC, ADD HL,rr
	case 0x03:
		c.SetBC(c.BC() + 1)
		c.internalCycle()
	case 0x13:
		c.SetDE(c.DE() + 1)
		c.internalCycle()
	case 0x23:
		c.SetHL(c.HL() + 1)
		c.internalCycle()
	case 0x33:
		c.SP++
		c.internalCycle()
	case 0x0B:
		c.SetBC(c.BC() - 1)
		c.internalCycle()
	case 0x1B:
		c.SetDE(c.DE() - 1)
		c.internalCycle()
	case 0x2B:
		c.SetHL(c.HL() - 1)
		c.internalCycle()
	case 0x3B:
		c.SP--
		c.internalCycle()
	case 0x09, 0x19, 0x29, 0x39:
		hl := c.HL()
		var rr uint16
		switch op {
		case 0x09:
			rr = c.BC()
		case 0x19:
			rr = c.DE()
		case 0x29:
			rr = hl
		case 0x39:
			rr = c.SP
		}
		r := uint32(hl) + uint32(rr)
		h := ((hl & 0x0FFF) + (rr & 0x0FFF)) > 0x0FFF
		c.SetHL(uint16(r))
		c.SetZNHC(c.Zero(), false, h, r > 0xFFFF)
		c.internalCycle()

	// Stack/SP ops
	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := add8(low, byte(off))
		c.SetHL(uint16(int32(int16(c.SP)) + int32(off)))
		c.SetZNHC(false, false, h, cy)
		c.internalCycle()
	case 0xF9: // LD SP,HL
		c.SP = c.HL()
		c.internalCycle()
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := add8(low, byte(off))
		c.SP = uint16(int32(int16(c.SP)) + int32(off))
		c.SetZNHC(false, false, h, cy)
		c.internalCycle()
		c.internalCycle()

	case 0xF3: // DI
		c.IME = false
		c.eiCounter = 0
	case 0xFB: // EI
		c.eiCounter = 2

	case 0xCB:
		c.execCB(c.fetch8())

	case 0xF5:
		c.internalCycle()
		c.push16(c.AF())
	case 0xC5:
		c.internalCycle()
		c.push16(c.BC())
	case 0xD5:
		c.internalCycle()
		c.push16(c.DE())
	case 0xE5:
		c.internalCycle()
		c.push16(c.HL())
	case 0xF1:
		c.SetAF(c.pop16())
	case 0xC1:
		c.SetBC(c.pop16())
	case 0xD1:
		c.SetDE(c.pop16())
	case 0xE1:
		c.SetHL(c.pop16())

	default:
		// Opcodes not covered above (only the illegal set, handled by the
		// caller before this is reached) would land here; none remain.
	}
}

// condTaken evaluates the cc field shared by JR/JP/CALL/RET cc opcodes: bits
// 4-3 select NZ/Z/NC/C.
func (c *CPU) condTaken(op byte) bool {
	switch (op >> 3) & 3 {
	case 0:
		return !c.Zero()
	case 1:
		return c.Zero()
	case 2:
		return !c.Carry()
	default:
		return c.Carry()
	}
}

// execCB executes a CB-prefixed opcode. BIT b,(HL) is a 3-M-cycle
// read-only instruction; every other (HL) form is 4 M-cycles (read+write).
func (c *CPU) execCB(cb byte) {
	reg := cb & 7
	group := (cb >> 6) & 3
	y := (cb >> 3) & 7

	v := c.getR(reg)
	switch group {
	case 0: // rotate/shift/swap
		var cy byte
		switch y {
		case 0: // RLC
			cy = (v >> 7) & 1
			v = (v << 1) | cy
		case 1: // RRC
			cy = v & 1
			v = (v >> 1) | (cy << 7)
		case 2: // RL
			cy = (v >> 7) & 1
			var cin byte
			if c.Carry() {
				cin = 1
			}
			v = (v << 1) | cin
		case 3: // RR
			cy = v & 1
			var cin byte
			if c.Carry() {
				cin = 1 << 7
			}
			v = (v >> 1) | cin
		case 4: // SLA
			cy = (v >> 7) & 1
			v <<= 1
		case 5: // SRA
			cy = v & 1
			v = (v >> 1) | (v & 0x80)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
			c.SetZNHC(v == 0, false, false, false)
			c.setR(reg, v)
			return
		case 7: // SRL
			cy = v & 1
			v >>= 1
		}
		c.SetZNHC(v == 0, false, false, cy == 1)
		c.setR(reg, v)
	case 1: // BIT y,r
		bit := (v >> y) & 1
		c.F = (c.F & flagC) | flagH
		if bit == 0 {
			c.F |= flagZ
		}
		return
	case 2: // RES y,r
		c.setR(reg, v&^(1<<y))
	case 3: // SET y,r
		c.setR(reg, v|(1<<y))
	}
}
