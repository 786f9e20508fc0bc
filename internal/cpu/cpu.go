// Package cpu implements the SM83 core: fetch/execute, HALT/STOP/HALT-bug,
// the EI delay, and the 5-M-cycle interrupt dispatch sequence.
package cpu

import (
	"github.com/cvgb/goboy/internal/bus"
)

// CPU is the SM83 core. Instructions execute as one Go call (the teacher's
// atomic-per-instruction model), but every bus access and internal wait
// cycle ticks the bus exactly once, so peripherals advance by the correct
// number of M-cycles per instruction and Step's returned cycle count is
// derived from the ticks actually performed rather than a hardcoded table.
type CPU struct {
	Registers

	IME     bool
	halted  bool
	stopped bool
	haltBug bool

	eiCounter int // 2 when armed by EI, counts down to 0 (IME set on reaching 0)

	speedSwitchCycles int // >0 while a STOP-initiated speed switch is in flight

	lastGlitch *Glitch

	bus     *bus.Bus
	mcycles int
}

// New creates a CPU with default post-boot-like state (simplified: PC=0,
// matching the teacher's boot-less scaffold).
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, Registers: Registers{SP: 0xFFFE}}
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

func (c *CPU) Halted() bool        { return c.halted }
func (c *CPU) Stopped() bool       { return c.stopped }
func (c *CPU) LastGlitch() *Glitch { return c.lastGlitch }

// TakeGlitch returns the most recently recorded Glitch and clears it, so a
// caller (the system harness) can forward each one exactly once to its debug
// event channel instead of re-reporting it every Step while the CPU sits
// halted in place.
func (c *CPU) TakeGlitch() *Glitch {
	g := c.lastGlitch
	c.lastGlitch = nil
	return g
}

// ResetNoBoot sets registers to typical DMG post-boot state. Useful when
// running without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.IME = false
	c.halted = false
	c.stopped = false
	c.eiCounter = 0
}

// tickM advances every peripheral by one M-cycle and counts it toward this
// Step call's returned cycle total.
func (c *CPU) tickM() {
	c.bus.Tick(c.stopped)
	c.mcycles++
}

// internalCycle accounts for an M-cycle with no bus access (ALU-only
// 16-bit ops, the extra decision cycle on CALL/RET/RST, etc).
func (c *CPU) internalCycle() { c.tickM() }

func (c *CPU) read8(addr uint16) byte {
	v := c.bus.Read(addr)
	c.tickM()
	return v
}

func (c *CPU) write8(addr uint16, v byte) {
	c.bus.Write(addr, v)
	c.tickM()
}

// fetch8 reads the byte at PC and advances PC, unless a HALT-bug fetch is
// in flight, in which case PC is read but not incremented (the hardware
// glitch that causes the next instruction byte to be read twice).
func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.PC++
	}
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) push16(v uint16) {
	c.SP--
	c.write8(c.SP, byte(v>>8))
	c.SP--
	c.write8(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.read8(c.SP))
	c.SP++
	hi := uint16(c.read8(c.SP))
	c.SP++
	return lo | (hi << 8)
}

// applyEIDelay runs the 2-tick EI countdown at the top of every Step, before
// the interrupt check, per the one-instruction EI delay.
func (c *CPU) applyEIDelay() {
	if c.eiCounter > 0 {
		c.eiCounter--
		if c.eiCounter == 0 {
			c.IME = true
		}
	}
}

// Step executes one instruction (or one idle/dispatch M-cycle while
// halted/stopped) and returns the number of T-cycles (4x M-cycles) it
// consumed.
func (c *CPU) Step() int {
	c.mcycles = 0
	c.applyEIDelay()

	if c.stopped {
		c.stepStopped()
		return c.mcycles * 4
	}

	if c.halted {
		if bit, ok := c.bus.Interrupt().Highest(); ok {
			c.halted = false
			if c.IME {
				c.dispatchInterrupt(bit)
				return c.mcycles * 4
			}
			// IME=0: wakes without servicing, falls through to normal fetch below.
		} else {
			c.tickM()
			return c.mcycles * 4
		}
	} else if c.IME {
		if bit, ok := c.bus.Interrupt().Highest(); ok {
			c.dispatchInterrupt(bit)
			return c.mcycles * 4
		}
	}

	c.execOne()
	return c.mcycles * 4
}

// dispatchInterrupt runs the 5-M-cycle sequence from SPEC_FULL.md §4.3: undo
// the (never-fetched) opcode read, an internal no-op, push PC high, push PC
// low with a re-sample of the highest-priority source, then prefetch the
// vector.
func (c *CPU) dispatchInterrupt(bit int) {
	c.internalCycle() // cycle 1: internal (hardware undoes a speculative fetch here; we never issued one)
	c.IME = false
	c.internalCycle() // cycle 2: internal no-op
	c.SP--
	c.write8(c.SP, byte(c.PC>>8)) // cycle 3: push PC-high
	c.SP--

	// Re-sample at the push-low cycle: a peripheral may have retracted or
	// raised a higher-priority request since the vector was chosen.
	vectorBit, stillPending := c.bus.Interrupt().Highest()
	if !stillPending {
		c.write8(c.SP, byte(c.PC)) // cycle 4: push PC-low, jump cancelled
		c.PC = 0x0000
		c.internalCycle() // cycle 5: prefetch-equivalent
		return
	}
	c.bus.Interrupt().Ack(vectorBit)
	c.write8(c.SP, byte(c.PC)) // cycle 4: push PC-low
	c.PC = vectorOf(vectorBit)
	c.internalCycle() // cycle 5: prefetch-equivalent
}

func vectorOf(bit int) uint16 {
	switch bit {
	case 0:
		return 0x40
	case 1:
		return 0x48
	case 2:
		return 0x50
	case 3:
		return 0x58
	default:
		return 0x60
	}
}

// stepStopped advances a CPU parked in STOP: either counting down a speed
// switch, or idling until a button press wakes it. Real hardware halts the
// oscillator during plain STOP; we model that as consuming no peripheral
// ticks until woken.
func (c *CPU) stepStopped() {
	if c.speedSwitchCycles > 0 {
		c.tickM()
		c.speedSwitchCycles--
		if c.speedSwitchCycles == 0 {
			c.bus.CommitSpeedSwitch()
			c.stopped = false
			c.halted = false
		}
		return
	}
	if c.bus.Joypad().AnyPressed() {
		c.stopped = false
	}
}

const speedSwitchDelay = 2050

// execStop implements the STOP decision matrix from SPEC_FULL.md §4.2. It is
// invoked with PC already past the STOP opcode byte; per real hardware STOP
// is two bytes, so it fetches (and discards) the second byte first.
func (c *CPU) execStop() {
	_ = c.fetch8() // STOP's second byte; conventionally 0x00

	held := c.bus.Joypad().AnyPressed()
	pending := c.bus.Interrupt().Pending()
	armed := c.bus.SpeedArmed()

	switch {
	case held && !pending:
		c.halted = true
	case held && pending:
		c.PC--
	case !held && !pending && !armed:
		c.stopped = true
		c.bus.Write(0xFF04, 0x00) // reset DIV
	case !held && pending && !armed:
		c.PC--
		c.stopped = true
		c.bus.Write(0xFF04, 0x00)
	case !held && !pending && armed:
		c.halted = true
		c.bus.Write(0xFF04, 0x00)
		c.stopped = true
		c.speedSwitchCycles = speedSwitchDelay
	case !held && pending && armed && c.IME:
		c.PC--
		c.bus.Write(0xFF04, 0x00)
		c.stopped = true
		c.speedSwitchCycles = speedSwitchDelay
	default: // !held && pending && armed && !IME
		c.lastGlitch = &Glitch{Kind: GlitchStopUndefined, PC: c.PC, Byte: 0x10}
		c.halted = true
	}
}

// execOne checks for illegal opcodes, then fetches and executes one
// instruction.
func (c *CPU) execOne() {
	op := c.fetch8()
	if illegalOpcodes[op] {
		c.lastGlitch = &Glitch{Kind: GlitchIllegalOpcode, PC: c.PC - 1, Byte: op}
		c.halted = true
		return
	}
	c.execOpcode(op)
}
