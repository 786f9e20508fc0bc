// Package apu implements the APU register sink described by SPEC_FULL.md
// §4.4: it accepts writes to $FF10-$FF3F so the bus's I/O map stays total,
// but performs no channel synthesis.
package apu

// regCount covers $FF10-$FF3F inclusive.
const regCount = 0x30

// readMask ORs in the bits that real hardware always reads back as 1
// (unused bits, and fields like length/frequency that are write-only).
// Index is the address's low byte (addr-0xFF00); entries left at 0 read
// back exactly what was written.
var readMask = [regCount]byte{
	0x10: 0x80, // NR10
	0x11: 0x3F, // NR11 (length not readable)
	0x12: 0x00, // NR12
	0x13: 0xFF, // NR13 (write-only)
	0x14: 0xBF, // NR14
	0x16: 0x3F, // NR21
	0x17: 0x00, // NR22
	0x18: 0xFF, // NR23 (write-only)
	0x19: 0xBF, // NR24
	0x1A: 0x7F, // NR30
	0x1B: 0xFF, // NR31 (write-only)
	0x1C: 0x9F, // NR32
	0x1D: 0xFF, // NR33 (write-only)
	0x1E: 0xBF, // NR34
	0x20: 0xFF, // NR41 (write-only)
	0x21: 0x00, // NR42
	0x22: 0x00, // NR43
	0x23: 0xBF, // NR44
	0x24: 0x00, // NR50
	0x25: 0x00, // NR51
	0x26: 0x70, // NR52 (bits 4-6 always read 1)
	0x15: 0xFF, // unmapped (between NR14 and NR21)
	0x1F: 0xFF, // unmapped (between NR34 and NR41)
}

// APU is a register sink for $FF10-$FF3F: it stores whatever the CPU writes
// and returns it back with the documented always-1 bits masked in. It does
// not clock envelopes/sweep/length, generate samples, or otherwise
// synthesize audio.
type APU struct {
	reg     [regCount]byte
	wave    [16]byte // $FF30-$FF3F wave RAM
	enabled bool     // NR52 bit 7
}

func New(sampleRate int) *APU {
	a := &APU{enabled: true}
	a.reg[0xFF24-0xFF10] = 0x77 // NR50: sensible stereo defaults
	a.reg[0xFF25-0xFF10] = 0xFF // NR51
	return a
}

// CPURead reads an APU register or wave RAM byte.
func (a *APU) CPURead(addr uint16) byte {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		return a.wave[addr-0xFF30]
	}
	if addr < 0xFF10 || addr > 0xFF26 {
		return 0xFF
	}
	i := addr - 0xFF10
	m := readMask[addr-0xFF00]
	if addr == 0xFF26 {
		return a.reg[i] | m | boolToByte(a.enabled)<<7
	}
	return a.reg[i] | m
}

// CPUWrite stores a byte written to an APU register or wave RAM. Writes to
// $FF26 toggle the power bit; all other registers are simply remembered.
func (a *APU) CPUWrite(addr uint16, v byte) {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		a.wave[addr-0xFF30] = v
		return
	}
	if addr < 0xFF10 || addr > 0xFF26 || addr == 0xFF15 || addr == 0xFF1F {
		return
	}
	i := addr - 0xFF10
	if addr == 0xFF26 {
		a.enabled = v&0x80 != 0
		if !a.enabled {
			for j := range a.reg {
				if j != int(0xFF24-0xFF10) && j != int(0xFF25-0xFF10) {
					a.reg[j] = 0
				}
			}
		}
		return
	}
	if !a.enabled {
		return // registers other than NR52 are write-ignored while powered off
	}
	a.reg[i] = v
}

// Tick is a no-op: the sink performs no channel clocking or sample
// generation, only register storage.
func (a *APU) Tick(cycles int) {}

// PullStereo always returns no frames: the sink never produces samples.
// It exists so a host's audio player can poll it the same way it would a
// real synthesizer, rather than special-casing the sink at the call site.
func (a *APU) PullStereo(max int) []int16 { return nil }

// StereoAvailable always reports zero buffered frames.
func (a *APU) StereoAvailable() int { return 0 }

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
