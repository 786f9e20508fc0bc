// Package emu composes the bus, CPU, and cartridge into a runnable system:
// load a ROM, clock it by M-cycle/instruction/frame, forward button state,
// and collect debug Glitch events.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/cvgb/goboy/internal/bus"
	"github.com/cvgb/goboy/internal/cart"
	"github.com/cvgb/goboy/internal/cpu"
	"github.com/cvgb/goboy/internal/joypad"
)

// Buttons is a snapshot of all eight Game Boy inputs, for hosts that prefer
// to push whole-state updates rather than individual press/release events.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

// GlitchEvent tags a CPU Glitch with a unique id so a host can correlate it
// with a specific point in a trace log.
type GlitchEvent struct {
	ID     string
	Glitch cpu.Glitch
}

// System is the fixed composition described by the harness: it clocks the
// CPU and peripherals in lockstep and exposes the surface a reference host
// drives (load a ROM, step, forward input, read frames).
type System struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	header      *cart.Header
	compatID    int
	compatKnown bool

	w, h int
	fb   []byte

	glitches chan GlitchEvent
}

// New constructs a System with no cartridge loaded yet.
func New(cfg Config) *System {
	return &System{
		cfg:      cfg,
		w:        160,
		h:        144,
		fb:       make([]byte, 160*144*3),
		glitches: make(chan GlitchEvent, 64),
	}
}

// LoadROM parses the header, selects a cartridge implementation, and wires a
// fresh Bus/CPU pair. CGB mode is enabled automatically when the header's
// CGB flag marks the title CGB-compatible or CGB-only.
func (s *System) LoadROM(rom []byte) error {
	c, h, err := cart.NewCartridge(rom)
	if err != nil {
		return err
	}
	s.header = h
	s.bus = bus.NewWithCartridge(c)
	cgb := h.CGBFlag == 0x80 || h.CGBFlag == 0xC0
	s.bus.SetCGB(cgb)
	s.cpu = cpu.New(s.bus)
	s.cpu.ResetNoBoot()
	s.cpu.SetPC(0x0100)

	// DMG titles played on CGB-capable hosts pick a compatibility palette by
	// title; CGB-native titles render their own palette RAM and don't need one.
	if !cgb {
		s.compatID, s.compatKnown = autoCompatPaletteFromHeader(h)
	} else {
		s.compatKnown = false
	}
	return nil
}

// CompatPalette returns the automatically-chosen DMG compatibility palette
// id for a host rendering a non-CGB title on a CGB-capable display, and
// whether one was determined (always false for CGB-native cartridges, which
// render their own palette RAM instead).
func (s *System) CompatPalette() (id int, ok bool) { return s.compatID, s.compatKnown }

// LoadROMFromFile reads a ROM image from disk and loads it.
func (s *System) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read rom: %w", err)
	}
	return s.LoadROM(data)
}

// SetBootROM installs a DMG boot ROM overlay, if the reference host has one.
func (s *System) SetBootROM(data []byte) {
	if s.bus != nil {
		s.bus.SetBootROM(data)
	}
}

// SetSerialWriter attaches a sink for bytes written to the serial port
// (used by headless test-ROM runners to read pass/fail reports).
func (s *System) SetSerialWriter(w io.Writer) {
	if s.bus != nil {
		s.bus.SetSerialWriter(w)
	}
}

// APUPullStereo drains up to max buffered stereo sample frames, for a host
// audio callback to consume.
func (s *System) APUPullStereo(max int) []int16 { return s.bus.APU().PullStereo(max) }

// APUBufferedStereo reports how many stereo frames are currently queued.
func (s *System) APUBufferedStereo() int { return s.bus.APU().StereoAvailable() }

// Header returns the parsed cartridge header, or nil before a ROM is loaded.
func (s *System) Header() *cart.Header { return s.header }

// Bus and CPU expose the underlying components for tools/tests that need
// lower-level access than the harness surface provides.
func (s *System) Bus() *bus.Bus { return s.bus }
func (s *System) CPU() *cpu.CPU { return s.cpu }

// SaveRAM returns a copy of battery-backed cartridge RAM, or nil if the
// loaded cartridge has none.
func (s *System) SaveRAM() []byte {
	if bb, ok := s.bus.Cart().(cart.BatteryBacked); ok {
		return bb.SaveRAM()
	}
	return nil
}

// LoadRAM restores a previously saved battery-RAM image.
func (s *System) LoadRAM(data []byte) {
	if bb, ok := s.bus.Cart().(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
	}
}

// PressKey and ReleaseKey forward a single button transition to the joypad.
func (s *System) PressKey(b joypad.Button)   { s.bus.Joypad().Press(b) }
func (s *System) ReleaseKey(b joypad.Button) { s.bus.Joypad().Release(b) }

// SetButtons pushes a full input snapshot; unlike PressKey/ReleaseKey it is
// convenient for hosts that poll an entire input device once per frame.
func (s *System) SetButtons(b Buttons) {
	apply := func(held bool, btn joypad.Button) {
		if held {
			s.PressKey(btn)
		} else {
			s.ReleaseKey(btn)
		}
	}
	apply(b.Right, joypad.Right)
	apply(b.Left, joypad.Left)
	apply(b.Up, joypad.Up)
	apply(b.Down, joypad.Down)
	apply(b.A, joypad.A)
	apply(b.B, joypad.B)
	apply(b.Select, joypad.Select)
	apply(b.Start, joypad.Start)
}

// StepMCycle advances the system by one CPU Step call: a full instruction,
// an idle HALT/STOP cycle, or an interrupt dispatch, whichever the CPU is
// currently in the middle of. The CPU core is instruction-atomic rather than
// a resumable per-M-cycle state machine, so this is the finest step this
// harness can expose; it returns the number of T-cycles the step consumed.
// Any Glitch raised during the step is forwarded to the debug event channel.
func (s *System) StepMCycle() int {
	cycles := s.cpu.Step()
	if g := s.cpu.TakeGlitch(); g != nil {
		s.emitGlitch(*g)
	}
	return cycles
}

// StepInstruction is an alias for StepMCycle: at this harness's granularity
// one Step already corresponds to one instruction (or one halted/stopped
// idle tick), so there is no finer "partial instruction" unit to expose.
func (s *System) StepInstruction() int { return s.StepMCycle() }

// StepFrame runs until the PPU reports a completed frame and copies it into
// the system's framebuffer.
func (s *System) StepFrame() {
	for !s.bus.PPU().FrameIsReady() {
		s.StepMCycle()
	}
	copy(s.fb, s.bus.PPU().GetFrame())
}

// StepFrameNoRender is StepFrame without retaining the pixel data, for
// headless test-ROM runs that only care about serial output.
func (s *System) StepFrameNoRender() {
	for !s.bus.PPU().FrameIsReady() {
		s.StepMCycle()
	}
	s.bus.PPU().GetFrame()
}

// FrameIsReady reports whether a completed frame is waiting to be read.
func (s *System) FrameIsReady() bool { return s.bus != nil && s.bus.PPU().FrameIsReady() }

// GetFrame returns the most recently captured frame: 160x144 pixels, 3 bytes
// (RGB) per pixel, row-major.
func (s *System) GetFrame() []byte { return s.fb }

// Width and Height are the native Game Boy display dimensions.
func (s *System) Width() int  { return s.w }
func (s *System) Height() int { return s.h }

// Glitches returns the channel a host can drain for debug Glitch events.
func (s *System) Glitches() <-chan GlitchEvent { return s.glitches }

func (s *System) emitGlitch(g cpu.Glitch) {
	select {
	case s.glitches <- GlitchEvent{ID: uuid.NewString(), Glitch: g}:
	default:
		// Channel full: a host not draining events loses this new event;
		// the already-queued ones are kept and emulation does not block.
	}
}
