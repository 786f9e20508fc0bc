// Package bus implements the Game Boy address map as a dispatch function:
// every read or write is routed to exactly one owning component. The bus
// owns no emulation logic itself beyond routing, boot-ROM overlay priority,
// WRAM/HRAM storage, and the OAM DMA/echo-RAM address-range wiring.
package bus

import (
	"io"

	"github.com/cvgb/goboy/internal/apu"
	"github.com/cvgb/goboy/internal/cart"
	"github.com/cvgb/goboy/internal/dma"
	"github.com/cvgb/goboy/internal/interrupt"
	"github.com/cvgb/goboy/internal/joypad"
	"github.com/cvgb/goboy/internal/ppu"
	"github.com/cvgb/goboy/internal/timer"
)

type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte
	hram [0x7F]byte

	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad
	dma    *dma.Controller
	intr   *interrupt.Controller
	apu    *apu.APU

	sb byte      // FF01 serial data
	sc byte      // FF02 serial control
	sw io.Writer // optional serial output sink

	bootROM     []byte
	bootEnabled bool

	doubleSpeed bool
	speedArmed  bool // KEY1 bit0: speed switch armed by the next STOP
}

// New constructs a Bus with a ROM-only cartridge, for tests and tools that
// don't need header-driven MBC selection.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewROMOnly(rom))
}

// NewWithCartridge wires a provided cartridge implementation (normally the
// result of cart.NewCartridge, chosen by System.LoadROM after header parse).
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, intr: interrupt.New(), apu: apu.New(48000)}
	b.ppu = ppu.New(func(bit int) { b.intr.Request(bit) })
	b.timer = timer.New(func() { b.intr.Request(interrupt.Timer) })
	b.joypad = joypad.New(func() { b.intr.Request(interrupt.Joypad) })
	b.dma = dma.New(b.dmaRead, b.dmaWrite)
	return b
}

func (b *Bus) PPU() *ppu.PPU             { return b.ppu }
func (b *Bus) Cart() cart.Cartridge      { return b.cart }
func (b *Bus) Interrupt() *interrupt.Controller { return b.intr }
func (b *Bus) Joypad() *joypad.Joypad    { return b.joypad }
func (b *Bus) DMA() *dma.Controller      { return b.dma }
func (b *Bus) APU() *apu.APU             { return b.apu }

// dmaRead/dmaWrite back the DMA controller; reads bypass the OAM-blocking
// rule of Bus.Read (DMA itself is what the blocking rule protects against).
func (b *Bus) dmaRead(addr uint16) byte {
	if addr < 0x8000 {
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	}
	if addr >= 0xC000 && addr <= 0xDFFF {
		return b.wram[addr-0xC000]
	}
	return b.Read(addr)
}

func (b *Bus) dmaWrite(addr uint16, v byte) { b.ppu.CPUWrite(addr, v) }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dma.Active() {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF
	case addr == 0xFF00:
		return b.joypad.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.timer.ReadDIV()
	case addr == 0xFF05:
		return b.timer.ReadTIMA()
	case addr == 0xFF06:
		return b.timer.ReadTMA()
	case addr == 0xFF07:
		return b.timer.ReadTAC()
	case addr == 0xFF0F:
		return b.intr.ReadIF()
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B,
		addr == 0xFF4F, addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return 0xFF
	case addr == 0xFF4D:
		var speed byte
		if b.doubleSpeed {
			speed = 0x80
		}
		var armed byte
		if b.speedArmed {
			armed = 0x01
		}
		return 0x7E | speed | armed
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.intr.ReadIE()
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dma.Active() {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable
	case addr == 0xFF00:
		b.joypad.Write(value)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.intr.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.timer.WriteDIV()
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
	case addr == 0xFF0F:
		b.intr.WriteIF(value)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B,
		addr == 0xFF4F, addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma.Start(value)
	case addr == 0xFF4D:
		b.speedArmed = value&0x01 != 0
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.intr.WriteIE(value)
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until
// disabled via a non-zero write to 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// SetDoubleSpeed toggles the CGB double-speed mode, halving the number of
// PPU dots advanced per CPU M-cycle (the PPU always runs at base speed).
func (b *Bus) SetDoubleSpeed(on bool) { b.doubleSpeed = on }
func (b *Bus) DoubleSpeed() bool      { return b.doubleSpeed }

// SetCGB enables CGB-mode PPU features (VRAM bank 1, BG/OBJ palette RAM).
func (b *Bus) SetCGB(on bool) { b.ppu.SetCGB(on) }

// SpeedArmed reports KEY1 bit0: whether the next STOP should perform a
// double-speed switch instead of a normal stop.
func (b *Bus) SpeedArmed() bool { return b.speedArmed }

// CommitSpeedSwitch toggles double-speed mode and disarms KEY1, called by
// the CPU once the 2050-M-cycle speed-switch STOP delay elapses.
func (b *Bus) CommitSpeedSwitch() {
	b.doubleSpeed = !b.doubleSpeed
	b.speedArmed = false
}

// Tick advances every peripheral by exactly one M-cycle, in the fixed order
// timer -> DMA -> PPU. DMA is skipped while stopped is true, matching real
// hardware where OAM DMA pauses during STOP.
func (b *Bus) Tick(stopped bool) {
	b.timer.Tick()
	if !stopped {
		b.dma.Tick()
	}
	dots := 4
	if b.doubleSpeed {
		dots = 2
	}
	b.ppu.Tick(dots)
	b.apu.Tick(dots)
}
