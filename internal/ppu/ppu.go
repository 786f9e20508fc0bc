// Package ppu implements the dot-based PPU state machine: OAM scan,
// drawing, HBlank and VBlank, plus background/window/object scanline
// compositing and STAT-line interrupt edge detection.
package ppu

// InterruptRequester is a callback signature to request IF bits, using the
// interrupt package's bit numbering (0:VBlank, 1:LCDStat).
type InterruptRequester func(bit int)

const (
	width     = 160
	height    = 144
	totalDots = 456
	oamDots   = 80
	drawDots  = 240 // modeled fixed-length Drawing window (see spec's Drawing non-goal on sub-M-cycle FIFO)
)

type objEntry struct {
	y, x, tile, attr byte
	oamIndex         int
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC timing, and the scanline
// compositor.
type PPU struct {
	vram  [0x2000]byte // 0x8000–0x9FFF, bank 0
	vram1 [0x2000]byte // CGB VRAM bank 1 (tile data + BG attribute map)
	vbk   byte         // FF4F, bit0 selects active bank for CPU access
	oam   [0xA0]byte   // 0xFE00–0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	statLine bool // OR of the four STAT interrupt sources, for edge detection
	winLine  int  // internal window-line counter, increments once per visible window scanline

	cgb     bool
	cgbBGP  [64]byte // CGB BG palette RAM (8 palettes * 4 colors * 2 bytes)
	cgbOBP  [64]byte // CGB OBJ palette RAM
	bgpsIdx byte
	obpsIdx byte

	frame      [width * height * 3]byte
	frameReady bool

	req InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// SetCGB toggles CGB-specific palette memory. DMG behavior (BGP/OBP0/OBP1)
// is always available regardless of this flag.
func (p *PPU) SetCGB(on bool) { p.cgb = on }

func (p *PPU) Read(addr uint16) byte { return p.vram[addr&0x1FFF] } // satisfies VRAMReader

// ReadBank satisfies BankedVRAMReader for the CGB scanline renderers.
func (p *PPU) ReadBank(bank int, addr uint16) byte {
	if bank == 1 {
		return p.vram1[addr&0x1FFF]
	}
	return p.vram[addr&0x1FFF]
}

func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.stat&0x03 == 3 {
			return 0xFF
		}
		if p.cgb && p.vbk&0x01 != 0 {
			return p.vram1[addr-0x8000]
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF68:
		return p.bgpsIdx
	case addr == 0xFF69:
		if p.cgb {
			return p.cgbBGP[p.bgpsIdx&0x3F]
		}
		return 0xFF
	case addr == 0xFF6A:
		return p.obpsIdx
	case addr == 0xFF6B:
		if p.cgb {
			return p.cgbOBP[p.obpsIdx&0x3F]
		}
		return 0xFF
	case addr == 0xFF4F:
		if p.cgb {
			return 0xFE | (p.vbk & 0x01)
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.stat&0x03 == 3 {
			return
		}
		if p.cgb && p.vbk&0x01 != 0 {
			p.vram1[addr-0x8000] = value
		} else {
			p.vram[addr-0x8000] = value
		}
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if p.lcdc&0x80 == 0 && prev&0x80 != 0 {
			p.ly = 0
			p.dot = 0
			p.winLine = 0
			p.setMode(0)
			p.updateSTATLine()
		} else if p.lcdc&0x80 != 0 && prev&0x80 == 0 {
			p.ly = 0
			p.dot = 0
			p.winLine = 0
			p.setMode(2)
			p.updateSTATLine()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.updateSTATLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateSTATLine()
		if p.lcdc&0x80 != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateSTATLine()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	case addr == 0xFF68:
		p.bgpsIdx = value
	case addr == 0xFF69:
		if p.cgb {
			p.cgbBGP[p.bgpsIdx&0x3F] = value
			if p.bgpsIdx&0x80 != 0 {
				p.bgpsIdx = 0x80 | ((p.bgpsIdx + 1) & 0x3F)
			}
		}
	case addr == 0xFF6A:
		p.obpsIdx = value
	case addr == 0xFF6B:
		if p.cgb {
			p.cgbOBP[p.obpsIdx&0x3F] = value
			if p.obpsIdx&0x80 != 0 {
				p.obpsIdx = 0x80 | ((p.obpsIdx + 1) & 0x3F)
			}
		}
	case addr == 0xFF4F:
		if p.cgb {
			p.vbk = value & 0x01
		}
	}
}

// Tick advances PPU state by the given number of dots.
func (p *PPU) Tick(dots int) {
	for i := 0; i < dots; i++ {
		p.tickOne()
	}
}

func (p *PPU) tickOne() {
	if p.lcdc&0x80 == 0 {
		return
	}
	p.dot++

	var mode byte
	if p.ly >= 144 {
		mode = 1
	} else {
		switch {
		case p.dot < oamDots:
			mode = 2
		case p.dot < oamDots+drawDots:
			mode = 3
		default:
			mode = 0
		}
	}
	if mode == 0 && p.stat&0x03 == 3 {
		p.renderScanline()
	}
	p.setMode(mode)

	if p.dot >= totalDots {
		p.dot = 0
		p.ly++
		if p.ly == 144 {
			p.req(0) // VBlank
			p.frameReady = true
		} else if p.ly > 153 {
			p.ly = 0
			p.winLine = 0
		}
		p.updateSTATLine()
		if p.ly >= 144 {
			p.setMode(1)
		} else {
			p.setMode(2)
		}
	}
}

func (p *PPU) setMode(mode byte) {
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	p.updateSTATLine()
}

// updateSTATLine recomputes the STAT coincidence flag and the combined OR
// of the four interrupt sources, raising LCDStat only on its rising edge.
func (p *PPU) updateSTATLine() {
	coincidence := p.ly == p.lyc
	if coincidence {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	mode := p.stat & 0x03
	line := (coincidence && p.stat&(1<<6) != 0) ||
		(mode == 0 && p.stat&(1<<3) != 0) ||
		(mode == 1 && p.stat&(1<<4) != 0) ||
		(mode == 2 && p.stat&(1<<5) != 0)
	if line && !p.statLine {
		p.req(1) // LCDStat
	}
	p.statLine = line
}

func (p *PPU) FrameIsReady() bool { return p.frameReady }

// GetFrame returns the 160x144 RGB frame and clears the ready flag.
func (p *PPU) GetFrame() []byte {
	p.frameReady = false
	out := make([]byte, len(p.frame))
	copy(out, p.frame[:])
	return out
}

// LineRegisters is a snapshot of the scanline-relevant registers, captured
// for diagnostics and tests. The y argument is informational only; the
// snapshot always reflects the PPU's current live state.
type LineRegisters struct {
	LY      int
	SCX     byte
	SCY     byte
	WY      byte
	WX      byte
	WinLine int
	LCDC    byte
	BGP     byte
}

func (p *PPU) LineRegs(y int) LineRegisters {
	return LineRegisters{
		LY:      int(p.ly),
		SCX:     p.scx,
		SCY:     p.scy,
		WY:      p.wy,
		WX:      p.wx,
		WinLine: p.winLine,
		LCDC:    p.lcdc,
		BGP:     p.bgp,
	}
}

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
