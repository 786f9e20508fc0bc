package ppu

// BankedVRAMReader extends VRAMReader with CGB VRAM bank 1 access, used by
// the CGB-aware BG/window scanline renderers for tile data and the BG
// attribute map (which lives in bank 1 at the same addresses as the tile
// map in bank 0).
type BankedVRAMReader interface {
	VRAMReader
	ReadBank(bank int, addr uint16) byte
}

// cgbAttr decodes a CGB BG/window attribute byte: bit7 BG-to-OAM priority,
// bit6 Y flip, bit5 X flip, bit4 VRAM bank, bits2-0 palette.
type cgbAttr struct {
	bank     int
	xflip    bool
	yflip    bool
	palette  byte
	priority bool
}

func decodeCGBAttr(v byte) cgbAttr {
	a := cgbAttr{palette: v & 0x07, priority: v&0x80 != 0, yflip: v&0x40 != 0, xflip: v&0x20 != 0}
	if v&0x10 != 0 {
		a.bank = 1
	}
	return a
}

func cgbTileRow(mem BankedVRAMReader, bank int, tileIdx byte, tileData8000 bool, row byte) (lo, hi byte) {
	var base uint16
	if tileData8000 {
		base = 0x8000 + uint16(tileIdx)*16 + uint16(row)*2
	} else {
		base = 0x9000 + uint16(int8(tileIdx))*16 + uint16(row)*2
	}
	return mem.ReadBank(bank, base), mem.ReadBank(bank, base+1)
}

// cgbColor decodes an RGB555 color from CGB palette RAM (8 palettes * 4
// colors * 2 bytes, little-endian 0bbbbbgggggrrrrr) and scales it to 8-bit
// channels.
func cgbColor(ram [64]byte, palette, ci byte) (r, g, b byte) {
	off := int(palette&0x07)*8 + int(ci&0x03)*2
	v := uint16(ram[off]) | uint16(ram[off+1])<<8
	r5 := byte(v & 0x1F)
	g5 := byte((v >> 5) & 0x1F)
	b5 := byte((v >> 10) & 0x1F)
	scale := func(c byte) byte { return byte((uint16(c)*255 + 15) / 31) }
	return scale(r5), scale(g5), scale(b5)
}

// RenderBGScanlineCGB renders one BG scanline honoring per-tile CGB
// attributes (bank, flips, palette, priority) read from attrBase, which
// overlays the same tile-map addresses as mapBase but lives in VRAM bank 1.
func RenderBGScanlineCGB(mem BankedVRAMReader, mapBase, attrBase uint16, tileData8000 bool, scx, scy, ly byte) (ci [width]byte, pal [width]byte, pri [width]bool) {
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	for x := 0; x < width; x++ {
		bgX := uint16(x) + uint16(scx)
		tileX := (bgX >> 3) & 31
		fineX := int(bgX & 7)

		mapAddr := mapBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, mapAddr)
		attr := decodeCGBAttr(mem.ReadBank(1, attrBase+mapY*32+tileX))

		row := fineY
		if attr.yflip {
			row = 7 - row
		}
		lo, hi := cgbTileRow(mem, attr.bank, tileNum, tileData8000, row)
		ci[x] = objPixel(lo, hi, fineX, attr.xflip)
		pal[x] = attr.palette
		pri[x] = attr.priority
	}
	return
}

// RenderWindowScanlineCGB mirrors RenderBGScanlineCGB for the window layer.
// Pixels before wxStart are left zeroed so callers can blend against BG.
func RenderWindowScanlineCGB(mem BankedVRAMReader, mapBase, attrBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci [width]byte, pal [width]byte, pri [width]bool) {
	if wxStart >= width {
		return
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7

	for x := wxStart; x < width; x++ {
		rel := uint16(x - wxStart)
		tileX := (rel >> 3) & 31
		fineX := int(rel & 7)

		mapAddr := mapBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, mapAddr)
		attr := decodeCGBAttr(mem.ReadBank(1, attrBase+mapY*32+tileX))

		row := fineY
		if attr.yflip {
			row = 7 - row
		}
		lo, hi := cgbTileRow(mem, attr.bank, tileNum, tileData8000, row)
		ci[x] = objPixel(lo, hi, fineX, attr.xflip)
		pal[x] = attr.palette
		pri[x] = attr.priority
	}
	return
}
