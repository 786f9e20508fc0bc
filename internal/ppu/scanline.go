package ppu

// shade maps a DMG 2-bit palette shade to a grayscale RGB triple.
var shade = [4][3]byte{
	{255, 255, 255},
	{170, 170, 170},
	{85, 85, 85},
	{0, 0, 0},
}

func paletteShade(palette, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}

// objTileRow reads the (lo, hi) bitplane bytes for one row of an 8000-
// addressed object tile. Object tiles always use 0x8000 addressing.
func objTileRow(mem VRAMReader, tileIdx byte, row int) (lo, hi byte) {
	base := uint16(0x8000) + uint16(tileIdx)*16 + uint16(row)*2
	return mem.Read(base), mem.Read(base + 1)
}

// objPixel extracts color index ci for pixel px (0..7, left to right as
// displayed) from a tile row, honoring the object's X-flip attribute.
func objPixel(lo, hi byte, px int, xflip bool) byte {
	bit := 7 - px
	if xflip {
		bit = px
	}
	return ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
}

// objRow resolves the flipped, 8x16-aware tile index and in-tile row for a
// sprite given its unflipped top-relative row.
func objRow(tile, attr byte, row int, tall bool) (tileIdx byte, outRow int) {
	h := 8
	if tall {
		h = 16
	}
	if attr&0x40 != 0 { // Y flip
		row = h - 1 - row
	}
	tileIdx = tile
	if tall {
		tileIdx &^= 0x01
		if row >= 8 {
			tileIdx |= 0x01
			row -= 8
		}
	}
	return tileIdx, row
}

// renderScanline composites background, window, and object layers for the
// current LY into the frame buffer. Called once, at the Drawing->HBlank
// boundary.
func (p *PPU) renderScanline() {
	ly := p.ly
	if int(ly) >= height {
		return
	}

	var bg [width]byte
	var bgPal [width]byte
	var bgPri [width]bool
	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		if p.cgb {
			bg, bgPal, bgPri = RenderBGScanlineCGB(p, mapBase, mapBase, tileData8000, p.scx, p.scy, ly)
		} else {
			bg = RenderBGScanlineUsingFetcher(p, mapBase, tileData8000, p.scx, p.scy, ly)
		}
	}

	windowVisible := p.lcdc&0x20 != 0 && p.wy <= ly && p.wx <= 166
	if windowVisible {
		mapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		wxStart := int(p.wx) - 7
		if p.cgb {
			win, winPal, winPri := RenderWindowScanlineCGB(p, mapBase, mapBase, tileData8000, wxStart, byte(p.winLine))
			for x := wxStart; x < width; x++ {
				if x < 0 {
					continue
				}
				bg[x] = win[x]
				bgPal[x] = winPal[x]
				bgPri[x] = winPri[x]
			}
		} else {
			win := RenderWindowScanlineUsingFetcher(p, mapBase, tileData8000, wxStart, byte(p.winLine))
			for x := wxStart; x < width; x++ {
				if x < 0 {
					continue
				}
				bg[x] = win[x]
			}
		}
		p.winLine++
	}

	var objColor [width]byte
	var objPalette [width]byte
	var objBehindBG [width]bool
	var objPresent [width]bool
	if p.lcdc&0x02 != 0 {
		p.renderObjects(ly, &objColor, &objPalette, &objBehindBG, &objPresent)
	}

	base := int(ly) * width * 3
	for x := 0; x < width; x++ {
		var ci byte
		var palette byte
		if p.lcdc&0x01 == 0 {
			ci = 0
		} else {
			ci = bg[x]
			palette = p.bgp
		}

		showObj := false
		if objPresent[x] {
			useObj := !objBehindBG[x] || ci == 0
			if p.lcdc&0x01 == 0 {
				useObj = true
			}
			if p.cgb && bgPri[x] && bg[x] != 0 {
				// CGB BG-to-OAM priority attribute forces BG over any object,
				// overriding both LCDC.0 and the object's own priority bit.
				useObj = false
			}
			showObj = useObj
		}

		var r, g, b byte
		switch {
		case showObj:
			// Objects always render through the DMG OBP0/OBP1 grayscale
			// palettes; CGB per-object palette RAM (OCPS/OCPD) is not wired.
			ci = objColor[x]
			sh := paletteShade(objPalette[x], ci)
			rgb := shade[sh]
			r, g, b = rgb[0], rgb[1], rgb[2]
		case p.cgb:
			r, g, b = cgbColor(p.cgbBGP, bgPal[x], ci)
		default:
			sh := paletteShade(palette, ci)
			rgb := shade[sh]
			r, g, b = rgb[0], rgb[1], rgb[2]
		}
		p.frame[base+x*3+0] = r
		p.frame[base+x*3+1] = g
		p.frame[base+x*3+2] = b
	}
}

// renderObjects collects up to 10 sprites intersecting LY (OAM order
// preserved) and rasterizes them into per-pixel color/palette/priority
// outputs, using DMG X-then-OAM-index priority for overlaps.
func (p *PPU) renderObjects(ly byte, color, palette *[width]byte, behindBG *[width]bool, present *[width]bool) {
	h := byte(8)
	if p.lcdc&0x04 != 0 {
		h = 16
	}

	var candidates []objEntry
	for i := 0; i < 40 && len(candidates) < 10; i++ {
		o := i * 4
		y := p.oam[o]
		x := p.oam[o+1]
		tile := p.oam[o+2]
		attr := p.oam[o+3]
		spriteTop := int(y) - 16
		if int(ly) >= spriteTop && int(ly) < spriteTop+int(h) {
			candidates = append(candidates, objEntry{y: y, x: x, tile: tile, attr: attr, oamIndex: i})
		}
	}

	// DMG priority: smaller X wins; ties keep OAM order. Render
	// lowest-priority first so a later Write overwrites with the
	// higher-priority pixel (mirrors a painter's-algorithm approach).
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, b := candidates[order[i]], candidates[order[j]]
			if a.x < b.x || (a.x == b.x && a.oamIndex < b.oamIndex) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, idx := range order {
		e := candidates[idx]
		row := int(ly) - (int(e.y) - 16)
		tileIdx, row := objRow(e.tile, e.attr, row, h == 16)
		lo, hi := objTileRow(p, tileIdx, row)

		pal := p.obp0
		if e.attr&0x10 != 0 {
			pal = p.obp1
		}
		behind := e.attr&0x80 != 0

		for px := 0; px < 8; px++ {
			ci := objPixel(lo, hi, px, e.attr&0x20 != 0)
			if ci == 0 {
				continue
			}
			screenX := int(e.x) - 8 + px
			if screenX < 0 || screenX >= width {
				continue
			}
			color[screenX] = ci
			palette[screenX] = pal
			behindBG[screenX] = behind
			present[screenX] = true
		}
	}
}

// RenderBGScanlineUsingFetcher renders 160 BG pixels for the given LY using the isolated fetcher.
func RenderBGScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	tileIndexAddr := mapBase + mapY*32 + tileX

	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	for i := 0; i < fineX; i++ {
		_, _ = q.Pop()
	}

	for x := 0; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderWindowScanlineUsingFetcher renders the window layer for a scanline using the fetcher.
// Pixels before wxStart are left as 0 (BG color index 0) so callers can blend.
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)
	tileIndexAddr := mapBase + mapY*32 + tileX
	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	for x := wxStart; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}
