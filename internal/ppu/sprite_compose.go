package ppu

// Sprite is a normalized, already-filtered object entry for ComposeSpriteLine:
// Y is the sprite's top scanline in the same coordinate space as the ly
// argument (not the raw OAM +16 offset), and X is the sprite's left column
// in screen space (not the raw OAM +8 offset).
type Sprite struct {
	X, Y, Tile, Attr byte
	OAMIndex         int
}

// ComposeSpriteLine rasterizes a set of sprites onto one scanline, applying
// DMG X-then-OAM-index priority and the behind-BG attribute against bgci.
// tall selects 8x16 object mode.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [width]byte, tall bool) [width]byte {
	var out [width]byte

	h := byte(8)
	if tall {
		h = 16
	}

	order := make([]int, 0, len(sprites))
	for i, s := range sprites {
		if int(ly) >= int(s.Y) && int(ly) < int(s.Y)+int(h) {
			order = append(order, i)
		}
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, b := sprites[order[i]], sprites[order[j]]
			if a.X < b.X || (a.X == b.X && a.OAMIndex < b.OAMIndex) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, idx := range order {
		s := sprites[idx]
		row := int(ly) - int(s.Y)
		tileIdx, row := objRow(s.Tile, s.Attr, row, tall)
		lo, hi := objTileRow(mem, tileIdx, row)

		for px := 0; px < 8; px++ {
			ci := objPixel(lo, hi, px, s.Attr&0x20 != 0)
			if ci == 0 {
				continue
			}
			screenX := int(s.X) + px
			if screenX < 0 || screenX >= width {
				continue
			}
			if s.Attr&0x80 != 0 && bgci[screenX] != 0 {
				continue
			}
			out[screenX] = ci
		}
	}
	return out
}
