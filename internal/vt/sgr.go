package vt

// sgr applies a Select Graphic Rendition parameter list to the active
// pen. Extended color forms (38/48 with 5;n or 2;r;g;b) consume their
// arguments; unrecognized codes are skipped and the rest of the list
// still applies. A malformed 38/48 form ends processing of the list.
func (s *Screen) sgr(params []int) {
	g := s.active()
	if len(params) == 0 {
		g.pen = pen{}
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			g.pen = pen{}
		case p == 1:
			g.pen.attr |= AttrBold
		case p == 2:
			g.pen.attr |= AttrFaint
		case p == 3:
			g.pen.attr |= AttrItalic
		case p == 4:
			g.pen.attr |= AttrUnderline
		case p == 5, p == 6:
			g.pen.attr |= AttrBlink
		case p == 7:
			g.pen.attr |= AttrReverse
		case p == 8:
			g.pen.attr |= AttrHidden
		case p == 9:
			g.pen.attr |= AttrStrike
		case p == 22:
			g.pen.attr &^= AttrBold | AttrFaint
		case p == 23:
			g.pen.attr &^= AttrItalic
		case p == 24:
			g.pen.attr &^= AttrUnderline
		case p == 25:
			g.pen.attr &^= AttrBlink
		case p == 27:
			g.pen.attr &^= AttrReverse
		case p == 28:
			g.pen.attr &^= AttrHidden
		case p == 29:
			g.pen.attr &^= AttrStrike
		case p >= 30 && p <= 37:
			g.pen.fg = Color{Mode: ColorANSI, Value: uint32(p - 30)}
		case p == 38:
			if c, n, ok := extendedColor(params[i+1:]); ok {
				g.pen.fg = c
				i += n
			} else {
				return
			}
		case p == 39:
			g.pen.fg = Color{}
		case p >= 40 && p <= 47:
			g.pen.bg = Color{Mode: ColorANSI, Value: uint32(p - 40)}
		case p == 48:
			if c, n, ok := extendedColor(params[i+1:]); ok {
				g.pen.bg = c
				i += n
			} else {
				return
			}
		case p == 49:
			g.pen.bg = Color{}
		case p >= 90 && p <= 97:
			g.pen.fg = Color{Mode: ColorANSI, Value: uint32(p - 90 + 8)}
		case p >= 100 && p <= 107:
			g.pen.bg = Color{Mode: ColorANSI, Value: uint32(p - 100 + 8)}
		}
	}
}

// extendedColor decodes the tail of a 38/48 sequence. Returns the color,
// the number of parameters consumed, and whether the form was valid.
func extendedColor(rest []int) (Color, int, bool) {
	if len(rest) == 0 {
		return Color{}, 0, false
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, 0, false
		}
		return Color{Mode: Color256, Value: uint32(rest[1] & 0xFF)}, 2, true
	case 2:
		if len(rest) < 4 {
			return Color{}, 0, false
		}
		r, g, b := uint32(rest[1]&0xFF), uint32(rest[2]&0xFF), uint32(rest[3]&0xFF)
		return Color{Mode: ColorRGB, Value: r<<16 | g<<8 | b}, 4, true
	}
	return Color{}, 0, false
}
