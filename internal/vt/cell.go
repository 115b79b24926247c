// Package vt maintains a model of what a terminal would display: a cell
// grid with bounded scrollback, a cursor, and the escape-sequence state
// machine that mutates them. The model is a pure function of the byte
// stream fed to Write plus the size history, which keeps snapshots taken
// at different times comparable.
package vt

// Attr is a bitmask of character styles.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrFaint
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrHidden
	AttrStrike
)

// ColorMode selects how a Color's Value is interpreted.
type ColorMode uint8

const (
	// ColorDefault is the terminal's default foreground or background.
	ColorDefault ColorMode = iota
	// ColorANSI holds one of the 16 base palette indices (0-15).
	ColorANSI
	// Color256 holds an xterm 256-color palette index.
	Color256
	// ColorRGB holds a 24-bit color as 0xRRGGBB.
	ColorRGB
)

// Color is a cell foreground or background color.
type Color struct {
	Mode  ColorMode
	Value uint32
}

// wideContinuation marks the trailing half of a double-width character.
const wideContinuation rune = -1

// Cell is one grid position. A zero Rune means the cell is empty; the
// wideContinuation sentinel marks the trailing half of a wide character.
type Cell struct {
	Rune      rune
	Combining []rune
	Width     uint8
	FG        Color
	BG        Color
	Attr      Attr
}

// pen is the active SGR state applied to printed cells.
type pen struct {
	fg   Color
	bg   Color
	attr Attr
}

func (p pen) blankCell() Cell {
	// Erased cells keep the pen background so reverse-video apps
	// read back correctly; text extraction ignores it.
	return Cell{BG: p.bg}
}
