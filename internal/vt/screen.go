package vt

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// DefaultScrollbackLines bounds the scrollback ring when no capacity is
// given. Oldest lines are evicted first.
const DefaultScrollbackLines = 10000

// Screen is the terminal model: a primary and an alternate grid, a
// bounded scrollback ring, and the parser that drives them. Write feeds
// child output in; the query methods take the lock briefly and never
// block the writer for long.
type Screen struct {
	mu sync.Mutex

	primary   *grid
	alt       *grid
	altActive bool

	scrollback    [][]Cell
	maxScrollback int

	version uint64

	cursorVisible  bool
	autoWrap       bool
	originMode     bool
	bracketedPaste bool
	appCursorKeys  bool
	mouseModes     map[int]bool

	title string

	parser parser
}

// NewScreen creates a model with the given visible size. maxScrollback
// <= 0 selects DefaultScrollbackLines.
func NewScreen(rows, cols, maxScrollback int) *Screen {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	if maxScrollback <= 0 {
		maxScrollback = DefaultScrollbackLines
	}
	s := &Screen{
		primary:       newGrid(rows, cols),
		alt:           newGrid(rows, cols),
		maxScrollback: maxScrollback,
		cursorVisible: true,
		autoWrap:      true,
		mouseModes:    make(map[int]bool),
	}
	s.parser.reset()
	return s
}

func (s *Screen) active() *grid {
	if s.altActive {
		return s.alt
	}
	return s.primary
}

// spill pushes a scrolled-off line into scrollback. The alternate screen
// never contributes to scrollback.
func (s *Screen) spill(line []Cell) {
	if s.altActive {
		return
	}
	kept := make([]Cell, len(line))
	copy(kept, line)
	s.scrollback = append(s.scrollback, kept)
	if over := len(s.scrollback) - s.maxScrollback; over > 0 {
		s.scrollback = append(s.scrollback[:0], s.scrollback[over:]...)
	}
}

// Write feeds child output through the parser. It never fails; the
// signature matches io.Writer so the bridge can tee into the model.
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	for _, b := range p {
		s.step(b)
	}
	s.version++
	s.mu.Unlock()
	return len(p), nil
}

// print places one decoded rune at the cursor, honoring auto-wrap, wide
// characters and zero-width combining marks.
func (s *Screen) print(r rune) {
	g := s.active()
	w := runewidth.RuneWidth(r)

	if w == 0 {
		// Combining mark: attach to the most recently printed cell.
		col := g.cursorCol
		if !g.wrapNext {
			col--
		}
		if col >= 0 && col < g.cols {
			cell := &g.lines[g.cursorRow][col]
			if cell.Rune == wideContinuation && col > 0 {
				cell = &g.lines[g.cursorRow][col-1]
			}
			if cell.Rune > 0 {
				cell.Combining = append(cell.Combining, r)
			}
		}
		return
	}
	if w > 2 {
		w = 2
	}

	if g.wrapNext && s.autoWrap {
		g.cursorCol = 0
		g.lineFeed(s.spill)
	}
	g.wrapNext = false

	if w == 2 && g.cursorCol+2 > g.cols {
		if s.autoWrap {
			g.eraseChars(g.cols - g.cursorCol)
			g.cursorCol = 0
			g.lineFeed(s.spill)
		} else if g.cols >= 2 {
			g.cursorCol = g.cols - 2
		} else {
			return
		}
	}

	line := g.lines[g.cursorRow]
	line[g.cursorCol] = Cell{Rune: r, Width: uint8(w), FG: g.pen.fg, BG: g.pen.bg, Attr: g.pen.attr}
	if w == 2 && g.cursorCol+1 < g.cols {
		line[g.cursorCol+1] = Cell{Rune: wideContinuation, FG: g.pen.fg, BG: g.pen.bg, Attr: g.pen.attr}
	}

	if g.cursorCol+w >= g.cols {
		g.cursorCol = g.cols - 1
		if s.autoWrap {
			g.wrapNext = true
		}
	} else {
		g.cursorCol += w
	}
}

// execute handles C0 controls in the ground state.
func (s *Screen) execute(b byte) {
	g := s.active()
	switch b {
	case 0x08: // BS
		if g.wrapNext {
			g.wrapNext = false
		} else if g.cursorCol > 0 {
			g.cursorCol--
		}
	case 0x09: // HT
		g.wrapNext = false
		next := (g.cursorCol/8 + 1) * 8
		if next > g.cols-1 {
			next = g.cols - 1
		}
		g.cursorCol = next
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		g.lineFeed(s.spill)
	case 0x0D: // CR
		g.cursorCol = 0
		g.wrapNext = false
	case 0x07: // BEL
	}
}

// setMode applies DECSET (set=true) / DECRST for one private mode.
func (s *Screen) setMode(mode int, set bool) {
	switch mode {
	case 1:
		s.appCursorKeys = set
	case 7:
		s.autoWrap = set
		if !set {
			s.active().wrapNext = false
		}
	case 25:
		s.cursorVisible = set
	case 47, 1047:
		s.switchAltScreen(set, false)
	case 1048:
		if set {
			s.active().saveCursor()
		} else {
			s.active().restoreCursor()
		}
	case 1049:
		s.switchAltScreen(set, true)
	case 2004:
		s.bracketedPaste = set
	case 1000, 1002, 1003, 1005, 1006, 1015:
		if set {
			s.mouseModes[mode] = true
		} else {
			delete(s.mouseModes, mode)
		}
	}
}

// switchAltScreen activates or deactivates the alternate grid. The
// primary grid is left untouched while the alternate is active, so
// deactivation restores it verbatim without copying.
func (s *Screen) switchAltScreen(enter, saveCursor bool) {
	if enter == s.altActive {
		return
	}
	if enter {
		if saveCursor {
			s.primary.saveCursor()
		}
		s.alt = newGrid(s.primary.rows, s.primary.cols)
		s.alt.pen = s.primary.pen
		s.altActive = true
	} else {
		s.altActive = false
		if saveCursor {
			s.primary.restoreCursor()
		}
	}
}

// fullReset implements RIS. Scrollback survives, matching xterm.
func (s *Screen) fullReset() {
	rows, cols := s.primary.rows, s.primary.cols
	s.primary = newGrid(rows, cols)
	s.alt = newGrid(rows, cols)
	s.altActive = false
	s.cursorVisible = true
	s.autoWrap = true
	s.originMode = false
	s.bracketedPaste = false
	s.appCursorKeys = false
	s.mouseModes = make(map[int]bool)
	s.parser.reset()
}

// Resize applies the truncate/pad policy to both grids atomically.
// Resizing to the current size is a no-op.
func (s *Screen) Resize(rows, cols int) {
	if rows < 1 || cols < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == s.primary.rows && cols == s.primary.cols {
		return
	}
	s.primary.resizeTo(rows, cols, s.spillPrimary)
	s.alt.resizeTo(rows, cols, nil)
	s.version++
}

// spillPrimary routes resize-clipped primary lines to scrollback even
// while the alternate screen is active.
func (s *Screen) spillPrimary(line []Cell) {
	kept := make([]Cell, len(line))
	copy(kept, line)
	s.scrollback = append(s.scrollback, kept)
	if over := len(s.scrollback) - s.maxScrollback; over > 0 {
		s.scrollback = append(s.scrollback[:0], s.scrollback[over:]...)
	}
}

// Size returns the visible dimensions.
func (s *Screen) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary.rows, s.primary.cols
}

// Cursor returns the 0-indexed cursor position of the active grid. The
// column may equal the width when a wrap is pending.
func (s *Screen) Cursor() (row, col int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.active()
	col = g.cursorCol
	if g.wrapNext {
		col++
	}
	return g.cursorRow, col
}

// Version returns the monotonic mutation counter. Every Write and every
// effective Resize increments it.
func (s *Screen) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// CursorVisible reports DECTCEM state.
func (s *Screen) CursorVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorVisible
}

// AltScreen reports whether the alternate grid is active.
func (s *Screen) AltScreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.altActive
}

// Title returns the last OSC 0/2 window title, if any.
func (s *Screen) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// ScrollbackLines returns the last n plain-text lines of scrollback plus
// the currently visible grid, top to bottom, styles stripped. n <= 0
// returns everything. Trailing blank visible lines are trimmed.
func (s *Screen) ScrollbackLines(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.active()
	out := make([]string, 0, len(s.scrollback)+g.rows)
	for _, line := range s.scrollback {
		out = append(out, lineString(line))
	}
	for _, line := range g.lines {
		out = append(out, lineString(line))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// ScrollbackLen reports how many lines the scrollback ring currently
// holds.
func (s *Screen) ScrollbackLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scrollback)
}

// lineString flattens one row of cells to text: continuation halves are
// skipped, empty cells read as spaces, trailing blanks are trimmed.
func lineString(line []Cell) string {
	var b strings.Builder
	for _, c := range line {
		switch {
		case c.Rune == wideContinuation:
		case c.Rune == 0:
			b.WriteByte(' ')
		default:
			b.WriteRune(c.Rune)
			for _, cm := range c.Combining {
				b.WriteRune(cm)
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
