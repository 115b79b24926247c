package vt

// grid is one drawing surface (primary or alternate). All methods assume
// the owning Screen's lock is held.
type grid struct {
	rows, cols int
	lines      [][]Cell

	cursorRow int
	cursorCol int
	wrapNext  bool

	// scroll region, 0-based inclusive
	top, bottom int

	pen pen

	saved      savedCursor
	savedValid bool
}

type savedCursor struct {
	row, col int
	wrapNext bool
	pen      pen
}

func newGrid(rows, cols int) *grid {
	g := &grid{rows: rows, cols: cols, bottom: rows - 1}
	g.lines = make([][]Cell, rows)
	for i := range g.lines {
		g.lines[i] = make([]Cell, cols)
	}
	return g
}

func (g *grid) blankLine() []Cell {
	line := make([]Cell, g.cols)
	blank := g.pen.blankCell()
	for i := range line {
		line[i] = blank
	}
	return line
}

func (g *grid) clampCursor() {
	if g.cursorRow < 0 {
		g.cursorRow = 0
	}
	if g.cursorRow >= g.rows {
		g.cursorRow = g.rows - 1
	}
	if g.cursorCol < 0 {
		g.cursorCol = 0
	}
	if g.cursorCol >= g.cols {
		g.cursorCol = g.cols - 1
	}
}

func (g *grid) moveTo(row, col int) {
	g.cursorRow, g.cursorCol = row, col
	g.wrapNext = false
	g.clampCursor()
}

func (g *grid) saveCursor() {
	g.saved = savedCursor{row: g.cursorRow, col: g.cursorCol, wrapNext: g.wrapNext, pen: g.pen}
	g.savedValid = true
}

func (g *grid) restoreCursor() {
	if !g.savedValid {
		g.moveTo(0, 0)
		return
	}
	g.cursorRow, g.cursorCol = g.saved.row, g.saved.col
	g.wrapNext = g.saved.wrapNext
	g.pen = g.saved.pen
	g.clampCursor()
}

// scrollUp removes n lines at the top of the scroll region and inserts
// blank lines at the bottom. Removed lines are handed to spill (nil to
// discard) oldest first.
func (g *grid) scrollUp(n int, spill func([]Cell)) {
	if n <= 0 {
		return
	}
	region := g.bottom - g.top + 1
	if n > region {
		n = region
	}
	for i := 0; i < n; i++ {
		if spill != nil {
			spill(g.lines[g.top+i])
		}
	}
	copy(g.lines[g.top:], g.lines[g.top+n:g.bottom+1])
	for i := g.bottom - n + 1; i <= g.bottom; i++ {
		g.lines[i] = g.blankLine()
	}
}

// scrollDown inserts n blank lines at the top of the scroll region,
// dropping lines off the bottom.
func (g *grid) scrollDown(n int) {
	if n <= 0 {
		return
	}
	region := g.bottom - g.top + 1
	if n > region {
		n = region
	}
	copy(g.lines[g.top+n:g.bottom+1], g.lines[g.top:])
	for i := g.top; i < g.top+n; i++ {
		g.lines[i] = g.blankLine()
	}
}

// lineFeed moves the cursor down one row, scrolling when at the bottom
// margin. Spilled lines go to the screen's scrollback via spill; a
// partial scroll region (top margin below row 0) never feeds scrollback.
func (g *grid) lineFeed(spill func([]Cell)) {
	g.wrapNext = false
	if g.cursorRow == g.bottom {
		if g.top != 0 {
			spill = nil
		}
		g.scrollUp(1, spill)
		return
	}
	if g.cursorRow < g.rows-1 {
		g.cursorRow++
	}
}

// reverseLineFeed moves the cursor up one row, scrolling down at the top
// margin.
func (g *grid) reverseLineFeed() {
	g.wrapNext = false
	if g.cursorRow == g.top {
		g.scrollDown(1)
		return
	}
	if g.cursorRow > 0 {
		g.cursorRow--
	}
}

// insertLines shifts lines at the cursor down within the scroll region.
func (g *grid) insertLines(n int) {
	if g.cursorRow < g.top || g.cursorRow > g.bottom {
		return
	}
	if n > g.bottom-g.cursorRow+1 {
		n = g.bottom - g.cursorRow + 1
	}
	copy(g.lines[g.cursorRow+n:g.bottom+1], g.lines[g.cursorRow:])
	for i := g.cursorRow; i < g.cursorRow+n; i++ {
		g.lines[i] = g.blankLine()
	}
	g.cursorCol = 0
	g.wrapNext = false
}

// deleteLines removes lines at the cursor within the scroll region,
// pulling lines up from below.
func (g *grid) deleteLines(n int) {
	if g.cursorRow < g.top || g.cursorRow > g.bottom {
		return
	}
	if n > g.bottom-g.cursorRow+1 {
		n = g.bottom - g.cursorRow + 1
	}
	copy(g.lines[g.cursorRow:], g.lines[g.cursorRow+n:g.bottom+1])
	for i := g.bottom - n + 1; i <= g.bottom; i++ {
		g.lines[i] = g.blankLine()
	}
	g.cursorCol = 0
	g.wrapNext = false
}

// insertChars shifts cells right of the cursor further right.
func (g *grid) insertChars(n int) {
	line := g.lines[g.cursorRow]
	if n > g.cols-g.cursorCol {
		n = g.cols - g.cursorCol
	}
	copy(line[g.cursorCol+n:], line[g.cursorCol:])
	blank := g.pen.blankCell()
	for i := g.cursorCol; i < g.cursorCol+n; i++ {
		line[i] = blank
	}
}

// deleteChars removes cells at the cursor, pulling the rest of the line
// left.
func (g *grid) deleteChars(n int) {
	line := g.lines[g.cursorRow]
	if n > g.cols-g.cursorCol {
		n = g.cols - g.cursorCol
	}
	copy(line[g.cursorCol:], line[g.cursorCol+n:])
	blank := g.pen.blankCell()
	for i := g.cols - n; i < g.cols; i++ {
		line[i] = blank
	}
}

// eraseChars blanks n cells starting at the cursor.
func (g *grid) eraseChars(n int) {
	line := g.lines[g.cursorRow]
	blank := g.pen.blankCell()
	for i := g.cursorCol; i < g.cursorCol+n && i < g.cols; i++ {
		line[i] = blank
	}
}

// eraseLine implements EL modes 0 (cursor to end), 1 (start to cursor),
// 2 (whole line).
func (g *grid) eraseLine(mode int) {
	line := g.lines[g.cursorRow]
	blank := g.pen.blankCell()
	switch mode {
	case 0:
		for i := g.cursorCol; i < g.cols; i++ {
			line[i] = blank
		}
	case 1:
		for i := 0; i <= g.cursorCol && i < g.cols; i++ {
			line[i] = blank
		}
	case 2:
		for i := range line {
			line[i] = blank
		}
	}
}

// eraseDisplay implements ED modes 0, 1 and 2. Mode 3 (scrollback) is
// handled by the Screen.
func (g *grid) eraseDisplay(mode int) {
	switch mode {
	case 0:
		g.eraseLine(0)
		for r := g.cursorRow + 1; r < g.rows; r++ {
			g.lines[r] = g.blankLine()
		}
	case 1:
		g.eraseLine(1)
		for r := 0; r < g.cursorRow; r++ {
			g.lines[r] = g.blankLine()
		}
	case 2:
		for r := 0; r < g.rows; r++ {
			g.lines[r] = g.blankLine()
		}
	}
}

// setMargins applies DECSTBM. Zero values select the defaults. Invalid
// regions are ignored, matching hardware behavior.
func (g *grid) setMargins(top, bottom int) {
	if top <= 0 {
		top = 1
	}
	if bottom <= 0 || bottom > g.rows {
		bottom = g.rows
	}
	if top >= bottom {
		return
	}
	g.top, g.bottom = top-1, bottom-1
	g.moveTo(g.top, 0)
}

// resizeTo applies the truncate/pad policy. When shrinking vertically the
// clipped top lines are handed to spill oldest first (nil discards them,
// which is what the alternate screen wants).
func (g *grid) resizeTo(rows, cols int, spill func([]Cell)) {
	if cols != g.cols {
		for i, line := range g.lines {
			if len(line) > cols {
				line = line[:cols:cols]
				// A wide character split at the new right edge
				// leaves a dangling lead cell; blank it.
				if n := len(line); n > 0 && line[n-1].Width == 2 {
					line[n-1] = Cell{}
				}
				g.lines[i] = line
			} else {
				padded := make([]Cell, cols)
				copy(padded, line)
				g.lines[i] = padded
			}
		}
		g.cols = cols
	}

	if rows < g.rows {
		clip := g.rows - rows
		for i := 0; i < clip; i++ {
			if spill != nil {
				spill(g.lines[i])
			}
		}
		g.lines = g.lines[clip:]
		g.cursorRow -= clip
	} else if rows > g.rows {
		for i := g.rows; i < rows; i++ {
			g.lines = append(g.lines, make([]Cell, cols))
		}
	}
	g.rows = rows
	g.top, g.bottom = 0, rows-1
	g.wrapNext = false
	g.clampCursor()
}
