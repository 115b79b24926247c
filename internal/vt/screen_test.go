package vt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// feed writes s to a fresh screen and returns it.
func feed(t *testing.T, rows, cols int, s string) *Screen {
	t.Helper()
	scr := NewScreen(rows, cols, 0)
	scr.Write([]byte(s))
	return scr
}

// visible renders the full visible grid as newline-joined text.
func visible(s *Screen) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.active()
	lines := make([]string, g.rows)
	for i, line := range g.lines {
		lines[i] = lineString(line)
	}
	return strings.Join(lines, "\n")
}

// diffStrings formats a unified diff for readable failures.
func diffStrings(want, got string) string {
	edits := myers.ComputeEdits(span.URIFromPath("want"), want, got)
	return fmt.Sprint(gotextdiff.ToUnified("want", "got", want, edits))
}

func assertScreen(t *testing.T, s *Screen, want string) {
	t.Helper()
	got := strings.TrimRight(visible(s), "\n")
	want = strings.TrimRight(want, "\n")
	if got != want {
		t.Errorf("screen mismatch:\n%s", diffStrings(want+"\n", got+"\n"))
	}
}

func TestPlainText(t *testing.T) {
	s := feed(t, 4, 10, "hello")
	assertScreen(t, s, "hello")

	row, col := s.Cursor()
	if row != 0 || col != 5 {
		t.Errorf("cursor = (%d,%d), want (0,5)", row, col)
	}
}

func TestNewlines(t *testing.T) {
	s := feed(t, 4, 10, "one\r\ntwo\r\nthree")
	assertScreen(t, s, "one\ntwo\nthree")
}

func TestBareLineFeedKeepsColumn(t *testing.T) {
	s := feed(t, 4, 10, "ab\ncd")
	assertScreen(t, s, "ab\n  cd")
}

func TestCarriageReturnOverwrites(t *testing.T) {
	s := feed(t, 4, 10, "abcdef\rXY")
	assertScreen(t, s, "XYcdef")
}

func TestBackspace(t *testing.T) {
	s := feed(t, 4, 10, "abc\b\bZ")
	assertScreen(t, s, "aZc")
}

func TestTab(t *testing.T) {
	s := feed(t, 4, 20, "a\tb")
	assertScreen(t, s, "a       b")
}

func TestAutoWrap(t *testing.T) {
	s := feed(t, 4, 5, "abcdefg")
	assertScreen(t, s, "abcde\nfg")

	row, col := s.Cursor()
	if row != 1 || col != 2 {
		t.Errorf("cursor = (%d,%d), want (1,2)", row, col)
	}
}

func TestPendingWrapColumn(t *testing.T) {
	s := feed(t, 4, 5, "abcde")
	row, col := s.Cursor()
	if row != 0 || col != 5 {
		t.Errorf("cursor = (%d,%d), want (0,5) pending wrap", row, col)
	}
	// A CR while a wrap is pending must not leak onto the next line.
	s.Write([]byte("\rZ"))
	assertScreen(t, s, "Zbcde")
}

func TestAutoWrapDisabled(t *testing.T) {
	s := NewScreen(4, 5, 0)
	s.Write([]byte("\x1b[?7labcdefgh"))
	assertScreen(t, s, "abcdh")
}

func TestCursorPosition(t *testing.T) {
	// CSI 5;10 H is 1-indexed; the model reports 0-indexed.
	s := feed(t, 24, 80, "\x1b[5;10H")
	row, col := s.Cursor()
	if row != 4 || col != 9 {
		t.Errorf("cursor = (%d,%d), want (4,9)", row, col)
	}
}

func TestCursorMotion(t *testing.T) {
	s := feed(t, 10, 10, "\x1b[5;5H\x1b[2A\x1b[3C")
	row, col := s.Cursor()
	if row != 2 || col != 7 {
		t.Errorf("cursor = (%d,%d), want (2,7)", row, col)
	}
	s.Write([]byte("\x1b[100B\x1b[100D"))
	row, col = s.Cursor()
	if row != 9 || col != 0 {
		t.Errorf("after clamped motion cursor = (%d,%d), want (9,0)", row, col)
	}
}

func TestCursorBoundsInvariant(t *testing.T) {
	// Arbitrary hostile input must keep the cursor inside
	// 0 <= row < rows and 0 <= col <= cols.
	inputs := []string{
		"\x1b[999;999H", "\x1b[0;0H", "\x1b[-1A", "x\x1b[999Cy",
		"\x1b[999Az", "\r\n\r\n\r\n\r\n\r\n\r\n", "\x1b[999X\x1b[999P",
		strings.Repeat("wide 世界 ", 40),
	}
	s := NewScreen(5, 8, 0)
	for _, in := range inputs {
		s.Write([]byte(in))
		row, col := s.Cursor()
		rows, cols := s.Size()
		if row < 0 || row >= rows || col < 0 || col > cols {
			t.Fatalf("after %q cursor (%d,%d) outside %dx%d", in, row, col, rows, cols)
		}
	}
}

func TestScrollIntoScrollback(t *testing.T) {
	s := NewScreen(3, 10, 0)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(s, "line%d\r\n", i)
	}
	// Lines 1-3 scrolled off; 4, 5 and a blank prompt row remain.
	assertScreen(t, s, "line4\nline5")

	lines := s.ScrollbackLines(0)
	want := []string{"line1", "line2", "line3", "line4", "line5"}
	if len(lines) != len(want) {
		t.Fatalf("ScrollbackLines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	last := s.ScrollbackLines(1)
	if len(last) != 1 || last[0] != "line5" {
		t.Errorf("ScrollbackLines(1) = %q, want [\"line5\"]", last)
	}
}

func TestScrollbackBound(t *testing.T) {
	s := NewScreen(2, 10, 50)
	for i := 0; i < 500; i++ {
		fmt.Fprintf(s, "line%d\r\n", i)
	}
	if got := s.ScrollbackLen(); got > 50 {
		t.Errorf("scrollback length = %d, want <= 50", got)
	}
	// Oldest lines evicted first: the newest survive.
	lines := s.ScrollbackLines(0)
	if lines[len(lines)-1] != "line499" {
		t.Errorf("newest line = %q, want \"line499\"", lines[len(lines)-1])
	}
}

func TestEraseDisplay(t *testing.T) {
	s := feed(t, 3, 10, "aaa\r\nbbb\r\nccc\x1b[2;2H\x1b[J")
	assertScreen(t, s, "aaa\nb")

	s = feed(t, 3, 10, "aaa\r\nbbb\r\nccc\x1b[2;2H\x1b[1J")
	assertScreen(t, s, "\n  b\nccc")

	s = feed(t, 3, 10, "aaa\r\nbbb\r\nccc\x1b[2J")
	assertScreen(t, s, "")
}

func TestEraseScrollback(t *testing.T) {
	s := NewScreen(2, 10, 0)
	s.Write([]byte("a\r\nb\r\nc\r\n"))
	if s.ScrollbackLen() == 0 {
		t.Fatal("expected scrollback before ED 3")
	}
	s.Write([]byte("\x1b[3J"))
	if got := s.ScrollbackLen(); got != 0 {
		t.Errorf("scrollback after ED 3 = %d, want 0", got)
	}
}

func TestEraseLine(t *testing.T) {
	s := feed(t, 2, 10, "abcdef\x1b[3D\x1b[K")
	assertScreen(t, s, "abc")

	s = feed(t, 2, 10, "abcdef\x1b[3D\x1b[1K")
	assertScreen(t, s, "    ef")

	s = feed(t, 2, 10, "abcdef\x1b[2K")
	assertScreen(t, s, "")
}

func TestInsertDeleteLines(t *testing.T) {
	s := feed(t, 4, 10, "a\r\nb\r\nc\r\nd\x1b[2;1H\x1b[L")
	assertScreen(t, s, "a\n\nb\nc")

	s = feed(t, 4, 10, "a\r\nb\r\nc\r\nd\x1b[2;1H\x1b[M")
	assertScreen(t, s, "a\nc\nd")
}

func TestInsertDeleteChars(t *testing.T) {
	s := feed(t, 2, 10, "abcdef\x1b[6D\x1b[2@")
	assertScreen(t, s, "  abcdef")

	s = feed(t, 2, 10, "abcdef\x1b[6D\x1b[2P")
	assertScreen(t, s, "cdef")
}

func TestScrollRegion(t *testing.T) {
	// Margins 2-3 on a 4-row screen: LF at the bottom margin scrolls
	// only the region; rows outside it are pinned.
	s := feed(t, 4, 10, "a\r\nb\r\nc\r\nd\x1b[2;3r\x1b[3;1Hx\n")
	assertScreen(t, s, "a\nx\n\nd")

	// A partial region never feeds scrollback.
	if got := s.ScrollbackLen(); got != 0 {
		t.Errorf("scrollback = %d after region scroll, want 0", got)
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	s := feed(t, 10, 10, "\x1b[3;4H\x1b7\x1b[8;8H\x1b8")
	row, col := s.Cursor()
	if row != 2 || col != 3 {
		t.Errorf("cursor = (%d,%d), want (2,3)", row, col)
	}
}

func TestAltScreen(t *testing.T) {
	s := NewScreen(3, 20, 0)
	s.Write([]byte("primary\r\n"))
	before := visible(s)

	s.Write([]byte("\x1b[?1049h"))
	if !s.AltScreen() {
		t.Fatal("alt screen not active after DECSET 1049")
	}
	s.Write([]byte("full screen app"))
	if got := visible(s); !strings.HasPrefix(got, "full screen app") {
		t.Errorf("alt grid = %q, want alt content", got)
	}

	// Alt output must not reach scrollback.
	sbBefore := s.ScrollbackLen()
	s.Write([]byte("\r\nmore\r\nmore\r\nmore\r\n"))
	if got := s.ScrollbackLen(); got != sbBefore {
		t.Errorf("scrollback grew to %d during alt screen, want %d", got, sbBefore)
	}

	s.Write([]byte("\x1b[?1049l"))
	if s.AltScreen() {
		t.Fatal("alt screen still active after DECRST 1049")
	}
	if got := visible(s); got != before {
		t.Errorf("primary not restored verbatim:\n%s", diffStrings(before, got))
	}
}

func TestAltScreenScrollbackQueryShowsActiveGrid(t *testing.T) {
	s := NewScreen(2, 20, 0)
	s.Write([]byte("one\r\ntwo\r\nthree\r\n"))
	s.Write([]byte("\x1b[?1049halt-visible"))

	lines := s.ScrollbackLines(0)
	last := lines[len(lines)-1]
	if last != "alt-visible" {
		t.Errorf("last line = %q, want the active (alt) grid content", last)
	}
	// Primary scrollback still included above.
	if lines[0] != "one" {
		t.Errorf("first line = %q, want \"one\"", lines[0])
	}
}

func TestSGRPersistsAcrossCells(t *testing.T) {
	s := feed(t, 2, 20, "\x1b[1;31mred\x1b[0mplain")
	s.mu.Lock()
	g := s.active()
	first := g.lines[0][0]
	fourth := g.lines[0][3]
	s.mu.Unlock()

	if first.Attr&AttrBold == 0 {
		t.Error("first cell should be bold")
	}
	if first.FG != (Color{Mode: ColorANSI, Value: 1}) {
		t.Errorf("first cell fg = %+v, want ANSI red", first.FG)
	}
	if fourth.Attr != 0 || fourth.FG != (Color{}) {
		t.Errorf("cell after reset = %+v, want default pen", fourth)
	}
}

func TestSGRExtendedColors(t *testing.T) {
	s := feed(t, 2, 20, "\x1b[38;5;208mX\x1b[48;2;10;20;30mY")
	s.mu.Lock()
	x := s.active().lines[0][0]
	y := s.active().lines[0][1]
	s.mu.Unlock()

	if x.FG != (Color{Mode: Color256, Value: 208}) {
		t.Errorf("256-color fg = %+v", x.FG)
	}
	if y.BG != (Color{Mode: ColorRGB, Value: 10<<16 | 20<<8 | 30}) {
		t.Errorf("rgb bg = %+v", y.BG)
	}
}

func TestWideCharacters(t *testing.T) {
	s := feed(t, 2, 10, "世界ab")
	assertScreen(t, s, "世界ab")
	row, col := s.Cursor()
	if row != 0 || col != 6 {
		t.Errorf("cursor = (%d,%d), want (0,6)", row, col)
	}
}

func TestWideCharacterWrapsAtMargin(t *testing.T) {
	// Width 5: the wide char cannot split across the margin, so it
	// wraps whole.
	s := feed(t, 2, 5, "abcd世")
	got := strings.Split(visible(s), "\n")
	if got[0] != "abcd" {
		t.Errorf("row 0 = %q, want \"abcd\"", got[0])
	}
	if got[1] != "世" {
		t.Errorf("row 1 = %q, want the wide char", got[1])
	}
}

func TestCombiningMarks(t *testing.T) {
	// e followed by U+0301 combining acute occupies one column.
	s := feed(t, 2, 10, "e\u0301x")
	lines := s.ScrollbackLines(0)
	if len(lines) == 0 || lines[0] != "e\u0301x" {
		t.Errorf("line = %q, want %q", lines, "e\u0301x")
	}
	_, col := s.Cursor()
	if col != 2 {
		t.Errorf("col = %d, want 2 (combining mark is zero-width)", col)
	}
}

func TestUTF8SplitAcrossWrites(t *testing.T) {
	s := NewScreen(2, 10, 0)
	raw := []byte("世ok")
	s.Write(raw[:1])
	s.Write(raw[1:2])
	s.Write(raw[2:])
	assertScreen(t, s, "世ok")
}

func TestTitleCapture(t *testing.T) {
	s := feed(t, 2, 10, "\x1b]0;my title\x07after")
	if got := s.Title(); got != "my title" {
		t.Errorf("title = %q, want \"my title\"", got)
	}
	assertScreen(t, s, "after")

	// ST-terminated form
	s = feed(t, 2, 20, "\x1b]2;other\x1b\\text")
	if got := s.Title(); got != "other" {
		t.Errorf("title = %q, want \"other\"", got)
	}
	assertScreen(t, s, "text")
}

func TestCursorVisibility(t *testing.T) {
	s := feed(t, 2, 10, "\x1b[?25l")
	if s.CursorVisible() {
		t.Error("cursor should be hidden after DECRST 25")
	}
	s.Write([]byte("\x1b[?25h"))
	if !s.CursorVisible() {
		t.Error("cursor should be visible after DECSET 25")
	}
}

func TestDeterminism(t *testing.T) {
	input := "\x1b[2J\x1b[H" +
		strings.Repeat("payload \x1b[1;32mgreen\x1b[0m 世界\r\n", 50) +
		"\x1b[?1049halt\x1b[?1049l\x1b[5;5Hend"
	a := feed(t, 10, 40, input)
	b := feed(t, 10, 40, input)

	if va, vb := visible(a), visible(b); va != vb {
		t.Errorf("grids differ:\n%s", diffStrings(va, vb))
	}
	ar, ac := a.Cursor()
	br, bc := b.Cursor()
	if ar != br || ac != bc {
		t.Errorf("cursors differ: (%d,%d) vs (%d,%d)", ar, ac, br, bc)
	}
	la, lb := a.ScrollbackLines(0), b.ScrollbackLines(0)
	if strings.Join(la, "\n") != strings.Join(lb, "\n") {
		t.Error("scrollback differs between identical runs")
	}
}

func TestVersionMonotonic(t *testing.T) {
	s := NewScreen(2, 10, 0)
	v0 := s.Version()
	s.Write([]byte("a"))
	v1 := s.Version()
	s.Write([]byte("b"))
	v2 := s.Version()
	if !(v0 < v1 && v1 < v2) {
		t.Errorf("versions not monotonic: %d %d %d", v0, v1, v2)
	}
}

func TestResizeNoop(t *testing.T) {
	s := feed(t, 5, 10, "content\r\nmore")
	before := visible(s)
	v := s.Version()
	s.Resize(5, 10)
	if got := visible(s); got != before {
		t.Error("resize to current size changed the grid")
	}
	if s.Version() != v {
		t.Error("resize to current size bumped the version")
	}
}

func TestResizeShrinkPushesToScrollback(t *testing.T) {
	s := NewScreen(4, 10, 0)
	s.Write([]byte("a\r\nb\r\nc\r\nd"))
	s.Resize(2, 10)

	rows, cols := s.Size()
	if rows != 2 || cols != 10 {
		t.Fatalf("size = %dx%d, want 2x10", rows, cols)
	}
	assertScreen(t, s, "c\nd")

	lines := s.ScrollbackLines(0)
	want := []string{"a", "b", "c", "d"}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestResizeGrowPadsBlank(t *testing.T) {
	s := feed(t, 2, 5, "ab")
	s.Resize(4, 12)
	rows, cols := s.Size()
	if rows != 4 || cols != 12 {
		t.Fatalf("size = %dx%d, want 4x12", rows, cols)
	}
	assertScreen(t, s, "ab")

	row, col := s.Cursor()
	if row != 0 || col != 2 {
		t.Errorf("cursor = (%d,%d), want (0,2)", row, col)
	}
}

func TestResizeClampsCursor(t *testing.T) {
	s := feed(t, 10, 40, "\x1b[10;40H")
	s.Resize(4, 8)
	row, col := s.Cursor()
	rows, cols := s.Size()
	if row >= rows || col > cols {
		t.Errorf("cursor (%d,%d) outside %dx%d after shrink", row, col, rows, cols)
	}
}

func TestFullReset(t *testing.T) {
	s := feed(t, 3, 10, "junk\x1b[?25l\x1b[1;31m\x1bc")
	assertScreen(t, s, "")
	if !s.CursorVisible() {
		t.Error("RIS should restore cursor visibility")
	}
	row, col := s.Cursor()
	if row != 0 || col != 0 {
		t.Errorf("cursor = (%d,%d) after RIS, want (0,0)", row, col)
	}
}
