// Package view turns a subscribed output stream back into a picture: it
// replays the raw bytes through a terminal emulator and repaints full
// frames on demand, so a client can show a live session it is not
// attached to.
package view

import (
	"io"
	"strings"
	"sync"

	"github.com/vito/midterm"
)

// Viewer accumulates stream bytes and renders frames. Feed and Render
// may run on different goroutines; repaints are requested through a
// coalesced dirty channel so a burst of output costs one frame.
type Viewer struct {
	mu    sync.Mutex
	term  *midterm.Terminal
	dirty chan struct{}
}

// New creates a viewer sized to the observed session.
func New(rows, cols int) *Viewer {
	if rows < 1 {
		rows = 24
	}
	if cols < 1 {
		cols = 80
	}
	term := midterm.NewTerminal(rows, cols)
	term.CursorVisible = true
	return &Viewer{
		term:  term,
		dirty: make(chan struct{}, 1),
	}
}

// Feed replays one stream chunk into the emulator and marks the picture
// stale. Never blocks: a pending dirty tick absorbs further chunks.
func (v *Viewer) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	v.mu.Lock()
	v.term.Write(data)
	v.mu.Unlock()

	select {
	case v.dirty <- struct{}{}:
	default:
	}
}

// Dirty ticks when the picture has changed since the last Render.
func (v *Viewer) Dirty() <-chan struct{} {
	return v.dirty
}

// Resize matches the viewer to a new session size.
func (v *Viewer) Resize(rows, cols int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.term.Resize(rows, cols)
}

// Render paints one full frame: home the cursor, clear, draw the screen
// contents, then propagate the session's cursor visibility so a hidden
// cursor in the observed app stays hidden in the view.
func (v *Viewer) Render(w io.Writer) error {
	v.mu.Lock()
	frame, err := v.frameLocked()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, frame)
	return err
}

func (v *Viewer) frameLocked() (string, error) {
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")
	if v.term.Height > 0 && v.term.Width > 0 {
		if err := v.term.Render(&b); err != nil {
			return "", err
		}
	}
	if v.term.CursorVisible {
		b.WriteString("\x1b[?25h")
	} else {
		b.WriteString("\x1b[?25l")
	}
	return b.String(), nil
}

// Reset clears the viewer back to a blank screen, keeping its size.
func (v *Viewer) Reset() {
	v.mu.Lock()
	rows, cols := v.term.Height, v.term.Width
	v.term = midterm.NewTerminal(rows, cols)
	v.term.CursorVisible = true
	v.mu.Unlock()

	select {
	case v.dirty <- struct{}{}:
	default:
	}
}
