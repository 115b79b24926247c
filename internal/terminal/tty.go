// Package terminal manages the user's controlling tty: raw mode with
// guaranteed restore, window size queries, and coalesced resize
// notifications.
package terminal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// RawState is a saved tty discipline. Restore is idempotent and safe to
// call from multiple exit paths (normal return, signal, panic recovery).
type RawState struct {
	fd   int
	prev *term.State

	once sync.Once
	err  error
}

// MakeRaw switches the tty into raw mode and saves the prior discipline.
// Fails when fd is not a terminal.
func MakeRaw(fd int) (*RawState, error) {
	prev, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawState{fd: fd, prev: prev}, nil
}

// Restore puts the tty back into its saved discipline. Only the first
// call does work.
func (s *RawState) Restore() error {
	s.once.Do(func() {
		s.err = term.Restore(s.fd, s.prev)
	})
	return s.err
}

// IsTerminal reports whether fd is attached to a terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// WindowSize queries the tty dimensions via TIOCGWINSZ.
func WindowSize(fd int) (rows, cols int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Row), int(ws.Col), nil
}

// NotifyResize delivers one tick per batch of SIGWINCH signals. Multiple
// signals arriving while a tick is pending collapse into one, so a
// resize storm costs a single TIOCSWINSZ downstream. Call stop to
// release the signal handler.
func NotifyResize() (ticks <-chan struct{}, stop func()) {
	sigs := make(chan os.Signal, 1)
	out := make(chan struct{}, 1)
	signal.Notify(sigs, syscall.SIGWINCH)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				select {
				case out <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	return out, func() {
		signal.Stop(sigs)
		close(done)
	}
}
