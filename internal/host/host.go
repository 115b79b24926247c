// Package host spawns the wrapped command inside a PTY and reaps it.
// The child runs in its own session with the PTY slave as controlling
// terminal; the parent keeps only the master.
package host

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/go-errors/errors"
)

// Child is a running wrapped command and its PTY master.
type Child struct {
	cmd    *exec.Cmd
	master *os.File
}

// Start launches argv inside a freshly allocated PTY sized rows x cols.
// pty.StartWithSize gives the child its own session and the slave as
// controlling tty, then closes the slave in the parent.
func Start(argv []string, rows, cols int) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, errors.Errorf("spawn %s: %v", argv[0], err)
	}
	return &Child{cmd: cmd, master: master}, nil
}

// Master returns the PTY master. The Child retains ownership.
func (c *Child) Master() *os.File {
	return c.master
}

// Pid returns the child's process ID.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Resize pushes new dimensions to the PTY slave; the kernel delivers
// SIGWINCH to the child's foreground process group.
func (c *Child) Resize(rows, cols int) error {
	return pty.Setsize(c.master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Signal forwards a signal to the child process.
func (c *Child) Signal(sig os.Signal) error {
	return c.cmd.Process.Signal(sig)
}

// Wait reaps the child and maps its status to a wrapper exit code:
// the child's own code on normal exit, 128+signum when signal-killed.
func (c *Child) Wait() int {
	err := c.cmd.Wait()
	state := c.cmd.ProcessState
	if state == nil {
		if err != nil {
			return 1
		}
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	code := state.ExitCode()
	if code < 0 {
		return 1
	}
	return code
}

// Close releases the PTY master. The child sees EOF/SIGHUP on its
// controlling terminal if still running.
func (c *Child) Close() error {
	return c.master.Close()
}
