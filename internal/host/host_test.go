package host

import (
	"bytes"
	"io"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
)

// drainMaster reads master output until the child side goes away. On
// Linux the final read fails with EIO rather than io.EOF; both mean the
// stream is done.
func drainMaster(t *testing.T, c *Child) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, c.Master()); err != nil {
		// expected: EIO once the child exits
	}
	return buf.String()
}

func TestStartCapturesOutput(t *testing.T) {
	c, err := Start([]string{"sh", "-c", "printf hello"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out := drainMaster(t, c)
	if code := c.Wait(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	c.Close()
	if !strings.Contains(out, "hello") {
		t.Errorf("master output = %q, want it to contain \"hello\"", out)
	}
}

func TestWaitPropagatesExitCode(t *testing.T) {
	c, err := Start([]string{"sh", "-c", "exit 7"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drainMaster(t, c)
	if code := c.Wait(); code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	c.Close()
}

func TestWaitMapsSignalsTo128Plus(t *testing.T) {
	c, err := Start([]string{"sh", "-c", "kill -TERM $$"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drainMaster(t, c)
	if code := c.Wait(); code != 128+15 {
		t.Errorf("exit code = %d, want 143 (128+SIGTERM)", code)
	}
	c.Close()
}

func TestChildSeesRequestedSize(t *testing.T) {
	c, err := Start([]string{"sleep", "5"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		c.Signal(syscall.SIGKILL)
		c.Wait()
		c.Close()
	}()

	rows, cols, err := pty.Getsize(c.Master())
	if err != nil {
		t.Fatalf("Getsize: %v", err)
	}
	if rows != 24 || cols != 80 {
		t.Errorf("initial size = %dx%d, want 24x80", rows, cols)
	}

	if err := c.Resize(30, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	// TIOCSWINSZ is synchronous; the slave reflects it immediately.
	rows, cols, err = pty.Getsize(c.Master())
	if err != nil {
		t.Fatalf("Getsize after resize: %v", err)
	}
	if rows != 30 || cols != 100 {
		t.Errorf("resized to %dx%d, want 30x100", rows, cols)
	}
}

func TestChildRunsInOwnSessionWithControllingTTY(t *testing.T) {
	// Opening /dev/tty succeeds only for a process with a controlling
	// terminal; `tty` then reports that terminal's /dev path.
	c, err := Start([]string{"sh", "-c", "tty </dev/tty"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out := drainMaster(t, c)
	if code := c.Wait(); code != 0 {
		t.Fatalf("tty exited %d: %q", code, out)
	}
	c.Close()
	if !strings.Contains(out, "/dev/") {
		t.Errorf("tty reported %q, want a /dev/ path", out)
	}
	if strings.Contains(out, "not a tty") {
		t.Errorf("child has no controlling terminal: %q", out)
	}
}

func TestStartEmptyArgv(t *testing.T) {
	if _, err := Start(nil, 24, 80); err == nil {
		t.Error("Start(nil) succeeded, want error")
	}
}

func TestStartMissingBinary(t *testing.T) {
	if _, err := Start([]string{"/nonexistent/definitely-missing"}, 24, 80); err == nil {
		t.Error("Start of a missing binary succeeded, want error")
	}
}

func TestInputReachesChild(t *testing.T) {
	c, err := Start([]string{"cat"}, 24, 80)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Master().Write([]byte("ping\n")); err != nil {
		t.Fatalf("write to master: %v", err)
	}

	// Read until the echoed output comes back.
	deadline := time.Now().Add(5 * time.Second)
	var got bytes.Buffer
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := c.Master().Read(buf)
		if n > 0 {
			got.Write(buf[:n])
		}
		if strings.Contains(got.String(), "ping") {
			break
		}
		if err != nil {
			break
		}
	}
	if !strings.Contains(got.String(), "ping") {
		t.Errorf("cat output = %q, want it to contain \"ping\"", got.String())
	}

	// EOT ends cat cleanly in the PTY's canonical mode.
	c.Master().Write([]byte{0x04})
	drainMaster(t, c)
	c.Wait()
	c.Close()
}
