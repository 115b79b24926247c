// Package session wires one wrapped command together: PTY host,
// transparency bridge, terminal model, control server and registry
// entry. One Session per process; it owns the PTY master, the model and
// the listener, and it decides shutdown ordering.
package session

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/abdullathedruid/spyglass/internal/config"
	"github.com/abdullathedruid/spyglass/internal/control"
	"github.com/abdullathedruid/spyglass/internal/host"
	"github.com/abdullathedruid/spyglass/internal/registry"
	"github.com/abdullathedruid/spyglass/internal/terminal"
	"github.com/abdullathedruid/spyglass/internal/vt"
)

// flushWindow bounds the subscriber flush during shutdown.
const flushWindow = 250 * time.Millisecond

// readBufSize is the PTY and stdin read chunk size.
const readBufSize = 32 * 1024

// Session is one running wrapper.
type Session struct {
	cfg    *config.Config
	reg    *registry.Registry
	id     string
	child  *host.Child
	screen *vt.Screen
	server *control.Server

	injectCh chan []byte
}

// Run executes argv (or the default shell) under a PTY, serving the
// control socket until the child exits. The returned code is what the
// wrapper should exit with.
func Run(cfg *config.Config, argv []string) (int, error) {
	setupLogging(cfg)

	if len(argv) == 0 {
		argv = []string{cfg.DefaultShell}
	}

	stdinFD := int(os.Stdin.Fd())
	rows, cols := 24, 80
	interactive := terminal.IsTerminal(stdinFD)
	if interactive {
		if r, c, err := terminal.WindowSize(stdinFD); err == nil && r > 0 && c > 0 {
			rows, cols = r, c
		}
	}

	reg := registry.New(cfg.RegistryDir)
	id, err := reg.AllocateID()
	if err != nil {
		return 1, err
	}

	s := &Session{
		cfg:      cfg,
		reg:      reg,
		id:       id,
		screen:   vt.NewScreen(rows, cols, cfg.ScrollbackLines),
		injectCh: make(chan []byte, 64),
	}

	child, err := host.Start(argv, rows, cols)
	if err != nil {
		return 1, err
	}
	s.child = child

	s.server = control.NewServer(control.Options{
		Model:       s.screen,
		Inject:      s.inject,
		SessionID:   id,
		ChildPid:    child.Pid(),
		QueueChunks: cfg.SubscriberQueueChunks,
		QueueBytes:  cfg.SubscriberQueueBytes,
		IdleTimeout: cfg.IdleTimeout(),
	})
	if err := s.server.Listen(reg.SocketPath(id)); err != nil {
		child.Close()
		child.Signal(syscall.SIGKILL)
		child.Wait()
		return 1, err
	}
	go s.server.Serve()

	if err := reg.WriteMeta(registry.Meta{
		ID:        id,
		Pid:       os.Getpid(),
		Command:   argv,
		StartedAt: time.Now(),
	}); err != nil {
		log.Printf("write sidecar: %v", err)
	}

	if interactive {
		fmt.Fprintf(os.Stdout, "\x1b[2m[spyglass: session %s]\x1b[0m\r\n", id)
	}

	var raw *terminal.RawState
	if interactive {
		raw, err = terminal.MakeRaw(stdinFD)
		if err != nil {
			s.teardown()
			child.Signal(syscall.SIGKILL)
			child.Wait()
			return 1, err
		}
		// Restore on every exit path, panics included.
		defer raw.Restore()
	}

	s.pump(interactive, stdinFD)

	s.server.Shutdown(flushWindow)
	s.reg.RemoveSession(s.id)
	code := child.Wait()
	child.Close()
	if raw != nil {
		raw.Restore()
	}
	return code, nil
}

// inject queues control-plane input for the PTY master. Delivery is
// asynchronous; per-client ordering is the channel's FIFO order.
func (s *Session) inject(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.injectCh <- buf
	return nil
}

// teardown releases everything Run set up before the pump started.
func (s *Session) teardown() {
	s.server.Shutdown(0)
	s.reg.RemoveSession(s.id)
	s.child.Close()
}

// pump is the bridge loop: child output to the user tty, the model and
// subscribers; user input and injected bytes to the PTY master; resizes
// to both model and child. Returns when the child side goes away or a
// termination signal arrives.
func (s *Session) pump(interactive bool, stdinFD int) {
	master := s.child.Master()

	masterCh := make(chan []byte, 8)
	masterDone := make(chan struct{})
	go readPump(master, masterCh, masterDone)

	stdinCh := make(chan []byte, 8)
	stdinDone := make(chan struct{})
	go readPump(os.Stdin, stdinCh, stdinDone)

	var winch <-chan struct{}
	var stopWinch func()
	if interactive {
		winch, stopWinch = terminal.NotifyResize()
		defer stopWinch()
	}

	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(termCh)

	for {
		select {
		case chunk := <-masterCh:
			// The user tty gets bytes first and promptly; model and
			// subscribers follow in the same iteration so all three
			// observe the same order.
			if err := writeAll(os.Stdout, chunk); err != nil {
				log.Printf("stdout write: %v", err)
			}
			s.screen.Write(chunk)
			s.server.Broadcast(chunk)

		case chunk := <-stdinCh:
			if err := writeAll(master, chunk); err != nil {
				log.Printf("master write: %v", err)
			}

		case data := <-s.injectCh:
			if err := writeAll(master, data); err != nil {
				log.Printf("inject write: %v", err)
			}

		case <-winch:
			if rows, cols, err := terminal.WindowSize(stdinFD); err == nil && rows > 0 && cols > 0 {
				s.screen.Resize(rows, cols)
				s.child.Resize(rows, cols)
			}

		case <-termCh:
			s.child.Signal(syscall.SIGHUP)
			return

		case <-masterDone:
			// EIO or EOF on the master: child gone.
			s.drainMaster(masterCh)
			return
		}
	}
}

// drainMaster flushes chunks already read before the done signal, so
// final output (think `printf hello` exiting immediately) reaches the
// tty, the model and subscribers.
func (s *Session) drainMaster(masterCh <-chan []byte) {
	for {
		select {
		case chunk := <-masterCh:
			writeAll(os.Stdout, chunk)
			s.screen.Write(chunk)
			s.server.Broadcast(chunk)
		default:
			return
		}
	}
}

// readPump reads r into fresh buffers and forwards them until error.
// EINTR is retried; any other error (EOF, EIO when the child exits)
// closes done.
func readPump(r io.Reader, out chan<- []byte, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			if err == syscall.EINTR || errnoIs(err, unix.EINTR) {
				continue
			}
			return
		}
	}
}

// writeAll retries short writes and transient errnos until the whole
// buffer is written.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		data = data[n:]
		if err != nil {
			if errnoIs(err, unix.EINTR) || errnoIs(err, unix.EAGAIN) {
				continue
			}
			return err
		}
	}
	return nil
}

// errnoIs unwraps os.PathError / os.SyscallError layers around an errno.
func errnoIs(err error, target syscall.Errno) bool {
	for err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return errno == target
		}
		switch e := err.(type) {
		case *os.PathError:
			err = e.Err
		case *os.SyscallError:
			err = e.Err
		default:
			return false
		}
	}
	return false
}

// setupLogging sends diagnostics to debug.log in the registry directory
// (one file shared by all sessions) when SPYGLASS_DEBUG is set and
// discards them otherwise. The wrapper must
// never write diagnostics to the tty it is being transparent on.
func setupLogging(cfg *config.Config) {
	if os.Getenv("SPYGLASS_DEBUG") == "" {
		log.SetOutput(io.Discard)
		return
	}
	path := filepath.Join(cfg.RegistryDir, "debug.log")
	os.MkdirAll(cfg.RegistryDir, 0700)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(f)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}
