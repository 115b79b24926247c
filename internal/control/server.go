// Package control serves a session's Unix socket: framed JSON requests
// against the terminal model, input injection, and live output
// subscriptions. Control-plane failures never disturb the interactive
// session; a misbehaving client sees errors on its own connection only.
package control

import (
	"bufio"
	"net"
	"os"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"

	"github.com/abdullathedruid/spyglass/internal/protocol"
)

// Model is the read-only view of the terminal state the server queries.
// Implementations must be safe for concurrent use and must not block
// for longer than a snapshot takes.
type Model interface {
	ScrollbackLines(n int) []string
	Cursor() (row, col int)
	Size() (rows, cols int)
}

// Options configures a Server.
type Options struct {
	Model     Model
	Inject    func([]byte) error
	SessionID string
	ChildPid  int

	// Subscriber queue bounds; zero selects the defaults (64 chunks,
	// 1 MiB).
	QueueChunks int
	QueueBytes  int

	// IdleTimeout closes connections with no inbound traffic. Zero
	// disables it. Subscribed connections are exempt: their traffic
	// is outbound.
	IdleTimeout time.Duration
}

// Server accepts control connections on a session socket.
type Server struct {
	opts Options
	ln   net.Listener

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	subs   map[*subscriber]struct{}

	wg sync.WaitGroup
}

// NewServer builds a server; call Listen then Serve.
func NewServer(opts Options) *Server {
	if opts.QueueChunks <= 0 {
		opts.QueueChunks = 64
	}
	if opts.QueueBytes <= 0 {
		opts.QueueBytes = 1024 * 1024
	}
	return &Server{
		opts:  opts,
		conns: make(map[net.Conn]struct{}),
		subs:  make(map[*subscriber]struct{}),
	}
}

// Listen binds the socket with owner-only permissions, removing a stale
// file first.
func (s *Server) Listen(socketPath string) error {
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return goerrors.Errorf("bind %s: %v", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return goerrors.Errorf("chmod %s: %v", socketPath, err)
	}
	s.ln = ln
	return nil
}

// Serve accepts connections until Shutdown. Each connection gets its own
// goroutine; Serve itself returns when the listener closes.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Broadcast fans one output chunk out to all subscribers. It never
// blocks: a full queue drops its oldest chunk and accounts the loss.
func (s *Server) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(data)
	}
}

// Shutdown stops accepting, gives subscribers a best-effort flush
// window, then tears every connection down. The socket file itself is
// the registry's to unlink.
func (s *Server) Shutdown(flushWindow time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if s.ln != nil {
		s.ln.Close()
	}

	deadline := time.Now().Add(flushWindow)
	for time.Now().Before(deadline) {
		drained := true
		for _, sub := range subs {
			if !sub.drained() {
				drained = false
				break
			}
		}
		if drained {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) dropConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.dropConn(conn)

	cl := newClient(conn)
	defer cl.close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineBytes)

	subscribed := false
	for {
		if s.opts.IdleTimeout > 0 && !subscribed {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		} else {
			conn.SetReadDeadline(time.Time{})
		}
		if !scanner.Scan() {
			if scanner.Err() == bufio.ErrTooLong {
				cl.send(protocol.ErrorResponse{
					Error:   protocol.ErrOversize,
					Message: "request line exceeds 1 MiB",
				})
			}
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req, err := protocol.ParseRequest(line)
		if err != nil {
			cl.send(protocol.ErrorResponse{Error: protocol.ErrParse, Message: err.Error()})
			continue
		}
		if err := req.Validate(); err != nil {
			kind := protocol.ErrBadRequest
			if req.Type != protocol.TypeGetScrollback &&
				req.Type != protocol.TypeGetCursor &&
				req.Type != protocol.TypeGetSize &&
				req.Type != protocol.TypeInject &&
				req.Type != protocol.TypeSubscribe {
				kind = protocol.ErrUnknownType
			}
			cl.send(protocol.ErrorResponse{Error: kind, Message: err.Error()})
			continue
		}

		switch req.Type {
		case protocol.TypeGetScrollback:
			var lines []string
			if req.Lines != nil && *req.Lines == 0 {
				lines = []string{}
			} else {
				n := 0
				if req.Lines != nil {
					n = *req.Lines
				}
				lines = s.opts.Model.ScrollbackLines(n)
			}
			if lines == nil {
				lines = []string{}
			}
			cl.send(protocol.ScrollbackResponse{Lines: lines})

		case protocol.TypeGetCursor:
			row, col := s.opts.Model.Cursor()
			cl.send(protocol.CursorResponse{Row: row, Col: col})

		case protocol.TypeGetSize:
			rows, cols := s.opts.Model.Size()
			cl.send(protocol.SizeResponse{
				Rows:    rows,
				Cols:    cols,
				Session: s.opts.SessionID,
				Pid:     s.opts.ChildPid,
			})

		case protocol.TypeInject:
			if err := s.opts.Inject([]byte(req.Data)); err != nil {
				cl.send(protocol.ErrorResponse{Error: protocol.ErrIO, Message: err.Error()})
				continue
			}
			cl.send(protocol.OkResponse{Ok: true})

		case protocol.TypeSubscribe:
			if subscribed {
				cl.send(protocol.OkResponse{Ok: true})
				continue
			}
			cl.send(protocol.OkResponse{Ok: true})
			sub := newSubscriber(cl, s.opts.QueueChunks, s.opts.QueueBytes)
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.subs[sub] = struct{}{}
			s.mu.Unlock()
			subscribed = true

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				sub.run()
				s.mu.Lock()
				delete(s.subs, sub)
				s.mu.Unlock()
			}()
			defer sub.stop()
		}
	}
}
