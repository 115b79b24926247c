package control

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/abdullathedruid/spyglass/internal/protocol"
)

// client serializes all writes on one connection so query responses and
// stream frames never interleave mid-line.
type client struct {
	conn net.Conn
	mu   sync.Mutex
	enc  *json.Encoder
}

func newClient(conn net.Conn) *client {
	return &client{conn: conn, enc: json.NewEncoder(conn)}
}

// send writes one JSON line. Errors are swallowed: a dead connection is
// detected by the read loop and torn down there.
func (c *client) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enc.Encode(v)
}

func (c *client) close() {
	c.conn.Close()
}

// subscriber owns the outbound chunk queue for one subscribed
// connection. The producer (Broadcast) appends under the lock and never
// blocks; a dedicated writer goroutine drains to the socket at whatever
// pace the client reads. Overflow drops the oldest chunk and counts the
// lost bytes, surfaced as a synthetic dropped frame once the queue
// drains again.
type subscriber struct {
	cl *client

	maxChunks int
	maxBytes  int

	mu          sync.Mutex
	queue       [][]byte
	queuedBytes int
	dropped     int
	stopped     bool
	wake        chan struct{}
}

func newSubscriber(cl *client, maxChunks, maxBytes int) *subscriber {
	return &subscriber{
		cl:        cl,
		maxChunks: maxChunks,
		maxBytes:  maxBytes,
		wake:      make(chan struct{}, 1),
	}
}

// enqueue adds one chunk, evicting from the front on overflow. Called
// from the broadcast path; must never block.
func (s *subscriber) enqueue(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, chunk)
	s.queuedBytes += len(chunk)
	for (len(s.queue) > s.maxChunks || s.queuedBytes > s.maxBytes) && len(s.queue) > 1 {
		oldest := s.queue[0]
		s.queue = s.queue[1:]
		s.queuedBytes -= len(oldest)
		s.dropped += len(oldest)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drained reports whether everything enqueued so far has been written.
func (s *subscriber) drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}

// stop wakes the writer to exit. The connection close (done by the
// read-loop teardown) unblocks any in-flight socket write.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the writer loop.
func (s *subscriber) run() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			<-s.wake
			continue
		}
		dropped := s.dropped
		s.dropped = 0
		chunk := s.queue[0]
		s.queue = s.queue[1:]
		s.queuedBytes -= len(chunk)
		s.mu.Unlock()

		if dropped > 0 {
			s.cl.send(protocol.StreamFrame{Dropped: dropped})
		}
		s.cl.send(protocol.NewChunkFrame(chunk))
	}
}
