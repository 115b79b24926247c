// Package registry tracks live sessions through the filesystem: one
// socket and one metadata sidecar per session under a well-known
// directory. Session processes own only their own entry; list scans the
// directory and cleans up after crashed sessions.
package registry

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"
)

// maxIDAttempts caps random ID generation before falling back to a
// numbered suffix.
const maxIDAttempts = 64

// probeTimeout bounds the socket liveness probe used when a session has
// no metadata sidecar.
const probeTimeout = 250 * time.Millisecond

// Meta is the per-session sidecar written next to the socket.
type Meta struct {
	ID        string    `json:"id"`
	Pid       int       `json:"pid"`
	Command   []string  `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Entry is one row of a registry scan.
type Entry struct {
	Meta
	SocketPath string
	Alive      bool
}

// Registry is a handle on the session directory.
type Registry struct {
	dir string
}

// New returns a registry rooted at dir.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

// Dir returns the registry directory.
func (r *Registry) Dir() string {
	return r.dir
}

// EnsureDir creates the registry directory with owner-only permissions.
func (r *Registry) EnsureDir() error {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return errors.Errorf("create registry dir %s: %v", r.dir, err)
	}
	return nil
}

// SocketPath returns the control socket path for a session ID.
func (r *Registry) SocketPath(id string) string {
	return filepath.Join(r.dir, id+".sock")
}

// MetaPath returns the sidecar path for a session ID.
func (r *Registry) MetaPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// AllocateID picks an unused session ID. Collisions with dead entries
// are cleaned up and the ID reused; after maxIDAttempts live collisions
// the last candidate gets a numeric suffix instead of retrying forever.
func (r *Registry) AllocateID() (string, error) {
	if err := r.EnsureDir(); err != nil {
		return "", err
	}
	var last string
	for i := 0; i < maxIDAttempts; i++ {
		id := randomID()
		last = id
		sock := r.SocketPath(id)
		if _, err := os.Lstat(sock); os.IsNotExist(err) {
			return id, nil
		}
		if !r.probe(id) {
			r.RemoveSession(id)
			return id, nil
		}
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s-%d", last, n)
		if _, err := os.Lstat(r.SocketPath(id)); os.IsNotExist(err) {
			return id, nil
		}
	}
}

func randomID() string {
	return strings.Join([]string{
		firstAdjectives[rand.IntN(len(firstAdjectives))],
		secondAdjectives[rand.IntN(len(secondAdjectives))],
		nouns[rand.IntN(len(nouns))],
	}, "-")
}

// WriteMeta persists the sidecar for a session.
func (r *Registry) WriteMeta(m Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.MetaPath(m.ID), data, 0600)
}

// ReadMeta loads a session's sidecar.
func (r *Registry) ReadMeta(id string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(r.MetaPath(id))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("corrupt sidecar for %s: %w", id, err)
	}
	return m, nil
}

// RemoveSession unlinks a session's socket and sidecar. Safe to call on
// partially-created or already-removed entries.
func (r *Registry) RemoveSession(id string) {
	os.Remove(r.SocketPath(id))
	os.Remove(r.MetaPath(id))
}

// List scans the registry. Dead entries are unlinked during the scan and
// not returned.
func (r *Registry) List() ([]Entry, error) {
	dirents, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, de := range dirents {
		name := de.Name()
		if !strings.HasSuffix(name, ".sock") {
			continue
		}
		id := strings.TrimSuffix(name, ".sock")
		if !r.probe(id) {
			r.RemoveSession(id)
			continue
		}
		entry := Entry{SocketPath: r.SocketPath(id), Alive: true}
		if m, err := r.ReadMeta(id); err == nil {
			entry.Meta = m
		} else {
			entry.Meta = Meta{ID: id}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// probe reports whether the session behind an ID is alive. The sidecar
// PID is checked first; without one, a socket connect decides.
func (r *Registry) probe(id string) bool {
	if m, err := r.ReadMeta(id); err == nil && m.Pid > 0 {
		err := unix.Kill(m.Pid, 0)
		return err == nil || err == unix.EPERM
	}
	conn, err := net.DialTimeout("unix", r.SocketPath(id), probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
