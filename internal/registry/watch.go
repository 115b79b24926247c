package registry

import (
	"context"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WaitFor blocks until the session's socket exists, using a directory
// watch rather than polling. Returns the socket path. Cancel the context
// to give up.
func (r *Registry) WaitFor(ctx context.Context, id string) (string, error) {
	if err := r.EnsureDir(); err != nil {
		return "", err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return "", err
	}

	// Check after the watch is established so a socket created in the
	// gap is not missed.
	sock := r.SocketPath(id)
	if _, err := os.Lstat(sock); err == nil {
		return sock, nil
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return "", ctx.Err()
			}
			if ev.Name == sock && ev.Op&fsnotify.Create != 0 {
				return sock, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", ctx.Err()
			}
			_ = err // transient watch errors are not fatal; keep waiting
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
