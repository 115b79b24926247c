// Package main provides the spyglass control client: a line-oriented
// tool speaking the session protocol. The wrapper core never depends on
// it; it is the reference consumer of the socket API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdullathedruid/spyglass/internal/config"
	"github.com/abdullathedruid/spyglass/internal/process"
	"github.com/abdullathedruid/spyglass/internal/protocol"
	"github.com/abdullathedruid/spyglass/internal/registry"
	"github.com/abdullathedruid/spyglass/internal/version"
	"github.com/abdullathedruid/spyglass/internal/view"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: spyglass-client <command> [args]

Commands:
  list                      list live sessions
  scrollback [-n N] <id>    print scrollback + visible screen
  cursor <id>               print cursor position
  size <id>                 print terminal size
  inject <id> <text>        type text into the session
  subscribe <id>            stream raw output to stdout
  watch <id>                live screen view (waits for the session)
  version                   print build version`)
	os.Exit(1)
}

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}
	reg := registry.New(cfg.RegistryDir)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "list":
		cmdList(reg)
	case "scrollback":
		cmdScrollback(reg, args)
	case "cursor":
		cmdCursor(reg, args)
	case "size":
		cmdSize(reg, args)
	case "inject":
		cmdInject(reg, args)
	case "subscribe":
		cmdSubscribe(reg, args)
	case "watch":
		cmdWatch(reg, args)
	case "version":
		fmt.Println(version.Short())
	default:
		usage()
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "spyglass-client: "+format+"\n", args...)
	os.Exit(1)
}

// conn wraps one control connection with line framing both ways.
type conn struct {
	net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
}

func dial(reg *registry.Registry, id string) *conn {
	c, err := net.DialTimeout("unix", reg.SocketPath(id), 2*time.Second)
	if err != nil {
		fatal("connect to session %s: %v", id, err)
	}
	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineBytes)
	return &conn{Conn: c, scanner: scanner, enc: json.NewEncoder(c)}
}

func (c *conn) send(req protocol.Request) {
	if err := c.enc.Encode(req); err != nil {
		fatal("send request: %v", err)
	}
}

// recv decodes the next response line into v, surfacing protocol errors.
func (c *conn) recv(v any) {
	if !c.scanner.Scan() {
		fatal("connection closed: %v", c.scanner.Err())
	}
	line := c.scanner.Bytes()
	var errResp protocol.ErrorResponse
	if json.Unmarshal(line, &errResp) == nil && errResp.Error != "" {
		fatal("%s: %s", errResp.Error, errResp.Message)
	}
	if err := json.Unmarshal(line, v); err != nil {
		fatal("decode response: %v", err)
	}
}

func cmdList(reg *registry.Registry) {
	entries, err := reg.List()
	if err != nil {
		fatal("list: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("no live sessions")
		return
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintf(w, "%-28s %-8s %-10s %s\n", "ID", "PID", "UPTIME", "COMMAND")
	for _, e := range entries {
		cmdline := commandLine(e)
		uptime := "-"
		if !e.StartedAt.IsZero() {
			uptime = time.Since(e.StartedAt).Truncate(time.Second).String()
		}
		fmt.Fprintf(w, "%-28s %-8d %-10s %s\n", e.ID, e.Pid, uptime, cmdline)
	}
}

// commandLine prefers what is running right now inside the session over
// the argv it was started with.
func commandLine(e registry.Entry) string {
	if e.Pid > 0 {
		if name, _, err := process.ActiveCommand(e.Pid); err == nil && name != "" {
			return name
		}
	}
	if len(e.Command) > 0 {
		return e.Command[0]
	}
	return "?"
}

func cmdScrollback(reg *registry.Registry, args []string) {
	fs := flag.NewFlagSet("scrollback", flag.ExitOnError)
	n := fs.Int("n", 0, "last N lines only")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}
	c := dial(reg, fs.Arg(0))
	defer c.Close()

	req := protocol.Request{Type: protocol.TypeGetScrollback}
	if *n > 0 {
		req.Lines = n
	}
	c.send(req)
	var resp protocol.ScrollbackResponse
	c.recv(&resp)
	for _, line := range resp.Lines {
		fmt.Println(line)
	}
}

func cmdCursor(reg *registry.Registry, args []string) {
	if len(args) != 1 {
		usage()
	}
	c := dial(reg, args[0])
	defer c.Close()
	c.send(protocol.Request{Type: protocol.TypeGetCursor})
	var resp protocol.CursorResponse
	c.recv(&resp)
	fmt.Printf("row=%d col=%d\n", resp.Row, resp.Col)
}

func cmdSize(reg *registry.Registry, args []string) {
	if len(args) != 1 {
		usage()
	}
	c := dial(reg, args[0])
	defer c.Close()
	c.send(protocol.Request{Type: protocol.TypeGetSize})
	var resp protocol.SizeResponse
	c.recv(&resp)
	fmt.Printf("rows=%d cols=%d pid=%d\n", resp.Rows, resp.Cols, resp.Pid)
}

func cmdInject(reg *registry.Registry, args []string) {
	if len(args) != 2 {
		usage()
	}
	c := dial(reg, args[0])
	defer c.Close()
	c.send(protocol.Request{Type: protocol.TypeInject, Data: args[1]})
	var resp protocol.OkResponse
	c.recv(&resp)
}

func cmdSubscribe(reg *registry.Registry, args []string) {
	if len(args) != 1 {
		usage()
	}
	c := dial(reg, args[0])
	defer c.Close()
	c.send(protocol.Request{Type: protocol.TypeSubscribe})
	var ack protocol.OkResponse
	c.recv(&ack)

	for c.scanner.Scan() {
		var frame protocol.StreamFrame
		if err := json.Unmarshal(c.scanner.Bytes(), &frame); err != nil {
			continue
		}
		if frame.Dropped > 0 {
			fmt.Fprintf(os.Stderr, "[%d bytes dropped]\n", frame.Dropped)
			continue
		}
		data, err := frame.DecodeChunk()
		if err != nil {
			continue
		}
		os.Stdout.Write(data)
	}
}

func cmdWatch(reg *registry.Registry, args []string) {
	if len(args) != 1 {
		usage()
	}
	id := args[0]

	// Block until the session exists; lets `spyglass-client watch` be
	// started before the wrapper.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := reg.WaitFor(ctx, id); err != nil {
		fatal("waiting for session %s: %v", id, err)
	}

	c := dial(reg, id)
	defer c.Close()

	c.send(protocol.Request{Type: protocol.TypeGetSize})
	var size protocol.SizeResponse
	c.recv(&size)

	c.send(protocol.Request{Type: protocol.TypeSubscribe})
	var ack protocol.OkResponse
	c.recv(&ack)

	viewer := view.New(size.Rows, size.Cols)

	streamEnd := make(chan struct{})
	go func() {
		defer close(streamEnd)
		for c.scanner.Scan() {
			var frame protocol.StreamFrame
			if err := json.Unmarshal(c.scanner.Bytes(), &frame); err != nil {
				continue
			}
			if frame.Dropped > 0 {
				continue
			}
			data, err := frame.DecodeChunk()
			if err != nil {
				continue
			}
			viewer.Feed(data)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	viewer.Render(os.Stdout)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	pending := false
	for {
		select {
		case <-viewer.Dirty():
			pending = true
		case <-ticker.C:
			if pending {
				viewer.Render(os.Stdout)
				pending = false
			}
		case <-streamEnd:
			viewer.Render(os.Stdout)
			return
		case <-sigCh:
			fmt.Print("\x1b[H\x1b[2J\x1b[?25h")
			return
		}
	}
}
