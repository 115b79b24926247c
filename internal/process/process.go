// Package process resolves what is actually running inside a session.
// A wrapper process has exactly one direct child (the wrapped command);
// the interesting command is that child's deepest live descendant, e.g.
// the editor a wrapped shell is currently running.
package process

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// proc is one row of a process-table snapshot.
type proc struct {
	pid  int
	ppid int
	args string
}

// table indexes a snapshot by pid and by parent pid.
type table struct {
	byPid    map[int]proc
	children map[int][]int
}

// snapshot captures the process table in a single POSIX ps invocation,
// so the walk below sees a consistent view.
func snapshot() (*table, error) {
	cmd := exec.Command("ps", "-Ao", "pid=,ppid=,args=")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ps snapshot: %w: %s", err, stderr.String())
	}

	tab := &table{
		byPid:    make(map[int]proc),
		children: make(map[int][]int),
	}
	for line := range strings.Lines(stdout.String()) {
		p, ok := parsePSLine(line)
		if !ok {
			continue
		}
		tab.byPid[p.pid] = p
		tab.children[p.ppid] = append(tab.children[p.ppid], p.pid)
	}
	return tab, nil
}

// parsePSLine splits "  PID  PPID ARGS..." keeping the argument string
// intact.
func parsePSLine(line string) (proc, bool) {
	rest := strings.TrimSpace(line)
	pidField, rest, ok := cutField(rest)
	if !ok {
		return proc{}, false
	}
	ppidField, args, ok := cutField(rest)
	if !ok {
		return proc{}, false
	}
	pid, err := strconv.Atoi(pidField)
	if err != nil {
		return proc{}, false
	}
	ppid, err := strconv.Atoi(ppidField)
	if err != nil {
		return proc{}, false
	}
	return proc{pid: pid, ppid: ppid, args: args}, true
}

// cutField splits off the first whitespace-delimited field.
func cutField(s string) (field, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimLeft(s[i:], " \t"), true
	}
	return s, "", true
}

// foreground walks from pid down the descendant chain and returns the
// process most likely holding the terminal: at each level the youngest
// child (highest pid) wins, since that is the most recently spawned job.
func (t *table) foreground(pid int) proc {
	cur, ok := t.byPid[pid]
	if !ok {
		return proc{pid: pid}
	}
	for {
		kids := t.children[cur.pid]
		if len(kids) == 0 {
			return cur
		}
		youngest := kids[0]
		for _, k := range kids[1:] {
			if k > youngest {
				youngest = k
			}
		}
		cur = t.byPid[youngest]
	}
}

// ActiveCommand reports the foreground command of a session given the
// wrapper's PID: the wrapped child's deepest descendant, or the wrapped
// child itself when it is idle. Returns the command name and the full
// argument string.
func ActiveCommand(wrapperPID int) (name string, cmdLine string, err error) {
	tab, err := snapshot()
	if err != nil {
		return "", "", err
	}
	fg := tab.foreground(wrapperPID)
	if fg.args == "" {
		return "", "", fmt.Errorf("pid %d not in process table", wrapperPID)
	}
	return commandName(fg.args), fg.args, nil
}

// commandName reduces an argument string to a bare command name:
// "/usr/local/bin/node server.js" becomes "node".
func commandName(args string) string {
	cmd, _, ok := cutField(args)
	if !ok {
		return ""
	}
	return filepath.Base(cmd)
}
