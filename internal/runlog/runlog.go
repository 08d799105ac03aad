// Package runlog records one JSON line per pipeline invocation so past runs
// can be listed and traced back to the files they produced.
package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded run.
type Entry struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Machine    string    `json:"machine"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	Outputs    []string  `json:"outputs,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Log appends entries to a JSONL file.
type Log struct {
	Path    string
	Enabled bool
}

// New returns a run log at path. A disabled log accepts and drops entries.
func New(path string, enabled bool) *Log {
	return &Log{Path: path, Enabled: enabled}
}

// NewEntry starts an entry for command with a fresh run ID. Args are
// redacted before they are stored.
func NewEntry(command string, args []string) Entry {
	host, _ := os.Hostname()
	return Entry{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Machine:   host,
		Command:   command,
		Args:      Redact(args),
	}
}

// Finish stamps the duration and outcome of e.
func (e *Entry) Finish(err error, exitCode int) {
	e.DurationMs = time.Since(e.Timestamp).Milliseconds()
	e.ExitCode = exitCode
	if err != nil {
		e.Error = err.Error()
	}
}

// Append writes e. A failure to record never fails the run itself, so
// callers usually log the returned error and move on.
func (l *Log) Append(_ context.Context, e Entry) error {
	if l == nil || !l.Enabled || l.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// ReadEntries returns every well-formed entry in path, oldest first.
// A missing file has no entries.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// Filter selects the entries to show in "runs log".
type Filter struct {
	Since   time.Time
	Until   time.Time
	Command string
	// RunID matches by prefix, like a short git hash.
	RunID      string
	FailedOnly bool
}

// FilterEntries returns the entries matching f, keeping order.
func FilterEntries(entries []Entry, f Filter) []Entry {
	var out []Entry
	for _, e := range entries {
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
			continue
		}
		if f.Command != "" && !strings.Contains(e.Command, f.Command) {
			continue
		}
		if f.RunID != "" && !strings.HasPrefix(e.RunID, f.RunID) {
			continue
		}
		if f.FailedOnly && e.ExitCode == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Last returns the final n entries, or all of them when n <= 0.
func Last(entries []Entry, n int) []Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Size returns the log size in bytes, or 0 when it does not exist.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear empties the log. Clearing a missing log is not an error.
func Clear(path string) error {
	err := os.Truncate(path, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// sensitiveFlags take a value that must not be stored.
var sensitiveFlags = map[string]bool{
	"--password": true, "--token": true, "--secret": true, "--dsn": true,
}

// Redact masks values of sensitive flags and env assignments inside
// workflow arguments.
func Redact(args []string) []string {
	out := make([]string, len(args))
	redactNext := false
	for i, arg := range args {
		switch {
		case redactNext:
			out[i] = "[REDACTED]"
			redactNext = false
		case sensitiveFlags[arg]:
			out[i] = arg
			redactNext = true
		case strings.Contains(arg, "="):
			name, _, _ := strings.Cut(arg, "=")
			if sensitiveFlags[name] || strings.Contains(strings.ToUpper(name), "PASSWORD") {
				out[i] = name + "=[REDACTED]"
			} else {
				out[i] = arg
			}
		default:
			out[i] = arg
		}
	}
	return out
}
