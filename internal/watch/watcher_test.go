package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlpipe/internal/logging"
)

func TestIsTableFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/sales_jan.xlsx", true},
		{"/data/SALES.XLSX", true},
		{"/data/macro.xlsm", true},
		{"/data/export.csv", true},
		{"/data/feed.json", true},
		{"/data/~$sales_jan.xlsx", false},
		{"/data/.~lock.sales.csv", false},
		{"/data/.hidden.xlsx", false},
		{"/data/notes.txt", false},
		{"/data/workflow.yaml", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTableFile(tt.path), tt.path)
	}
}

// start runs a watcher on dir and returns a channel of handled batches.
func start(t *testing.T, dir string, ignore func(string) bool, fail bool) (*Watcher, <-chan []string) {
	t.Helper()
	w, err := New([]string{dir}, 50*time.Millisecond, logging.Discard())
	require.NoError(t, err)
	w.Ignore = ignore

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			batches <- changed
			if fail {
				return errors.New("boom")
			}
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Give fsnotify time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return w, batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a batch")
		return nil
	}
}

func TestRunBatchesTableChanges(t *testing.T) {
	dir := t.TempDir()
	_, batches := start(t, dir, nil, false)

	jan := filepath.Join(dir, "sales_jan.xlsx")
	require.NoError(t, os.WriteFile(jan, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	b := waitBatch(t, batches)
	assert.Contains(t, b, jan)
	for _, p := range b {
		assert.True(t, IsTableFile(p), p)
	}
}

func TestRunSkipsIgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "consolidated_sales.xlsx")
	_, batches := start(t, dir, func(p string) bool { return p == out }, false)

	require.NoError(t, os.WriteFile(out, []byte("a"), 0o644))
	select {
	case b := <-batches:
		t.Fatalf("ignored output triggered a run: %v", b)
	case <-time.After(300 * time.Millisecond):
	}

	in := filepath.Join(dir, "sales_feb.csv")
	require.NoError(t, os.WriteFile(in, []byte("a"), 0o644))
	assert.Equal(t, []string{in}, waitBatch(t, batches))
}

func TestRunRecordsHandlerErrors(t *testing.T) {
	dir := t.TempDir()
	w, batches := start(t, dir, nil, true)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_mar.xlsx"), []byte("a"), 0o644))
	waitBatch(t, batches)

	require.Eventually(t, func() bool { return len(w.Events()) == 1 }, time.Second, 10*time.Millisecond)
	evt := w.Events()[0]
	assert.Equal(t, "error", evt.Status)
	assert.Equal(t, "boom", evt.Error)
}

func TestRunMissingDir(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing")}, 0, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.Debounce)

	err = w.Run(context.Background(), func(context.Context, []string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not watch")
}
