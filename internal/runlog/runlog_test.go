package runlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.jsonl")
	log := New(path, true)

	for i, cmd := range []string{"consolidate", "crossfile", "dashboard"} {
		e := NewEntry(cmd, []string{"--seed", "42"})
		e.Outputs = []string{cmd + ".xlsx"}
		if i == 1 {
			e.Finish(errors.New("no inputs"), 1)
		} else {
			e.Finish(nil, 0)
		}
		require.NoError(t, log.Append(context.Background(), e))
	}

	entries, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "crossfile", entries[1].Command)
	assert.Equal(t, "no inputs", entries[1].Error)
	assert.Equal(t, 1, entries[1].ExitCode)
	_, err = uuid.Parse(entries[0].RunID)
	assert.NoError(t, err)
	assert.NotEqual(t, entries[0].RunID, entries[2].RunID)
	assert.Positive(t, Size(path))
}

func TestDisabledLogWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, New(path, false).Append(context.Background(), NewEntry("sample", nil)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	var nilLog *Log
	assert.NoError(t, nilLog.Append(context.Background(), Entry{}))
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"command\":\"edit\"}\nnot json\n\n{\"command\":\"run\"}\n"), 0o644))
	entries, err := ReadEntries(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	missing, err := ReadEntries(filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFilterEntries(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{RunID: "aaa1", Command: "consolidate", Timestamp: base},
		{RunID: "bbb2", Command: "crossfile", Timestamp: base.Add(24 * time.Hour), ExitCode: 2},
		{RunID: "aab3", Command: "run", Timestamp: base.Add(48 * time.Hour)},
	}
	assert.Len(t, FilterEntries(entries, Filter{Since: base.Add(time.Hour)}), 2)
	assert.Len(t, FilterEntries(entries, Filter{Until: base.Add(time.Hour)}), 1)
	assert.Len(t, FilterEntries(entries, Filter{Command: "cross"}), 1)
	assert.Len(t, FilterEntries(entries, Filter{RunID: "aa"}), 2)
	failed := FilterEntries(entries, Filter{FailedOnly: true})
	require.Len(t, failed, 1)
	assert.Equal(t, "bbb2", failed[0].RunID)

	assert.Len(t, Last(entries, 2), 2)
	assert.Equal(t, "aab3", Last(entries, 1)[0].RunID)
	assert.Len(t, Last(entries, 0), 3)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, New(path, true).Append(context.Background(), NewEntry("sample", nil)))
	require.NoError(t, Clear(path))
	assert.Zero(t, Size(path))
	assert.NoError(t, Clear(filepath.Join(t.TempDir(), "missing.jsonl")))
}

func TestRedact(t *testing.T) {
	got := Redact([]string{"run", "--password", "hunter2", "--var", "DB_PASSWORD=x", "region=North"})
	assert.Equal(t, []string{"run", "--password", "[REDACTED]", "--var", "DB_PASSWORD=[REDACTED]", "region=North"}, got)
}
