package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDisabledByEnv(t *testing.T) {
	t.Setenv("XLPIPE_NO_PROGRESS", "1")
	assert.False(t, New("load", 3).Enabled)
	assert.False(t, NewSpinner("write").Enabled)
}

func TestNewDisabledForJSON(t *testing.T) {
	t.Setenv("XLPIPE_JSON", "true")
	assert.False(t, New("load", 3).Enabled)
}

func TestBarCountsAndCaps(t *testing.T) {
	bar := &Bar{Total: 3, Width: 10}
	for i := 0; i < 5; i++ {
		bar.Increment("step")
	}
	assert.Equal(t, 3, bar.Current)
	assert.Equal(t, 100.0, bar.Pct())

	bar.Set(-4, "back")
	assert.Equal(t, 0, bar.Current)
	assert.Equal(t, 0.0, (&Bar{}).Pct())
}

func TestBarRendersWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 4, Width: 8, Label: "queries", Enabled: true, Out: &buf}
	bar.Set(2, "top_products")
	assert.Contains(t, buf.String(), "queries [####....] 2/4  top_products")

	bar.Finish("4 queries")
	assert.Contains(t, buf.String(), "done: 4 queries\n")
}

func TestDisabledBarIsSilent(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 2, Width: 8, Out: &buf}
	bar.Increment("a")
	bar.Finish("b")
	assert.Empty(t, buf.String())
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Label: "writing", Enabled: true, Out: &buf, done: make(chan struct{})}
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Update("still writing")
	s.Stop("written")
	s.Stop("written again")
	assert.Contains(t, buf.String(), "done: written\n")
	assert.NotContains(t, buf.String(), "written again")
}

func TestDisabledSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Label: "x", Out: &buf, done: make(chan struct{})}
	s.Start()
	s.Stop("y")
	assert.Empty(t, buf.String())
}
