package consolidate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/merge"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var products = []string{"Widget A", "Widget B", "Gadget Pro", "Tool Set", "Parts Kit"}

// writeMonth writes n rows for month; row i sells products[(i+shift)%5]
// with base+i units at 10.5 each.
func writeMonth(t *testing.T, path string, month time.Month, n, shift, base int) {
	t.Helper()
	b := table.NewBuilder("Date", "Product", "Region", "Units", "Revenue")
	for i := 0; i < n; i++ {
		units := base + i
		b.Add(time.Date(2024, month, i+1, 0, 0, 0, 0, time.UTC), products[(i+shift)%5],
			[]string{"North", "South", "East", "West"}[i%4], units, float64(units)*10.5)
	}
	_, err := xlsx.WriteTables(path, []xlsx.TableSheet{{Name: "Sheet1", Table: b.MustTable()}})
	require.NoError(t, err)
}

func fixture(t *testing.T) string {
	dir := t.TempDir()
	writeMonth(t, filepath.Join(dir, "sales_jan.xlsx"), time.January, 30, 0, 5)
	writeMonth(t, filepath.Join(dir, "sales_feb.xlsx"), time.February, 28, 1, 10)
	return dir
}

func TestRunConsolidatesMonths(t *testing.T) {
	dir := fixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_broken.xlsx"), []byte("not a workbook"), 0o644))

	out := filepath.Join(dir, "out", "consolidated.xlsx")
	sum := filepath.Join(dir, "out", "summary.xlsx")
	res, err := Run(context.Background(), Options{
		Pattern: filepath.Join(dir, "sales_*.xlsx"),
		Output:  out,
		Summary: sum,
		Logger:  quiet,
	})
	require.NoError(t, err)

	assert.Len(t, res.Files, 2)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "sales_broken.xlsx", filepath.Base(res.Warnings[0].Path))
	assert.Equal(t, 58, res.Quality.Records)
	assert.Equal(t, 2, res.Quality.Sources)
	assert.Equal(t, "2024-01-01", res.Quality.DateFrom)
	assert.Equal(t, "2024-02-28", res.Quality.DateTo)

	merged, err := xlsx.ReadTable(out, "")
	require.NoError(t, err)
	assert.Equal(t, 58, merged.Len())
	assert.Equal(t, merge.SourceColumn, merged.ColumnNames()[merged.Width()-1])
	first, _ := merged.Record(0).Time("Date")
	assert.Equal(t, time.January, first.Month())

	names, err := xlsx.SheetNames(sum)
	require.NoError(t, err)
	assert.Equal(t, []string{"Summary", "By Product", "By Region", "By Month"}, names)

	byProduct, err := xlsx.ReadTable(sum, "By Product")
	require.NoError(t, err)
	require.Equal(t, 5, byProduct.Len())
	found := false
	for i := 0; i < byProduct.Len(); i++ {
		r := byProduct.Record(i)
		if r.String("Product") != "Widget A" {
			continue
		}
		found = true
		units, _ := r.Float("Units")
		revenue, _ := r.Float("Revenue")
		assert.Equal(t, 225.0, units)
		assert.InDelta(t, 2362.5, revenue, 0.001)
	}
	assert.True(t, found)

	revenues, _ := byProduct.ColumnValues("Revenue")
	for i := 1; i < len(revenues); i++ {
		assert.GreaterOrEqual(t, table.Compare(revenues[i-1], revenues[i]), 0, "sorted by revenue descending")
	}

	byMonth, err := xlsx.ReadTable(sum, "By Month")
	require.NoError(t, err)
	require.Equal(t, 2, byMonth.Len())
	assert.Equal(t, "2024-01", table.Format(byMonth.Value(0, "Month")))
	assert.Equal(t, "2024-02", table.Format(byMonth.Value(1, "Month")))

	summary, err := xlsx.ReadTable(sum, "Summary")
	require.NoError(t, err)
	assert.Equal(t, "Total Records", summary.Value(0, "Metric"))
	assert.Equal(t, "58", table.Format(summary.Value(0, "Value")))
	assert.Equal(t, "Total Revenue", summary.Value(2, "Metric"))
	assert.Equal(t, "$13,051.50", table.Format(summary.Value(2, "Value")))
	assert.Equal(t, "Average Revenue per Transaction", summary.Value(3, "Metric"))
	assert.Equal(t, "$225.03", table.Format(summary.Value(3, "Value")))
}

func TestRunNothingReadable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_x.xlsx"), []byte("junk"), 0o644))

	res, err := Run(context.Background(), Options{
		Pattern: filepath.Join(dir, "sales_*.xlsx"),
		Output:  filepath.Join(dir, "c.xlsx"),
		Summary: filepath.Join(dir, "s.xlsx"),
		Logger:  quiet,
	})
	assert.True(t, errors.Is(err, ErrNothingToConsolidate))
	require.NotNil(t, res)
	assert.Len(t, res.Warnings, 1)
	assert.NoFileExists(t, filepath.Join(dir, "c.xlsx"))
}

func TestRunNoMatches(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Options{Pattern: filepath.Join(dir, "sales_*.xlsx"), Logger: quiet})
	assert.True(t, errors.Is(err, source.ErrNoMatches))
}

func TestRunGeneratesSamples(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		Pattern:         filepath.Join(dir, "sales_*.xlsx"),
		Output:          filepath.Join(dir, "c.xlsx"),
		Summary:         filepath.Join(dir, "s.xlsx"),
		SampleIfMissing: true,
		Seed:            3,
		Logger:          quiet,
	})
	require.NoError(t, err)
	assert.Len(t, res.Generated, 3)
	assert.Equal(t, 90, res.Quality.Records)
	assert.Equal(t, 3, res.Quality.Sources)
}

func TestSummariesSkipMissingColumns(t *testing.T) {
	data := table.MustNew([]string{"Product", "Units"}, []table.Row{{"a", 1}, {"b", 2}})
	sections, err := Summaries(data)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Summary", sections[0].Name)
}
