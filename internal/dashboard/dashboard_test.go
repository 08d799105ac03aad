package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunWritesEightSheets(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		Input:           filepath.Join(dir, DefaultInput),
		Output:          filepath.Join(dir, DefaultOutput),
		SampleIfMissing: true,
		Seed:            42,
		Logger:          quiet,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Generated)
	assert.Equal(t, 500, res.Rows)

	names, err := xlsx.SheetNames(res.Report.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Executive_Summary", "Product_Performance", "Regional_Analysis", "Sales_Rep_Performance",
		"Top_Customers", "Monthly_Trends", "Weekly_Trends", "Daily_Trends",
	}, names)

	customers, err := xlsx.ReadTable(res.Report.Path, "Top_Customers")
	require.NoError(t, err)
	assert.Equal(t, TopCustomers, customers.Len())

	products, err := xlsx.ReadTable(res.Report.Path, "Product_Performance")
	require.NoError(t, err)
	var share float64
	for i := 0; i < products.Len(); i++ {
		f, _ := products.Record(i).Float("Revenue_Share_%")
		share += f
	}
	assert.InDelta(t, 100, share, 0.1)

	require.Len(t, res.Insights.TopProducts, 3)
	assert.GreaterOrEqual(t, res.Insights.TopProducts[0].Revenue, res.Insights.TopProducts[1].Revenue)
	require.NotNil(t, res.Insights.TopRep)
	assert.Equal(t, 500, res.Insights.Transactions)
}

func TestWeeklyLabelsStartOnMonday(t *testing.T) {
	// 2024-01-03 is a Wednesday.
	assert.Equal(t, "2024-01-01/2024-01-07", weekOf(time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-01/2024-01-07", weekOf(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-08/2024-01-14", weekOf(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
}

func transactions(rows ...table.Row) *table.Table {
	return table.MustNew(Required, rows)
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func TestGrowthAndSummary(t *testing.T) {
	data := transactions(
		table.Row{"T1", day(1), "A", "North", "Ann", "C1", 1, 100.0, 0.0},
		table.Row{"T2", day(2), "A", "North", "Ann", "C1", 1, 100.0, 0.0},
		table.Row{"T3", day(9), "B", "South", "Bob", "C2", 2, 300.0, 10.0},
	)
	// Midpoint is 2024-03-05: 200 before, 300 after.
	assert.InDelta(t, 50.0, growth(data, day(5)), 1e-9)

	sections, ins, err := Build(data)
	require.NoError(t, err)
	require.Len(t, sections, 8)
	summary := sections[0].Table
	assert.Equal(t, "Reporting Period", summary.Value(0, "Metric"))
	assert.Equal(t, "2024-03-01 to 2024-03-09", summary.Value(0, "Value"))
	assert.Equal(t, "$500", summary.Value(1, "Value"))
	assert.Equal(t, "+50.0%", summary.Value(5, "Value"))
	assert.Equal(t, 500.0, ins.TotalRevenue)

	products := sections[1].Table
	assert.Equal(t, "B", products.Value(0, "Product"))
	assert.InDelta(t, 3.23, products.Value(0, "Discount_%"), 0.01)
	assert.Equal(t, 60.0, products.Value(0, "Revenue_Share_%"))

	weekly := sections[6].Table
	require.Equal(t, 2, weekly.Len())
	assert.True(t, strings.HasPrefix(weekly.Value(0, "Week").(string), "2024-02-26/"))
}

func TestGrowthWithEmptyFirstHalf(t *testing.T) {
	data := transactions(
		table.Row{"T1", day(1), "A", "North", "Ann", "C1", 1, 0.0, 0.0},
		table.Row{"T2", day(9), "A", "North", "Ann", "C1", 1, 100.0, 0.0},
	)
	assert.Equal(t, 0.0, growth(data, day(5)))
}

func TestBuildRequiresColumns(t *testing.T) {
	_, _, err := Build(table.Empty("Date", "Total_Sale"))
	assert.True(t, errors.Is(err, table.ErrUnknownColumn))

	notDates := transactions(table.Row{"T1", "yesterday", "A", "North", "Ann", "C1", 1, 1.0, 0.0})
	_, _, err = Build(notDates)
	assert.True(t, errors.Is(err, ErrNoDates))
}
