package sample

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
)

func TestSalesMonthsIsDeterministic(t *testing.T) {
	a, err := SalesMonths(t.TempDir(), 7)
	require.NoError(t, err)
	b, err := SalesMonths(t.TempDir(), 7)
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Equal(t, "sales_january.xlsx", filepath.Base(a[0]))

	for i := range a {
		ta, err := xlsx.ReadTable(a[i], "")
		require.NoError(t, err)
		tb, err := xlsx.ReadTable(b[i], "")
		require.NoError(t, err)
		assert.Equal(t, 30, ta.Len())
		assert.Equal(t, ta.Rows(), tb.Rows())
	}
}

func TestSalesMonthsRevenue(t *testing.T) {
	paths, err := SalesMonths(t.TempDir(), DefaultSeed)
	require.NoError(t, err)
	feb, err := xlsx.ReadTable(paths[1], "")
	require.NoError(t, err)

	first, ok := feb.Record(0).Time("Date")
	require.True(t, ok)
	assert.Equal(t, time.February, first.Month())
	for i := 0; i < feb.Len(); i++ {
		r := feb.Record(i)
		u, _ := r.Float("Units")
		p, _ := r.Float("Price")
		rev, _ := r.Float("Revenue")
		assert.InDelta(t, u*p, rev, 0.006)
		assert.GreaterOrEqual(t, u, 5.0)
		assert.LessOrEqual(t, u, 50.0)
	}
}

func TestCrossFileKeysLineUp(t *testing.T) {
	dir := t.TempDir()
	paths, err := CrossFile(dir, DefaultSeed)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	products, err := xlsx.ReadTable(filepath.Join(dir, "products.xlsx"), "")
	require.NoError(t, err)
	ids, _ := products.ColumnValues("Product_ID")
	assert.Equal(t, "PROD001", ids[0])
	assert.Equal(t, 20, products.Len())
}

func TestGenerateScenarios(t *testing.T) {
	for _, s := range Scenarios {
		paths, err := Generate(s, t.TempDir(), 1)
		require.NoError(t, err, s)
		assert.NotEmpty(t, paths, s)
	}
	_, err := Generate("bogus", t.TempDir(), 1)
	assert.Error(t, err)
}

func TestMonthlyReportHasFormula(t *testing.T) {
	path, err := MonthlyReport(t.TempDir())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Monthly_Data", "Config"}, f.GetSheetList())
	formula, err := f.GetCellFormula("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "SUM(Monthly_Data!B:B)", formula)
}
