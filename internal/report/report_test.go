package report

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/table"
)

func TestWriteSanitizesAndCountsSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	data := table.MustNew([]string{"Category", "Revenue"}, []table.Row{{"Tools", 10.5}, {"Toys", 3.0}})

	res, err := Write(path, []Section{
		{Name: "Revenue/By Category", Table: data},
		{Name: "revenue_by_category", Table: table.Empty("X")},
		{Name: "Revenue_By Category", Table: data},
		{Name: "Skipped", Table: nil},
	})
	require.NoError(t, err)
	require.Len(t, res.Sheets, 3)
	assert.Equal(t, "Revenue_By Category", res.Sheets[0].Name)
	assert.Equal(t, "revenue_by_category", res.Sheets[1].Name)
	assert.Equal(t, "Revenue_By Category_2", res.Sheets[2].Name)
	assert.Equal(t, 2, res.Sheets[0].Rows)
	assert.Equal(t, 0, res.Sheets[1].Rows)

	names, err := xlsx.SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue_By Category", "revenue_by_category", "Revenue_By Category_2"}, names)
}

func TestWriteNoSections(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "x.xlsx"), nil)
	assert.Error(t, err)
}

func TestMetricsAndColumnStats(t *testing.T) {
	m := Metrics(Metric{"Total Records", 90}, Metric{"Date Range", nil})
	assert.Equal(t, "90", m.Value(0, "Value"))
	assert.Equal(t, "N/A", m.Value(1, "Value"))

	data := table.MustNew([]string{"Name", "Units", "Empty"}, []table.Row{{"a", 2, nil}, {"b", 6, nil}})
	stats := ColumnStats(data)
	require.Equal(t, 1, stats.Len(), "only numeric columns")
	assert.Equal(t, "Units", stats.Value(0, "Column"))
	assert.Equal(t, 8.0, stats.Value(0, "Sum"))
	assert.Equal(t, 4.0, stats.Value(0, "Mean"))
	assert.Equal(t, 2.0, stats.Value(0, "Min"))
}

func TestFormatNumberAndCurrency(t *testing.T) {
	assert.Equal(t, "1,234,567.89", FormatNumber(1234567.891))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "-12.50", FormatNumber(-12.5))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "$1,500.25", Currency(1500.25))
	assert.Equal(t, "-$3", Currency(int64(-3)))
	assert.Equal(t, "N/A", Currency(nil))
}

func monthlyReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monthly_report.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Summary"))
	require.NoError(t, f.SetCellValue("Summary", "A1", "Total"))
	require.NoError(t, f.SetCellFormula("Summary", "B1", "SUM(Monthly_Data!B:B)"))
	_, err := f.NewSheet("Monthly_Data")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Monthly_Data", "A1", &[]any{"Month", "Revenue", "Expenses"}))
	require.NoError(t, f.SetSheetRow("Monthly_Data", "A2", &[]any{"2024-01", 1000, 400}))
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestAppendRowsMatchesHeaders(t *testing.T) {
	path := monthlyReport(t)
	extra := table.MustNew([]string{"Revenue", "Month"}, []table.Row{{1100, "2024-03"}})

	n, err := AppendRows(path, "Monthly_Data", extra)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := xlsx.ReadTable(path, "Monthly_Data")
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "2024-03", got.Value(1, "Month"))
	assert.Equal(t, int64(1100), got.Value(1, "Revenue"))
	assert.Nil(t, got.Value(1, "Expenses"))

	_, err = AppendRows(path, "Monthly_Data", table.Empty("Bogus"))
	assert.True(t, errors.Is(err, table.ErrUnknownColumn))
}

func TestSetCellsAndMissingSheet(t *testing.T) {
	path := monthlyReport(t)

	a, err := ParseAssignment("C2=250")
	require.NoError(t, err)
	f, err := ParseAssignment("D2==B2-C2")
	require.NoError(t, err)
	require.NoError(t, SetCells(path, "Monthly_Data", []Assignment{a, f}))

	got, err := xlsx.ReadTable(path, "Monthly_Data")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Value(0, "Expenses"))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()
	formula, err := wb.GetCellFormula("Monthly_Data", "D2")
	require.NoError(t, err)
	assert.Equal(t, "B2-C2", formula)
	formula, err = wb.GetCellFormula("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "SUM(Monthly_Data!B:B)", formula)

	err = SetCells(path, "Nope", []Assignment{a})
	assert.True(t, errors.Is(err, ErrSheetNotFound))

	_, err = ParseAssignment("no equals")
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "%!"))
}

func TestApplyModes(t *testing.T) {
	path := monthlyReport(t)
	dir := filepath.Dir(path)

	_, err := Apply(path, Edit{Sheet: "Monthly_Data"})
	assert.True(t, errors.Is(err, ErrEditMode))
	_, err = Apply(path, Edit{Sheet: "Monthly_Data", Set: []string{"C2=1"}, Append: "x.csv"})
	assert.True(t, errors.Is(err, ErrEditMode))

	res, err := Apply(path, Edit{Sheet: "Monthly_Data", Set: []string{"C2=300", "B2=900"}})
	require.NoError(t, err)
	assert.Equal(t, "set", res.Mode)
	assert.Equal(t, 2, res.Cells)

	extra := filepath.Join(dir, "march.xlsx")
	_, err = Write(extra, []Section{{Name: "March", Table: table.MustNew(
		[]string{"Month", "Revenue", "Expenses"}, []table.Row{{"2024-03", 1200, 500}, {"2024-04", 1300, 550}},
	)}})
	require.NoError(t, err)

	res, err = Apply(path, Edit{Sheet: "Monthly_Data", Append: extra})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	got, err := xlsx.ReadTable(path, "Monthly_Data")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, int64(900), got.Value(0, "Revenue"))

	res, err = Apply(path, Edit{Sheet: "Monthly_Data", Replace: extra, FromSheet: "March"})
	require.NoError(t, err)
	assert.Equal(t, "replace", res.Mode)
	got, err = xlsx.ReadTable(path, "Monthly_Data")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	names, err := xlsx.SheetNames(path)
	require.NoError(t, err)
	assert.Contains(t, names, "Summary")
}
