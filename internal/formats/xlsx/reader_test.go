package xlsx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlpipe/internal/table"
)

func TestWriteAndRead(t *testing.T) {
	original := &Workbook{
		Sheets: []Sheet{
			{
				Name: "TestSheet",
				Rows: [][]string{
					{"Name", "Age", "City"},
					{"Alice", "30", "New York"},
					{"Bob", "25", "San Francisco"},
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, WriteFile(original, path))

	wb, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)

	sheet := wb.Sheets[0]
	assert.Equal(t, "TestSheet", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Alice", sheet.Rows[1][0])
	assert.Equal(t, 3, sheet.RowCount())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSheetToCSV(t *testing.T) {
	sheet := Sheet{
		Name: "Test",
		Rows: [][]string{
			{"Name", "Value"},
			{"Test, Inc", `say "hi"`},
		},
	}
	assert.Equal(t, "Name,Value\n\"Test, Inc\",\"say \"\"hi\"\"\"\n", sheet.ToCSV())
}

func TestGetSheet(t *testing.T) {
	wb := &Workbook{Sheets: []Sheet{{Name: "One"}, {Name: "Two"}}}

	s, err := wb.GetSheet("Two")
	require.NoError(t, err)
	assert.Equal(t, "Two", s.Name)

	_, err = wb.GetSheet("Three")
	assert.True(t, errors.Is(err, ErrSheetNotFound))
	assert.Contains(t, err.Error(), "One, Two")
}

func TestFromRows(t *testing.T) {
	tbl, err := FromRows([][]string{
		{"Date", "Product", "Units", "Code"},
		{"2024-01-05", "Widget A", "5", "007"},
		{},
		{"", "", "", ""},
		{"2024-01-06", "Widget B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	col, _ := tbl.Column("Date")
	assert.Equal(t, table.Date, col.Kind)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), tbl.Value(0, "Date"))
	assert.Equal(t, int64(5), tbl.Value(0, "Units"))
	assert.Equal(t, "007", tbl.Value(0, "Code"))
	assert.Nil(t, tbl.Value(1, "Units"))
}

func TestFromRowsMalformed(t *testing.T) {
	tests := map[string][][]string{
		"empty":          nil,
		"blank header":   {{"", ""}},
		"header gap":     {{"A", "", "C"}},
		"duplicate":      {{"A", "A"}},
		"row too wide":   {{"A"}, {"1", "2"}},
		"whitespace hdr": {{"  "}},
	}
	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromRows(rows)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestReadTableSheetSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.xlsx")
	_, err := WriteTables(path, []TableSheet{
		{Name: "First", Table: table.MustNew([]string{"A"}, []table.Row{{1}})},
		{Name: "Second", Table: table.MustNew([]string{"B"}, []table.Row{{"x"}, {"y"}})},
	})
	require.NoError(t, err)

	first, err := ReadTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, first.ColumnNames())

	second, err := ReadTable(path, "Second")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Len())

	_, err = ReadTable(path, "Third")
	assert.True(t, errors.Is(err, ErrSheetNotFound))

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, names)
}
