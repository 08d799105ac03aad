// Package inspect provides the "xlpipe inspect" command.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

// sheetView is the JSON form of one inspected sheet.
type sheetView struct {
	Name    string         `json:"name"`
	Columns []table.Column `json:"columns"`
	Rows    []table.Row    `json:"rows"`
}

// NewCommand returns the inspect command.
func NewCommand() *cobra.Command {
	var (
		sheetName string
		csvOutput bool
		stats     bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the sheets of a workbook or table file",
		Long: `Reads an .xlsx, .csv or .json file and prints each sheet as a grid, as CSV,
or as JSON. Pass '-' to read a workbook from stdin. --stats prints per-column
counts and numeric summaries instead of the rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := load(cmd.InOrStdin(), args[0], cmdutil.Sheet(cmd, sheetName))
			if err != nil {
				return err
			}

			if cmdutil.JSON(cmd) {
				views := make([]sheetView, len(sheets))
				for i, s := range sheets {
					views[i] = sheetView{Name: s.Name, Columns: s.Table.Columns(), Rows: s.Table.Rows()}
					if stats {
						st := report.ColumnStats(s.Table)
						views[i] = sheetView{Name: s.Name, Columns: st.Columns(), Rows: st.Rows()}
					}
				}
				return output.WriteJSON(cmd.OutOrStdout(), cmd.CommandPath(), views)
			}

			if csvOutput {
				for _, s := range sheets {
					if len(sheets) > 1 {
						fmt.Fprintf(cmd.ErrOrStderr(), "--- %s ---\n", s.Name)
					}
					fmt.Fprint(cmd.OutOrStdout(), s.CSV)
				}
				return nil
			}

			var buf bytes.Buffer
			for _, s := range sheets {
				t := s.Table
				if stats {
					t = report.ColumnStats(t)
				}
				output.PrintTable(&buf, "Sheet: "+s.Name, t, limit)
			}
			if output.ShouldPage(buf.String(), output.TermHeight()) {
				return output.Page(buf.String())
			}
			_, err = buf.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Show only the named sheet")
	cmd.Flags().BoolVar(&csvOutput, "csv", false, "Output as CSV")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show column statistics instead of rows")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N rows per sheet (0 = all)")
	return cmd
}

type sheet struct {
	Name  string
	Table *table.Table
	CSV   string
}

func load(stdin io.Reader, path, only string) ([]sheet, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if path != "-" && ext != ".xlsx" && ext != ".xlsm" {
		t, err := source.ReadFile(path, "")
		if err != nil {
			return nil, err
		}
		return []sheet{{Name: filepath.Base(path), Table: t, CSV: toCSV(t)}}, nil
	}

	var wb *xlsx.Workbook
	var err error
	if path == "-" {
		data, readErr := io.ReadAll(stdin)
		if readErr != nil {
			return nil, fmt.Errorf("could not read from stdin: %w", readErr)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: no input on stdin, pass a file path or pipe a workbook", cmdutil.ErrUsage)
		}
		wb, err = xlsx.ReadBytes(data)
	} else {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("could not open %s: %w", path, statErr)
		}
		wb, err = xlsx.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if only != "" {
		s, err := wb.GetSheet(only)
		if err != nil {
			return nil, err
		}
		wb = &xlsx.Workbook{Sheets: []xlsx.Sheet{*s}}
	}

	out := make([]sheet, 0, len(wb.Sheets))
	for i := range wb.Sheets {
		s := &wb.Sheets[i]
		t, err := s.Table()
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, err)
		}
		out = append(out, sheet{Name: s.Name, Table: t, CSV: s.ToCSV()})
	}
	return out, nil
}

func toCSV(t *table.Table) string {
	rows := make([][]string, 0, t.Len()+1)
	rows = append(rows, t.ColumnNames())
	for _, r := range t.Rows() {
		cells := make([]string, len(r))
		for j, v := range r {
			cells[j] = table.Format(v)
		}
		rows = append(rows, cells)
	}
	s := xlsx.Sheet{Rows: rows}
	return s.ToCSV()
}
