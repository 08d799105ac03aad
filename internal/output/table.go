// Package output renders tables and JSON envelopes for the command line.
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/klytics/xlpipe/internal/table"
)

// MaxCellWidth caps a rendered column.
const MaxCellWidth = 40

// PrintTable writes t as an aligned text grid under a title. Cells wider
// than MaxCellWidth are cut with a trailing "~". limit > 0 shows at most
// limit rows and notes how many were hidden.
func PrintTable(w io.Writer, title string, t *table.Table, limit int) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)

	if title != "" {
		headerStyle.Fprintf(w, "%s\n", title)
	}
	if t == nil || t.Width() == 0 {
		dim.Fprintln(w, "  (empty)")
		return
	}

	shown := t
	if limit > 0 && t.Len() > limit {
		shown = t.Head(limit)
	}

	names := shown.ColumnNames()
	cells := make([][]string, shown.Len())
	widths := make([]int, len(names))
	for j, n := range names {
		widths[j] = utf8.RuneCountInString(n)
	}
	for i := range cells {
		row := shown.Row(i)
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = table.Format(v)
			widths[j] = max(widths[j], utf8.RuneCountInString(cells[i][j]))
		}
	}
	for j := range widths {
		widths[j] = min(max(widths[j], 3), MaxCellWidth)
	}

	printRow(w, names, widths, color.New(color.Bold))
	dim.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			dim.Fprint(w, "+-")
		}
		dim.Fprint(w, strings.Repeat("-", width+1))
	}
	dim.Fprintln(w)
	for _, row := range cells {
		printRow(w, row, widths, nil)
	}

	if hidden := t.Len() - shown.Len(); hidden > 0 {
		dim.Fprintf(w, "  (%d rows, %d not shown)\n\n", t.Len(), hidden)
		return
	}
	dim.Fprintf(w, "  (%d rows)\n\n", t.Len())
}

func printRow(w io.Writer, row []string, widths []int, style *color.Color) {
	fmt.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			fmt.Fprint(w, "| ")
		}
		cell := ""
		if j < len(row) {
			cell = row[j]
		}
		if utf8.RuneCountInString(cell) > width {
			cell = string([]rune(cell)[:width-1]) + "~"
		}
		padded := cell + strings.Repeat(" ", width-utf8.RuneCountInString(cell)+1)
		if style != nil {
			style.Fprint(w, padded)
		} else {
			fmt.Fprint(w, padded)
		}
	}
	fmt.Fprintln(w)
}

// Success prints a green status line.
func Success(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

// Warn prints a yellow status line.
func Warn(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, format+"\n", args...)
}

// Heading prints a bold section heading.
func Heading(w io.Writer, format string, args ...any) {
	color.New(color.Bold).Fprintf(w, format+"\n", args...)
}
