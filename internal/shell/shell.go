// Package shell provides the interactive SQL prompt behind "xlpipe query".
// Workbooks are loaded into a SQLite store, one table per file, and each
// statement's result is printed as a grid.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/chzyer/readline"

	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/store"
	"github.com/klytics/xlpipe/internal/table"
)

// ErrNoResult is returned by .export before any query has produced rows.
var ErrNoResult = errors.New("no query result to export yet")

// DefaultLimit is how many rows a result grid shows.
const DefaultLimit = 50

// Session is one prompt bound to a store.
type Session struct {
	Store       *store.Store
	Out         io.Writer
	HistoryFile string
	// Limit caps printed rows; 0 prints everything.
	Limit     int
	StartTime time.Time

	Statements int
	Last       *table.Table
}

// NewSession creates a session over st printing to out. The history file
// lives next to the config in ~/.xlpipe.
func NewSession(st *store.Store, out io.Writer) *Session {
	home, _ := os.UserHomeDir()
	return &Session{
		Store:       st,
		Out:         out,
		HistoryFile: filepath.Join(home, ".xlpipe", "query_history"),
		Limit:       DefaultLimit,
		StartTime:   time.Now(),
	}
}

// TableName derives a SQL-friendly table name from a file path:
// "Sales Q1-2024.xlsx" becomes "sales_q1_2024".
func TableName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		return "t"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "t_" + name
	}
	return name
}

// Load reads each file and stores it under TableName. Names that collide
// get a numeric suffix. It returns the table names in load order.
func (s *Session) Load(ctx context.Context, paths []string, sheet string) ([]string, error) {
	used := map[string]bool{}
	var names []string
	for _, p := range paths {
		t, err := source.ReadFile(p, sheet)
		if err != nil {
			return names, fmt.Errorf("could not load %s: %w", p, err)
		}
		name := TableName(p)
		for i := 2; used[name]; i++ {
			name = TableName(p) + "_" + strconv.Itoa(i)
		}
		used[name] = true
		if err := s.Store.LoadTable(ctx, name, t); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Eval runs one statement or dot command.
func (s *Session) Eval(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ".") || line == "help" {
		return s.dot(ctx, line)
	}

	stmt := strings.TrimSuffix(line, ";")
	s.Statements++
	if !store.IsQuery(stmt) {
		n, err := s.Store.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "%d rows affected\n", n)
		return nil
	}
	t, err := s.Store.Query(ctx, stmt)
	if err != nil {
		return err
	}
	s.Last = t
	output.PrintTable(s.Out, "", t, s.Limit)
	return nil
}

func (s *Session) dot(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".help", "help":
		s.printHelp()
	case ".tables":
		infos, err := s.Store.Tables(ctx)
		if err != nil {
			return err
		}
		b := table.NewBuilder("table", "rows")
		for _, ti := range infos {
			b.Add(ti.Name, ti.Rows)
		}
		output.PrintTable(s.Out, "", b.MustTable(), 0)
	case ".schema":
		if len(fields) < 2 {
			return fmt.Errorf("usage: .schema TABLE")
		}
		t, err := s.Store.Query(ctx, "SELECT name, type FROM pragma_table_info(?)", fields[1])
		if err != nil {
			return err
		}
		if t.Len() == 0 {
			return fmt.Errorf("no such table: %s", fields[1])
		}
		output.PrintTable(s.Out, fields[1], t, 0)
	case ".limit":
		if len(fields) < 2 {
			fmt.Fprintf(s.Out, "limit %d\n", s.Limit)
			return nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return fmt.Errorf("usage: .limit N (0 shows all rows)")
		}
		s.Limit = n
	case ".export":
		if len(fields) < 2 {
			return fmt.Errorf("usage: .export FILE.xlsx [SHEET]")
		}
		sheet := "Query"
		if len(fields) > 2 {
			sheet = strings.Join(fields[2:], " ")
		}
		return s.Export(fields[1], sheet)
	default:
		return fmt.Errorf("unknown command %s (try .help)", fields[0])
	}
	return nil
}

// Export writes the last result to a one-sheet workbook.
func (s *Session) Export(path, sheet string) error {
	if s.Last == nil {
		return ErrNoResult
	}
	res, err := report.Write(path, []report.Section{{Name: sheet, Table: s.Last}})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Exported %d rows to %s\n", s.Last.Len(), res.Path)
	return nil
}

// Run reads statements until "exit" or Ctrl+D. A statement ends at a line
// ending in ";"; dot commands end at the line break.
func (s *Session) Run(ctx context.Context) error {
	_ = os.MkdirAll(filepath.Dir(s.HistoryFile), 0o755)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xlpipe> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.completer(ctx)...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.Out, "xlpipe SQL prompt. End statements with ';'. Type .help for commands.")

	var pending []string
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending = nil
			rl.SetPrompt("xlpipe> ")
			continue
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if len(pending) == 0 {
			if line == "exit" || line == "quit" || line == ".exit" || line == ".quit" {
				break
			}
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, ".") || line == "help" {
				if err := s.Eval(ctx, line); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				}
				continue
			}
		}

		pending = append(pending, line)
		if !strings.HasSuffix(line, ";") {
			rl.SetPrompt("   ...> ")
			continue
		}
		stmt := strings.Join(pending, "\n")
		pending = nil
		rl.SetPrompt("xlpipe> ")
		if err := s.Eval(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}

	fmt.Fprintf(s.Out, "\nSession ended. %d statements in %s.\n",
		s.Statements, formatDuration(time.Since(s.StartTime)))
	return nil
}

func (s *Session) completer(ctx context.Context) []readline.PrefixCompleterInterface {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".tables"), readline.PcItem(".limit"), readline.PcItem(".export"),
		readline.PcItem(".help"), readline.PcItem(".exit"),
	}
	var names []string
	if infos, err := s.Store.Tables(ctx); err == nil {
		for _, ti := range infos {
			names = append(names, ti.Name)
		}
	}
	sort.Strings(names)
	var tables []readline.PrefixCompleterInterface
	for _, n := range names {
		tables = append(tables, readline.PcItem(n))
	}
	items = append(items,
		readline.PcItem(".schema", tables...),
		readline.PcItem("SELECT"),
		readline.PcItem("WITH"),
	)
	return items
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "Statements run against the loaded tables; end them with ';'.")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "  .tables              list tables and row counts")
	fmt.Fprintln(s.Out, "  .schema TABLE        list a table's columns")
	fmt.Fprintln(s.Out, "  .limit N             rows shown per result (0 = all)")
	fmt.Fprintln(s.Out, "  .export FILE [SHEET] write the last result to a workbook")
	fmt.Fprintln(s.Out, "  exit                 leave the prompt")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
