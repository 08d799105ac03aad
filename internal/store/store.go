// Package store stages tables in an embedded SQLite database so pipelines
// can express aggregations and joins in SQL.
//
// The database is a disposable cache: Open starts from an empty file every
// run, and nothing is expected to survive between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/klytics/xlpipe/internal/table"
)

// Memory is the DSN for a private in-memory database.
const Memory = ":memory:"

const timeLayout = "2006-01-02 15:04:05"

// Store is one open database connection.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open creates a fresh database at path, removing any previous file there.
// Use Memory for a database that lives only as long as the Store.
func Open(path string) (*Store, error) {
	if path == "" {
		path = Memory
	}
	if path != Memory {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not reset database %s: %w", path, err)
		}
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %w", path, err)
	}
	// one connection keeps an in-memory database alive and shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open database %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// QuoteIdent quotes a table or column name for SQLite.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(k table.Kind) string {
	switch k {
	case table.Int:
		return "INTEGER"
	case table.Float:
		return "REAL"
	case table.Date:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// LoadTable replaces table name with the contents of t in one transaction.
func (s *Store) LoadTable(ctx context.Context, name string, t *table.Table) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("cannot load %q: table has no columns", name)
	}
	defs := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = QuoteIdent(c.Name) + " " + sqlType(c.Kind)
		marks[i] = "?"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin load of %q: %w", name, err)
	}
	defer tx.Rollback() // no-op after Commit

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(name)); err != nil {
		return fmt.Errorf("could not drop %q: %w", name, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("could not create %q: %w", name, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdent(name), strings.Join(marks, ", "))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("could not prepare insert into %q: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			args[j] = toSQL(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("could not insert row %d into %q: %w", i+1, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit %q: %w", name, err)
	}
	return nil
}

// toSQL stores dates as text so SQLite's date functions (strftime, date)
// work on them directly.
func toSQL(v any) any {
	if ts, ok := v.(time.Time); ok {
		return ts.Format(timeLayout)
	}
	return v
}

// Query runs a read query and returns the result as a table. TEXT values
// that look like dates or numbers stay strings; SQLite's own types decide.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*table.Table, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("could not read result columns: %w", err)
	}
	var out []table.Row
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = fromSQL(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return table.New(dedupe(names), out)
}

func fromSQL(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// dedupe renames repeated result column names, which SQL allows and tables
// do not, by appending the first of _2, _3, ... that no other column uses.
func dedupe(names []string) []string {
	reserved := make(map[string]bool, len(names))
	for _, n := range names {
		reserved[n] = true
	}
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		name := n
		if used[name] {
			for k := 2; reserved[name] || used[name]; k++ {
				name = fmt.Sprintf("%s_%d", n, k)
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// TableInfo describes one loaded table.
type TableInfo struct {
	Name string `db:"name" json:"name"`
	Rows int64  `db:"-" json:"rows"`
}

// Tables lists user tables with their row counts, ordered by name.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	var infos []TableInfo
	err := s.db.SelectContext(ctx, &infos,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("could not list tables: %w", err)
	}
	for i := range infos {
		if err := s.db.GetContext(ctx, &infos[i].Rows, "SELECT COUNT(*) FROM "+QuoteIdent(infos[i].Name)); err != nil {
			return nil, fmt.Errorf("could not count %q: %w", infos[i].Name, err)
		}
	}
	return infos, nil
}

// IsQuery reports whether stmt produces rows, judged by its first keyword.
func IsQuery(stmt string) bool {
	fields := strings.Fields(strings.TrimSpace(stmt))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}
