// Package query provides the "xlpipe query" SQL prompt command.
package query

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/shell"
	"github.com/klytics/xlpipe/internal/store"
)

// NewCommand creates the "query" command.
func NewCommand() *cobra.Command {
	var (
		evalStmt string
		sheet    string
		dbPath   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "query <file>...",
		Short: "Load workbooks into SQLite and query them interactively",
		Long: `Loads each file as a table named after it ("Sales Q1.xlsx" becomes
sales_q1) and opens a SQL prompt. Statements end with ';'. Dot commands:
.tables, .schema TABLE, .limit N, .export FILE [SHEET], .help.

Use --eval to run one statement and exit.`,
		Example: `  xlpipe query sales.xlsx products.xlsx
  xlpipe query sales.xlsx --eval "SELECT Region, SUM(Quantity) FROM sales GROUP BY Region"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				path = store.Memory
			}
			st, err := store.Open(path)
			if err != nil {
				return err
			}
			defer st.Close()

			session := shell.NewSession(st, cmd.OutOrStdout())
			session.Limit = limit
			names, err := session.Load(cmd.Context(), args, cmdutil.Sheet(cmd, sheet))
			if err != nil {
				return err
			}
			if dbPath != "" {
				cmdutil.Record(cmd, dbPath)
			}

			if evalStmt != "" {
				if cmdutil.JSON(cmd) {
					t, err := st.Query(cmd.Context(), evalStmt)
					if err != nil {
						return err
					}
					return cmdutil.Emit(cmd, map[string]any{"tables": names, "columns": t.Columns(), "rows": t.Rows()}, nil)
				}
				return session.Eval(cmd.Context(), evalStmt)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d tables: %v\n", len(names), names)
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&evalStmt, "eval", "e", "", "Run a single statement and exit")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from each workbook")
	cmd.Flags().StringVar(&dbPath, "db", "", "Keep the database at this path (default in-memory)")
	cmd.Flags().IntVar(&limit, "limit", shell.DefaultLimit, "Rows to show per result (0 = all)")
	return cmd
}
