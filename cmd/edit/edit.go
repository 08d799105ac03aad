// Package edit provides the "xlpipe edit" command.
package edit

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/report"
)

// NewCommand returns the edit command.
func NewCommand() *cobra.Command {
	var (
		sheet     string
		set       []string
		appendSrc string
		replace   string
		fromSheet string
	)

	cmd := &cobra.Command{
		Use:   "edit <workbook.xlsx>",
		Short: "Change one sheet of a workbook and leave the others untouched",
		Long: `Edits a single sheet in place. Give exactly one of:

  --set REF=VALUE   update cells (repeatable; a value starting with '=' is a formula)
  --append FILE     append the rows of another table, matching columns by header
  --replace FILE    replace the sheet's data with another table

Other sheets, including their formulas, are kept as they are. The workbook
is rewritten atomically.`,
		Example: `  xlpipe edit monthly_report.xlsx --sheet Monthly_Data --set C2=250 --set D2==B2-C2
  xlpipe edit monthly_report.xlsx --sheet Monthly_Data --append march.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := report.Apply(args[0], report.Edit{
				Sheet:     sheet,
				Set:       set,
				Append:    appendSrc,
				Replace:   replace,
				FromSheet: fromSheet,
			})
			if errors.Is(err, report.ErrEditMode) {
				return fmt.Errorf("%w: use --set, --append or --replace", err)
			}
			if err != nil {
				return err
			}
			cmdutil.Record(cmd, res.Path)

			return cmdutil.Emit(cmd, res, func() {
				w := cmd.OutOrStdout()
				switch res.Mode {
				case "set":
					output.Success(w, "Updated %d cells in %s!%s", res.Cells, res.Path, res.Sheet)
				case "append":
					output.Success(w, "Appended %d rows to %s!%s", res.Rows, res.Path, res.Sheet)
				default:
					output.Success(w, "Replaced %s!%s with %d rows", res.Path, res.Sheet, res.Rows)
				}
			})
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to edit (required)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Cell update REF=VALUE (repeatable)")
	cmd.Flags().StringVar(&appendSrc, "append", "", "Table file whose rows are appended")
	cmd.Flags().StringVar(&replace, "replace", "", "Table file that replaces the sheet data")
	cmd.Flags().StringVar(&fromSheet, "from-sheet", "", "Sheet of the --append/--replace workbook")
	_ = cmd.MarkFlagRequired("sheet")
	cmd.MarkFlagsMutuallyExclusive("set", "append", "replace")
	return cmd
}
