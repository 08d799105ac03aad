// Package sample provides the "xlpipe sample" command.
package sample

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/output"
	samplepkg "github.com/klytics/xlpipe/internal/sample"
)

// NewCommand returns the sample command.
func NewCommand() *cobra.Command {
	var (
		dir  string
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "sample [scenario...]",
		Short: "Generate seeded demo inputs for the pipelines",
		Long: fmt.Sprintf(`Writes the input workbooks each pipeline expects. With no scenario every
one is generated. Scenarios: %s.

The same seed always produces the same files.`, strings.Join(samplepkg.Scenarios, ", ")),
		ValidArgs: samplepkg.Scenarios,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := args
			if len(scenarios) == 0 {
				scenarios = samplepkg.Scenarios
			}
			for _, s := range scenarios {
				if !slices.Contains(samplepkg.Scenarios, s) {
					return fmt.Errorf("%w: unknown scenario %q (want one of %s)",
						cmdutil.ErrUsage, s, strings.Join(samplepkg.Scenarios, ", "))
				}
			}
			if dir == "" {
				dir = cmdutil.Config(cmd).Input.Dir
			}
			seed := cmdutil.SeedFlag(cmd, seed)

			written := map[string][]string{}
			for _, s := range scenarios {
				paths, err := samplepkg.Generate(s, dir, seed)
				if err != nil {
					return err
				}
				written[s] = paths
				cmdutil.Record(cmd, paths...)
			}

			return cmdutil.Emit(cmd, map[string]any{"seed": seed, "files": written}, func() {
				w := cmd.OutOrStdout()
				for _, s := range scenarios {
					output.Heading(w, "%s", s)
					for _, p := range written[s] {
						fmt.Fprintf(w, "  %s\n", p)
					}
				}
				output.Success(w, "Generated sample data with seed %d", seed)
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to write into (default input.dir)")
	cmd.Flags().Int64Var(&seed, "seed", samplepkg.DefaultSeed, "Random seed")
	return cmd
}
