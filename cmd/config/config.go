// Package config provides CLI commands for configuration management.
package config

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/config"
	"github.com/klytics/xlpipe/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage xlpipe configuration",
		Long: `View and change the settings in ~/.xlpipe/config.yaml. Every key can also
be set through an XLPIPE_ environment variable or a .env file in the working
directory; see "xlpipe config env".`,
	}

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newResetCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newEnvCommand())

	return cmd
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.Init()
			if err != nil {
				return err
			}
			path := config.ConfigPath()
			return cmdutil.Emit(cmd, map[string]any{"path": path, "created": created}, func() {
				if created {
					output.Success(cmd.OutOrStdout(), "Wrote %s", path)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists; use \"xlpipe config set\" to change it\n", path)
			})
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.Emit(cmd, cmdutil.Config(cmd), func() {
				fmt.Fprint(cmd.OutOrStdout(), config.ShowConfig())
			})
		},
	}
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("%w: %v", cmdutil.ErrUsage, err)
			}
			return cmdutil.Emit(cmd, map[string]string{"key": args[0], "value": args[1]}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			})
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := config.Get(args[0])
			return cmdutil.Emit(cmd, map[string]string{"key": args[0], "value": val}, func() {
				if val == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], val)
				}
			})
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ResetConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults")
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := config.Validate()

			if err := cmdutil.Emit(cmd, issues, func() { printIssues(cmd, issues) }); err != nil {
				return err
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("%w: configuration has errors", cmdutil.ErrUsage)
			}
			return nil
		},
	}
}

func printIssues(cmd *cobra.Command, issues []config.Issue) {
	w := cmd.OutOrStdout()
	errs, warnings := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			errs++
		case "warning":
			warnings++
		}
	}

	if errs == 0 && warnings == 0 {
		color.New(color.FgGreen).Fprintln(w, "Configuration is valid")
	} else {
		fmt.Fprintf(w, "Config validation: %d errors, %d warnings\n\n", errs, warnings)
	}

	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			color.New(color.FgRed).Fprintf(w, "  %s\n", issue.Message)
		case "warning":
			color.New(color.FgYellow).Fprintf(w, "  %s\n", issue.Message)
		case "info":
			color.New(color.FgCyan).Fprintf(w, "  %s\n", issue.Message)
		}
		if issue.Fix != "" {
			fmt.Fprintf(w, "   Fix: %s\n", issue.Fix)
		}
	}
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Export configuration as environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := config.ToEnv()
			return cmdutil.Emit(cmd, env, func() {
				keys := make([]string, 0, len(env))
				for k := range env {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "export %s=%q\n", k, env[k])
				}
				fmt.Fprintln(cmd.OutOrStdout(), "# Add these to your shell profile or a .env file")
			})
		},
	}
}
