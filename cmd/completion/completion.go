// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for xlpipe.

Install instructions:
  Bash:       xlpipe completion bash > /etc/bash_completion.d/xlpipe
              echo 'source <(xlpipe completion bash)' >> ~/.bashrc
  Zsh:        xlpipe completion zsh > ~/.zsh/completions/_xlpipe
  Fish:       xlpipe completion fish > ~/.config/fish/completions/xlpipe.fish
  PowerShell: xlpipe completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				fmt.Fprintln(w, "# xlpipe bash completion")
				fmt.Fprintln(w, "# Install: xlpipe completion bash > /etc/bash_completion.d/xlpipe")
				fmt.Fprintln(w)
				return rootCmd.GenBashCompletion(w)
			case "zsh":
				fmt.Fprintln(w, "# xlpipe zsh completion")
				fmt.Fprintln(w, "# Install: xlpipe completion zsh > ~/.zsh/completions/_xlpipe")
				fmt.Fprintln(w)
				return rootCmd.GenZshCompletion(w)
			case "fish":
				fmt.Fprintln(w, "# xlpipe fish completion")
				fmt.Fprintln(w, "# Install: xlpipe completion fish > ~/.config/fish/completions/xlpipe.fish")
				fmt.Fprintln(w)
				return rootCmd.GenFishCompletion(w, true)
			case "powershell":
				fmt.Fprintln(w, "# xlpipe PowerShell completion")
				fmt.Fprintln(w, "# Install: xlpipe completion powershell >> $PROFILE")
				fmt.Fprintln(w)
				return rootCmd.GenPowerShellCompletionWithDesc(w)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	return cmd
}
