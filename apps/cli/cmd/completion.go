package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for hammer on stdout.

Supported shells are bash, zsh, fish and powershell. The script
completes subcommands, flags and hammer file paths.

Install it wherever your shell looks for completions, for example:

  # bash, current session only
  source <(hammer completion bash)

  # bash, every session
  hammer completion bash > ~/.local/share/bash-completion/completions/hammer

  # zsh, with ~/.zfunc on your fpath
  hammer completion zsh > ~/.zfunc/_hammer

  # fish
  hammer completion fish > ~/.config/fish/completions/hammer.fish

  # powershell, append to your profile
  hammer completion powershell >> $PROFILE
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
