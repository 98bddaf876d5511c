package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/audit"
	"github.com/dshills/repoaudit/internal/config"
	"github.com/dshills/repoaudit/internal/github"
	"github.com/dshills/repoaudit/internal/providers"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFilesFailed  = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "repoaudit",
	Short:         "Parallel AI file analysis for git repositories",
	Long:          "repoaudit analyzes every file of a repository, branch diff, or pull request with an LLM, caches results by content, and assembles a report.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitCode == ExitSuccess {
			return ExitUsageError
		}
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// fail records the exit code for err and returns nil so cobra does not
// print usage for runtime failures.
func fail(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = exitFor(err)
	return nil
}

func exitFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case providers.IsAuthError(err), errors.Is(err, github.ErrAuth):
		return ExitAuthError
	case errors.Is(err, config.ErrInvalid), errors.Is(err, audit.ErrConfiguration):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

func loadConfig(overrides map[string]any) (config.Config, error) {
	return config.Load(flagConfig, overrides)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print repoaudit version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "repoaudit version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/repoaudit/config.yaml)")
}
