package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/gitctx"
)

const (
	hookName        = "pre-push"
	hookMarkerStart = "# >>> repoaudit pre-push hook >>>"
	hookMarkerEnd   = "# <<< repoaudit pre-push hook <<<"
)

var (
	hookRange  string
	hookFormat string
	hookBlock  bool
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-push hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install repoaudit as a git pre-push hook that audits changed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			return fail(err)
		}

		section := generateHookScript(hookRange, hookFormat, hookBlock)

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			return fail(fmt.Errorf("reading hook file: %w", err))
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			return fail(fmt.Errorf("creating hooks directory: %w", err))
		}
		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			return fail(fmt.Errorf("writing hook file: %w", err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installed repoaudit %s hook at %s\n", hookName, hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the repoaudit pre-push hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			return fail(err)
		}
		out := cmd.OutOrStdout()

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(out, "No %s hook found.\n", hookName)
				return nil
			}
			return fail(fmt.Errorf("reading hook file: %w", err))
		}

		content := removeHookSection(string(existing))

		// Only a shebang left: the file was ours.
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				return fail(fmt.Errorf("removing hook file: %w", err))
			}
			fmt.Fprintf(out, "Removed repoaudit %s hook at %s\n", hookName, hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			return fail(fmt.Errorf("writing hook file: %w", err))
		}
		fmt.Fprintf(out, "Removed repoaudit section from %s\n", hookPath)
		return nil
	},
}

func getHookPath() (string, error) {
	repo, err := gitctx.Open(".")
	if err != nil {
		return "", err
	}
	dir, err := repo.HooksDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, hookName), nil
}

func generateHookScript(revRange, format string, block bool) string {
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	fmt.Fprintf(&b, "repoaudit audit changed '%s' --format %s --skip-repo-analyses --quiet", revRange, format)
	if block {
		b.WriteString(" --fail-on-error")
	}
	b.WriteString("\n")
	b.WriteString("REPOAUDIT_EXIT=$?\n")
	b.WriteString("if [ $REPOAUDIT_EXIT -eq 1 ]; then\n")
	b.WriteString("  echo \"repoaudit: some files could not be analyzed, push blocked\"\n")
	b.WriteString("  exit 1\n")
	b.WriteString("elif [ $REPOAUDIT_EXIT -ge 2 ]; then\n")
	b.WriteString("  echo \"repoaudit: audit did not run (exit $REPOAUDIT_EXIT), allowing push\"\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	before := existing[:startIdx]
	after := strings.TrimPrefix(existing[endIdx+len(hookMarkerEnd):], "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := strings.TrimPrefix(existing[endIdx+len(hookMarkerEnd):], "\n")
	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookRange, "range", "@{upstream}..HEAD", "Revision range audited on push")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (markdown, json, text)")
	hookInstallCmd.Flags().BoolVar(&hookBlock, "block", false, "Block the push when any file analysis fails")
}
