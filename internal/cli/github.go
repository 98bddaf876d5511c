package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/github"
	"github.com/dshills/repoaudit/internal/output"
)

var flagGHPost bool

var auditGitHubCmd = &cobra.Command{
	Use:   "github <owner/repo> <pr-number>",
	Short: "Audit the files changed in a GitHub pull request",
	Long:  "Fetch the changed files of a pull request at its head commit, audit them, and optionally post a summary comment.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, err := github.ParseSlug(args[0])
		if err != nil {
			return err
		}
		prNumber, err := strconv.Atoi(args[1])
		if err != nil || prNumber <= 0 {
			return fmt.Errorf("invalid PR number %q", args[1])
		}

		cfg, err := loadConfig(buildOverrides(cmd))
		if err != nil {
			return err
		}

		gh, err := github.NewClient("", "")
		if err != nil {
			return fail(err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "Fetching PR #%d from %s/%s...\n", prNumber, owner, repo)
		set, err := gh.ResolvePR(ctx, owner, repo, prNumber, resolveOptions(cfg))
		if err != nil {
			return fail(err)
		}
		if len(set.Files) == 0 && len(set.Skipped) == 0 {
			fmt.Fprintln(stderr, "PR has no files to audit.")
			return nil
		}

		readme, err := gh.Readme(ctx, owner, repo, set.Repo.Head)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: could not fetch README: %v\n", err)
		}

		report, err := runAudit(ctx, cfg, auditRun{set: set, readme: readme}, stderr)
		if err != nil {
			return fail(err)
		}

		if flagGHPost {
			if err := gh.PostComment(ctx, owner, repo, prNumber, output.Comment(report)); err != nil {
				return fail(fmt.Errorf("posting comment: %w", err))
			}
			fmt.Fprintf(stderr, "Summary posted to PR #%d.\n", prNumber)
		}
		finish(stderr, report)
		return nil
	},
}

func init() {
	auditGitHubCmd.Flags().BoolVar(&flagGHPost, "post", false, "Post a summary comment to the pull request")
}
