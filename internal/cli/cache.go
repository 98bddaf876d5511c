package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/cache"
	"github.com/dshills/repoaudit/internal/config"
)

var (
	flagCacheRepo   string
	flagCacheBranch string
	flagCachePR     int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached analyses (all scopes, or one with --repo)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		root, err := diskRoot(cfg)
		if err != nil {
			return fail(err)
		}
		var scope string
		if flagCacheRepo != "" {
			scope = cache.Scope{Repo: flagCacheRepo, Branch: flagCacheBranch, PR: flagCachePR}.Name()
		}
		removed, err := cache.Clear(root, scope)
		if err != nil {
			return fail(fmt.Errorf("clearing cache: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s cached %s.\n", humanize.Comma(int64(removed)), plural(removed, "analysis", "analyses"))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !cfg.Cache.Enabled {
			fmt.Fprintln(out, "Cache is disabled.")
			return nil
		}
		root, err := diskRoot(cfg)
		if err != nil {
			return fail(err)
		}
		stats, err := cache.RootStats(root)
		if err != nil {
			return fail(fmt.Errorf("reading cache stats: %w", err))
		}
		fmt.Fprintf(out, "Directory: %s\n", stats.Dir)
		fmt.Fprintf(out, "Scopes:    %s\n", humanize.Comma(int64(stats.Scopes)))
		fmt.Fprintf(out, "Entries:   %s\n", humanize.Comma(int64(stats.Entries)))
		fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
		if stats.Entries > 0 {
			fmt.Fprintf(out, "Oldest:    %s\n", humanize.Time(stats.Oldest))
			fmt.Fprintf(out, "Newest:    %s\n", humanize.Time(stats.Newest))
		}
		return nil
	},
}

// diskRoot returns the disk cache root. The s3 and postgres backends are
// managed with their own tooling.
func diskRoot(cfg config.Config) (string, error) {
	if cfg.Cache.Backend != cache.BackendDisk {
		return "", fmt.Errorf("cache show and clear support the disk backend only (configured: %s)", cfg.Cache.Backend)
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.DefaultDir()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheClearCmd.Flags().StringVar(&flagCacheRepo, "repo", "", "Only clear entries for this repository")
	cacheClearCmd.Flags().StringVar(&flagCacheBranch, "branch", "", "Branch of --repo")
	cacheClearCmd.Flags().IntVar(&flagCachePR, "pr", 0, "Pull request number of --repo")
}
