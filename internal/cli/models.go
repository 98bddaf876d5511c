package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/providers"
)

const doctorTimeout = 30 * time.Second

var flagModelsLive bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

type modelInfo struct {
	Provider string
	Models   []string
}

var knownModels = []modelInfo{
	{Provider: "ollama", Models: []string{"codellama:7b", "qwen2.5-coder", "llama3.1", "deepseek-coder-v2"}},
	{Provider: "openai", Models: []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "o3-mini"}},
	{Provider: "gemini", Models: []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"}},
	{Provider: "anthropic", Models: []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"}},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models, or the configured provider's models with --live",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !flagModelsLive {
			for _, info := range knownModels {
				fmt.Fprintf(out, "%s:\n", info.Provider)
				for _, m := range info.Models {
					fmt.Fprintf(out, "  - %s\n", m)
				}
				fmt.Fprintln(out)
			}
			return nil
		}

		cfg, err := loadConfig(buildOverrides(cmd))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		defer cancel()

		gen, err := providers.New(ctx, cfg.Provider, cfg.Model, providers.Options{Host: cfg.Host, APIKey: cfg.APIKey})
		if err != nil {
			return fail(err)
		}
		lister, ok := gen.(providers.ModelLister)
		if !ok {
			return fail(fmt.Errorf("provider %s cannot list models", gen.Name()))
		}
		models, err := lister.ListModels(ctx)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(out, "%s:\n", gen.Name())
		for _, m := range models {
			fmt.Fprintf(out, "  - %s\n", m)
		}
		return nil
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured provider is reachable and responding",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checking %s...\n", cfg.Provider)

		ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		defer cancel()

		gen, err := providers.New(ctx, cfg.Provider, cfg.Model, providers.Options{Host: cfg.Host, APIKey: cfg.APIKey})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}
		client := providers.NewClient(gen, providers.ClientOptions{Timeout: doctorTimeout, Retries: -1, MaxTokens: 10})
		if _, err := client.Analyze(ctx, "ping", "Respond with exactly: ok"); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			exitCode = exitFor(err)
			return nil
		}
		fmt.Fprintf(out, "OK: %s is configured and responding\n", cfg.Provider)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	for _, cmd := range []*cobra.Command{modelsListCmd, modelsDoctorCmd} {
		cmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to use")
		cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	}
	modelsListCmd.Flags().BoolVar(&flagModelsLive, "live", false, "Query the configured provider")
}
