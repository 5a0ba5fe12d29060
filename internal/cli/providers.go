package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/service"
)

func newProvidersCmd() *cobra.Command {
	cfg := config.Config{
		OverrideFile:  ".env.local",
		ProvidersFile: os.Getenv("PROVIDERS_FILE"),
	}
	if v := os.Getenv("OVERRIDE_FILE"); v != "" {
		cfg.OverrideFile = v
	}
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show the resolved identity provider configuration",
		Long: "Resolves the provider catalog against the override file and the\n" +
			"environment and prints what migrate would do for each provider.\n" +
			"Secrets are masked.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := resolveProviders(cfg)
			if err != nil {
				return err
			}
			return writeProviders(cmd.OutOrStdout(), providers)
		},
	}
	cmd.Flags().StringVar(&cfg.OverrideFile, "override-file", cfg.OverrideFile, "parameter override file")
	cmd.Flags().StringVar(&cfg.ProvidersFile, "providers-file", cfg.ProvidersFile, "TOML provider catalog (built-in catalog when empty)")
	return cmd
}

func writeProviders(w io.Writer, providers []config.ProviderConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCLIENT ID\tSECRET\tSTATUS")
	for _, p := range providers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name, masked(p.ClientID), masked(p.ClientSecret), providerStatus(p))
	}
	return tw.Flush()
}

func providerStatus(p config.ProviderConfig) string {
	if reason := service.SkipReason(p); reason != "" {
		return "skipped: " + reason
	}
	return "ready"
}

func masked(s *string) string {
	if s == nil {
		return "<not set>"
	}
	return config.MaskSecret(*s)
}
