// Package cli wires the todoer commands: serve, migrate and providers.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iliyamo/todoer/internal/config"
)

// NewRootCmd returns the todoer command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todoer",
		Short:         "Todoer - a to-do service with soft delete and external sign-in",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newProvidersCmd())
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// resolveProviders loads the provider catalog and resolves its credential
// parameters against the override file and the environment.
func resolveProviders(cfg config.Config) ([]config.ProviderConfig, error) {
	params, err := config.LoadParamReader(cfg.OverrideFile)
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadProviderCatalog(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	return catalog.Resolve(params), nil
}
