package cli

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/database"
	"github.com/iliyamo/todoer/internal/repository"
	"github.com/iliyamo/todoer/internal/service"
)

func newMigrateCmd() *cobra.Command {
	var skipProviders bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and configure identity providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			if skipProviders {
				return nil
			}

			providers, err := resolveProviders(cfg)
			if err != nil {
				return err
			}
			p := service.NewProvisioner(repository.NewProviderRepo(db), repository.NewSiteRepo(db))
			report, err := p.Run(ctx, cfg.SiteID, cfg.SiteDomain, cfg.SiteName, providers)
			if err != nil {
				return err
			}
			log.Printf("migrate: providers created=%d updated=%d skipped=%d",
				len(report.Created), len(report.Updated), len(report.Skipped))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipProviders, "skip-providers", false, "only apply schema migrations")
	return cmd
}
