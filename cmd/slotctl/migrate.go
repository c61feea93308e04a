package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	mongomigration "clinicbook/internal/migrations/mongo"
	"clinicbook/pkg/config"
)

const migrationTimeout = 120 * time.Second

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create Mongo collections, schema validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.loadConfig()
			if cfg.StoreDriver != config.StoreMongo {
				return errors.New("migrate only applies to STORE_DRIVER=mongo")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), migrationTimeout)
			defer cancel()

			cfg.Client.SetMongo(cfg.MongoURI, cfg.MongoConnTimeout)
			defer c.close(ctx)

			return mongomigration.RunMigration(ctx, cfg.Client.MongoClient(), cfg.MongoDatabaseName, cfg.Log)
		},
	}
}
