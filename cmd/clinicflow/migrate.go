package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
)

func migrateCmd() *cobra.Command {
	var skipMongo bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create postgres schemas and tables and the mongodb indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(cfg.Database, log)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db, log); err != nil {
				return err
			}

			if skipMongo {
				log.Info("skipping mongodb indexes")
				return nil
			}

			ctx := cmd.Context()
			client, err := docstore.Connect(ctx, cfg.Mongo)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Warn("mongodb disconnect", zap.Error(err))
				}
			}()

			if err := docstore.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database), log); err != nil {
				return fmt.Errorf("ensuring mongodb indexes: %w", err)
			}
			log.Info("migrations complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMongo, "skip-mongo", false, "only migrate the postgres schema")
	return cmd
}
