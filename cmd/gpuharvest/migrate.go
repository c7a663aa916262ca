package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wchen/gpuharvest/internal/config"
	"github.com/wchen/gpuharvest/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	fmt.Println("Schema up to date.")
	return nil
}
