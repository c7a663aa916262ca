package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wchen/gpuharvest/internal/config"
	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/notify"
	"github.com/wchen/gpuharvest/internal/run"
	"github.com/wchen/gpuharvest/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control surface",
	Long:  "Start an HTTP server that triggers harvest runs and reports their progress.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides SERVE_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.ServePort = servePort
	}

	store, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPRecipients)
	runner := run.NewRunner(cfg, store, mailer)

	return server.New(cfg.ServePort, runner, store).Start()
}
