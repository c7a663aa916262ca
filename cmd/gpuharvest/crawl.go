package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wchen/gpuharvest/internal/config"
	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/notify"
	"github.com/wchen/gpuharvest/internal/run"
)

var (
	crawlMode string
	crawlGPU  string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one harvest pass and exit",
	Long: `Run a single harvest pass synchronously.

Modes:
  default      crawl the catalog, skipping products already stored
  full         re-ingest every stored review
  incremental  re-ingest only reviews with a newer posted date

Pass --gpu to crawl a single named GPU instead.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlMode, "mode", "default", "Run mode: default, full, or incremental")
	crawlCmd.Flags().StringVar(&crawlGPU, "gpu", "", "Crawl only this GPU (exact name)")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	mode, ok := run.ParseMode(crawlMode)
	if !ok || mode == run.ModeSelected {
		return fmt.Errorf("invalid mode %q: must be default, full, or incremental", crawlMode)
	}
	if crawlGPU != "" {
		mode = run.ModeSelected
	}

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

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPRecipients)
	runner := run.NewRunner(cfg, store, mailer)

	summary, err := runner.Run(cmd.Context(), mode, crawlGPU)
	if err != nil {
		return err
	}
	if !summary.Success {
		return fmt.Errorf("run failed: %s", summary.Error)
	}

	fmt.Printf("Run %s completed in %.0fs: %d products, %d boards, %d specs, %d reviews, %d updated, %d errors\n",
		summary.RunID, summary.ElapsedSeconds,
		summary.Counts.Products, summary.Counts.Boards, summary.Counts.Specs,
		summary.Counts.Reviews, summary.Counts.Updated, summary.Counts.Errors)
	return nil
}
