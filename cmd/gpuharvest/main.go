// Package main provides the entry point for the GPU harvester.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gpuharvest",
	Short: "GPU catalog harvester",
	Long:  "gpuharvest crawls a GPU specification site into PostgreSQL and keeps the stored reviews reconciled with the source.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
