package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:   "coldmail",
	Short: "Bulk cold email copy generation",
	Long: `coldmail turns a spreadsheet of prospects into personalized cold email
sequences.

Each row is enriched with context scraped from the prospect's website, then
an LLM writes the initial email and its follow-ups. Jobs run in the
background and can be paused, resumed and exported as CSV.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "config.yaml", "config file (environment variables override it)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&devMode, "dev", false, "development mode: console logs, no redaction",
	)
}
