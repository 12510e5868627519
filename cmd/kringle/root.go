package main

import (
	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "kringle",
	Short: "Santa chat server with phase-gated LLM conversations",
	Long: `Kringle runs guided conversations between children and an LLM-backed
Santa. Each child gets a passcode-keyed profile, and the conversation
moves through phases:

  - Identity verification against facts from the profile
  - Present reveal once Santa is convinced
  - Completion when the whole list has been shared

Typing indicators and streamed replies are pushed to subscribers
over websockets.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.kringle/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "kringle home directory (default: ~/.kringle)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
