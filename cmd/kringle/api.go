package main

import (
	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Kringle server via HTTP.

These commands require a running server (kringle serve).
Use --server to specify a custom server URL.

Examples:
  kringle api health                      # Check server health
  kringle api profiles create -f kid.json # Register a child profile
  kringle api chat join ABC123            # Look up a passcode
  kringle api chat send ABC123 hi santa   # Send a message
  kringle api chat watch ABC123           # Stream typing events`,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Profile management commands",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Conversation commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Profiles as subcommand group
	for _, ep := range endpoints.ProfileCommands() {
		profilesCmd.AddCommand(ep.Command(getServerURL))
	}

	// Chat as subcommand group
	for _, ep := range endpoints.ChatCommands() {
		chatCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(profilesCmd)
	apiCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(apiCmd)
}
