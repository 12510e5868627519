package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/config"
	"github.com/kringlelabs/kringle/internal/home"
	"github.com/kringlelabs/kringle/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Kringle server",
	Long: `Start the Kringle HTTP server.

The server opens the embedded database under the home directory and
serves the profile and chat API. Configuration is hot-reloaded when the
config file changes, so LLM providers can be swapped without a restart.

Examples:
  kringle serve                    # Start on default port 8080
  kringle serve --port 3000        # Start on custom port
  kringle serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load configuration with hot-reload
		configFile := cfgFile
		if configFile == "" && h.ConfigExists() {
			configFile = h.ConfigPath()
		}
		mgr, err := config.NewManager(configFile)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		appCfg := mgr.Get()
		host := serveHost
		if !cmd.Flags().Changed("host") && appCfg.Server.Host != "" {
			host = appCfg.Server.Host
		}
		port := servePort
		if !cmd.Flags().Changed("port") && appCfg.Server.Port != 0 {
			port = appCfg.Server.Port
		}

		dataPath := appCfg.Storage.Path
		if dataPath == "" {
			dataPath = h.DataPath()
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			DataPath:      dataPath,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
