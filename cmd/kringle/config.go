package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/kringlelabs/kringle/internal/config"
	"github.com/kringlelabs/kringle/internal/home"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the Kringle configuration file.

Configuration lives at ~/.kringle/config.yaml by default. API keys are
referenced with ${ENV_VAR} syntax and resolved from the environment at
load time, so the file never holds secrets.

Examples:
  kringle config init   # Write a default config file
  kringle config show   # Print the effective configuration
  kringle config path   # Print the config file location`,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		path := h.ConfigPath()
		if cfgFile != "" {
			path = cfgFile
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfigManager()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(mgr.Get())
		if err != nil {
			return err
		}

		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return nil
		}

		h, err := getHome()
		if err != nil {
			return err
		}

		fmt.Println(h.ConfigPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfigManager loads configuration honoring the --config flag.
func loadConfigManager() (*config.Manager, error) {
	configFile := cfgFile
	if configFile == "" {
		h, err := getHome()
		if err != nil {
			return nil, err
		}
		if h.ConfigExists() {
			configFile = h.ConfigPath()
		}
	}
	return config.NewManager(configFile)
}
