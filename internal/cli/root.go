package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// defaultServer is used when no flag, env var or config file names a server.
const defaultServer = "http://localhost:8080"

var (
	cfgFile string
	server  string
)

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "siteverify",
		Short:         "CAPTCHA verification proxy CLI",
		Long:          `siteverify checks CAPTCHA tokens against a running siteverify proxy and manages client configuration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: siteverify.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")

	// Add subcommands
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, project config, or global config
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("SITEVERIFY_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config file (YAML)
	if global, err := loadGlobalConfig(); err == nil && global.Server != "" {
		return global.Server
	}

	// 5. Default
	return defaultServer
}

// getPath returns the verification route, from project config when set
func getPath() string {
	if config := loadProjectConfigSilent(); config != nil && config.Path != "" {
		return config.Path
	}
	return ""
}
