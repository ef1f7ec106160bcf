package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectConfigFile is the project config looked up in the working directory
const projectConfigFile = "siteverify.toml"

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server string `toml:"server"`
	Path   string `toml:"path,omitempty"`
}

// GlobalConfig is the per-user configuration (stored in ~/.siteverify/config.yaml)
type GlobalConfig struct {
	Server string `yaml:"server"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var path string
	var global bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a siteverify.toml configuration file in the current directory,
or ~/.siteverify/config.yaml with --global.

EXAMPLES:
  # Create project config with default server
  siteverify config init

  # Point this project at a deployed proxy
  siteverify config init --server https://example.netlify.app

  # Use the versioned route
  siteverify config init --path /api/v1/verify-recaptcha

  # Set the default server for every project
  siteverify config init --global --server https://verify.example.com
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				return runConfigInitGlobal(cmd.OutOrStdout(), serverURL, force)
			}
			return runConfigInit(cmd.OutOrStdout(), serverURL, path, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "server URL")
	cmd.Flags().StringVar(&path, "path", "", "verification route (default: /.netlify/functions/verify-recaptcha)")
	cmd.Flags().BoolVar(&global, "global", false, "write the per-user config instead")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the local project config (siteverify.toml) and the global config from ~/.siteverify/config.yaml.

EXAMPLES:
  siteverify config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, serverURL, path string, force bool) error {
	configPath := projectConfigFile
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# siteverify project configuration")
	fmt.Fprintln(f)
	if err := toml.NewEncoder(f).Encode(ProjectConfig{Server: serverURL, Path: path}); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Server: %s\n", serverURL)
	if path != "" {
		fmt.Fprintf(out, "  Path:   %s\n", path)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  Run 'siteverify verify' and paste a token to check it")

	return nil
}

func runConfigInitGlobal(out io.Writer, serverURL string, force bool) error {
	globalPath := globalConfigPath()
	if _, err := os.Stat(globalPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", globalPath)
	}

	if err := os.MkdirAll(configDir(), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(GlobalConfig{Server: serverURL})
	if err != nil {
		return err
	}
	if err := os.WriteFile(globalPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", globalPath)
	fmt.Fprintf(out, "  Server: %s\n", serverURL)
	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	// 1. Command line flags
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --server, --config")
	fmt.Fprintln(out)

	// 2. Environment variables
	fmt.Fprintln(out, "2. Environment variables")
	if serverEnv := os.Getenv("SITEVERIFY_SERVER"); serverEnv != "" {
		fmt.Fprintf(out, "   SITEVERIFY_SERVER=%s\n", serverEnv)
	} else {
		fmt.Fprintln(out, "   SITEVERIFY_SERVER=(not set)")
	}
	fmt.Fprintln(out)

	// 3. Local project config
	fmt.Fprintf(out, "3. Local project config (%s)\n", projectConfigFile)
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else {
		fmt.Fprintf(out, "   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", projectConfig.Server)
		}
		if projectConfig.Path != "" {
			fmt.Fprintf(out, "   path: %s\n", projectConfig.Path)
		}
	}
	fmt.Fprintln(out)

	// 4. Global config
	fmt.Fprintln(out, "4. Global config (~/.siteverify/config.yaml)")
	globalConfig, err := loadGlobalConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else if globalConfig.Server != "" {
		fmt.Fprintf(out, "   server: %s\n", globalConfig.Server)
	}
	fmt.Fprintln(out)

	// Effective config
	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Server: %s\n", getServer())
	if path := getPath(); path != "" {
		fmt.Fprintf(out, "   Path:   %s\n", path)
	}

	return nil
}

// Config file helpers

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".siteverify"
	}
	return filepath.Join(home, ".siteverify")
}

func globalConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &config, nil
}

// loadProjectConfig loads the project config from --config or the working directory.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	path := projectConfigFile
	if cfgFile != "" {
		path = cfgFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, path, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, path, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but warns on parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Show actionable errors (parse failures)
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}
