package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/planora/planora/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// Never print credentials.
		if cfg.Anthropic.APIKey != "" {
			cfg.Anthropic.APIKey = "(set)"
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("rendering config: %w", err)
		}

		color.New(color.Bold).Println("Effective configuration:")
		fmt.Print(string(out))
		fmt.Println()
		color.New(color.Faint).Printf("user config: %s\n", config.GetUserConfigPath())
		return nil
	},
}

const configTemplate = `# Planora configuration.
anthropic:
  # api_key: ${ANTHROPIC_API_KEY}
  model: claude-3-5-haiku-20241022
  fallback_models:
    - claude-sonnet-4-20250514
  request_timeout: 30s
  use_aws_bedrock: false

server:
  addr: ":8484"

log:
  level: info

# timezone: America/New_York
`

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		color.Green("Created %s", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
