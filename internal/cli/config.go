package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"audio-digest/internal/config"
	"audio-digest/internal/domain"
)

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to --config (default ./digest.yaml)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(c.configFile)
			if path == "" {
				path = "digest.yaml"
			}
			if _, err := os.Stat(path); err == nil && !force {
				return domain.ConfigError("config", fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("check %s: %w", path, err)
			}

			// The target may not exist yet, so load without an explicit file.
			explicit := c.configFile
			c.configFile = ""
			cfg, _, err := c.load(cmd, nil)
			c.configFile = explicit
			if err != nil {
				return err
			}

			if err := config.NewYAMLStore(path).Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load(cmd, nil)
			if err != nil {
				return err
			}
			cfg.Transcription.Remote.APIKey = mask(cfg.Transcription.Remote.APIKey)
			cfg.Summary.OpenAI.APIKey = mask(cfg.Summary.OpenAI.APIKey)

			if cfg.ConfigFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", cfg.ConfigFile)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
