package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/crlwatch/crlwatch/pkg/models"
	"github.com/crlwatch/crlwatch/pkg/utils"
)

// NewConfigureCommand manages the on-disk configuration file.
func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage crlwatch configuration",
	}

	cmd.AddCommand(newConfigureInitCommand())
	cmd.AddCommand(newConfigureShowCommand())
	cmd.AddCommand(newConfigureValidateCommand())
	return cmd
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".crlwatch", "config.yaml"), nil
}

func newConfigureInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if path == "" {
				var err error
				path, err = defaultConfigPath()
				if err != nil {
					return err
				}
			}
			if utils.FileExists(path) && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			cfg := models.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newConfigureShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Printf("# config file: %s\n", used)
			} else {
				fmt.Println("# config file: none (defaults, env, and flags only)")
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigureValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration, or a specific config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				cfg := &models.Config{}
				if err := cfg.Load(file); err != nil {
					return err
				}
				fmt.Printf("Configuration file %s is valid\n", file)
				return nil
			}
			if _, err := buildConfig(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "validate this config file instead of the merged configuration")
	return cmd
}
