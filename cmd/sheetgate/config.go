package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sheetgate/sheetgate/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loadConfig(workDir string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = filepath.Join(".sheetgate", "config.json")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		var notFound *fs.PathError
		if errors.As(err, &notFound) || errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return config.Default(), nil
		}
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := config.ValidateSettings(viper.AllSettings()); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Budgets.MaxIterations <= 0 {
		return config.Config{}, fmt.Errorf("budgets.max_iterations must be > 0")
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sheetgate configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "validate",
		Short:        "Load and schema-validate the config file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := workingDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(workDir)
			if err != nil {
				return err
			}
			fmt.Printf("config ok: max_iterations=%d default_platform=%s\n", cfg.Budgets.MaxIterations, cfg.Platform())
			return nil
		},
	})
	return cmd
}
