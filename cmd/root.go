// Package cmd implements the botonex CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/shared/cmdutils"
)

const version = "0.1.0"

var cfgFile string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "botonex",
	Short: cmdutils.Logo + " botonex — Twitch chat bot",
	Long:  cmdutils.Logo + " botonex — a Twitch chat bot built around an in-process message bus",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ~/.botonex/config.toml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(commandsCmd)
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
