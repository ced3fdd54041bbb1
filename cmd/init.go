package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/shared/cmdutils"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	fmt.Printf("\n%s botonex is ready!\n\n", cmdutils.Logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set user.token and user.channel in %s\n", cfgPath)
	fmt.Println("     Get a chat token at: https://twitchtokengenerator.com")
	fmt.Println("  2. Run: botonex run")
	return nil
}
