package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/botonex/botonex/internal/shared/cmdutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show botonex status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	fmt.Printf("%s botonex Status\n\n", cmdutils.Logo)

	_, statErr := os.Stat(cfgPath)
	fmt.Printf("Config:    %s %s\n", cfgPath, cmdutils.Mark(statErr == nil))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (%v)\n", err)
		return nil
	}

	fmt.Printf("Account:   %s %s\n", cfg.User.Nick, cmdutils.Mark(cfg.User.Token != ""))
	fmt.Printf("Channel:   %s\n", cfg.User.ChannelName())
	fmt.Printf("Bus:       capacity %d\n\n", cfg.Bus.Capacity)

	fmt.Println("Services:")
	fmt.Printf("  %-10s %s\n", "commands", cmdutils.Mark(cfg.Commands.Enabled))
	fmt.Printf("  %-10s %s every %s\n", "clock", cmdutils.Mark(cfg.Clock.Enabled), cfg.Clock.Every())
	fmt.Printf("  %-10s %s %s\n", "tts", cmdutils.Mark(cfg.TTS.Enabled), cfg.TTS.Voice)
	fmt.Printf("  %-10s %s %s\n", "overlay", cmdutils.Mark(cfg.Overlay.Enabled), cfg.Overlay.Addr)
	return nil
}
