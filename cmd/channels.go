package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/botonex/botonex/internal/shared/cmdutils"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect chat channels",
}

func init() {
	channelsCmd.AddCommand(channelsStatusCmd)
}

var channelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show channel status",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		type row struct{ name, enabled, detail string }
		rows := []row{
			{"Twitch", cmdutils.Mark(cfg.User.Token != ""), fmt.Sprintf("%s %s (token %s)", cfg.Server.Address, cfg.User.ChannelName(), tokenHint(cfg.User.Token))},
			{"Console", cmdutils.Mark(true), "stdin (disable with run --no-console)"},
		}

		fmt.Printf("%-12s %-8s %s\n", "Channel", "Enabled", "Configuration")
		fmt.Println(strings.Repeat("-", 60))
		for _, r := range rows {
			fmt.Printf("%-12s %-8s %s\n", r.name, r.enabled, r.detail)
		}
		return nil
	},
}

// tokenHint shows only the start of a secret.
func tokenHint(s string) string {
	if s == "" {
		return "(not configured)"
	}
	s = strings.TrimPrefix(s, "oauth:")
	if len(s) > 4 {
		return s[:4] + "..."
	}
	return "..."
}
