package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/botonex/botonex/internal/commands"
	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/shared/stringutils"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Manage chat commands",
}

func init() {
	commandsCmd.AddCommand(commandsListCmd)
	commandsCmd.AddCommand(commandsAddCmd)
	commandsCmd.AddCommand(commandsRemoveCmd)
}

var commandsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat commands",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		table := commands.NewTable(cfg.Commands.Static)

		fmt.Printf("%-16s %s\n", "Command", "Reply")
		fmt.Println(strings.Repeat("-", 60))
		for _, a := range table.Activators() {
			reply, static := cfg.Commands.Static[a]
			if !static || a == "!hello" || a == "!echo" {
				reply = "(built-in)"
			}
			fmt.Printf("%-16s %s\n", a, stringutils.Truncate(reply, 43))
		}
		return nil
	},
}

var commandsAddCmd = &cobra.Command{
	Use:   "add <!activator> <reply...>",
	Short: "Add a static text command",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		activator := normalizeActivator(args[0])
		reply := strings.Join(args[1:], " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Commands.Static == nil {
			cfg.Commands.Static = make(map[string]string)
		}
		cfg.Commands.Static[activator] = reply
		if err := config.Save(cfg, configPath()); err != nil {
			return err
		}
		fmt.Printf("✓ Added %s\n", activator)
		return nil
	},
}

var commandsRemoveCmd = &cobra.Command{
	Use:   "remove <!activator>",
	Short: "Remove a static text command",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		activator := normalizeActivator(args[0])

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Commands.Static[activator]; !ok {
			return fmt.Errorf("no static command %s", activator)
		}
		delete(cfg.Commands.Static, activator)
		if err := config.Save(cfg, configPath()); err != nil {
			return err
		}
		fmt.Printf("✓ Removed %s\n", activator)
		return nil
	},
}

func normalizeActivator(s string) string {
	if strings.HasPrefix(s, "!") {
		return s
	}
	return "!" + s
}
