package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/botonex/botonex/internal/dependency"
	"github.com/botonex/botonex/internal/shared/cmdutils"
)

var (
	runVerbose   bool
	runNoConsole bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Twitch and start every enabled service",
	RunE:  runBot,
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose logging")
	runCmd.Flags().BoolVar(&runNoConsole, "no-console", false, "Do not read chat input from the terminal")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runBot(_ *cobra.Command, _ []string) error {
	setupLogging(runVerbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.User.Token == "" {
		return fmt.Errorf("no Twitch token configured — edit %s", configPath())
	}

	c, err := dependency.New(cfg, dependency.Console{
		Enabled: !runNoConsole,
		In:      os.Stdin,
		Out:     os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	fmt.Printf("%s Starting botonex as %s on %s...\n", cmdutils.Logo, cfg.User.Nick, cfg.User.ChannelName())

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	mgr := c.Channels()
	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(mgr.EnabledChannels(), ", "))

	// Leaving the console shuts everything down.
	g.Go(func() error {
		defer stop()
		return mgr.StartAll(gctx)
	})
	if cfg.Commands.Enabled {
		g.Go(func() error { return c.Commands().Start(gctx) })
		fmt.Println("✓ Commands enabled")
	}
	if cfg.Clock.Enabled {
		g.Go(func() error { return c.Clock().Start(gctx) })
		fmt.Printf("✓ Clock enabled (%s)\n", cfg.Clock.Every())
	}
	if cfg.TTS.Enabled {
		g.Go(func() error { return c.TTS().Start(gctx) })
		fmt.Println("✓ Text-to-speech enabled")
	}
	if cfg.Overlay.Enabled {
		g.Go(func() error { return c.Overlay().Start(gctx) })
		fmt.Printf("✓ Overlay on http://%s\n", cfg.Overlay.Addr)
	}

	fmt.Printf("%s Running. Press Ctrl+C to stop.\n", cmdutils.Logo)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "botonex error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
