package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/config"
)

// Manager owns the chat transports.
type Manager struct {
	channels map[string]Channel
	console  Channel
}

// NewManager creates the Twitch transport and, when console is true, the
// interactive CLI reading from in and printing to out.
func NewManager(cfg *config.Config, b *bus.Bus, console bool, in io.Reader, out io.Writer) *Manager {
	m := &Manager{channels: make(map[string]Channel)}

	twitch := NewTwitchChannel(cfg.Server, cfg.User, b)
	m.channels[twitch.Name()] = twitch
	slog.Info("channel enabled", "name", twitch.Name())

	if console {
		cli := NewCLIChannel(b, cfg.User.ChannelName(), in, out)
		m.channels[cli.Name()] = cli
		m.console = cli
		slog.Info("channel enabled", "name", cli.Name())
	}

	return m
}

// EnabledChannels returns the names of all enabled channels, sorted.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StartAll starts all channels concurrently. It blocks until ctx is
// cancelled, the console exits (returns nil), or another channel fails
// (returns its error).
func (m *Manager) StartAll(ctx context.Context) error {
	consoleDone := make(chan struct{})
	failed := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		go func(n string, c Channel) {
			slog.Info("starting channel", "name", n)
			err := c.Start(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", n, "err", err)
			}
			switch {
			case c == m.console:
				close(consoleDone)
			case err != nil && ctx.Err() == nil:
				failed <- fmt.Errorf("channel %s: %w", n, err)
			}
		}(name, ch)
	}

	select {
	case <-consoleDone:
		return nil
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
