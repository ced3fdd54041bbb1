package channels

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/irc"
	"github.com/botonex/botonex/internal/shared/cmdutils"
)

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// CLIChannel wires the terminal into the twitch entity: chat is printed as it
// arrives and typed lines are sent to the channel. A line starting with '/'
// is sent as a raw protocol line instead.
type CLIChannel struct {
	b       *bus.Bus
	channel string
	in      io.Reader

	mu  sync.Mutex
	out io.Writer
}

// NewCLIChannel creates a console bound to channel (e.g. "#zl1ght_").
func NewCLIChannel(b *bus.Bus, channel string, in io.Reader, out io.Writer) *CLIChannel {
	return &CLIChannel{b: b, channel: channel, in: in, out: out}
}

func (c *CLIChannel) Name() string { return "cli" }

// Start blocks until the twitch entity exists, then runs the REPL until an
// exit command, end of input, or ctx is done. Exit commands and EOF return nil.
func (c *CLIChannel) Start(ctx context.Context) error {
	reader, err := c.b.Subscribe(ctx, bus.EntityTwitch)
	if err != nil {
		return err
	}
	defer reader.Close()

	// The writer only sends feedback; its own cursor would just pile up.
	writer := reader.Clone()
	writer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.printLoop(ctx, reader)

	c.printf("%s Console ready on %s. Type 'exit' or press Ctrl+C to quit.\n\n", cmdutils.Logo, c.channel)

	scanner := bufio.NewScanner(c.in)
	for {
		scanDone := make(chan bool, 1)
		go func() {
			scanDone <- scanner.Scan()
		}()

		select {
		case ok := <-scanDone:
			if !ok {
				c.printf("\nGoodbye!\n")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if cliExitCommands[strings.ToLower(line)] {
			c.printf("Goodbye!\n")
			return nil
		}

		if err := writer.SendFeedback(ctx, c.outbound(line)); err != nil {
			return fmt.Errorf("cli: send: %w", err)
		}
	}
}

func (c *CLIChannel) outbound(line string) bus.Envelope {
	if raw, ok := strings.CutPrefix(line, "/"); ok {
		return bus.Text(raw)
	}
	return bus.IRC(irc.PrivMsg(c.channel, line))
}

// printLoop prints every chat message until the entity closes or ctx is done.
func (c *CLIChannel) printLoop(ctx context.Context, sub *bus.Subscription) {
	for {
		msg, err := bus.ReceiveAs[irc.Message](ctx, sub)
		var lagged *bus.LaggedError
		switch {
		case errors.As(err, &lagged):
			slog.Warn("cli: fell behind chat", "missed", lagged.Missed)
			continue
		case errors.Is(err, bus.ErrTypeMismatch):
			continue
		case err != nil:
			return
		}
		if msg.IsPrivMsg() {
			c.mu.Lock()
			cmdutils.PrintChat(c.out, msg.Context.Destination, msg.Context.Sender, msg.Payload)
			c.mu.Unlock()
		}
	}
}

func (c *CLIChannel) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
