// Package commands answers "!command" chat messages and server PINGs.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/irc"
)

// Handler builds the reply to msg. args is the payload after the activator.
type Handler func(msg irc.Message, args string) irc.Message

// Command is one entry of the command table.
type Command struct {
	Activator string // "!hello"
	Handler   Handler
}

// Table maps activators to commands.
type Table struct {
	commands map[string]Command
}

// NewTable returns a table holding the built-in commands plus static text
// replies. Built-ins win when a static activator collides with one.
func NewTable(static map[string]string) *Table {
	t := &Table{commands: make(map[string]Command)}
	for activator, reply := range static {
		if !strings.HasPrefix(activator, "!") {
			activator = "!" + activator
		}
		t.Add(Command{Activator: activator, Handler: staticReply(reply)})
	}
	t.Add(Command{Activator: "!hello", Handler: hello})
	t.Add(Command{Activator: "!echo", Handler: echo})
	return t
}

// Add registers c, replacing any command with the same activator.
func (t *Table) Add(c Command) { t.commands[c.Activator] = c }

// Get returns the command for activator.
func (t *Table) Get(activator string) (Command, bool) {
	c, ok := t.commands[activator]
	return c, ok
}

// Activators returns the registered activators, sorted.
func (t *Table) Activators() []string {
	out := make([]string, 0, len(t.commands))
	for a := range t.commands {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Reply returns the response to msg, if any.
func (t *Table) Reply(msg irc.Message) (irc.Message, bool) {
	switch {
	case msg.IsPing():
		return irc.Pong(msg.Payload), true
	case msg.IsPrivMsg() && strings.HasPrefix(msg.Payload, "!"):
		activator, args, _ := strings.Cut(msg.Payload, " ")
		c, ok := t.Get(activator)
		if !ok {
			return irc.Message{}, false
		}
		return c.Handler(msg, strings.TrimSpace(args)), true
	}
	return irc.Message{}, false
}

func hello(msg irc.Message, _ string) irc.Message {
	return irc.PrivMsg(msg.Context.Destination, fmt.Sprintf("Hello to you @%s!", msg.Context.Sender))
}

func echo(msg irc.Message, args string) irc.Message {
	return irc.PrivMsg(msg.Context.Destination, fmt.Sprintf("%s @%s!", args, msg.Context.Sender))
}

func staticReply(text string) Handler {
	return func(msg irc.Message, _ string) irc.Message {
		return irc.PrivMsg(msg.Context.Destination, text)
	}
}

// Service subscribes to the twitch entity and sends replies back as feedback.
type Service struct {
	b     *bus.Bus
	table *Table
}

func NewService(b *bus.Bus, table *Table) *Service {
	return &Service{b: b, table: table}
}

// Start waits for the twitch entity and processes its messages until ctx is
// done or the entity closes.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.b.Subscribe(ctx, bus.EntityTwitch)
	if err != nil {
		return err
	}
	defer sub.Close()

	slog.Info("commands: started", "commands", s.table.Activators())

	for {
		msg, err := bus.ReceiveAs[irc.Message](ctx, sub)
		var lagged *bus.LaggedError
		switch {
		case errors.As(err, &lagged):
			slog.Warn("commands: lagged", "missed", lagged.Missed)
			continue
		case errors.Is(err, bus.ErrTypeMismatch):
			slog.Debug("commands: ignoring non-IRC message", "err", err)
			continue
		case errors.Is(err, bus.ErrClosed):
			slog.Info("commands: twitch closed")
			return nil
		case err != nil:
			return err
		}

		reply, ok := s.table.Reply(msg)
		if !ok {
			continue
		}
		slog.Debug("commands: reply", "line", reply.String())
		if err := sub.SendFeedback(ctx, bus.IRC(reply)); err != nil {
			if errors.Is(err, bus.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
