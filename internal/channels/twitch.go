package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/irc"
	"github.com/botonex/botonex/internal/shared/stringutils"
)

const (
	twitchMaxMsgLen   = 500
	twitchWriteWait   = 10 * time.Second
	twitchReconnectIn = 5 * time.Second
)

// TwitchChannel connects to Twitch chat over a websocket. It registers the
// "twitch" entity, publishes every inbound line as an irc.Message, and writes
// feedback from subscribers back to the server.
type TwitchChannel struct {
	server config.ServerConfig
	user   config.UserConfig
	b      *bus.Bus
	dialer *websocket.Dialer

	reconnectDelay time.Duration

	writeMu sync.Mutex
}

func NewTwitchChannel(server config.ServerConfig, user config.UserConfig, b *bus.Bus) *TwitchChannel {
	return &TwitchChannel{
		server:         server,
		user:           user,
		b:              b,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: twitchReconnectIn,
	}
}

func (t *TwitchChannel) Name() string { return bus.EntityTwitch }

// Start registers the entity once and keeps reconnecting until ctx is done.
// Subscribers stay attached across reconnects.
func (t *TwitchChannel) Start(ctx context.Context) error {
	if t.user.Token == "" {
		return fmt.Errorf("twitch: token not configured")
	}

	entity := t.b.Register(bus.EntityTwitch)
	defer func() {
		entity.Close()
		t.b.Unregister(entity)
	}()

	for {
		if err := t.connect(ctx, entity); err != nil && ctx.Err() == nil {
			slog.Warn("twitch: connection lost", "err", err, "retry_in", t.reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.reconnectDelay):
		}
	}
}

func (t *TwitchChannel) connect(ctx context.Context, entity *bus.Entity) error {
	conn, _, err := t.dialer.DialContext(ctx, t.server.Address, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	slog.Info("twitch: connected", "addr", t.server.Address)

	if err := t.login(conn); err != nil {
		return fmt.Errorf("twitch: login: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Closing the socket is the only way to unblock ReadMessage.
		<-gctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error { return t.readLoop(conn, entity) })
	g.Go(func() error { return t.pingLoop(gctx, conn) })
	g.Go(func() error { return t.feedbackLoop(gctx, conn, entity) })
	return g.Wait()
}

func (t *TwitchChannel) login(conn *websocket.Conn) error {
	token := t.user.Token
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	lines := []string{
		"PASS " + token,
		"NICK " + t.user.Nick,
		"JOIN " + t.user.ChannelName(),
		"CAP REQ :twitch.tv/tags",
	}
	for _, line := range lines {
		if err := t.write(conn, line); err != nil {
			return err
		}
	}
	return nil
}

// readLoop publishes one envelope per CRLF-separated line of every frame.
func (t *TwitchChannel) readLoop(conn *websocket.Conn, entity *bus.Entity) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			if line == "" {
				continue
			}
			slog.Debug("twitch: rx", "line", stringutils.Truncate(line, 120))
			if err := entity.Publish(bus.IRC(irc.Parse(line))); err != nil {
				return err
			}
		}
	}
}

func (t *TwitchChannel) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	tick := time.NewTicker(t.server.PingEvery())
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if err := t.write(conn, "PING :"+irc.DefaultServer); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// feedbackLoop writes everything subscribers send back. IRC messages are
// rendered, text is written verbatim.
func (t *TwitchChannel) feedbackLoop(ctx context.Context, conn *websocket.Conn, entity *bus.Entity) error {
	for {
		env, err := entity.ReceiveFeedback(ctx)
		if err != nil {
			return err
		}

		var lines []string
		switch env.Kind() {
		case bus.KindIRC:
			msg, _ := env.AsIRC()
			lines = renderOutbound(msg)
		case bus.KindText:
			text, _ := env.AsText()
			lines = []string{text}
		default:
			slog.Warn("twitch: dropping feedback of unknown kind", "kind", env.Kind())
			continue
		}

		for _, line := range lines {
			if err := t.write(conn, line); err != nil {
				return err
			}
		}
	}
}

// renderOutbound splits chat messages over Twitch's length limit.
func renderOutbound(msg irc.Message) []string {
	if !msg.IsPrivMsg() || len(msg.Payload) <= twitchMaxMsgLen {
		return []string{msg.String()}
	}
	chunks := splitMessage(msg.Payload, twitchMaxMsgLen)
	lines := make([]string, len(chunks))
	for i, chunk := range chunks {
		part := msg
		part.Payload = chunk
		lines[i] = part.String()
	}
	return lines
}

func (t *TwitchChannel) write(conn *websocket.Conn, line string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if strings.HasPrefix(line, "PASS ") {
		slog.Debug("twitch: tx", "line", "PASS oauth:***")
	} else {
		slog.Debug("twitch: tx", "line", stringutils.Truncate(line, 120))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(twitchWriteWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}
