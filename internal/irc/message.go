// Package irc parses and renders the line-oriented Twitch chat protocol.
package irc

import (
	"sort"
	"strings"
)

const (
	CommandPrivMsg = "PRIVMSG"
	CommandPing    = "PING"
	CommandPong    = "PONG"

	// DefaultServer is the origin Twitch uses in PING/PONG payloads.
	DefaultServer = "tmi.twitch.tv"
)

// Context is the routing part of a message: who sent it, what it is, and
// where it goes.
type Context struct {
	Sender      string // nick, without the "!user@host" suffix
	Command     string // "PRIVMSG", "PING", "001", "CAP *", …
	Destination string // "#channel", nick, or the last context word
}

// Message is one parsed protocol line.
type Message struct {
	Tags    map[string]string // IRCv3 tags (badge-info, color, display-name, …)
	Context Context
	Payload string // trailing text after the final ':'
}

// PrivMsg builds a chat message addressed to dest.
func PrivMsg(dest, text string) Message {
	return Message{
		Context: Context{Command: CommandPrivMsg, Destination: dest},
		Payload: text,
	}
}

// Pong builds the reply to a server PING.
func Pong(server string) Message {
	if server == "" {
		server = DefaultServer
	}
	return Message{
		Context: Context{Command: CommandPong},
		Payload: server,
	}
}

func (m Message) IsPrivMsg() bool { return m.Context.Command == CommandPrivMsg }
func (m Message) IsPing() bool    { return m.Context.Command == CommandPing }

// Tag returns the value of tag key, or "" when absent.
func (m Message) Tag(key string) string { return m.Tags[key] }

// String renders m as an outbound wire line (without the trailing CRLF).
func (m Message) String() string {
	var sb strings.Builder

	if len(m.Tags) > 0 {
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('@')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(m.Tags[k])
		}
		sb.WriteByte(' ')
	}
	if m.Context.Sender != "" {
		sb.WriteByte(':')
		sb.WriteString(m.Context.Sender)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Context.Command)
	if m.Context.Destination != "" {
		sb.WriteByte(' ')
		sb.WriteString(m.Context.Destination)
	}
	if m.Payload != "" {
		sb.WriteString(" :")
		sb.WriteString(m.Payload)
	}
	return sb.String()
}

// Equal reports whether two messages carry the same tags, context and payload.
func (m Message) Equal(o Message) bool {
	if m.Context != o.Context || m.Payload != o.Payload || len(m.Tags) != len(o.Tags) {
		return false
	}
	for k, v := range m.Tags {
		if ov, ok := o.Tags[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
