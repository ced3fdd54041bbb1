// Package channels provides the chat transports that feed the bus: the
// Twitch websocket connection and the interactive console.
package channels

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Channel is implemented by every transport the Manager runs.
type Channel interface {
	// Name returns the unique channel identifier (e.g. "twitch").
	Name() string
	// Start runs the transport; it blocks until ctx is cancelled or the
	// transport gives up.
	Start(ctx context.Context) error
}

// splitMessage splits content into chunks of at most maxLen bytes,
// preferring space breaks. A hard cut never splits a UTF-8 character.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, " ")
		if pos <= 0 {
			pos = maxLen
			for pos > 0 && !utf8.RuneStart(content[pos]) {
				pos--
			}
			if pos == 0 {
				_, pos = utf8.DecodeRuneInString(content)
			}
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t")
	}
	return chunks
}
