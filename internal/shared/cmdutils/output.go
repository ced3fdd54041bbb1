package cmdutils

import (
	"fmt"
	"io"
)

const Logo = "🤖"

// PrintChat writes one chat line as "[#channel] sender: text".
func PrintChat(w io.Writer, channel, sender, text string) {
	if text == "" {
		return
	}

	fmt.Fprintf(w, "[%s] %s: %s\n", channel, sender, text)
}

// Mark renders a status checkmark.
func Mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
