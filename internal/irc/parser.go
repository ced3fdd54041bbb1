package irc

import "strings"

// Parse splits one raw line into tags, context and payload.
//
// Three shapes are recognised:
//
//	@tags :sender!user@host COMMAND dest :payload
//	:sender COMMAND dest :payload
//	COMMAND :payload
//
// Parse never fails; unrecognised input ends up in Context.Command.
func Parse(line string) Message {
	var token, context, payload string

	switch {
	case strings.HasPrefix(line, "@"):
		parts := strings.SplitN(line, " :", 3)
		token = strings.TrimSpace(strings.TrimLeft(parts[0], "@"))
		context = strings.TrimSpace(part(parts, 1))
		payload = strings.TrimSpace(part(parts, 2))
	case strings.HasPrefix(line, ":"):
		parts := strings.SplitN(line, ":", 3)
		context = strings.TrimSpace(part(parts, 1))
		payload = strings.TrimSpace(part(parts, 2))
	default:
		parts := strings.SplitN(line, ":", 2)
		context = strings.TrimSpace(part(parts, 0))
		payload = strings.TrimSpace(part(parts, 1))
	}

	return Message{
		Tags:    parseTags(token),
		Context: parseContext(context),
		Payload: payload,
	}
}

func part(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// parseContext handles e.g. "botonex.tmi.twitch.tv 366 botonex #chan".
func parseContext(context string) Context {
	words := strings.Fields(context)
	switch len(words) {
	case 0:
		return Context{}
	case 1:
		return Context{Command: words[0]}
	}

	sender, _, _ := strings.Cut(words[0], "!")
	return Context{
		Sender:      sender,
		Command:     strings.Join(words[1:len(words)-1], " "),
		Destination: words[len(words)-1],
	}
}

func parseTags(token string) map[string]string {
	tags := make(map[string]string)
	if token == "" {
		return tags
	}
	for _, item := range strings.Split(token, ";") {
		key, val, _ := strings.Cut(item, "=")
		tags[key] = val
	}
	return tags
}
