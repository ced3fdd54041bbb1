package bus

// Well-known entity names.
const (
	EntityTwitch = "twitch" // chat transport: publishes irc.Message, drains irc.Message / text feedback
	EntityClock  = "clock"  // periodic signal: publishes RFC3339 timestamps as text
)
