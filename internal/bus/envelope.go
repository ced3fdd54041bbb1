package bus

import (
	"fmt"
	"maps"

	"github.com/botonex/botonex/internal/irc"
)

// Kind tags the payload carried by an Envelope.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindIRC
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindIRC:
		return "irc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Payload is the closed set of types that can cross the bus.
// Adding a payload kind means adding it here, to Kind, and to Wrap/Unwrap.
type Payload interface {
	string | irc.Message
}

// Envelope carries one payload through a mailbox without losing its type.
// The zero Envelope has no kind and unwraps to nothing.
type Envelope struct {
	kind Kind
	text string
	msg  irc.Message
}

// Wrap puts v into an Envelope. It always succeeds.
func Wrap[T Payload](v T) Envelope {
	switch p := any(v).(type) {
	case string:
		return Text(p)
	case irc.Message:
		return IRC(p)
	}
	panic("unreachable")
}

// Text wraps free-form text.
func Text(s string) Envelope { return Envelope{kind: KindText, text: s} }

// IRC wraps a parsed protocol message. The tag map is copied, so the caller
// may keep mutating m.
func IRC(m irc.Message) Envelope { return Envelope{kind: KindIRC, msg: copyMessage(m)} }

// copyMessage detaches the tag map; every reader of an envelope gets its own.
func copyMessage(m irc.Message) irc.Message {
	m.Tags = maps.Clone(m.Tags)
	return m
}

func (e Envelope) Kind() Kind { return e.kind }

// Unwrap recovers the payload as T. It fails with a *TypeMismatchError when
// the envelope holds a different kind.
func Unwrap[T Payload](e Envelope) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		if e.kind != KindText {
			return zero, &TypeMismatchError{Want: KindText, Got: e.kind}
		}
		return any(e.text).(T), nil
	case irc.Message:
		if e.kind != KindIRC {
			return zero, &TypeMismatchError{Want: KindIRC, Got: e.kind}
		}
		return any(copyMessage(e.msg)).(T), nil
	}
	panic("unreachable")
}

// AsText returns the text payload and whether the envelope holds one.
func (e Envelope) AsText() (string, bool) { return e.text, e.kind == KindText }

// AsIRC returns the protocol message and whether the envelope holds one.
func (e Envelope) AsIRC() (irc.Message, bool) { return copyMessage(e.msg), e.kind == KindIRC }

func (e Envelope) String() string {
	switch e.kind {
	case KindText:
		return e.text
	case KindIRC:
		return e.msg.String()
	default:
		return ""
	}
}
