package bus

import "context"

// Entity is a named publish endpoint. It owns one mailbox: everything it
// publishes reaches every live Subscription, and everything subscribers send
// back queues up for ReceiveFeedback.
type Entity struct {
	id string
	mb *mailbox
}

func newEntity(id string, capacity int) *Entity {
	return &Entity{id: id, mb: newMailbox(capacity)}
}

// ID returns the name the entity was registered under.
func (e *Entity) ID() string { return e.id }

// Publish sends env to every current subscriber. Publishing with no
// subscribers is a no-op. Publish never blocks; subscribers that fall more
// than the mailbox capacity behind lose the oldest messages.
func (e *Entity) Publish(env Envelope) error {
	return e.mb.out.send(env)
}

// ReceiveFeedback blocks until a subscriber sends something back.
// It returns ErrClosed after Close once the queue is drained.
func (e *Entity) ReceiveFeedback(ctx context.Context) (Envelope, error) {
	return e.mb.in.recv(ctx)
}

// Subscribers returns the number of live broadcast receivers.
func (e *Entity) Subscribers() int { return e.mb.out.receiverCount() }

// PendingFeedback returns the number of feedback messages not yet received.
func (e *Entity) PendingFeedback() int { return e.mb.in.pending() }

// Close tears the mailbox down. Subscribers drain what is buffered and then
// get ErrClosed; SendFeedback and Publish fail with ErrClosed.
func (e *Entity) Close() { e.mb.close() }

func (e *Entity) subscribe() *Subscription {
	return &Subscription{
		entity: e.id,
		rx:     e.mb.out.subscribe(),
		tx:     e.mb.in,
	}
}

// FeedbackAs receives the next feedback message and unwraps it as T.
func FeedbackAs[T Payload](ctx context.Context, e *Entity) (T, error) {
	env, err := e.ReceiveFeedback(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Unwrap[T](env)
}
