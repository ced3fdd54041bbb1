package bus

import "context"

// Subscription is a subscriber's handle on one entity: a private receive
// cursor into its broadcasts plus a shared sender for feedback.
//
// A Subscription is owned by one goroutine. Use Clone to hand a reader and a
// writer to different goroutines.
type Subscription struct {
	entity string
	rx     *receiver
	tx     *feedback
}

// Entity returns the name of the entity this subscription is bound to.
func (s *Subscription) Entity() string { return s.entity }

// Receive blocks until the next broadcast arrives.
//
// It fails with a *LaggedError when the subscription fell behind and lost
// messages; the cursor then points at the oldest retained message, so the
// next Receive continues from there. After the entity is closed the buffered
// messages are still delivered, then ErrClosed.
func (s *Subscription) Receive(ctx context.Context) (Envelope, error) {
	return s.rx.recv(ctx)
}

// SendFeedback queues env for the entity, blocking while the queue is full.
// It fails with ErrClosed once the entity is closed.
func (s *Subscription) SendFeedback(ctx context.Context, env Envelope) error {
	return s.tx.send(ctx, env)
}

// Clone returns a subscription with its own cursor, starting at the same
// position as s, sharing the feedback sender.
func (s *Subscription) Clone() *Subscription {
	return &Subscription{
		entity: s.entity,
		rx:     s.rx.clone(),
		tx:     s.tx,
	}
}

// Close detaches the receive cursor. Clones are not affected and feedback
// can still be sent.
func (s *Subscription) Close() { s.rx.detach() }

// ReceiveAs receives the next broadcast and unwraps it as T.
func ReceiveAs[T Payload](ctx context.Context, s *Subscription) (T, error) {
	env, err := s.Receive(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Unwrap[T](env)
}
