package bus

import (
	"context"
	"sync"
)

// feedback is the many-to-one channel from subscribers back to the entity.
// Senders block while it is full.
type feedback struct {
	ch   chan Envelope
	done chan struct{}
	once sync.Once
}

func newFeedback(capacity int) *feedback {
	return &feedback{
		ch:   make(chan Envelope, capacity),
		done: make(chan struct{}),
	}
}

func (f *feedback) send(ctx context.Context, env Envelope) error {
	select {
	case <-f.done:
		return ErrClosed
	default:
	}

	select {
	case f.ch <- env:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recv drains whatever is still queued after close before reporting ErrClosed.
func (f *feedback) recv(ctx context.Context) (Envelope, error) {
	select {
	case env := <-f.ch:
		return env, nil
	case <-f.done:
		select {
		case env := <-f.ch:
			return env, nil
		default:
			return Envelope{}, ErrClosed
		}
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (f *feedback) pending() int { return len(f.ch) }

func (f *feedback) close() {
	f.once.Do(func() { close(f.done) })
}
