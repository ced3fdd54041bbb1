package bus

import (
	"context"
	"sync"
)

// broadcast is a bounded single-producer fan-out ring.
//
// Every message gets a sequence number. A receiver is just a cursor into that
// sequence, so sending never blocks: once the ring wraps, the oldest slot is
// overwritten and any receiver still pointing at it is lagged.
type broadcast struct {
	mu        sync.Mutex
	buf       []Envelope
	tail      uint64 // sequence number of the next message
	receivers int
	closed    bool
	wake      chan struct{} // closed on the next send or close; nil when nobody waits
}

func newBroadcast(capacity int) *broadcast {
	return &broadcast{buf: make([]Envelope, capacity)}
}

func (b *broadcast) send(env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.buf[b.tail%uint64(len(b.buf))] = env
	b.tail++
	wake := b.wake
	b.wake = nil
	b.mu.Unlock()

	if wake != nil {
		close(wake)
	}
	return nil
}

func (b *broadcast) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	wake := b.wake
	b.wake = nil
	b.mu.Unlock()

	if wake != nil {
		close(wake)
	}
}

func (b *broadcast) receiverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivers
}

// subscribe returns a receiver that observes messages sent from now on.
func (b *broadcast) subscribe() *receiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers++
	return &receiver{b: b, next: b.tail}
}

// oldestLocked is the sequence number of the oldest message still in the ring.
func (b *broadcast) oldestLocked() uint64 {
	if n := uint64(len(b.buf)); b.tail > n {
		return b.tail - n
	}
	return 0
}

// waitLocked returns a channel closed by the next send or close.
func (b *broadcast) waitLocked() <-chan struct{} {
	if b.wake == nil {
		b.wake = make(chan struct{})
	}
	return b.wake
}

type receiver struct {
	b        *broadcast
	next     uint64 // guarded by b.mu
	detached bool   // guarded by b.mu
}

// clone returns an independent cursor positioned where r is now.
func (r *receiver) clone() *receiver {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	if !r.detached {
		r.b.receivers++
	}
	return &receiver{b: r.b, next: r.next, detached: r.detached}
}

func (r *receiver) detach() {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	if !r.detached {
		r.detached = true
		r.b.receivers--
	}
}

// recv blocks until the next message is available. A message is only taken
// under the lock after waking, so a cancelled recv never consumes one.
func (r *receiver) recv(ctx context.Context) (Envelope, error) {
	b := r.b
	for {
		b.mu.Lock()
		if r.detached {
			b.mu.Unlock()
			return Envelope{}, ErrClosed
		}
		if oldest := b.oldestLocked(); r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			b.mu.Unlock()
			return Envelope{}, &LaggedError{Missed: missed}
		}
		if r.next < b.tail {
			env := b.buf[r.next%uint64(len(b.buf))]
			r.next++
			b.mu.Unlock()
			return env, nil
		}
		if b.closed {
			b.mu.Unlock()
			return Envelope{}, ErrClosed
		}
		wake := b.waitLocked()
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}
