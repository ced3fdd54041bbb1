// Package bus is the in-process message bus that lets the bot's tasks find
// each other by name.
//
// A producer registers an Entity under a well-known name and publishes to it.
// Consumers Subscribe by name, blocking until the producer shows up, and get
// a Subscription that receives every broadcast and can send feedback back to
// the producer.
//
//	b := bus.New(0)
//	twitch := b.Register(bus.EntityTwitch)
//	sub, _ := b.Subscribe(ctx, bus.EntityTwitch)
//	_ = twitch.Publish(bus.Text("ping"))
//	msg, _ := bus.ReceiveAs[string](ctx, sub)
//
// One Bus is created at startup and handed to every task that needs it.
package bus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// DefaultCapacity bounds both halves of every mailbox.
const DefaultCapacity = 1024

// Bus is the registry of named entities.
type Bus struct {
	capacity int

	mu       sync.RWMutex
	entities map[string]*Entity
	changed  chan struct{} // closed and replaced on every registry change
}

// New creates a Bus whose mailboxes hold capacity messages per direction.
// capacity <= 0 means DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		entities: make(map[string]*Entity),
		changed:  make(chan struct{}),
	}
}

// Capacity returns the per-direction mailbox capacity.
func (b *Bus) Capacity() int { return b.capacity }

// Register creates a fresh entity under name and wakes every waiter.
//
// A previous entity with the same name is replaced, not closed: its existing
// subscriptions keep working against the old mailbox, which is no longer
// reachable through the registry.
func (b *Bus) Register(name string) *Entity {
	e := newEntity(name, b.capacity)

	b.mu.Lock()
	_, replaced := b.entities[name]
	b.entities[name] = e
	wake := b.rotateLocked()
	b.mu.Unlock()

	close(wake)
	slog.Debug("bus: entity registered", "name", name, "replaced", replaced)
	return e
}

// Lookup returns the entity currently registered under name, or ErrNotFound.
func (b *Bus) Lookup(name string) (*Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e, ok := b.entities[name]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

// AwaitLookup blocks until name is registered and returns its entity.
// It only fails when ctx is done.
func (b *Bus) AwaitLookup(ctx context.Context, name string) (*Entity, error) {
	for {
		// The wake channel is captured under the same read lock as the check,
		// so a Register between the check and the wait still wakes us.
		b.mu.RLock()
		e, ok := b.entities[name]
		wake := b.changed
		b.mu.RUnlock()
		if ok {
			return e, nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Subscribe waits for name to be registered and subscribes to it.
// It blocks for as long as ctx allows; callers own the timeout.
func (b *Bus) Subscribe(ctx context.Context, name string) (*Subscription, error) {
	e, err := b.AwaitLookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.subscribe(), nil
}

// Remove deletes name from the registry and reports whether it was present.
// The entity itself stays usable by anyone still holding it or one of its
// subscriptions.
func (b *Bus) Remove(name string) bool {
	b.mu.Lock()
	_, ok := b.entities[name]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.entities, name)
	wake := b.rotateLocked()
	b.mu.Unlock()

	close(wake)
	slog.Debug("bus: entity removed", "name", name)
	return true
}

// Unregister removes e from the registry if it is still the entity
// registered under its name. A replacement registered since is left alone.
func (b *Bus) Unregister(e *Entity) bool {
	b.mu.Lock()
	if cur, ok := b.entities[e.id]; !ok || cur != e {
		b.mu.Unlock()
		return false
	}
	delete(b.entities, e.id)
	wake := b.rotateLocked()
	b.mu.Unlock()

	close(wake)
	slog.Debug("bus: entity unregistered", "name", e.id)
	return true
}

// Entities returns a snapshot of every registered entity, ordered by name.
func (b *Bus) Entities() []*Entity {
	b.mu.RLock()
	out := make([]*Entity, 0, len(b.entities))
	for _, e := range b.entities {
		out = append(out, e)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Names returns the registered names in sorted order.
func (b *Bus) Names() []string {
	entities := b.Entities()
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.id
	}
	return names
}

// rotateLocked swaps in a fresh wake channel and returns the old one, which
// the caller closes after releasing the lock.
func (b *Bus) rotateLocked() chan struct{} {
	wake := b.changed
	b.changed = make(chan struct{})
	return wake
}
