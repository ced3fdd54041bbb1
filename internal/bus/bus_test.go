package bus

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/botonex/botonex/internal/irc"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ─── Registry ──────────────────────────────────────────────────────────────

func TestLookup_NotFound(t *testing.T) {
	b := New(0)
	if _, err := b.Lookup("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegister_Lookup(t *testing.T) {
	b := New(0)
	e := b.Register("A")
	if e.ID() != "A" {
		t.Errorf("expected id A, got %q", e.ID())
	}
	got, err := b.Lookup("A")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != e {
		t.Error("lookup returned a different entity")
	}
	if b.Capacity() != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, b.Capacity())
	}
}

func TestNames_Sorted(t *testing.T) {
	b := New(0)
	b.Register("twitch")
	b.Register("clock")
	b.Register("commands")

	names := b.Names()
	want := []string{"clock", "commands", "twitch"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestRemove(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")
	sub, err := b.Subscribe(ctx, "A")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if !b.Remove("A") {
		t.Fatal("expected Remove to report the entry existed")
	}
	if b.Remove("A") {
		t.Error("second Remove should report false")
	}
	if _, err := b.Lookup("A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}

	// The orphaned mailbox keeps working for existing holders.
	if err := e.Publish(Text("still here")); err != nil {
		t.Fatalf("publish after remove: %v", err)
	}
	got, err := ReceiveAs[string](ctx, sub)
	if err != nil || got != "still here" {
		t.Errorf("expected %q, got %q (%v)", "still here", got, err)
	}
}

func TestUnregister_OnlyCurrentEntity(t *testing.T) {
	b := New(0)
	old := b.Register("A")
	old.Close()
	fresh := b.Register("A")

	if b.Unregister(old) {
		t.Error("unregistering a replaced entity should report false")
	}
	if got, err := b.Lookup("A"); err != nil || got != fresh {
		t.Fatalf("replacement should survive, got %v (%v)", got, err)
	}

	fresh.Close()
	if !b.Unregister(fresh) {
		t.Fatal("expected Unregister to remove the current entity")
	}
	if _, err := b.Lookup("A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after unregister, got %v", err)
	}
	if b.Unregister(fresh) {
		t.Error("second Unregister should report false")
	}
}

// ─── Fan-out and feedback ─────────────────────────────────────────────────

func TestScenario_PingPong(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	a := b.Register("A")

	subs := make([]*Subscription, 2)
	var wg sync.WaitGroup
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := b.Subscribe(ctx, "A")
			if err != nil {
				t.Errorf("subscribe %d: %v", i, err)
				return
			}
			subs[i] = s
		}(i)
	}
	wg.Wait()

	if err := a.Publish(Wrap("ping")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for i, s := range subs {
		got, err := ReceiveAs[string](ctx, s)
		if err != nil {
			t.Fatalf("subscriber %d receive: %v", i, err)
		}
		if got != "ping" {
			t.Errorf("subscriber %d: expected ping, got %q", i, got)
		}
	}

	if err := subs[0].SendFeedback(ctx, Wrap("pong")); err != nil {
		t.Fatalf("send feedback: %v", err)
	}
	got, err := FeedbackAs[string](ctx, a)
	if err != nil {
		t.Fatalf("receive feedback: %v", err)
	}
	if got != "pong" {
		t.Errorf("expected pong, got %q", got)
	}
}

func TestFanOut_ManySubscribers(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")

	const n = 16
	subs := make([]*Subscription, n)
	for i := range subs {
		s, err := b.Subscribe(ctx, "A")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		subs[i] = s
	}
	if e.Subscribers() != n {
		t.Errorf("expected %d subscribers, got %d", n, e.Subscribers())
	}

	for i := 0; i < 3; i++ {
		if err := e.Publish(Text(fmt.Sprint(i))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for _, s := range subs {
		for i := 0; i < 3; i++ {
			got, err := ReceiveAs[string](ctx, s)
			if err != nil {
				t.Fatalf("receive: %v", err)
			}
			if got != fmt.Sprint(i) {
				t.Fatalf("expected %d in order, got %q", i, got)
			}
		}
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	e := New(0).Register("lonely")
	for i := 0; i < 2*DefaultCapacity; i++ {
		if err := e.Publish(Text("x")); err != nil {
			t.Fatalf("publish without subscribers should succeed, got %v", err)
		}
	}
}

func TestSubscribe_OnlySeesLaterMessages(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")
	_ = e.Publish(Text("before"))

	sub, _ := b.Subscribe(ctx, "A")
	_ = e.Publish(Text("after"))

	got, err := ReceiveAs[string](ctx, sub)
	if err != nil || got != "after" {
		t.Errorf("expected %q, got %q (%v)", "after", got, err)
	}
}

func TestReceive_TypeMismatch(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("clock")
	sub, _ := b.Subscribe(ctx, "clock")

	_ = e.Publish(Text("12:00"))
	if _, err := ReceiveAs[irc.Message](ctx, sub); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

// ─── Backpressure and lag ─────────────────────────────────────────────────

func TestLagged(t *testing.T) {
	ctx := testContext(t)
	const capacity = 4
	b := New(capacity)
	e := b.Register("A")
	sub, _ := b.Subscribe(ctx, "A")

	for i := 0; i < capacity+2; i++ {
		_ = e.Publish(Text(fmt.Sprint(i)))
	}

	_, err := sub.Receive(ctx)
	var lagged *LaggedError
	if !errors.As(err, &lagged) {
		t.Fatalf("expected LaggedError, got %v", err)
	}
	if !errors.Is(err, ErrLagged) {
		t.Error("LaggedError should match ErrLagged")
	}
	if lagged.Missed != 2 {
		t.Errorf("expected 2 missed, got %d", lagged.Missed)
	}

	// The cursor resumes at the oldest retained message.
	for i := 2; i < capacity+2; i++ {
		got, err := ReceiveAs[string](ctx, sub)
		if err != nil {
			t.Fatalf("receive after lag: %v", err)
		}
		if got != fmt.Sprint(i) {
			t.Errorf("expected %d, got %q", i, got)
		}
	}
}

func TestLagged_ExactlyCapacityIsNotLag(t *testing.T) {
	ctx := testContext(t)
	const capacity = 4
	b := New(capacity)
	e := b.Register("A")
	sub, _ := b.Subscribe(ctx, "A")

	for i := 0; i < capacity; i++ {
		_ = e.Publish(Text(fmt.Sprint(i)))
	}
	got, err := ReceiveAs[string](ctx, sub)
	if err != nil || got != "0" {
		t.Errorf("expected first message, got %q (%v)", got, err)
	}
}

func TestFeedback_Backpressure(t *testing.T) {
	ctx := testContext(t)
	const capacity = 4
	b := New(capacity)
	e := b.Register("A")
	sub, _ := b.Subscribe(ctx, "A")

	for i := 0; i < capacity; i++ {
		if err := sub.SendFeedback(ctx, Text(fmt.Sprint(i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if e.PendingFeedback() != capacity {
		t.Errorf("expected %d pending, got %d", capacity, e.PendingFeedback())
	}

	sent := make(chan error, 1)
	go func() { sent <- sub.SendFeedback(ctx, Text("overflow")) }()

	select {
	case err := <-sent:
		t.Fatalf("send on a full feedback queue should block, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if got, err := FeedbackAs[string](ctx, e); err != nil || got != "0" {
		t.Fatalf("expected first feedback %q, got %q (%v)", "0", got, err)
	}

	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("blocked send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("send did not unblock after the entity drained one message")
	}
}

func TestFeedback_SendCancelled(t *testing.T) {
	b := New(1)
	b.Register("A")
	sub, _ := b.Subscribe(testContext(t), "A")
	_ = sub.SendFeedback(context.Background(), Text("fill"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sub.SendFeedback(ctx, Text("late")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// ─── Discovery ────────────────────────────────────────────────────────────

func TestSubscribe_BeforeRegister(t *testing.T) {
	ctx := testContext(t)
	b := New(0)

	const delay = 50 * time.Millisecond
	start := time.Now()
	go func() {
		time.Sleep(delay)
		b.Register("B")
	}()

	sub, err := b.Subscribe(ctx, "B")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("subscribe returned after %v, before registration at %v", elapsed, delay)
	}
	if sub.Entity() != "B" {
		t.Errorf("expected subscription bound to B, got %q", sub.Entity())
	}
}

func TestSubscribe_DiscoveryRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		b := New(8)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		// Unrelated registrations wake the waiter without satisfying it.
		go func(seed int64) {
			r := rand.New(rand.NewSource(seed))
			for j, n := 0, r.Intn(4); j < n; j++ {
				b.Register(fmt.Sprintf("noise-%d", j))
			}
			if r.Intn(2) == 0 {
				time.Sleep(time.Duration(r.Intn(200)) * time.Microsecond)
			}
			b.Register("B")
		}(int64(i))

		if _, err := b.Subscribe(ctx, "B"); err != nil {
			cancel()
			t.Fatalf("iteration %d: subscribe missed the registration: %v", i, err)
		}
		cancel()
	}
}

func TestAwaitLookup_Cancelled(t *testing.T) {
	b := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.AwaitLookup(ctx, "never"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// ─── Replacement ──────────────────────────────────────────────────────────

func TestRegister_ReplacesAndOrphans(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	old := b.Register("A")
	oldSub, _ := b.Subscribe(ctx, "A")

	fresh := b.Register("A")
	if fresh == old {
		t.Fatal("re-register should create a new entity")
	}
	if got, _ := b.Lookup("A"); got != fresh {
		t.Error("lookup should return the new entity")
	}

	_ = fresh.Publish(Text("new"))
	_ = old.Publish(Text("old"))

	got, err := ReceiveAs[string](ctx, oldSub)
	if err != nil {
		t.Fatalf("receive on orphaned subscription: %v", err)
	}
	if got != "old" {
		t.Errorf("expected message from old entity, got %q", got)
	}
}

func TestFanOut_TagsAreNotShared(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")
	first, _ := b.Subscribe(ctx, "A")
	second, _ := b.Subscribe(ctx, "A")

	msg := irc.Parse("@color=#FF0000;display-name=Viewer :viewer!v@v PRIVMSG #chan :hi")
	if err := e.Publish(IRC(msg)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// The publisher keeps its own copy.
	msg.Tags["color"] = "publisher-mutated"

	got1, err := ReceiveAs[irc.Message](ctx, first)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	got1.Tags["color"] = "first-mutated"

	got2, err := ReceiveAs[irc.Message](ctx, second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got2.Tag("color") != "#FF0000" {
		t.Errorf("second subscriber saw a foreign mutation: %q", got2.Tag("color"))
	}

	// Concurrent writers on their own copies must not race.
	_ = e.Publish(IRC(msg))
	var wg sync.WaitGroup
	for _, s := range []*Subscription{first, second} {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			m, err := ReceiveAs[irc.Message](ctx, s)
			if err != nil {
				t.Errorf("receive: %v", err)
				return
			}
			for i := 0; i < 100; i++ {
				m.Tags["n"] = fmt.Sprint(i)
				_ = m.Tag("color")
			}
		}(s)
	}
	wg.Wait()
}

// ─── Cancellation, clone, close ───────────────────────────────────────────

func TestReceive_CancelDoesNotConsume(t *testing.T) {
	b := New(0)
	e := b.Register("A")
	sub, _ := b.Subscribe(testContext(t), "A")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	_ = e.Publish(Text("kept"))
	got, err := ReceiveAs[string](testContext(t), sub)
	if err != nil || got != "kept" {
		t.Errorf("expected %q, got %q (%v)", "kept", got, err)
	}
}

func TestClone_IndependentCursor(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")
	reader, _ := b.Subscribe(ctx, "A")
	writer := reader.Clone()

	if e.Subscribers() != 2 {
		t.Errorf("expected 2 subscribers after clone, got %d", e.Subscribers())
	}

	_ = e.Publish(Text("one"))
	for _, s := range []*Subscription{reader, writer} {
		if got, err := ReceiveAs[string](ctx, s); err != nil || got != "one" {
			t.Errorf("expected %q, got %q (%v)", "one", got, err)
		}
	}

	if err := writer.SendFeedback(ctx, Text("from clone")); err != nil {
		t.Fatalf("feedback from clone: %v", err)
	}
	if got, _ := FeedbackAs[string](ctx, e); got != "from clone" {
		t.Errorf("expected feedback from clone, got %q", got)
	}

	writer.Close()
	if e.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber after close, got %d", e.Subscribers())
	}
	if _, err := writer.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on closed subscription, got %v", err)
	}
	_ = e.Publish(Text("two"))
	if got, err := ReceiveAs[string](ctx, reader); err != nil || got != "two" {
		t.Errorf("original should be unaffected by clone close, got %q (%v)", got, err)
	}
}

func TestEntityClose(t *testing.T) {
	ctx := testContext(t)
	b := New(0)
	e := b.Register("A")
	sub, _ := b.Subscribe(ctx, "A")

	_ = e.Publish(Text("last"))
	_ = sub.SendFeedback(ctx, Text("queued"))
	e.Close()

	if err := e.Publish(Text("too late")); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close: expected ErrClosed, got %v", err)
	}
	if got, err := ReceiveAs[string](ctx, sub); err != nil || got != "last" {
		t.Errorf("buffered broadcast should drain, got %q (%v)", got, err)
	}
	if _, err := sub.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after drain, got %v", err)
	}
	if err := sub.SendFeedback(ctx, Text("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("feedback after close: expected ErrClosed, got %v", err)
	}
	if got, err := FeedbackAs[string](ctx, e); err != nil || got != "queued" {
		t.Errorf("queued feedback should drain, got %q (%v)", got, err)
	}
	if _, err := e.ReceiveFeedback(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after feedback drain, got %v", err)
	}
}

func TestReceive_WakesOnClose(t *testing.T) {
	b := New(0)
	e := b.Register("A")
	sub, _ := b.Subscribe(testContext(t), "A")

	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive(testContext(t))
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	e.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked receive was not woken by close")
	}
}
