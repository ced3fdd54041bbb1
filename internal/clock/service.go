// Package clock publishes the current time on the "clock" entity at a fixed
// interval, giving other tasks a periodic signal to subscribe to.
package clock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/botonex/botonex/internal/bus"
)

// Service owns the clock entity.
type Service struct {
	b        *bus.Bus
	interval time.Duration
	now      func() time.Time
}

// NewService creates a clock. interval defaults to one minute if zero.
// robfig rounds sub-second intervals up to one second.
func NewService(b *bus.Bus, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{b: b, interval: interval, now: time.Now}
}

// Schedule returns the cron schedule the clock runs on.
func (s *Service) Schedule() string {
	return fmt.Sprintf("@every %s", s.interval)
}

// Start registers the clock entity and publishes on every tick until ctx is
// cancelled. The entity is closed on return.
func (s *Service) Start(ctx context.Context) error {
	entity := s.b.Register(bus.EntityClock)
	defer entity.Close()

	c := robfigcron.New()
	if _, err := c.AddFunc(s.Schedule(), func() { s.tick(entity) }); err != nil {
		return fmt.Errorf("clock: schedule %q: %w", s.Schedule(), err)
	}

	c.Start()
	slog.Info("clock: started", "schedule", s.Schedule())

	<-ctx.Done()

	<-c.Stop().Done()
	slog.Info("clock: stopped")
	return ctx.Err()
}

func (s *Service) tick(entity *bus.Entity) {
	stamp := s.now().Format(time.RFC3339)
	if err := entity.Publish(bus.Text(stamp)); err != nil {
		slog.Debug("clock: publish failed", "err", err)
		return
	}
	slog.Debug("clock: tick", "at", stamp, "subscribers", entity.Subscribers())
}
