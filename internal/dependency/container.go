// Package dependency wires the bus and the bot's services using go.uber.org/dig.
package dependency

import (
	"io"

	"go.uber.org/dig"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/channels"
	"github.com/botonex/botonex/internal/clock"
	"github.com/botonex/botonex/internal/commands"
	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/overlay"
	"github.com/botonex/botonex/internal/tts"
)

// Console configures the interactive terminal.
type Console struct {
	Enabled bool
	In      io.Reader
	Out     io.Writer
}

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	bus      *bus.Bus
	channels *channels.Manager
	commands *commands.Service
	clock    *clock.Service
	tts      *tts.Service
	overlay  *overlay.Server
}

func (c *Container) Config() *config.Config      { return c.cfg }
func (c *Container) Bus() *bus.Bus               { return c.bus }
func (c *Container) Channels() *channels.Manager { return c.channels }
func (c *Container) Commands() *commands.Service { return c.commands }
func (c *Container) Clock() *clock.Service       { return c.clock }
func (c *Container) TTS() *tts.Service           { return c.tts }
func (c *Container) Overlay() *overlay.Server    { return c.overlay }

// New builds and wires all services from cfg. Every service shares the one
// Bus built here.
func New(cfg *config.Config, console Console) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() Console { return console },
		newBus,
		newChannelManager,
		newCommandTable,
		commands.NewService,
		newClock,
		newSynthesizer,
		newTTS,
		newOverlay,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		b *bus.Bus,
		mgr *channels.Manager,
		cmds *commands.Service,
		clk *clock.Service,
		speech *tts.Service,
		ov *overlay.Server,
	) {
		result = &Container{
			cfg:      cfg,
			bus:      b,
			channels: mgr,
			commands: cmds,
			clock:    clk,
			tts:      speech,
			overlay:  ov,
		}
	})
	return result, err
}

func newBus(cfg *config.Config) *bus.Bus {
	return bus.New(cfg.Bus.Capacity)
}

func newChannelManager(cfg *config.Config, b *bus.Bus, console Console) *channels.Manager {
	return channels.NewManager(cfg, b, console.Enabled, console.In, console.Out)
}

func newCommandTable(cfg *config.Config) *commands.Table {
	return commands.NewTable(cfg.Commands.Static)
}

func newClock(cfg *config.Config, b *bus.Bus) *clock.Service {
	return clock.NewService(b, cfg.Clock.Every())
}

func newSynthesizer(cfg *config.Config) tts.Synthesizer {
	return tts.NewHTTPSynthesizer(cfg.TTS)
}

func newTTS(cfg *config.Config, b *bus.Bus, s tts.Synthesizer) *tts.Service {
	return tts.NewService(b, s, cfg.TTS.OutputPath())
}

func newOverlay(cfg *config.Config, b *bus.Bus) *overlay.Server {
	return overlay.New(b, cfg.Overlay.Addr, cfg.Overlay.History)
}
