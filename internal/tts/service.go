package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/irc"
)

// Service synthesizes every chat message of the twitch entity. It only
// listens; nothing is sent back to the chat.
type Service struct {
	b         *bus.Bus
	synth     Synthesizer
	outputDir string
}

// NewService creates the speech service. When outputDir is empty the audio
// is discarded after synthesis.
func NewService(b *bus.Bus, synth Synthesizer, outputDir string) *Service {
	return &Service{b: b, synth: synth, outputDir: outputDir}
}

// Start waits for the twitch entity and speaks its chat until ctx is done or
// the entity closes.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.b.Subscribe(ctx, bus.EntityTwitch)
	if err != nil {
		return err
	}
	defer sub.Close()

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			return fmt.Errorf("tts: create output dir: %w", err)
		}
	}
	slog.Info("tts: started", "output_dir", s.outputDir)

	for {
		msg, err := bus.ReceiveAs[irc.Message](ctx, sub)
		var lagged *bus.LaggedError
		switch {
		case errors.As(err, &lagged):
			slog.Warn("tts: lagged", "missed", lagged.Missed)
			continue
		case errors.Is(err, bus.ErrTypeMismatch):
			continue
		case errors.Is(err, bus.ErrClosed):
			return nil
		case err != nil:
			return err
		}

		if !msg.IsPrivMsg() || msg.Payload == "" {
			continue
		}
		if err := s.speak(ctx, msg.Payload); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("tts: synthesis failed", "err", err)
		}
	}
}

func (s *Service) speak(ctx context.Context, text string) error {
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer audio.Close()

	dst := io.Discard
	var path string
	if s.outputDir != "" {
		path = filepath.Join(s.outputDir, fmt.Sprintf("%d.mp3", time.Now().UnixNano()))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create audio file: %w", err)
		}
		defer f.Close()
		dst = f
	}

	n, err := io.Copy(dst, audio)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	slog.Info("tts: audio", "bytes", n, "file", path)
	return nil
}
