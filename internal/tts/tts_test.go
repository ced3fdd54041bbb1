package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/config"
	"github.com/botonex/botonex/internal/irc"
)

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	got   chan string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	f.got <- text
	return io.NopCloser(strings.NewReader("ID3" + text)), nil
}

func TestHTTPSynthesizer(t *testing.T) {
	var req speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(config.TTSConfig{APIBase: srv.URL + "/v1/", APIKey: "sk-test"})
	audio, err := s.Synthesize(context.Background(), `say "hi"`)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	defer audio.Close()

	data, _ := io.ReadAll(audio)
	if string(data) != "mp3-bytes" {
		t.Errorf("unexpected audio %q", data)
	}
	if req.Input != `say "hi"` || req.Model != "tts-1" || req.Voice != "alloy" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestHTTPSynthesizer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPSynthesizer(config.TTSConfig{APIBase: srv.URL}).Synthesize(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestService_SpeaksChatOnly(t *testing.T) {
	b := bus.New(16)
	twitch := b.Register(bus.EntityTwitch)
	dir := t.TempDir()
	synth := &fakeSynth{got: make(chan string, 8)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- NewService(b, synth, dir).Start(ctx) }()
	for twitch.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	_ = twitch.Publish(bus.IRC(irc.Parse("PING :tmi.twitch.tv")))
	_ = twitch.Publish(bus.Text("not chat"))
	_ = twitch.Publish(bus.IRC(irc.Parse(":alice!a@a PRIVMSG #chan :ciao a tutti")))

	select {
	case text := <-synth.got:
		if text != "ciao a tutti" {
			t.Errorf("unexpected text %q", text)
		}
	case <-ctx.Done():
		t.Fatal("nothing synthesized")
	}

	twitch.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil after close, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".mp3") {
		t.Fatalf("expected one mp3 file, got %v", entries)
	}
	if twitch.PendingFeedback() != 0 {
		t.Error("tts must not send feedback")
	}
	if len(synth.texts) != 1 {
		t.Errorf("expected exactly one synthesis, got %v", synth.texts)
	}
}
