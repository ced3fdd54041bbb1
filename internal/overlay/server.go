// Package overlay serves a browser overlay for stream software: chat
// messages are pushed to websocket clients as JSON, and a small HTTP API
// exposes the bus registry.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olahol/melody"
	"golang.org/x/sync/errgroup"

	"github.com/botonex/botonex/internal/bus"
	"github.com/botonex/botonex/internal/irc"
)

const (
	defaultHistory  = 50
	sessionSeqKey   = "seq"
	shutdownTimeout = 5 * time.Second
)

// Frame is the JSON object pushed to overlay clients for every chat message.
type Frame struct {
	Sender  string    `json:"sender"`
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
	Color   string    `json:"color,omitempty"`
	At      time.Time `json:"at"`
}

// EntityInfo describes one registered bus entity.
type EntityInfo struct {
	Name            string `json:"name"`
	Subscribers     int    `json:"subscribers"`
	PendingFeedback int    `json:"pendingFeedback"`
}

type handlerWithErr func(http.ResponseWriter, *http.Request) *HTTPError

// Server relays twitch chat to websocket sessions.
type Server struct {
	b    *bus.Bus
	addr string
	m    *melody.Melody
	now  func() time.Time

	// mu orders history writes against session replays.
	mu      sync.Mutex
	seq         uint64
	history     *lru.Cache[uint64, []byte]
	historySize int
}

// New creates an overlay server listening on addr that replays the last
// history frames to each new session.
func New(b *bus.Bus, addr string, history int) *Server {
	m := melody.New()
	m.Config.WriteWait = 5 * time.Second

	if history <= 0 {
		history = defaultHistory
	}
	// Replay is queued before the session's writer runs; anything beyond
	// the session buffer would be dropped.
	if history > m.Config.MessageBufferSize {
		slog.Warn("overlay: history capped to session buffer", "history", history, "cap", m.Config.MessageBufferSize)
		history = m.Config.MessageBufferSize
	}
	cache, _ := lru.New[uint64, []byte](history)

	s := &Server{
		b:           b,
		addr:        addr,
		m:           m,
		now:         time.Now,
		history:     cache,
		historySize: history,
	}
	s.m.HandleConnect(s.onConnect)
	s.m.HandleDisconnect(func(*melody.Session) {
		slog.Debug("overlay: session closed")
	})
	return s
}

// Handler returns the HTTP routes of the overlay.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/entities", s.handle(s.listEntities))
	r.Get("/entities/{name}", s.handle(s.getEntity))
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := s.m.HandleRequest(w, r); err != nil {
			slog.Warn("overlay: websocket upgrade failed", "err", err)
		}
	})
	return r
}

func (s *Server) handle(fn handlerWithErr) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			_ = render.Render(w, r, err)
			slog.Warn("overlay: request failed", "path", r.URL.Path, "status", err.Code, "err", err)
		}
	}
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) *HTTPError {
	render.JSON(w, r, s.b.Names())
	return nil
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) *HTTPError {
	name := chi.URLParam(r, "name")
	e, err := s.b.Lookup(name)
	if err != nil {
		return notFound("entity " + name + " not registered")
	}
	render.JSON(w, r, EntityInfo{
		Name:            e.ID(),
		Subscribers:     e.Subscribers(),
		PendingFeedback: e.PendingFeedback(),
	})
	return nil
}

// Start serves HTTP and relays chat until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("overlay: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.m.Close()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return s.relay(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// relay turns every twitch PRIVMSG into a frame.
func (s *Server) relay(ctx context.Context) error {
	sub, err := s.b.Subscribe(ctx, bus.EntityTwitch)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		msg, err := bus.ReceiveAs[irc.Message](ctx, sub)
		var lagged *bus.LaggedError
		switch {
		case errors.As(err, &lagged):
			slog.Warn("overlay: lagged", "missed", lagged.Missed)
			continue
		case errors.Is(err, bus.ErrTypeMismatch):
			continue
		case errors.Is(err, bus.ErrClosed):
			<-ctx.Done()
			return ctx.Err()
		case err != nil:
			return err
		}
		if msg.IsPrivMsg() {
			s.push(s.frameOf(msg))
		}
	}
}

func (s *Server) frameOf(msg irc.Message) Frame {
	sender := msg.Tag("display-name")
	if sender == "" {
		sender = msg.Context.Sender
	}
	return Frame{
		Sender:  sender,
		Channel: msg.Context.Destination,
		Text:    msg.Payload,
		Color:   msg.Tag("color"),
		At:      s.now(),
	}
}

// push records f in the history and sends it to every session that has not
// already received it through replay.
func (s *Server) push(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("overlay: encode frame", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	seq := s.seq
	s.history.Add(seq, data)
	err = s.m.BroadcastFilter(data, func(sess *melody.Session) bool {
		replayed, ok := sess.Get(sessionSeqKey)
		return ok && replayed.(uint64) < seq
	})
	if err != nil {
		slog.Debug("overlay: broadcast failed", "err", err)
	}
}

// onConnect replays the history, oldest first, and marks the session live
// from the last replayed frame on.
func (s *Server) onConnect(sess *melody.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, data := range s.history.Values() {
		if err := sess.Write(data); err != nil {
			slog.Debug("overlay: replay failed", "err", err)
			break
		}
	}
	sess.Set(sessionSeqKey, s.seq)
	slog.Debug("overlay: session opened", "replayed", s.history.Len())
}

// Sessions returns the number of connected websocket clients.
func (s *Server) Sessions() int { return s.m.Len() }
