package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/spance/devpulse/telemetry"
	"github.com/spance/devpulse/telemetry/definitions"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// RefreshFunc produces one snapshot per call.
type RefreshFunc func(ctx context.Context) (*definitions.Snapshot, error)

// Server exposes snapshots over HTTP and live streams over websockets.
type Server struct {
	refresh    RefreshFunc
	hub        *telemetry.Hub
	streamRate float64
	httpServer *http.Server
	refreshes  singleflight.Group
}

// NewServer creates a server on addr. streamRate caps the events per second
// written to each websocket; events over the cap are dropped.
func NewServer(addr string, refresh RefreshFunc, hub *telemetry.Hub, streamRate float64) *Server {
	s := &Server{
		refresh:    refresh,
		hub:        hub,
		streamRate: streamRate,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /streams/{kind}", s.handleStream)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.httpServer.Addr).Msg("serving telemetry")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"streams": s.hub.State().String(),
	})
}

// handleSnapshot joins the refresh already in flight, if any, so concurrent
// requests share one cycle.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	ch := s.refreshes.DoChan("snapshot", func() (any, error) {
		return s.refresh(ctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-r.Context().Done():
		return
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Bool("shared", res.Shared).Msg("snapshot refresh failed")
		writeError(w, http.StatusServiceUnavailable, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, res.Val.(*definitions.Snapshot).ToMap())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	kind, err := definitions.ParseStreamKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	sub, err := s.hub.Subscribe(kind)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, telemetry.ErrUnknownStream) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	defer sub.Close()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("stream", string(kind)).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	limiter := rate.NewLimiter(rate.Limit(s.streamRate), 1)
	dropped := 0
	log.Debug().Str("stream", string(kind)).Str("remote", r.RemoteAddr).Msg("websocket subscribed")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("stream", string(kind)).Int("dropped", dropped).Msg("websocket gone")
			return
		case event, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			if !limiter.Allow() {
				dropped++
				continue
			}
			data, err := json.Marshal(event.ToMap())
			if err != nil {
				log.Error().Err(err).Str("stream", string(kind)).Msg("marshal event failed")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("stream", string(kind)).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
