// Package ingest exposes the daemon over local HTTP.
//
// The browser extension, or anything else that can produce the message
// envelopes, posts events to /events. A few convenience routes wrap the
// control messages for use from scripts and the status command.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nao1215/pagetrail/internal/event"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// maxBodySize bounds a single POST body.
const maxBodySize = 8 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Dispatcher delivers decoded messages. *event.Bus implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg event.Message) (any, error)
}

// Result is the outcome of dispatching one message.
type Result struct {
	Type   event.Kind `json:"type,omitempty"`
	Result any        `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Server is the HTTP ingest endpoint.
type Server struct {
	addr       string
	dispatcher Dispatcher
	logger     *slog.Logger
	router     *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, d Dispatcher, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{addr: addr, dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/events", s.handleEvents)
	r.Get("/status", s.control(func(*http.Request) event.Message { return &event.RequestStatus{} }))
	r.Post("/flush", s.control(func(*http.Request) event.Message { return &event.FlushNow{} }))
	r.Post("/history/sync", s.control(func(r *http.Request) event.Message {
		force, _ := strconv.ParseBool(r.URL.Query().Get("force")) //nolint:errcheck // absent means false
		return &event.SendNow{Force: force}
	}))
	s.router = r
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ingest server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ingest server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down ingest server: %w", err)
		}
		return nil
	}
}

// handleEvents accepts one envelope or a JSON array of envelopes and
// dispatches them in order.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodySize)); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, Result{Error: err.Error()})
		return
	}
	data := bytes.TrimSpace(body.Bytes())

	if len(data) > 0 && data[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			writeJSON(w, http.StatusBadRequest, Result{Error: err.Error()})
			return
		}
		results := make([]Result, len(raws))
		for i, raw := range raws {
			results[i] = s.dispatch(r.Context(), raw)
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	res := s.dispatch(r.Context(), data)
	status := http.StatusOK
	if res.Type == "" && res.Error != "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

// dispatch decodes and delivers one envelope.
func (s *Server) dispatch(ctx context.Context, raw []byte) Result {
	msg, err := event.Decode(raw)
	if err != nil {
		return Result{Error: err.Error()}
	}
	res := Result{Type: msg.Kind()}
	out, err := s.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Result = out
	return res
}

// control serves a route that dispatches a single control message.
func (s *Server) control(build func(*http.Request) event.Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := build(r)
		out, err := s.dispatcher.Dispatch(r.Context(), msg)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, Result{Type: msg.Kind(), Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, Result{Type: msg.Kind(), Result: out})
	}
}

// logRequests logs each request with its id, status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("ingest request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
