// Package httpapi exposes the game over JSON HTTP and a websocket snapshot
// stream.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/game"
	"github.com/jensholdgaard/zoo-auction/internal/health"
	"github.com/jensholdgaard/zoo-auction/internal/store"
	"github.com/jensholdgaard/zoo-auction/internal/telemetry"
)

// Options configure the API server.
type Options struct {
	// AdminToken is the bearer token for /api/admin. Empty disables admin
	// routes.
	AdminToken string
	// SubscriberBuffer is the snapshot queue length per websocket client.
	SubscriberBuffer int
	// Game holds the catalog and default stake used by /api/admin/initialize.
	Game game.InitParams
}

// Server routes HTTP requests to the game controller.
type Server struct {
	ctrl     *game.Controller
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer builds the route table. health may be nil.
func NewServer(ctrl *game.Controller, opts Options, hh *health.Handler, logger *slog.Logger, tp trace.TracerProvider) *Server {
	s := &Server{
		ctrl:   ctrl,
		opts:   opts,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/zoo-auction/internal/httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/state", s.traced("state", s.handleState))
	s.mux.HandleFunc("GET /api/standings", s.traced("standings", s.handleStandings))
	s.mux.HandleFunc("GET /api/rounds", s.traced("rounds", s.handleRounds))
	s.mux.HandleFunc("GET /api/rounds/{id}", s.traced("round", s.handleRound))
	s.mux.HandleFunc("POST /api/bids", s.traced("bid", s.handleBid))
	s.mux.HandleFunc("POST /api/claims", s.traced("claim", s.handleClaim))

	s.mux.HandleFunc("POST /api/admin/initialize", s.admin(s.traced("admin.initialize", s.handleInitialize)))
	s.mux.HandleFunc("POST /api/admin/tiers/{tier}/start", s.admin(s.traced("admin.start_tier", s.handleStartTier)))
	s.mux.HandleFunc("POST /api/admin/stop", s.admin(s.traced("admin.stop", s.handleStop)))
	s.mux.HandleFunc("POST /api/admin/finish", s.admin(s.traced("admin.finish", s.handleFinish)))
	s.mux.HandleFunc("POST /api/admin/reset", s.admin(s.traced("admin.reset", s.handleReset)))

	s.mux.HandleFunc("GET /ws", s.handleStream)

	if hh != nil {
		hh.Register(s.mux)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// traced wraps h in a server span named after the route.
func (s *Server) traced(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "HTTP "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.Pattern),
			),
		)
		defer span.End()
		h(w, r.WithContext(ctx))
	}
}

// admin rejects requests without the configured bearer token.
func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin routes are disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		h(w, r)
	}
}

// fail maps err to its code and status and writes it.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status >= http.StatusInternalServerError {
		telemetry.LogWithTrace(ctx, s.logger).ErrorContext(ctx, "request failed",
			slog.String("code", code),
			slog.Any("error", err),
		)
		trace.SpanFromContext(ctx).RecordError(err)
	}
	writeError(w, status, code, err.Error())
}

// classify returns the stable error code and HTTP status for err.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, game.ErrNotInitialized):
		return "not_initialized", http.StatusConflict
	case errors.Is(err, game.ErrInvalidTier):
		return "invalid_tier", http.StatusBadRequest
	case errors.Is(err, game.ErrTierRunning):
		return "tier_running", http.StatusConflict
	case errors.Is(err, game.ErrGameScored):
		return "game_scored", http.StatusConflict
	case errors.Is(err, game.ErrAlreadyClaimed):
		return "already_claimed", http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return "not_found", http.StatusNotFound
	}

	code := auction.Reason(err)
	switch code {
	case "bid_too_low", "insufficient_funds", "tier_cap_exceeded":
		return code, http.StatusUnprocessableEntity
	case "round_not_open", "item_already_sold", "invalid_round_start":
		return code, http.StatusConflict
	case "unknown_participant":
		return code, http.StatusNotFound
	default:
		return code, http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
