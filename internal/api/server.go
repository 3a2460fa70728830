// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the signature controller to a browser page over HTTP
// and streams its notifications over a WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/sigcapt/internal/api/middleware"
	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/health"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	maxBodyBytes        = 64 << 10
)

// Controller is the part of *sigcapt.Controller the HTTP surface drives.
type Controller interface {
	Initialize(settings sigcapt.Settings, onReady func()) error
	RestartSession(onReady func())
	Capture(who, why string)
	ClearSignature()
	SetSignatureText(text string)
	DisplaySignatureDetails()
	ShowAbout()

	State() sigcapt.Phase
	Generation() uint64
	Image() string
	Text() (string, bool)
	Details() sigcapt.Details
	Versions() sigcapt.Versions
	Bus() bus.Bus
}

var _ Controller = (*sigcapt.Controller)(nil)

// Config shapes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int
	// TracingService names the otelhttp spans; empty disables tracing.
	TracingService string
	// PingInterval keeps idle event streams alive.
	PingInterval time.Duration
	// DisableAccessLog turns off per-request logging.
	DisableAccessLog bool
}

// Server routes HTTP requests to a Controller.
type Server struct {
	ctl      Controller
	health   *health.Manager
	cfg      Config
	upgrader websocket.Upgrader
	handler  http.Handler

	// streams parents every event stream; Close cancels it.
	streams context.Context
	stop    context.CancelFunc
}

// New builds a Server. hm may be nil, in which case a manager watching ctl
// answers the probes.
func New(ctl Controller, hm *health.Manager, cfg Config) *Server {
	if hm == nil {
		hm = health.NewManager("", ctl)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	s := &Server{ctl: ctl, health: hm, cfg: cfg}
	s.streams, s.stop = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close ends every open event stream. The handler keeps serving plain
// requests.
func (s *Server) Close() error {
	s.stop()
	return nil
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         !s.cfg.DisableAccessLog,
		RateLimit:             s.cfg.RateLimit,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)

		r.Post("/session/initialize", s.handleInitialize)
		r.Post("/session/restart", s.handleRestart)
		r.Post("/capture", s.handleCapture)
		r.Post("/signature/clear", s.handleClear)
		r.Post("/signature/text", s.handleSetText)
		r.Post("/signature/details", s.handleDetails)
		r.Post("/about", s.handleAbout)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
	})
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	return middleware.OriginAllowed(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}
