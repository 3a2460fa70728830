// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// Server exposes a sigsdk.Service over WebSocket. Each socket gets its own
// backend connection and handle table.
type Server struct {
	svc      sigsdk.Service
	port     int
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	wg sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBackendPort sets the port passed to the backend's Connect.
func WithBackendPort(port int) ServerOption { return func(s *Server) { s.port = port } }

// WithCheckOrigin replaces the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithServerLogger replaces the component logger.
func WithServerLogger(l zerolog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

func NewServer(svc sigsdk.Service, opts ...ServerOption) *Server {
	s := &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin only; the bridge is a loopback service.
				return r.Header.Get("Origin") == ""
			},
		},
		logger: log.WithComponent("bridge-server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("bridge upgrade failed")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()

	metrics.BridgeConnOpened("server")
	defer metrics.BridgeConnClosed("server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &serverSession{
		ws:      ws,
		handles: make(map[string]any),
		logger:  s.logger.With().Str(log.FieldRemoteAddr, r.RemoteAddr).Logger(),
	}
	backend, err := s.svc.Connect(ctx, s.port, sess.greet)
	if err != nil {
		sess.logger.Warn().Err(err).Msg("backend connect failed")
		_ = ws.Close()
		return
	}
	sess.backend = backend
	sess.logger.Debug().Msg("bridge session opened")
	sess.serve(ctx)

	cancel()
	sess.inflight.Wait()
	_ = backend.Close()
	_ = ws.Close()
	sess.logger.Debug().Msg("bridge session closed")
}

// Wait blocks until every open socket has been torn down.
func (s *Server) Wait() { s.wg.Wait() }

type serverSession struct {
	ws      *websocket.Conn
	backend sigsdk.Conn
	logger  zerolog.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	handles map[string]any
	next    int

	inflight sync.WaitGroup
}

func (ss *serverSession) greet() {
	if err := ss.write(Frame{Op: OpServiceRunning}); err != nil {
		ss.logger.Debug().Err(err).Msg("greeting failed")
	}
}

func (ss *serverSession) write(f Frame) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	_ = ss.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ss.ws.WriteJSON(f)
}

func (ss *serverSession) serve(ctx context.Context) {
	for {
		var req Frame
		if err := ss.ws.ReadJSON(&req); err != nil {
			return
		}
		ss.inflight.Add(1)
		go func() {
			defer ss.inflight.Done()
			res, st := ss.dispatch(ctx, req)
			metrics.IncBridgeCall("server", string(req.Op), st.String())
			if err := ss.write(Frame{ID: req.ID, Status: st, Result: res}); err != nil {
				ss.logger.Debug().Err(err).Str("op", string(req.Op)).Msg("response write failed")
			}
		}()
	}
}

func (ss *serverSession) put(prefix string, v any) string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.next++
	h := fmt.Sprintf("%s-%d", prefix, ss.next)
	ss.handles[h] = v
	return h
}

func lookup[T any](ss *serverSession, handle string) (T, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	v, ok := ss.handles[handle].(T)
	return v, ok
}

func (ss *serverSession) dispatch(ctx context.Context, f Frame) (*Result, sigsdk.Status) {
	args := f.Args
	if args == nil {
		args = &Args{}
	}
	switch f.Op {
	case sigsdk.OpControlNew:
		ctl, st := ss.backend.NewControl(ctx)
		if !st.OK() {
			return nil, st
		}
		return &Result{Handle: ss.put("ctl", ctl)}, st
	case sigsdk.OpCaptureNew:
		dc, st := ss.backend.NewCapture(ctx)
		if !st.OK() {
			return nil, st
		}
		return &Result{Handle: ss.put("cap", dc)}, st
	}

	if !ss.hasHandle(f.Handle) {
		return nil, sigsdk.StatusInvalidSession
	}

	switch f.Op {
	case sigsdk.OpControlPutLicence:
		ctl, _ := lookup[sigsdk.Control](ss, f.Handle)
		return nil, orFailed(ctl != nil, func() sigsdk.Status { return ctl.PutLicence(ctx, args.Licence) })
	case sigsdk.OpControlGetSignature:
		ctl, ok := lookup[sigsdk.Control](ss, f.Handle)
		if !ok {
			return nil, sigsdk.StatusFailed
		}
		sig, st := ctl.GetSignature(ctx)
		if !st.OK() {
			return nil, st
		}
		return &Result{Handle: ss.put("sig", sig), ID: sig.ID()}, st
	case sigsdk.OpControlGetProperty:
		ctl, ok := lookup[sigsdk.Control](ss, f.Handle)
		if !ok {
			return nil, sigsdk.StatusFailed
		}
		v, st := ctl.GetProperty(ctx, args.Name)
		return &Result{Text: v}, st
	case sigsdk.OpControlAbout:
		ctl, _ := lookup[sigsdk.Control](ss, f.Handle)
		return nil, orFailed(ctl != nil, func() sigsdk.Status { return ctl.AboutBox(ctx) })
	case sigsdk.OpCaptureGetProperty:
		dc, ok := lookup[sigsdk.DynamicCapture](ss, f.Handle)
		if !ok {
			return nil, sigsdk.StatusFailed
		}
		v, st := dc.GetProperty(ctx, args.Name)
		return &Result{Text: v}, st
	case sigsdk.OpCaptureCapture:
		dc, ok := lookup[sigsdk.DynamicCapture](ss, f.Handle)
		if !ok {
			return nil, sigsdk.StatusFailed
		}
		ctl, ok := lookup[sigsdk.Control](ss, args.Control)
		if !ok {
			return nil, sigsdk.StatusInvalidSession
		}
		sig, st := dc.Capture(ctx, ctl, args.Who, args.Why)
		if st != sigsdk.CaptureOK || sig == nil {
			return nil, st
		}
		return &Result{Handle: ss.put("sig", sig), ID: sig.ID()}, st
	}

	sig, ok := lookup[sigsdk.Signature](ss, f.Handle)
	if !ok {
		return nil, sigsdk.StatusFailed
	}
	switch f.Op {
	case sigsdk.OpSignatureRender:
		if args.Render == nil {
			return nil, sigsdk.StatusFailed
		}
		img, st := sig.RenderBitmap(ctx, *args.Render)
		return &Result{Text: img}, st
	case sigsdk.OpSignatureGetText:
		t, st := sig.GetSigText(ctx)
		return &Result{Text: t}, st
	case sigsdk.OpSignaturePutText:
		return nil, sig.PutSigText(ctx, args.Text)
	case sigsdk.OpSignatureIsCaptured:
		b, st := sig.GetIsCaptured(ctx)
		return &Result{Bool: b}, st
	case sigsdk.OpSignatureWho:
		v, st := sig.GetWho(ctx)
		return &Result{Text: v}, st
	case sigsdk.OpSignatureWhy:
		v, st := sig.GetWhy(ctx)
		return &Result{Text: v}, st
	case sigsdk.OpSignatureWhen:
		tz := args.TimeZone
		if tz == "" {
			tz = sigsdk.TimeLocal
		}
		when, st := sig.GetWhen(ctx, tz)
		if !st.OK() {
			return nil, st
		}
		return &Result{When: &when}, st
	case sigsdk.OpSignatureClear:
		return nil, sig.Clear(ctx)
	default:
		return nil, sigsdk.StatusFailed
	}
}

func (ss *serverSession) hasHandle(h string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, ok := ss.handles[h]
	return ok
}

func orFailed(ok bool, fn func() sigsdk.Status) sigsdk.Status {
	if !ok {
		return sigsdk.StatusFailed
	}
	return fn()
}
