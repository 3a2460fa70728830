// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sigcapt drives a local signature-pad service: it establishes a
// session (detection, then an ordered handshake), runs capture and query
// workflows against it and publishes notifications on a bus.
//
// Public operations never block on the service. Each one either starts its
// workflow goroutine or, when the session it needs is missing, restarts the
// session and re-issues itself once the new session is ready.
package sigcapt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/fsm"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/telemetry"
)

const tracerName = "github.com/ManuGH/sigcapt/internal/sigcapt"

// Options configure a Controller.
type Options struct {
	Service sigsdk.Service

	// Bus receives notifications; defaults to a new MemoryBus.
	Bus bus.Bus

	// Settings are overlaid on DefaultSettings before the first Initialize.
	Settings Settings

	Tracer trace.Tracer
	Logger *zerolog.Logger
}

// Versions are the component file versions read during the handshake.
type Versions struct {
	Control string `json:"control"`
	Capture string `json:"capture"`
}

// Details is the last who/why/when triple read from the pad.
type Details struct {
	Who  string `json:"who"`
	Why  string `json:"why"`
	When string `json:"when"`
}

type session struct {
	conn    sigsdk.Conn
	ctl     sigsdk.Control
	capture sigsdk.DynamicCapture
}

// Controller owns the session and serializes access to its state.
type Controller struct {
	svc        sigsdk.Service
	bus        bus.Bus
	tracer     trace.Tracer
	baseLogger zerolog.Logger
	logger     atomic.Pointer[zerolog.Logger]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	phase *fsm.Machine[Phase, phaseEvent]

	mu        sync.Mutex
	closed    bool
	settings  Settings
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
	conn      sigsdk.Conn
	sess      *session
	sig       sigsdk.Signature
	image     string
	text      string
	hasText   bool
	details   Details
	versions  Versions
	pending   []func()
}

// New builds a Controller. No session is started until Initialize or
// RestartSession is called.
func New(opts Options) (*Controller, error) {
	if opts.Service == nil {
		return nil, errors.New("sigcapt: service is required")
	}
	settings := Merge(DefaultSettings(), opts.Settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		svc:      opts.Service,
		bus:      opts.Bus,
		tracer:   opts.Tracer,
		settings: settings,
	}
	if c.bus == nil {
		c.bus = bus.NewMemoryBus()
	}
	if c.tracer == nil {
		c.tracer = telemetry.Tracer(tracerName)
	}
	if opts.Logger != nil {
		c.baseLogger = opts.Logger.With().Str(log.FieldComponent, "sigcapt").Logger()
	} else {
		c.baseLogger = log.WithComponent("sigcapt")
	}
	c.setLogger(settings)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.phase = fsm.MustNew(PhaseAbsent, phaseTransitions(), fsm.WithOnChange(c.onPhaseChange))
	metrics.SetSessionState(string(PhaseAbsent))
	return c, nil
}

// Initialize overlays settings on the current ones and restarts the session.
// onReady runs once the new session is ready.
func (c *Controller) Initialize(settings Settings, onReady func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	merged := Merge(c.settings, settings)
	if err := merged.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.settings = merged
	c.mu.Unlock()

	c.setLogger(merged)
	c.restart("initialize", onReady)
	return nil
}

// RestartSession tears down the session and establishes a new one. onReady
// runs once the new session is ready.
func (c *Controller) RestartSession(onReady func()) {
	c.restart("requested", onReady)
}

func (c *Controller) restart(trigger string, onReady func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.gen
	c.mu.Unlock()

	// Listeners hear about the restart before any state is torn down.
	c.publish(prev, Event{Kind: EventRestarting})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var carried []func()
	if c.phase.State().pending() {
		carried = c.pending
	}
	c.gen++
	gen := c.gen
	oldCancel, oldConn := c.genCancel, c.conn
	ctx, cancel := context.WithCancel(c.ctx)
	c.genCtx, c.genCancel = ctx, cancel
	c.conn, c.sess, c.sig = nil, nil, nil
	c.image, c.text, c.hasText = "", "", false
	c.details = Details{}
	c.versions = Versions{}
	c.pending = carried
	if onReady != nil {
		c.pending = append(c.pending, onReady)
	}
	settings := c.settings
	c.fire(evRestart)
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.IncSessionRestart(trigger)
	c.log().Info().
		Uint64(log.FieldGeneration, gen).
		Str("trigger", trigger).
		Int("carried", len(carried)).
		Msg("restarting session")

	if oldCancel != nil {
		oldCancel()
	}
	if oldConn != nil {
		if err := oldConn.Close(); err != nil {
			c.log().Debug().Err(err).Msg("closing superseded connection")
		}
	}
	go func() {
		defer c.wg.Done()
		c.establish(ctx, gen, settings)
	}()
}

func (c *Controller) establish(ctx context.Context, gen uint64, settings Settings) {
	ctx, span := c.tracer.Start(ctx, "sigcapt.session",
		trace.WithAttributes(telemetry.SessionAttributes(gen, settings.ServicePort)...))
	defer span.End()

	conn, ok := c.detect(ctx, gen, settings)
	if !ok {
		return
	}
	c.handshake(ctx, gen, conn, settings)
}

// requirement is what a workflow needs from the session before it may run.
type requirement int

const (
	needCapture       requirement = iota // running session with a capture engine
	needControl                          // running session with a control handle
	needLiveSignature                    // running session with a signature handle
	needSignature                        // a signature handle
)

// snapshot is the session state a workflow runs against.
type snapshot struct {
	gen      uint64
	sess     *session
	sig      sigsdk.Signature
	settings Settings
}

func (r requirement) met(s snapshot) bool {
	live := s.sess != nil && s.sess.conn.Running()
	switch r {
	case needCapture:
		return live && s.sess.capture != nil
	case needControl:
		return live && s.sess.ctl != nil
	case needLiveSignature:
		return live && s.sig != nil
	case needSignature:
		return s.sess != nil && s.sig != nil
	default:
		return false
	}
}

// runWhenReady is the single entry point of every public operation: it runs
// op against the current session when requirement holds, and otherwise
// restarts the session with retry as its continuation.
func (c *Controller) runWhenReady(op string, req requirement, retry func(), run func(ctx context.Context, s snapshot, logger zerolog.Logger)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	s := snapshot{gen: c.gen, sess: c.sess, sig: c.sig, settings: c.settings}
	ctx := c.genCtx
	c.mu.Unlock()

	if !req.met(s) {
		c.log().Debug().Str(log.FieldWorkflow, op).Msg("session not ready, restarting the session")
		metrics.IncWorkflow(op, "restarted")
		c.restart(op, retry)
		return
	}

	opID := uuid.NewString()
	ctx = log.ContextWithOperationID(ctx, opID)
	logger := c.log().With().
		Str(log.FieldWorkflow, op).
		Str(log.FieldOperationID, opID).
		Uint64(log.FieldGeneration, s.gen).
		Logger()
	c.spawn(func() {
		ctx, span := c.tracer.Start(ctx, "sigcapt."+op,
			trace.WithAttributes(telemetry.WorkflowAttributes(op, s.gen)...))
		defer span.End()
		run(ctx, s, logger)
	})
}

// settle handles a non-OK step status: stale results are dropped, an invalid
// session restarts with retry, anything else is logged. It reports whether
// the workflow may continue.
func (c *Controller) settle(s snapshot, workflow, step string, st sigsdk.Status, logger zerolog.Logger, retry func()) bool {
	if st.OK() {
		return true
	}
	if !c.current(s.gen) {
		c.stale(workflow, s.gen)
		return false
	}
	logger.Warn().Str(log.FieldStep, step).Str(log.FieldStatus, st.String()).Msg("workflow step failed")
	metrics.IncWorkflow(workflow, "failed")
	if st == sigsdk.StatusInvalidSession && retry != nil {
		c.restart(workflow, retry)
	}
	return false
}

// Close stops every workflow and closes the connection. Notifications are no
// longer published once Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn, c.sess, c.sig = nil, nil, nil
	c.pending = nil
	cancel := c.genCancel
	c.fire(evClose)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

// Bus returns the notification bus.
func (c *Controller) Bus() bus.Bus { return c.bus }

// State returns the current session phase.
func (c *Controller) State() Phase { return c.phase.State() }

// Generation returns the current session generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Settings returns the active settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Image returns the last rendered data URI, or "" if none is held.
func (c *Controller) Image() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// Text returns the last recovered signature text and whether one is held.
func (c *Controller) Text() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.hasText
}

// Details returns the detail triple as far as the last query populated it.
func (c *Controller) Details() Details {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.details
}

// Versions returns the component versions of the current session.
func (c *Controller) Versions() Versions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions
}

// current reports whether gen is still the live generation.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen
}

// commit applies fn under the state lock if gen is still current.
func (c *Controller) commit(gen uint64, workflow string, fn func()) bool {
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		c.stale(workflow, gen)
		return false
	}
	fn()
	c.mu.Unlock()
	return true
}

func (c *Controller) stale(workflow string, gen uint64) {
	metrics.IncStaleResult(workflow)
	c.log().Debug().
		Str(log.FieldWorkflow, workflow).
		Uint64(log.FieldGeneration, gen).
		Msg("discarding result of superseded session")
}

// spawn runs fn on a tracked goroutine unless the controller is closed.
func (c *Controller) spawn(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// fire applies a phase event; callers hold c.mu.
func (c *Controller) fire(ev phaseEvent) {
	if _, err := c.phase.Fire(c.ctx, ev); err != nil {
		c.log().Error().Err(err).Msg("session phase transition rejected")
	}
}

func (c *Controller) onPhaseChange(from, to Phase, ev phaseEvent) {
	metrics.SetSessionState(string(to))
	c.log().Debug().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Str(log.FieldEvent, string(ev)).
		Msg("session phase changed")
}

func (c *Controller) publish(gen uint64, ev Event) {
	ev.Generation = gen
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.log().Debug().Str(log.FieldEvent, string(ev.Kind)).Uint64(log.FieldGeneration, gen).Msg("notify")

	if err := c.bus.Publish(context.Background(), ev.Kind.Topic(), ev); err != nil {
		c.log().Warn().Err(err).Str(log.FieldEvent, string(ev.Kind)).Msg("notification not delivered")
	}
}

func (c *Controller) log() *zerolog.Logger {
	return c.logger.Load()
}

func (c *Controller) setLogger(s Settings) {
	l := c.baseLogger
	if s.Output != nil {
		l = log.NewDebugLogger(s.Output, "sigcapt")
	}
	c.logger.Store(&l)
}
