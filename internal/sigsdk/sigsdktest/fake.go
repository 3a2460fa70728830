// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sigsdktest provides a scriptable in-memory pad service for tests.
package sigsdktest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// DefaultImage is the base64 payload returned by RenderBitmap.
const DefaultImage = "iVBORw0KGgo="

// DefaultVersion is returned for PropertyFileVersion reads.
const DefaultVersion = "4.5.3.1"

// Call is one recorded service call.
type Call struct {
	Conn int
	Op   sigsdk.Op
	Args []string
}

// SignatureData is the pad's current signature.
type SignatureData struct {
	Captured bool
	Who      string
	Why      string
	When     time.Time
	Text     string
}

// Fake implements sigsdk.Service. The zero configuration answers every call
// with StatusOK and announces itself as running right after Connect.
type Fake struct {
	mu           sync.Mutex
	statuses     map[sigsdk.Op]sigsdk.Status
	queued       map[sigsdk.Op][]sigsdk.Status
	hooks        map[sigsdk.Op]func(ctx context.Context)
	calls        []Call
	conns        []*conn
	neverRunning bool
	silent       bool
	spurious     bool
	runningDelay time.Duration
	connectErr   error
	sig          SignatureData
	image        string
	version      string
	lastRender   sigsdk.RenderOptions
	nextSig      int
	now          func() time.Time
}

func New() *Fake {
	return &Fake{
		statuses: make(map[sigsdk.Op]sigsdk.Status),
		queued:   make(map[sigsdk.Op][]sigsdk.Status),
		hooks:    make(map[sigsdk.Op]func(ctx context.Context)),
		image:    DefaultImage,
		version:  DefaultVersion,
		now:      time.Now,
	}
}

// SetStatus makes every call of op complete with status.
func (f *Fake) SetStatus(op sigsdk.Op, status sigsdk.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[op] = status
}

// QueueStatus scripts the next calls of op; once drained SetStatus applies.
func (f *Fake) QueueStatus(op sigsdk.Op, statuses ...sigsdk.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[op] = append(f.queued[op], statuses...)
}

// SetHook runs fn before op is answered. fn may block until ctx is done.
func (f *Fake) SetHook(op sigsdk.Op, fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil {
		delete(f.hooks, op)
		return
	}
	f.hooks[op] = fn
}

// SetNeverRunning keeps new connections in the not-running state.
func (f *Fake) SetNeverRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neverRunning = v
}

// SetRunningDelay delays the running transition of new connections.
func (f *Fake) SetRunningDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runningDelay = d
}

// SetSilentRunning suppresses the onRunning callback; the connection still
// becomes running after the running delay.
func (f *Fake) SetSilentRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = v
}

// SetSpuriousCallback fires onRunning once right after Connect while the
// connection is not yet running.
func (f *Fake) SetSpuriousCallback(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spurious = v
}

// SetConnectError makes Connect fail.
func (f *Fake) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// SetSignature replaces the pad's current signature.
func (f *Fake) SetSignature(data SignatureData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sig = data
}

// SetText changes the text the pad reports for its signature.
func (f *Fake) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sig.Text = text
}

// SetImage changes the payload returned by RenderBitmap.
func (f *Fake) SetImage(b64 string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.image = b64
}

// SetClock replaces the clock used to stamp captured signatures.
func (f *Fake) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Signature returns the pad's current signature.
func (f *Fake) Signature() SignatureData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sig
}

// LastRender returns the options of the most recent RenderBitmap call.
func (f *Fake) LastRender() sigsdk.RenderOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRender
}

// InvalidateSessions drops every open connection as if the service restarted.
// Subsequent calls on those connections report StatusInvalidSession.
func (f *Fake) InvalidateSessions() {
	f.mu.Lock()
	conns := append([]*conn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		c.invalid.Store(true)
	}
}

// Calls returns a copy of the call log.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns the operations of the call log in order.
func (f *Fake) Ops() []sigsdk.Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sigsdk.Op, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Op)
	}
	return out
}

// Count returns how often op was called.
func (f *Fake) Count(op sigsdk.Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Connects returns how many connections were opened.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// OpenConns returns how many connections are not yet closed.
func (f *Fake) OpenConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.conns {
		if !c.closed.Load() {
			n++
		}
	}
	return n
}

func (f *Fake) Connect(ctx context.Context, port int, onRunning func()) (sigsdk.Conn, error) {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return nil, fmt.Errorf("connect port %d: %w", port, err)
	}
	c := &conn{f: f, id: len(f.conns) + 1, port: port}
	f.conns = append(f.conns, c)
	never, silent, spurious, delay := f.neverRunning, f.silent, f.spurious, f.runningDelay
	f.mu.Unlock()

	if spurious && onRunning != nil {
		go onRunning()
	}
	if never {
		return c, nil
	}
	announce := func() {
		if c.closed.Load() {
			return
		}
		c.running.Store(true)
		if !silent && onRunning != nil {
			onRunning()
		}
	}
	if delay <= 0 {
		go announce()
		return c, nil
	}
	c.mu.Lock()
	c.timer = time.AfterFunc(delay, announce)
	c.mu.Unlock()
	return c, nil
}

// do records a call, runs its hook and resolves its status.
func (f *Fake) do(ctx context.Context, c *conn, op sigsdk.Op, args ...string) sigsdk.Status {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Conn: c.id, Op: op, Args: args})
	hook := f.hooks[op]
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if ctx.Err() != nil {
		return sigsdk.StatusFailed
	}
	if !c.live() {
		return sigsdk.StatusInvalidSession
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.queued[op]; len(q) > 0 {
		f.queued[op] = q[1:]
		return q[0]
	}
	if s, ok := f.statuses[op]; ok {
		return s
	}
	return sigsdk.StatusOK
}

func (f *Fake) newSignature(c *conn) *signature {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSig++
	return &signature{f: f, c: c, id: fmt.Sprintf("sig-%d", f.nextSig)}
}

type conn struct {
	f       *Fake
	id      int
	port    int
	running atomic.Bool
	invalid atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex
	timer   *time.Timer
}

func (c *conn) live() bool {
	return c.running.Load() && !c.invalid.Load() && !c.closed.Load()
}

func (c *conn) Running() bool { return c.live() }

func (c *conn) NewControl(ctx context.Context) (sigsdk.Control, sigsdk.Status) {
	if st := c.f.do(ctx, c, sigsdk.OpControlNew); !st.OK() {
		return nil, st
	}
	return &control{c: c}, sigsdk.StatusOK
}

func (c *conn) NewCapture(ctx context.Context) (sigsdk.DynamicCapture, sigsdk.Status) {
	if st := c.f.do(ctx, c, sigsdk.OpCaptureNew); !st.OK() {
		return nil, st
	}
	return &capture{c: c}, sigsdk.StatusOK
}

func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	return nil
}

type control struct{ c *conn }

func (ctl *control) PutLicence(ctx context.Context, licence string) sigsdk.Status {
	return ctl.c.f.do(ctx, ctl.c, sigsdk.OpControlPutLicence, licence)
}

func (ctl *control) GetSignature(ctx context.Context) (sigsdk.Signature, sigsdk.Status) {
	if st := ctl.c.f.do(ctx, ctl.c, sigsdk.OpControlGetSignature); !st.OK() {
		return nil, st
	}
	return ctl.c.f.newSignature(ctl.c), sigsdk.StatusOK
}

func (ctl *control) GetProperty(ctx context.Context, name string) (string, sigsdk.Status) {
	if st := ctl.c.f.do(ctx, ctl.c, sigsdk.OpControlGetProperty, name); !st.OK() {
		return "", st
	}
	return ctl.c.f.property(name), sigsdk.StatusOK
}

func (ctl *control) AboutBox(ctx context.Context) sigsdk.Status {
	return ctl.c.f.do(ctx, ctl.c, sigsdk.OpControlAbout)
}

func (f *Fake) property(name string) string {
	if name != sigsdk.PropertyFileVersion {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

type capture struct{ c *conn }

func (cp *capture) Capture(ctx context.Context, _ sigsdk.Control, who, why string) (sigsdk.Signature, sigsdk.Status) {
	f := cp.c.f
	st := f.do(ctx, cp.c, sigsdk.OpCaptureCapture, who, why)
	if st != sigsdk.CaptureOK {
		return nil, st
	}
	f.mu.Lock()
	f.sig.Captured = true
	f.sig.Who = who
	f.sig.Why = why
	f.sig.When = f.now()
	f.mu.Unlock()
	return f.newSignature(cp.c), st
}

func (cp *capture) GetProperty(ctx context.Context, name string) (string, sigsdk.Status) {
	if st := cp.c.f.do(ctx, cp.c, sigsdk.OpCaptureGetProperty, name); !st.OK() {
		return "", st
	}
	return cp.c.f.property(name), sigsdk.StatusOK
}

type signature struct {
	f  *Fake
	c  *conn
	id string
}

func (s *signature) ID() string { return s.id }

func (s *signature) RenderBitmap(ctx context.Context, opts sigsdk.RenderOptions) (string, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureRender, opts.Format); !st.OK() {
		return "", st
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.lastRender = opts
	return s.f.image, sigsdk.StatusOK
}

func (s *signature) GetSigText(ctx context.Context) (string, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureGetText); !st.OK() {
		return "", st
	}
	return s.f.Signature().Text, sigsdk.StatusOK
}

func (s *signature) PutSigText(ctx context.Context, text string) sigsdk.Status {
	st := s.f.do(ctx, s.c, sigsdk.OpSignaturePutText, text)
	if st.OK() {
		s.f.SetText(text)
	}
	return st
}

func (s *signature) GetIsCaptured(ctx context.Context) (bool, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureIsCaptured); !st.OK() {
		return false, st
	}
	return s.f.Signature().Captured, sigsdk.StatusOK
}

func (s *signature) GetWho(ctx context.Context) (string, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureWho); !st.OK() {
		return "", st
	}
	return s.f.Signature().Who, sigsdk.StatusOK
}

func (s *signature) GetWhy(ctx context.Context) (string, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureWhy); !st.OK() {
		return "", st
	}
	return s.f.Signature().Why, sigsdk.StatusOK
}

func (s *signature) GetWhen(ctx context.Context, tz sigsdk.TimeZone) (time.Time, sigsdk.Status) {
	if st := s.f.do(ctx, s.c, sigsdk.OpSignatureWhen, string(tz)); !st.OK() {
		return time.Time{}, st
	}
	when := s.f.Signature().When
	if tz == sigsdk.TimeUTC {
		return when.UTC(), sigsdk.StatusOK
	}
	return when.Local(), sigsdk.StatusOK
}

func (s *signature) Clear(ctx context.Context) sigsdk.Status {
	st := s.f.do(ctx, s.c, sigsdk.OpSignatureClear)
	if st.OK() {
		s.f.mu.Lock()
		s.f.sig = SignatureData{}
		s.f.mu.Unlock()
	}
	return st
}

var _ sigsdk.Service = (*Fake)(nil)
