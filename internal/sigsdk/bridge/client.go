// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// ErrBadEndpoint is returned by Connect when the endpoint cannot be built.
var ErrBadEndpoint = errors.New("bridge: invalid endpoint")

const (
	defaultHost      = "127.0.0.1"
	defaultHandshake = 5 * time.Second
	writeWait        = 5 * time.Second
)

// Client dials the pad service bridge. It implements sigsdk.Service.
type Client struct {
	host   string
	path   string
	secure bool
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHost sets the host the bridge listens on.
func WithHost(host string) ClientOption { return func(c *Client) { c.host = host } }

// WithPath sets the WebSocket endpoint path.
func WithPath(path string) ClientOption { return func(c *Client) { c.path = path } }

// WithTLS switches the scheme to wss.
func WithTLS(secure bool) ClientOption { return func(c *Client) { c.secure = secure } }

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption { return func(c *Client) { c.dialer = d } }

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		host:   defaultHost,
		path:   DefaultPath,
		dialer: &websocket.Dialer{HandshakeTimeout: defaultHandshake},
		logger: log.WithComponent("bridge"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the WebSocket URL for port.
func (c *Client) Endpoint(port int) (string, error) {
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: port %d", ErrBadEndpoint, port)
	}
	scheme := "ws"
	if c.secure {
		scheme = "wss"
	}
	if c.host == "" {
		return "", fmt.Errorf("%w: empty host", ErrBadEndpoint)
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(c.host, strconv.Itoa(port)), Path: c.path}
	return u.String(), nil
}

// Connect dials in the background and returns immediately. onRunning fires
// when the server greets with OpServiceRunning.
func (c *Client) Connect(ctx context.Context, port int, onRunning func()) (sigsdk.Conn, error) {
	endpoint, err := c.Endpoint(port)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithCancel(ctx)
	cc := &clientConn{
		client:  c,
		cancel:  cancel,
		pending: make(map[uint64]chan Frame),
		done:    make(chan struct{}),
		logger:  c.logger.With().Int(log.FieldServicePort, port).Logger(),
	}
	go cc.run(cctx, endpoint, onRunning)
	return cc, nil
}

type clientConn struct {
	client  *Client
	cancel  context.CancelFunc
	logger  zerolog.Logger
	running atomic.Bool
	nextID  atomic.Uint64

	wmu sync.Mutex
	ws  *websocket.Conn

	mu      sync.Mutex
	pending map[uint64]chan Frame
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) run(ctx context.Context, endpoint string, onRunning func()) {
	defer close(cc.done)
	defer cc.failPending()

	ws, _, err := cc.client.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		cc.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("bridge dial failed")
		return
	}
	cc.mu.Lock()
	if cc.closed {
		cc.mu.Unlock()
		_ = ws.Close()
		return
	}
	cc.wmu.Lock()
	cc.ws = ws
	cc.wmu.Unlock()
	cc.mu.Unlock()

	metrics.BridgeConnOpened("client")
	defer metrics.BridgeConnClosed("client")
	defer func() { _ = ws.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			cc.running.Store(false)
			if ctx.Err() == nil {
				cc.logger.Debug().Err(err).Msg("bridge connection lost")
			}
			return
		}
		if f.Op == OpServiceRunning {
			cc.running.Store(true)
			if onRunning != nil {
				onRunning()
			}
			continue
		}
		cc.mu.Lock()
		ch, ok := cc.pending[f.ID]
		delete(cc.pending, f.ID)
		cc.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

func (cc *clientConn) failPending() {
	cc.running.Store(false)
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.closed = true
	for id, ch := range cc.pending {
		ch <- Frame{ID: id, Status: sigsdk.StatusInvalidSession}
		delete(cc.pending, id)
	}
}

func (cc *clientConn) Running() bool { return cc.running.Load() }

func (cc *clientConn) Close() error {
	cc.closeOnce.Do(func() {
		cc.mu.Lock()
		cc.closed = true
		cc.mu.Unlock()
		cc.cancel()
	})
	<-cc.done
	return nil
}

// call sends one request and waits for its response.
func (cc *clientConn) call(ctx context.Context, op sigsdk.Op, handle string, args *Args) (*Result, sigsdk.Status) {
	st, res := cc.roundTrip(ctx, op, handle, args)
	metrics.IncBridgeCall("client", string(op), st.String())
	return res, st
}

func (cc *clientConn) roundTrip(ctx context.Context, op sigsdk.Op, handle string, args *Args) (sigsdk.Status, *Result) {
	if !cc.running.Load() {
		return sigsdk.StatusInvalidSession, nil
	}
	id := cc.nextID.Add(1)
	ch := make(chan Frame, 1)

	cc.mu.Lock()
	if cc.closed {
		cc.mu.Unlock()
		return sigsdk.StatusInvalidSession, nil
	}
	cc.pending[id] = ch
	cc.mu.Unlock()

	cc.wmu.Lock()
	_ = cc.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := cc.ws.WriteJSON(Frame{ID: id, Op: op, Handle: handle, Args: args})
	cc.wmu.Unlock()
	if err != nil {
		cc.forget(id)
		cc.logger.Debug().Err(err).Str("op", string(op)).Msg("bridge write failed")
		return sigsdk.StatusInvalidSession, nil
	}

	select {
	case f := <-ch:
		return f.Status, f.Result
	case <-ctx.Done():
		cc.forget(id)
		return sigsdk.StatusFailed, nil
	}
}

func (cc *clientConn) forget(id uint64) {
	cc.mu.Lock()
	delete(cc.pending, id)
	cc.mu.Unlock()
}

func (cc *clientConn) NewControl(ctx context.Context) (sigsdk.Control, sigsdk.Status) {
	res, st := cc.call(ctx, sigsdk.OpControlNew, "", nil)
	if !st.OK() || res == nil {
		return nil, failed(st)
	}
	return &remoteControl{cc: cc, handle: res.Handle}, st
}

func (cc *clientConn) NewCapture(ctx context.Context) (sigsdk.DynamicCapture, sigsdk.Status) {
	res, st := cc.call(ctx, sigsdk.OpCaptureNew, "", nil)
	if !st.OK() || res == nil {
		return nil, failed(st)
	}
	return &remoteCapture{cc: cc, handle: res.Handle}, st
}

// failed maps an OK status without a result to StatusFailed.
func failed(st sigsdk.Status) sigsdk.Status {
	if st.OK() {
		return sigsdk.StatusFailed
	}
	return st
}

type remoteControl struct {
	cc     *clientConn
	handle string
}

func (r *remoteControl) Handle() string { return r.handle }

func (r *remoteControl) PutLicence(ctx context.Context, licence string) sigsdk.Status {
	_, st := r.cc.call(ctx, sigsdk.OpControlPutLicence, r.handle, &Args{Licence: licence})
	return st
}

func (r *remoteControl) GetSignature(ctx context.Context) (sigsdk.Signature, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpControlGetSignature, r.handle, nil)
	if !st.OK() || res == nil {
		return nil, failed(st)
	}
	return &remoteSignature{cc: r.cc, handle: res.Handle, id: res.ID}, st
}

func (r *remoteControl) GetProperty(ctx context.Context, name string) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpControlGetProperty, r.handle, &Args{Name: name})
	return text(res), st
}

func (r *remoteControl) AboutBox(ctx context.Context) sigsdk.Status {
	_, st := r.cc.call(ctx, sigsdk.OpControlAbout, r.handle, nil)
	return st
}

type remoteCapture struct {
	cc     *clientConn
	handle string
}

func (r *remoteCapture) Capture(ctx context.Context, ctl sigsdk.Control, who, why string) (sigsdk.Signature, sigsdk.Status) {
	h, ok := ctl.(interface{ Handle() string })
	if !ok {
		return nil, sigsdk.StatusFailed
	}
	res, st := r.cc.call(ctx, sigsdk.OpCaptureCapture, r.handle, &Args{Control: h.Handle(), Who: who, Why: why})
	if st != sigsdk.CaptureOK {
		return nil, st
	}
	if res == nil {
		return nil, sigsdk.StatusFailed
	}
	return &remoteSignature{cc: r.cc, handle: res.Handle, id: res.ID}, st
}

func (r *remoteCapture) GetProperty(ctx context.Context, name string) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpCaptureGetProperty, r.handle, &Args{Name: name})
	return text(res), st
}

type remoteSignature struct {
	cc     *clientConn
	handle string
	id     string
}

func (r *remoteSignature) ID() string { return r.id }

func (r *remoteSignature) RenderBitmap(ctx context.Context, opts sigsdk.RenderOptions) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureRender, r.handle, &Args{Render: &opts})
	return text(res), st
}

func (r *remoteSignature) GetSigText(ctx context.Context) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureGetText, r.handle, nil)
	return text(res), st
}

func (r *remoteSignature) PutSigText(ctx context.Context, t string) sigsdk.Status {
	_, st := r.cc.call(ctx, sigsdk.OpSignaturePutText, r.handle, &Args{Text: t})
	return st
}

func (r *remoteSignature) GetIsCaptured(ctx context.Context) (bool, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureIsCaptured, r.handle, nil)
	return res != nil && res.Bool, st
}

func (r *remoteSignature) GetWho(ctx context.Context) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureWho, r.handle, nil)
	return text(res), st
}

func (r *remoteSignature) GetWhy(ctx context.Context) (string, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureWhy, r.handle, nil)
	return text(res), st
}

func (r *remoteSignature) GetWhen(ctx context.Context, tz sigsdk.TimeZone) (time.Time, sigsdk.Status) {
	res, st := r.cc.call(ctx, sigsdk.OpSignatureWhen, r.handle, &Args{TimeZone: tz})
	if !st.OK() || res == nil || res.When == nil {
		return time.Time{}, failed(st)
	}
	if tz == sigsdk.TimeUTC {
		return res.When.UTC(), st
	}
	return res.When.Local(), st
}

func (r *remoteSignature) Clear(ctx context.Context) sigsdk.Status {
	_, st := r.cc.call(ctx, sigsdk.OpSignatureClear, r.handle, nil)
	return st
}

func text(res *Result) string {
	if res == nil {
		return ""
	}
	return res.Text
}

var _ sigsdk.Service = (*Client)(nil)
