// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bridge

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// TestServer runs a bridge Server on a loopback httptest listener.
type TestServer struct {
	*httptest.Server
	Bridge *Server
	Host   string
	Port   int
}

// NewTestServer starts a bridge in front of svc.
func NewTestServer(svc sigsdk.Service, opts ...ServerOption) *TestServer {
	b := NewServer(svc, opts...)
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, b)

	ts := &TestServer{Server: httptest.NewServer(mux), Bridge: b}
	host, port, _ := net.SplitHostPort(ts.Listener.Addr().String())
	ts.Host = host
	ts.Port, _ = strconv.Atoi(port)
	return ts
}

// Client returns a bridge client pointed at this server.
func (ts *TestServer) Client(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithHost(ts.Host)}, opts...)...)
}

// Close stops the listener and waits for open sockets to drain.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Bridge.Wait()
}
