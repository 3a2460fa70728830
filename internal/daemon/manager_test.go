// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/sigcapt/internal/config"
	"github.com/ManuGH/sigcapt/internal/log"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     1 * time.Second,
		WriteTimeout:    1 * time.Second,
		IdleTimeout:     10 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
}

func waitForAddr(t *testing.T, mgr Manager) string {
	t.Helper()
	var addr string
	require.Eventually(t, func() bool {
		if a := mgr.Addr(); a != nil {
			addr = a.String()
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	return addr
}

func TestNewManager_ValidDeps(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	require.NotNil(t, mgr)
	assert.Nil(t, mgr.Addr())
}

func TestNewManager_InvalidDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"disabled logger", Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()}, ErrMissingLogger},
		{"no handler", Deps{Logger: log.WithComponent("test")}, ErrMissingAPIHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(testServerConfig(), tt.deps)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "invalid dependencies")
		})
	}
}

func TestManager_StartStop_OK(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: handler,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	addr := waitForAddr(t, mgr)
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	cancel()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_UsesProvidedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mgr, err := NewManager(config.ServerConfig{ShutdownTimeout: time.Second}, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		Listener:   ln,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	assert.Equal(t, ln.Addr().String(), waitForAddr(t, mgr))
	cancel()
	require.NoError(t, <-errChan)
}

func TestManager_Shutdown_TimesOut(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requestStarted := make(chan struct{})
	releaseHandler := make(chan struct{})
	var once sync.Once
	handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(requestStarted) })
		select {
		case <-r.Context().Done():
		case <-releaseHandler:
		}
	})

	cfg := testServerConfig()
	cfg.ShutdownTimeout = 100 * time.Millisecond
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: handler,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()
	addr := waitForAddr(t, mgr)

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-requestStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected in-flight request before shutdown")
	}

	cancel()

	select {
	case err := <-errChan:
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "shutdown errors") || strings.Contains(err.Error(), "context deadline exceeded"),
			"unexpected shutdown error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	close(releaseHandler)

	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked request did not terminate after shutdown")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	err = mgr.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestManager_ShutdownHooksRunLIFO(t *testing.T) {
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string, err error) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	mgr.RegisterShutdownHook("controller", record("controller", nil))
	mgr.RegisterShutdownHook("tracing", record("tracing", errors.New("flush failed")))
	mgr.RegisterShutdownHook("streams", record("streams", nil))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	waitForAddr(t, mgr)
	cancel()

	err = <-errChan
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook tracing: flush failed")
	assert.Equal(t, []string{"streams", "tracing", "controller"}, order)

	// Shutdown is idempotent once stopping.
	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_PropagatesListenErrors(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	defer testServer.Close()

	cfg := testServerConfig()
	cfg.ListenAddr = testServer.Listener.Addr().String()
	mgr, err := NewManager(cfg, Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = mgr.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start API server")
}
