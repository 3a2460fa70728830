// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/config"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/bridge"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
	"github.com/ManuGH/sigcapt/internal/version"
)

func fastSettings() sigcapt.Settings {
	return sigcapt.Merge(sigcapt.DefaultSettings(), sigcapt.Settings{DetectTimeout: 200 * time.Millisecond})
}

func reserveAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "capture", "simulator", "version"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "sigcaptd "+version.String()+"\n", out.String())
}

func TestCaptureOncePrintsImage(t *testing.T) {
	fake := sigsdktest.New()
	var out bytes.Buffer

	err := captureOnce(context.Background(), fake, fastSettings(), captureOptions{who: "Ann", why: "Approval"}, &out)
	require.NoError(t, err)
	assert.Equal(t, sigcapt.ImagePrefix+sigsdktest.DefaultImage+"\n", out.String())
	assert.Equal(t, 1, fake.Count(sigsdk.OpCaptureCapture))
	assert.Equal(t, "Ann", fake.Signature().Who)
	assert.Equal(t, 0, fake.OpenConns())
}

func TestCaptureOncePrintsText(t *testing.T) {
	fake := sigsdktest.New()
	fake.SetText("order 42")
	var out bytes.Buffer

	err := captureOnce(context.Background(), fake, fastSettings(), captureOptions{text: true}, &out)
	require.NoError(t, err)
	assert.Equal(t, sigcapt.ImagePrefix+sigsdktest.DefaultImage+"\norder 42\n", out.String())
}

func TestCaptureOnceFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *sigsdktest.Fake)
		wantErr error
	}{
		{
			name:    "cancelled",
			setup:   func(f *sigsdktest.Fake) { f.SetStatus(sigsdk.OpCaptureCapture, sigsdk.CaptureCancel) },
			wantErr: errCaptureCanceled,
		},
		{
			name:    "not licensed",
			setup:   func(f *sigsdktest.Fake) { f.SetStatus(sigsdk.OpCaptureCapture, sigsdk.CaptureNotLicensed) },
			wantErr: sigcapt.ErrNotLicensed,
		},
		{
			name:    "no service",
			setup:   func(f *sigsdktest.Fake) { f.SetNeverRunning(true) },
			wantErr: errNoService,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := sigsdktest.New()
			tt.setup(fake)
			var out bytes.Buffer

			err := captureOnce(context.Background(), fake, fastSettings(), captureOptions{}, &out)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, out.String())
		})
	}
}

func TestCaptureOnceHonoursDeadline(t *testing.T) {
	fake := sigsdktest.New()
	fake.SetHook(sigsdk.OpCaptureCapture, func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := captureOnce(ctx, fake, fastSettings(), captureOptions{}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCaptureThroughSimulator(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runSimulator(ctx, ln, newSimulatedPad(simulatorOptions{text: "simulated"})) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	client := bridge.NewClient(bridge.WithHost("127.0.0.1"))
	settings := sigcapt.Merge(fastSettings(), sigcapt.Settings{ServicePort: port, DetectTimeout: time.Second})
	var out bytes.Buffer
	require.NoError(t, captureOnce(context.Background(), client, settings, captureOptions{text: true}, &out))
	assert.Equal(t, sigcapt.ImagePrefix+sigsdktest.DefaultImage+"\nsimulated\n", out.String())
}

func TestSimulatedPadCaptureStatus(t *testing.T) {
	pad := newSimulatedPad(simulatorOptions{captureStatus: int(sigsdk.CaptureAbort)})
	err := captureOnce(context.Background(), pad, fastSettings(), captureOptions{}, &bytes.Buffer{})
	require.ErrorIs(t, err, sigcapt.ErrDocumentAbort)
}

func TestServeRunsUntilCancelled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Server.ListenAddr = reserveAddr(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Server.AllowedOrigins = []string{"http://pad.local"}
	cfg.Capture.DetectTimeout = 200 * time.Millisecond
	fake := sigsdktest.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, fake) }()

	base := "http://" + cfg.Server.ListenAddr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/state")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var st struct {
			Phase string `json:"phase"`
		}
		return json.NewDecoder(resp.Body).Decode(&st) == nil && st.Phase == string(sigcapt.PhaseReady)
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/capture", "application/json", strings.NewReader(`{"who":"Ann"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return fake.Count(sigsdk.OpSignatureRender) == 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Equal(t, 0, fake.OpenConns())
}

func TestServeRejectsBadListenAddr(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.ListenAddr = "nonsense"
	err := serve(context.Background(), cfg, sigsdktest.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup checks")
}
