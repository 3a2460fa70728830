// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
)

// syncBuffer guards a log buffer written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newController(t *testing.T, fake *sigsdktest.Fake) *sigcapt.Controller {
	t.Helper()
	nop := zerolog.Nop()
	ctl, err := sigcapt.New(sigcapt.Options{
		Service:  fake,
		Settings: sigcapt.Settings{DetectTimeout: 200 * time.Millisecond},
		Logger:   &nop,
	})
	require.NoError(t, err)
	return ctl
}

func TestAppRunRequiresCollaborators(t *testing.T) {
	ctx := context.Background()
	require.ErrorIs(t, NewApp(log.WithComponent("test"), nil, nil, sigcapt.Settings{}).Run(ctx), ErrMissingManager)

	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	require.ErrorIs(t, NewApp(log.WithComponent("test"), mgr, nil, sigcapt.Settings{}).Run(ctx), ErrMissingController)
}

func TestAppRunInitializesSessionAndServes(t *testing.T) {
	fake := sigsdktest.New()
	ctl := newController(t, fake)
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	mgr.RegisterShutdownHook("controller", func(context.Context) error { return ctl.Close() })

	out := &syncBuffer{}
	logger := zerolog.New(out).Level(zerolog.DebugLevel)
	app := NewApp(logger, mgr, ctl, sigcapt.Settings{Licence: "LIC"})

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return ctl.State() == sigcapt.PhaseReady }, 3*time.Second, 10*time.Millisecond)
	waitForAddr(t, mgr)
	assert.Equal(t, "LIC", ctl.Settings().Licence)

	require.Eventually(t, func() bool {
		s := out.String()
		return bytes.Contains([]byte(s), []byte(`"event":"ready"`)) &&
			bytes.Contains([]byte(s), []byte("signature session initialized"))
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, sigcapt.PhaseAbsent, ctl.State())
}

func TestAppRunRejectsInvalidSettings(t *testing.T) {
	ctl := newController(t, sigsdktest.New())
	defer func() { _ = ctl.Close() }()
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)

	err = NewApp(log.WithComponent("test"), mgr, ctl, sigcapt.Settings{ServicePort: 70000}).Run(context.Background())
	require.ErrorIs(t, err, sigcapt.ErrInvalidSettings)
	assert.Nil(t, mgr.Addr())
}

func TestAppLogsNoServiceDetected(t *testing.T) {
	fake := sigsdktest.New()
	fake.SetNeverRunning(true)
	ctl := newController(t, fake)
	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: http.NotFoundHandler()})
	require.NoError(t, err)
	mgr.RegisterShutdownHook("controller", func(context.Context) error { return ctl.Close() })

	out := &syncBuffer{}
	app := NewApp(zerolog.New(out), mgr, ctl, sigcapt.Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`"level":"warn","event":"noServiceDetected"`))
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errChan)
}
