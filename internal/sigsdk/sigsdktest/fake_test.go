// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigsdktest

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/stretchr/testify/require"
)

func connectRunning(t *testing.T, f *Fake) sigsdk.Conn {
	t.Helper()
	running := make(chan struct{}, 1)
	c, err := f.Connect(context.Background(), 8000, func() { running <- struct{}{} })
	require.NoError(t, err)
	select {
	case <-running:
	case <-time.After(time.Second):
		t.Fatal("connection never announced running")
	}
	require.True(t, c.Running())
	return c
}

func TestFakeQueuedStatusesPrecedePermanent(t *testing.T) {
	f := New()
	f.SetStatus(sigsdk.OpControlNew, sigsdk.StatusFailed)
	f.QueueStatus(sigsdk.OpControlNew, sigsdk.StatusOK)
	c := connectRunning(t, f)

	_, st := c.NewControl(context.Background())
	require.Equal(t, sigsdk.StatusOK, st)
	_, st = c.NewControl(context.Background())
	require.Equal(t, sigsdk.StatusFailed, st)
	require.Equal(t, 2, f.Count(sigsdk.OpControlNew))
}

func TestFakeCaptureStampsSignature(t *testing.T) {
	f := New()
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.SetClock(func() time.Time { return stamp })
	c := connectRunning(t, f)
	ctx := context.Background()

	ctl, _ := c.NewControl(ctx)
	dc, _ := c.NewCapture(ctx)
	sig, st := dc.Capture(ctx, ctl, "Ann", "Approval")
	require.Equal(t, sigsdk.CaptureOK, st)

	captured, _ := sig.GetIsCaptured(ctx)
	require.True(t, captured)
	when, _ := sig.GetWhen(ctx, sigsdk.TimeUTC)
	require.True(t, stamp.Equal(when))
	require.Equal(t, []string{"Ann", "Approval"}, f.Calls()[2].Args)
}

func TestFakeClosedConnReportsInvalidSession(t *testing.T) {
	f := New()
	c := connectRunning(t, f)
	require.NoError(t, c.Close())
	require.False(t, c.Running())
	_, st := c.NewControl(context.Background())
	require.Equal(t, sigsdk.StatusInvalidSession, st)
	require.Equal(t, 0, f.OpenConns())
}

func TestFakeNeverRunning(t *testing.T) {
	f := New()
	f.SetNeverRunning(true)
	c, err := f.Connect(context.Background(), 8000, func() { t.Error("unexpected running callback") })
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.False(t, c.Running())
	require.NoError(t, c.Close())
}
