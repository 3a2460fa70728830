// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
)

func TestDetailsOnUncapturedSignatureIsSilent(t *testing.T) {
	h := newHarness(t, Settings{})
	h.ready()
	mark := len(h.fake.Ops())

	h.c.DisplaySignatureDetails()
	require.Empty(t, h.drain(150*time.Millisecond))
	require.Equal(t, []sigsdk.Op{sigsdk.OpSignatureIsCaptured}, opsSince(h.fake, mark))
	require.Equal(t, Details{}, h.c.Details())
}

func TestDetailsPublishesAllFieldsInOrder(t *testing.T) {
	h := newHarness(t, Settings{})
	h.ready()
	when := time.Date(2024, 3, 5, 14, 3, 7, 0, time.UTC)
	h.fake.SetSignature(sigsdktest.SignatureData{Captured: true, Who: "Ann", Why: "Approval", When: when})
	mark := len(h.fake.Ops())

	h.c.DisplaySignatureDetails()
	evs := h.await(EventDetailsAvailable)
	evs = append(evs, h.drain(100*time.Millisecond)...)
	require.Equal(t, []EventKind{EventDetailsAvailable}, kinds(evs))

	ev := evs[0]
	require.Equal(t, "Ann", ev.Who)
	require.Equal(t, "Approval", ev.Why)
	require.Equal(t, FormatWhen(when.Local()), ev.When)
	require.Equal(t, Details{Who: "Ann", Why: "Approval", When: ev.When}, h.c.Details())

	require.Equal(t, []sigsdk.Op{
		sigsdk.OpSignatureIsCaptured,
		sigsdk.OpSignatureWho,
		sigsdk.OpSignatureWhen,
		sigsdk.OpSignatureWhy,
	}, opsSince(h.fake, mark))
	require.Equal(t, [][]string{{string(sigsdk.TimeLocal)}}, argsOf(h.fake, sigsdk.OpSignatureWhen))
}

func TestDetailsAfterCaptureReportsCaptureArguments(t *testing.T) {
	h := newHarness(t, Settings{})
	h.ready()
	h.c.Capture("Bob", "Contract")
	h.await(EventBitmapRendered)

	h.c.DisplaySignatureDetails()
	ev := find(t, h.await(EventDetailsAvailable), EventDetailsAvailable)
	require.Equal(t, "Bob", ev.Who)
	require.Equal(t, "Contract", ev.Why)
	require.NotEmpty(t, ev.When)
}

func TestDetailsInvalidSessionRestartsAndRetries(t *testing.T) {
	h := newHarness(t, Settings{})
	h.ready()
	h.fake.SetSignature(sigsdktest.SignatureData{Captured: true, Who: "Ann", Why: "Approval", When: time.Now()})
	h.fake.QueueStatus(sigsdk.OpSignatureWho, sigsdk.StatusInvalidSession)

	h.c.DisplaySignatureDetails()
	evs := h.awaitAll(EventReady, EventDetailsAvailable)
	require.Equal(t, 1, count(evs, EventRestarting))
	require.Equal(t, 1, count(evs, EventDetailsAvailable))
	require.Equal(t, 2, h.fake.Count(sigsdk.OpSignatureWho))
}

func TestDetailsOtherFailureIsLoggedOnly(t *testing.T) {
	h := newHarness(t, Settings{})
	h.ready()
	h.fake.SetSignature(sigsdktest.SignatureData{Captured: true, Who: "Ann", Why: "Approval", When: time.Now()})
	h.fake.QueueStatus(sigsdk.OpSignatureWhen, sigsdk.StatusFailed)
	gen := h.c.Generation()

	h.c.DisplaySignatureDetails()
	require.Empty(t, h.drain(150*time.Millisecond))
	require.Equal(t, gen, h.c.Generation())
	require.Zero(t, h.fake.Count(sigsdk.OpSignatureWhy))
	require.Equal(t, Details{Who: "Ann"}, h.c.Details())
}

func TestDetailsWhileAbsentRestartsFirst(t *testing.T) {
	h := newHarness(t, Settings{})
	h.fake.SetSignature(sigsdktest.SignatureData{Captured: true, Who: "Ann", Why: "Approval", When: time.Now()})

	h.c.DisplaySignatureDetails()
	evs := h.awaitAll(EventReady, EventDetailsAvailable)
	require.Equal(t, 1, count(evs, EventRestarting))
}

func TestFormatWhen(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	when := time.Date(2024, 3, 5, 14, 3, 7, 0, loc)
	require.Equal(t, "Tue Mar 05 2024 14:03:07 GMT+0100 (CET)", FormatWhen(when))
}
