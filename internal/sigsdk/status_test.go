// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigsdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "ok"},
		{StatusInvalidSession, "invalid_session"},
		{CaptureCancel, "cancel"},
		{CaptureAbort, "abort"},
		{Status(42), "status_42"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.status.String())
	}
	require.True(t, CaptureOK.OK())
	require.False(t, StatusTimeout.OK())
}

func TestOpKnown(t *testing.T) {
	require.True(t, OpSignatureWhen.Known())
	require.False(t, Op("signature.explode").Known())
}
