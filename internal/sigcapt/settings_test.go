// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, "", s.Licence)
	require.Equal(t, BitmapSettings{Width: 640, Height: 480, InkWidth: 0.7}, s.Bitmap)
	require.Equal(t, 1500*time.Millisecond, s.DetectTimeout)
	require.Equal(t, 8000, s.ServicePort)
	require.Nil(t, s.Output)
	require.NoError(t, s.Validate())
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	base := DefaultSettings()
	base.Licence = "OLD"

	got := Merge(base, Settings{Bitmap: BitmapSettings{Width: 320, Height: 200}, ServicePort: 8001})
	require.Equal(t, "OLD", got.Licence)
	require.Equal(t, 320, got.Bitmap.Width)
	require.Equal(t, 200, got.Bitmap.Height)
	require.Equal(t, 0.7, got.Bitmap.InkWidth)
	require.Equal(t, 8001, got.ServicePort)
	require.Equal(t, DefaultDetectTimeout, got.DetectTimeout)
}

func TestMergeAppliesExplicitZeroValues(t *testing.T) {
	base := DefaultSettings()
	base.Licence = "OLD"
	base.Bitmap.PaddingX = 10
	base.Bitmap.PaddingY = 6

	got := Merge(base, Settings{Explicit: ExplicitLicence | ExplicitPaddingX})
	require.Empty(t, got.Licence)
	require.Equal(t, 0, got.Bitmap.PaddingX)
	require.Equal(t, 6, got.Bitmap.PaddingY)
	require.Equal(t, Explicit(0), got.Explicit)
	require.Equal(t, DefaultWidth, got.Bitmap.Width)
}

func TestInitializeCanClearLicence(t *testing.T) {
	h := newHarness(t, Settings{})
	require.NoError(t, h.c.Initialize(Settings{Licence: "ABC"}, nil))
	h.await(EventReady)

	require.NoError(t, h.c.Initialize(Settings{Explicit: ExplicitLicence}, nil))
	h.await(EventReady)
	require.Empty(t, h.c.Settings().Licence)
	require.Len(t, argsOf(h.fake, sigsdk.OpControlPutLicence), 1)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := DefaultSettings()
	s.Bitmap.Width = 0
	s.Bitmap.PaddingX = -1
	s.ServicePort = 0

	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalidSettings)
	require.ErrorContains(t, err, "bitmap size")
	require.ErrorContains(t, err, "padding")
	require.ErrorContains(t, err, "service port")
}
