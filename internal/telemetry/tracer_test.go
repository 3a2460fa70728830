// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "test-service"})
	require.NoError(t, err)
	require.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	require.False(t, span.IsRecording())
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "test-service", ExporterType: "invalid"})
	require.EqualError(t, err, "unsupported exporter type: invalid (supported: grpc, http, stdout)")
}

func TestNewProvider_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "sigcapt",
		ExporterType: "stdout",
		SamplingRate: 1.0,
		Writer:       &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })

	_, span := Tracer("test").Start(context.Background(), "sigcapt.capture")
	require.True(t, span.IsRecording())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	require.Contains(t, buf.String(), "sigcapt.capture")
}
