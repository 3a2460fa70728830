// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Session attributes
	SessionGenerationKey = "session.generation"
	SessionPhaseKey      = "session.phase"
	ServicePortKey       = "session.service_port"

	// Workflow attributes
	WorkflowKey       = "workflow.name"
	WorkflowStepKey   = "workflow.step"
	WorkflowStatusKey = "workflow.status"

	// Capture attributes
	CaptureWhoKey    = "capture.who"
	CaptureWhyKey    = "capture.why"
	CaptureResultKey = "capture.result"
	CaptureCodeKey   = "capture.code"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes creates session-related span attributes.
func SessionAttributes(generation uint64, port int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(SessionGenerationKey, int64(generation)),
		attribute.Int(ServicePortKey, port),
	}
}

// WorkflowAttributes creates workflow-related span attributes.
func WorkflowAttributes(workflow string, generation uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WorkflowKey, workflow),
		attribute.Int64(SessionGenerationKey, int64(generation)),
	}
}

// StepAttributes records the outcome of one workflow step.
func StepAttributes(step, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WorkflowStepKey, step),
		attribute.String(WorkflowStatusKey, status),
	}
}

// CaptureAttributes creates capture-related span attributes. Empty who/why
// are omitted.
func CaptureAttributes(who, why string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if who != "" {
		attrs = append(attrs, attribute.String(CaptureWhoKey, who))
	}
	if why != "" {
		attrs = append(attrs, attribute.String(CaptureWhyKey, why))
	}
	return attrs
}

// CaptureResultAttributes records how a capture completed.
func CaptureResultAttributes(result string, code int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CaptureResultKey, result),
		attribute.Int(CaptureCodeKey, code),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
