// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldOperationID = "operation_id"
	FieldGeneration  = "session_generation"
	FieldHandle      = "signature_handle"

	// Process / workflow fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldWorkflow  = "workflow"
	FieldStep      = "step"
	FieldStatus    = "status"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldServicePort = "service_port"
	FieldRemoteAddr  = "remote_addr"
)
