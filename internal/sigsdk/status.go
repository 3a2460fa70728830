// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigsdk

import "strconv"

// Status is the completion code of a service call.
type Status int

const (
	StatusOK             Status = 0
	StatusTimeout        Status = -1
	StatusInvalidSession Status = -2
	StatusFailed         Status = -3
)

// Capture results share the status space; CaptureOK equals StatusOK.
const (
	CaptureOK                  Status = 0
	CaptureCancel              Status = 1
	CapturePadError            Status = 100
	CaptureError               Status = 101
	CaptureIntegrityKeyInvalid Status = 102
	CaptureNotLicensed         Status = 103
	CaptureAbort               Status = 200
)

func (s Status) OK() bool { return s == StatusOK }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusInvalidSession:
		return "invalid_session"
	case StatusFailed:
		return "failed"
	case CaptureCancel:
		return "cancel"
	case CapturePadError:
		return "pad_error"
	case CaptureError:
		return "tablet_error"
	case CaptureIntegrityKeyInvalid:
		return "integrity_key_invalid"
	case CaptureNotLicensed:
		return "not_licensed"
	case CaptureAbort:
		return "abort"
	default:
		return "status_" + strconv.Itoa(int(s))
	}
}
