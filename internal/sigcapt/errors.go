// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"errors"
	"fmt"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("sigcapt: controller closed")

// CaptureError is a terminal capture failure reported by the pad service.
type CaptureError struct {
	Code    sigsdk.Status
	Message string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture error %d: %s", int(e.Code), e.Message)
}

// Is matches any CaptureError with the same code.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	return ok && t.Code == e.Code
}

var (
	ErrPadUnavailable      = &CaptureError{Code: sigsdk.CapturePadError, Message: "No capture service available"}
	ErrTablet              = &CaptureError{Code: sigsdk.CaptureError, Message: "Tablet Error"}
	ErrIntegrityKeyInvalid = &CaptureError{Code: sigsdk.CaptureIntegrityKeyInvalid, Message: "The integrity key parameter is invalid (obsolete)"}
	ErrNotLicensed         = &CaptureError{Code: sigsdk.CaptureNotLicensed, Message: "No valid Signature Capture licence found"}
	ErrDocumentAbort       = &CaptureError{Code: sigsdk.CaptureAbort, Message: "Error - unable to parse document contents"}
)

// genericCaptureMessage is reported for codes without a dedicated message.
const genericCaptureMessage = "Capture Error"

// ClassifyCapture maps a non-OK, non-cancel capture status to its error.
func ClassifyCapture(status sigsdk.Status) *CaptureError {
	for _, known := range []*CaptureError{ErrPadUnavailable, ErrTablet, ErrIntegrityKeyInvalid, ErrNotLicensed, ErrDocumentAbort} {
		if known.Code == status {
			return &CaptureError{Code: status, Message: known.Message}
		}
	}
	return &CaptureError{Code: status, Message: genericCaptureMessage}
}
