// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigsdk

// Op names a single service call. The names are shared by the wire bridge
// and the in-memory fake.
type Op string

const (
	OpControlNew          Op = "control.new"
	OpCaptureNew          Op = "capture.new"
	OpControlPutLicence   Op = "control.put_licence"
	OpControlGetSignature Op = "control.get_signature"
	OpControlGetProperty  Op = "control.get_property"
	OpControlAbout        Op = "control.about"
	OpCaptureGetProperty  Op = "capture.get_property"
	OpCaptureCapture      Op = "capture.capture"
	OpSignatureRender     Op = "signature.render"
	OpSignatureGetText    Op = "signature.get_text"
	OpSignaturePutText    Op = "signature.put_text"
	OpSignatureIsCaptured Op = "signature.is_captured"
	OpSignatureWho        Op = "signature.who"
	OpSignatureWhen       Op = "signature.when"
	OpSignatureWhy        Op = "signature.why"
	OpSignatureClear      Op = "signature.clear"
)

// Ops lists every known operation.
var Ops = []Op{
	OpControlNew, OpCaptureNew, OpControlPutLicence, OpControlGetSignature,
	OpControlGetProperty, OpControlAbout, OpCaptureGetProperty, OpCaptureCapture,
	OpSignatureRender, OpSignatureGetText, OpSignaturePutText, OpSignatureIsCaptured,
	OpSignatureWho, OpSignatureWhen, OpSignatureWhy, OpSignatureClear,
}

// Known reports whether op is part of the service surface.
func (op Op) Known() bool {
	for _, o := range Ops {
		if o == op {
			return true
		}
	}
	return false
}
