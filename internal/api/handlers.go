// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

// InitializeRequest carries settings overrides. An omitted or zero field
// keeps the current value, except licence and padding: sent explicitly,
// they are applied even when empty or 0.
type InitializeRequest struct {
	Licence         *string `json:"licence"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	PaddingX        *int    `json:"paddingX"`
	PaddingY        *int    `json:"paddingY"`
	InkWidth        float64 `json:"inkWidth"`
	DetectTimeoutMs int64   `json:"detectTimeoutMs"`
	ServicePort     int     `json:"servicePort"`
}

// Settings converts the request into controller settings.
func (req InitializeRequest) Settings() sigcapt.Settings {
	s := sigcapt.Settings{
		Bitmap: sigcapt.BitmapSettings{
			Width:    req.Width,
			Height:   req.Height,
			InkWidth: req.InkWidth,
		},
		DetectTimeout: time.Duration(req.DetectTimeoutMs) * time.Millisecond,
		ServicePort:   req.ServicePort,
	}
	if req.Licence != nil {
		s.Licence = *req.Licence
		s.Explicit |= sigcapt.ExplicitLicence
	}
	if req.PaddingX != nil {
		s.Bitmap.PaddingX = *req.PaddingX
		s.Explicit |= sigcapt.ExplicitPaddingX
	}
	if req.PaddingY != nil {
		s.Bitmap.PaddingY = *req.PaddingY
		s.Explicit |= sigcapt.ExplicitPaddingY
	}
	return s
}

// CaptureRequest names the signatory and the reason for signing.
type CaptureRequest struct {
	Who string `json:"who"`
	Why string `json:"why"`
}

// TextRequest replaces the text embedded in the signature.
type TextRequest struct {
	Text string `json:"text"`
}

// AcceptedResponse acknowledges an operation whose outcome arrives on the
// event stream.
type AcceptedResponse struct {
	Operation  string `json:"operation"`
	Generation uint64 `json:"generation"`
	RequestID  string `json:"requestId,omitempty"`
}

// StateResponse is a snapshot of the controller.
type StateResponse struct {
	Phase      sigcapt.Phase    `json:"phase"`
	Generation uint64           `json:"generation"`
	Image      string           `json:"image,omitempty"`
	Text       string           `json:"text,omitempty"`
	HasText    bool             `json:"hasText"`
	Details    sigcapt.Details  `json:"details"`
	Versions   sigcapt.Versions `json:"versions"`
}

func (s *Server) snapshot() StateResponse {
	text, ok := s.ctl.Text()
	return StateResponse{
		Phase:      s.ctl.State(),
		Generation: s.ctl.Generation(),
		Image:      s.ctl.Image(),
		Text:       text,
		HasText:    ok,
		Details:    s.ctl.Details(),
		Versions:   s.ctl.Versions(),
	}
}

func (s *Server) accepted(w http.ResponseWriter, r *http.Request, op string) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Debug().
		Str(log.FieldWorkflow, op).
		Msg("operation accepted")
	writeJSON(w, http.StatusAccepted, AcceptedResponse{
		Operation:  op,
		Generation: s.ctl.Generation(),
		RequestID:  log.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "invalid_body", err)
		return
	}
	if err := s.ctl.Initialize(req.Settings(), nil); err != nil {
		switch {
		case errors.Is(err, sigcapt.ErrInvalidSettings):
			writeBadRequest(w, r, "invalid_settings", err)
		case errors.Is(err, sigcapt.ErrClosed):
			writeServiceUnavailable(w, err)
		default:
			writeBadRequest(w, r, "initialize_failed", err)
		}
		return
	}
	s.accepted(w, r, "initialize")
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.ctl.RestartSession(nil)
	s.accepted(w, r, "restart")
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "invalid_body", err)
		return
	}
	s.ctl.Capture(req.Who, req.Why)
	s.accepted(w, r, "capture")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctl.ClearSignature()
	s.accepted(w, r, "clear")
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "invalid_body", err)
		return
	}
	s.ctl.SetSignatureText(req.Text)
	s.accepted(w, r, "set_text")
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	s.ctl.DisplaySignatureDetails()
	s.accepted(w, r, "details")
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.ctl.ShowAbout()
	s.accepted(w, r, "about")
}
