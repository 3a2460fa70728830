// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/health"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
)

type testEnv struct {
	fake *sigsdktest.Fake
	ctl  *sigcapt.Controller
	srv  *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	fake := sigsdktest.New()
	nop := zerolog.Nop()
	ctl, err := sigcapt.New(sigcapt.Options{
		Service:  fake,
		Bus:      bus.NewMemoryBusSize(256),
		Settings: sigcapt.Settings{DetectTimeout: 200 * time.Millisecond},
		Logger:   &nop,
	})
	require.NoError(t, err)

	hm := health.NewManager("test", ctl)
	cfg.DisableAccessLog = true
	api := New(ctl, hm, cfg)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		_ = api.Close()
		srv.Close()
		require.NoError(t, ctl.Close())
	})
	return &testEnv{fake: fake, ctl: ctl, srv: srv}
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) state(t *testing.T) StateResponse {
	t.Helper()
	resp := e.get(t, "/api/v1/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func (e *testEnv) waitPhase(t *testing.T, want sigcapt.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return e.ctl.State() == want }, 3*time.Second, 10*time.Millisecond)
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestStateBeforeInitialize(t *testing.T) {
	env := newTestEnv(t, Config{})

	st := env.state(t)
	assert.Equal(t, sigcapt.PhaseAbsent, st.Phase)
	assert.Zero(t, st.Generation)
	assert.Empty(t, st.Image)
	assert.False(t, st.HasText)
}

func TestInitializeReachesReady(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.post(t, "/api/v1/session/initialize", `{"licence":"LIC","width":320,"height":200,"detectTimeoutMs":500}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack AcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "initialize", ack.Operation)
	assert.NotEmpty(t, ack.RequestID)

	env.waitPhase(t, sigcapt.PhaseReady)
	st := env.state(t)
	assert.Equal(t, sigcapt.Versions{Control: sigsdktest.DefaultVersion, Capture: sigsdktest.DefaultVersion}, st.Versions)
	assert.Equal(t, 1, env.fake.Count(sigsdk.OpControlPutLicence))

	settings := env.ctl.Settings()
	assert.Equal(t, 320, settings.Bitmap.Width)
	assert.Equal(t, 200, settings.Bitmap.Height)
	assert.Equal(t, 500*time.Millisecond, settings.DetectTimeout)
	assert.Equal(t, sigcapt.DefaultServicePort, settings.ServicePort)
}

func TestInitializeAppliesExplicitZeroValues(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.post(t, "/api/v1/session/initialize", `{"licence":"LIC","paddingX":12,"paddingY":8}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)
	require.Equal(t, "LIC", env.ctl.Settings().Licence)

	resp = env.post(t, "/api/v1/session/initialize", `{"licence":"","paddingX":0,"width":320}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)

	settings := env.ctl.Settings()
	assert.Empty(t, settings.Licence)
	assert.Equal(t, 0, settings.Bitmap.PaddingX)
	assert.Equal(t, 8, settings.Bitmap.PaddingY, "omitted padding keeps its value")
	assert.Equal(t, 320, settings.Bitmap.Width)
	assert.Equal(t, 1, env.fake.Count(sigsdk.OpControlPutLicence))
}

func TestInitializeRejectsInvalidSettings(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.post(t, "/api/v1/session/initialize", `{"width":-1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "invalid_settings", body.Error)
	assert.Contains(t, body.Detail, "bitmap size")
	assert.Equal(t, sigcapt.PhaseAbsent, env.ctl.State())
}

func TestBodyDecodingIsStrict(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown field", "/api/v1/capture", `{"who":"Ann","colour":"red"}`},
		{"malformed", "/api/v1/signature/text", `{"text":`},
		{"trailing document", "/api/v1/capture", `{"who":"Ann"}{"who":"Bob"}`},
		{"wrong type", "/api/v1/session/initialize", `{"width":"wide"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_body", decodeError(t, resp).Error)
		})
	}
	assert.Zero(t, env.fake.Connects())
}

func TestCaptureRoundTrip(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.fake.SetText("signed")

	require.Equal(t, http.StatusAccepted, env.post(t, "/api/v1/session/initialize", "").StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)

	resp := env.post(t, "/api/v1/capture", `{"who":"Ann","why":"Approval"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, hasText := env.ctl.Text()
		return env.ctl.Image() != "" && hasText
	}, 3*time.Second, 10*time.Millisecond)

	st := env.state(t)
	assert.Equal(t, sigcapt.ImagePrefix+sigsdktest.DefaultImage, st.Image)
	assert.Equal(t, "signed", st.Text)

	var captureArgs [][]string
	for _, c := range env.fake.Calls() {
		if c.Op == sigsdk.OpCaptureCapture {
			captureArgs = append(captureArgs, c.Args)
		}
	}
	assert.Equal(t, [][]string{{"Ann", "Approval"}}, captureArgs)
}

func TestCommandRoutesDispatch(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.Equal(t, http.StatusAccepted, env.post(t, "/api/v1/session/initialize", "{}").StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)

	tests := []struct {
		path string
		body string
		op   sigsdk.Op
	}{
		{"/api/v1/signature/clear", "", sigsdk.OpSignatureClear},
		{"/api/v1/signature/text", `{"text":"hello"}`, sigsdk.OpSignaturePutText},
		{"/api/v1/signature/details", "", sigsdk.OpSignatureIsCaptured},
		{"/api/v1/about", "", sigsdk.OpControlAbout},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := env.post(t, tt.path, tt.body)
			require.Equal(t, http.StatusAccepted, resp.StatusCode)
			require.Eventually(t, func() bool { return env.fake.Count(tt.op) >= 1 }, 3*time.Second, 10*time.Millisecond)
		})
	}
}

func TestRestartBumpsGeneration(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.Equal(t, http.StatusAccepted, env.post(t, "/api/v1/session/initialize", "").StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)
	before := env.ctl.Generation()

	resp := env.post(t, "/api/v1/session/restart", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack AcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Greater(t, ack.Generation, before)

	env.waitPhase(t, sigcapt.PhaseReady)
	assert.Equal(t, 2, env.fake.Connects())
}

func TestProbesFollowSessionPhase(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.fake.SetNeverRunning(true)
	require.Equal(t, http.StatusAccepted, env.post(t, "/api/v1/session/initialize", "").StatusCode)
	env.waitPhase(t, sigcapt.PhaseNotDetected)

	resp = env.get(t, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var ready health.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.False(t, ready.Ready)
	require.NotNil(t, ready.Session)
	assert.Equal(t, sigcapt.PhaseNotDetected, ready.Session.Phase)
	assert.Equal(t, health.StatusUnhealthy, ready.Checks["signature_session"].Status)

	env.fake.SetNeverRunning(false)
	require.Equal(t, http.StatusAccepted, env.post(t, "/api/v1/session/restart", "").StatusCode)
	env.waitPhase(t, sigcapt.PhaseReady)
	assert.Equal(t, http.StatusOK, env.get(t, "/readyz").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.get(t, "/api/v1/state")

	resp := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb strings.Builder
	_, err := io.Copy(&sb, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "sigcapt_session_state")
	assert.Contains(t, sb.String(), "sigcapt_http_request_duration_seconds")
}

func TestUnknownRoutesAnswerJSON(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.get(t, "/api/v1/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, resp).Error)

	resp = env.get(t, "/api/v1/capture")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "method_not_allowed", decodeError(t, resp).Error)
}
