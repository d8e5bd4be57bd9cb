package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modemstack/smsdispatch/internal/config"
	"github.com/modemstack/smsdispatch/internal/dispatch"
	"github.com/modemstack/smsdispatch/internal/encoding"
	"github.com/modemstack/smsdispatch/internal/radio"
	"github.com/modemstack/smsdispatch/internal/sim"
	"github.com/modemstack/smsdispatch/internal/store"
	"github.com/modemstack/smsdispatch/internal/usage"
)

func newTestServer(t *testing.T) (*Server, *dispatch.Dispatcher) {
	t.Helper()

	var server *Server
	d := dispatch.New(dispatch.Config{SubID: 1}, dispatch.Dependencies{
		Radio:   radio.NewLoopback(),
		Encoder: encoding.NewDefault(),
		Store:   store.NewMemory(),
		SIMRefs: sim.NewMemoryRefStore(),
		SubRefs: sim.NewMemoryRefStore(),
		Usage:   usage.NewDefaultMonitor(usage.VolumeConfig{MessagesPerSecond: 1000, Burst: 1000}),
		Consent: dispatch.ConsentFunc(func(req dispatch.ConfirmationRequest) {
			server.ConsentSurface().RequestConfirmation(req)
		}),
		Device: dispatch.NewStaticDeviceState(),
		Apps:   dispatch.StaticApps{},
	})
	server = NewServer(config.HTTPConfig{Addr: "127.0.0.1:0"}, d)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)
	return server, d
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendSMSAccepted(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/sms",
		`{"to":"+15550100","text":"hello","caller":"app.example"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp sendSMSResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.NotZero(t, resp.MessageID)
}

func TestSendSMSValidation(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/sms", `{"text":"missing to"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/sms", `{"to":"+15550100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/sms", `{"to":"+15550100","text":"x","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromptLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	// 29999 is premium under the built-in US rules, so the send parks
	// behind a prompt.
	rec := doJSON(t, h, http.MethodPost, "/v1/sms",
		`{"to":"29999","text":"WIN NOW","caller":"app.example"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var prompts []promptView
	require.Eventually(t, func() bool {
		rec := doJSON(t, h, http.MethodGet, "/v1/prompts", "")
		if rec.Code != http.StatusOK {
			return false
		}
		prompts = nil
		if err := json.Unmarshal(rec.Body.Bytes(), &prompts); err != nil {
			return false
		}
		return len(prompts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "short_code", prompts[0].Kind)
	assert.Equal(t, "premium", prompts[0].Category)

	path := "/v1/prompts/" + strconv.FormatInt(prompts[0].PromptID, 10) + "/resolve"
	rec = doJSON(t, h, http.MethodPost, path, `{"decision":"allow"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The prompt is consumed.
	rec = doJSON(t, h, http.MethodPost, path, `{"decision":"allow"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolvePromptValidation(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/prompts/abc/resolve", `{"decision":"allow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/prompts/1/resolve", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/prompts/999/resolve", `{"decision":"deny"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
