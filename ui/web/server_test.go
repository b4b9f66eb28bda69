package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/spectrumx/svi/core"
	"github.com/spectrumx/svi/core/app"
	"github.com/spectrumx/svi/core/capture"
	"github.com/spectrumx/svi/core/jobs"
)

type testController struct {
	captureErr   error
	captured     [][]byte
	rescales     int
	maxHold      bool
	frames       chan app.Frame
	snapshot     core.Snapshot
	jobClient    *jobs.Client
	maxHoldCalls int
}

func newTestController() *testController {
	return &testController{frames: make(chan app.Frame, 1)}
}

func (c *testController) SubmitCapture(raw []byte) error {
	c.captured = append(c.captured, raw)
	return c.captureErr
}

func (c *testController) RequestRescale() { c.rescales++ }

func (c *testController) SetMaxHold(on bool) {
	c.maxHold = on
	c.maxHoldCalls++
}

func (c *testController) Frames() <-chan app.Frame { return c.frames }

func (c *testController) Snapshot() core.Snapshot { return c.snapshot }

func (c *testController) Jobs() *jobs.Client { return c.jobClient }

func newTestServer(t *testing.T, controller *testController) (*Server, *httptest.Server) {
	t.Helper()
	server := NewServer(controller, "127.0.0.1:0", nil)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func TestSubmitCapture(t *testing.T) {
	controller := newTestController()
	_, httpServer := newTestServer(t, controller)

	response, err := http.Post(httpServer.URL+"/captures", "application/json", strings.NewReader(`{"data":[1,2]}`))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusAccepted, response.StatusCode)
	require.Len(t, controller.captured, 1)
	assert.JSONEq(t, `{"data":[1,2]}`, string(controller.captured[0]))
}

func TestSubmitCapture_Invalid(t *testing.T) {
	controller := newTestController()
	controller.captureErr = &capture.ValidationError{Field: "data", Reason: "missing"}
	_, httpServer := newTestServer(t, controller)

	response, err := http.Post(httpServer.URL+"/captures", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestSubmitCapture_MethodNotAllowed(t *testing.T) {
	controller := newTestController()
	_, httpServer := newTestServer(t, controller)

	response, err := http.Get(httpServer.URL + "/captures")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
	assert.Empty(t, controller.captured)
}

func TestWaterfallPNG(t *testing.T) {
	controller := newTestController()
	server, httpServer := newTestServer(t, controller)

	response, err := http.Get(httpServer.URL + "/waterfall.png")
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	server.mu.Lock()
	server.latest = app.Frame{Plot: []byte("plot"), Legend: []byte("legend"), Time: time.Now()}
	server.mu.Unlock()

	response, err = http.Get(httpServer.URL + "/waterfall.png")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "image/png", response.Header.Get("Content-Type"))

	response, err = http.Get(httpServer.URL + "/legend.png")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func TestScale(t *testing.T) {
	controller := newTestController()
	controller.snapshot = core.Snapshot{Scale: core.DBRange{From: -35, To: -10}}
	_, httpServer := newTestServer(t, controller)

	response, err := http.Get(httpServer.URL + "/scale")
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var scale scaleResponse
	require.NoError(t, json.NewDecoder(response.Body).Decode(&scale))
	assert.Equal(t, -35.0, scale.From)
	assert.Equal(t, -10.0, scale.To)
	assert.Len(t, scale.Marks, 3)
}

func TestRescaleAndMaxHold(t *testing.T) {
	controller := newTestController()
	_, httpServer := newTestServer(t, controller)

	response, err := http.Post(httpServer.URL+"/rescale", "", nil)
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusAccepted, response.StatusCode)
	assert.Equal(t, 1, controller.rescales)

	response, err = http.Post(httpServer.URL+"/maxhold?on=true", "", nil)
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusAccepted, response.StatusCode)
	assert.True(t, controller.maxHold)

	response, err = http.Post(httpServer.URL+"/maxhold", "", nil)
	require.NoError(t, err)
	response.Body.Close()
	assert.False(t, controller.maxHold)
	assert.Equal(t, 2, controller.maxHoldCalls)
}

func TestWebsocketStreamsFrames(t *testing.T) {
	controller := newTestController()
	server, httpServer := newTestServer(t, controller)

	go server.pumpFrames()
	defer close(server.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	connection, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer connection.Close(websocket.StatusNormalClosure, "")

	// wait until the subscription is registered
	deadline := time.Now().Add(time.Second)
	for {
		server.mu.RLock()
		subscribed := len(server.subscribers) > 0
		server.mu.RUnlock()
		if subscribed || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	plot := []byte("frame-1")
	controller.frames <- app.Frame{Plot: plot, Time: time.Now()}

	messageType, payload, err := connection.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, messageType)
	assert.Equal(t, plot, payload)
}

func TestCreateSpectrogramJob(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/create_spectrogram/":
			json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "job_id": "job-7"})
		case r.URL.Path == "/api/job-metadata/job-7/":
			json.NewEncoder(w).Encode(map[string]string{"status": "running"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	controller := newTestController()
	controller.jobClient = jobs.NewClient(jobs.Config{BaseURL: backend.URL}, nil)
	_, httpServer := newTestServer(t, controller)

	body := bytes.NewReader([]byte(`{"width":600,"height":400}`))
	response, err := http.Post(httpServer.URL+"/jobs/spectrogram", "application/json", body)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(response.Body).Decode(&created))
	assert.Equal(t, "job-7", created["job_id"])

	metadataResponse, err := http.Get(httpServer.URL + "/jobs/job-7")
	require.NoError(t, err)
	defer metadataResponse.Body.Close()
	require.Equal(t, http.StatusOK, metadataResponse.StatusCode)

	var metadata jobs.Metadata
	require.NoError(t, json.NewDecoder(metadataResponse.Body).Decode(&metadata))
	assert.Equal(t, jobs.StatusRunning, metadata.Status)
}

func TestJobEndpointsWithoutBackend(t *testing.T) {
	controller := newTestController()
	_, httpServer := newTestServer(t, controller)

	response, err := http.Post(httpServer.URL+"/jobs/spectrogram", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
}
