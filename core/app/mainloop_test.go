package app

import (
	"encoding/base64"
	"encoding/binary"
	"image"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrumx/svi/core"
	uiwaterfall "github.com/spectrumx/svi/ui/waterfall"
)

type mockReducer struct {
	appended atomic.Int32
	rescales atomic.Int32
}

func (m *mockReducer) Append(*core.DecodedRow) { m.appended.Add(1) }
func (m *mockReducer) RequestRescale()         { m.rescales.Add(1) }
func (m *mockReducer) SetMaxHold(bool)         {}
func (m *mockReducer) Snapshot() core.Snapshot { return core.Snapshot{} }
func (m *mockReducer) Rescale() core.DBRange   { return core.DBRange{} }
func (m *mockReducer) ClearScaleChanged()      {}

type mockRenderer struct {
	renders atomic.Int32
}

func (m *mockRenderer) NewPlot() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func (m *mockRenderer) NewLegend() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 2, 4))
}

func (m *mockRenderer) Render(plot, legend *image.RGBA, state uiwaterfall.State) {
	m.renders.Add(1)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met in time")
}

func TestMainLoop_StopAndDone(t *testing.T) {
	m := newMainLoop(&mockReducer{}, &mockRenderer{}, nil, core.FrequencyRange{}, 100, nil)

	stop := make(chan struct{})
	start := time.Now()
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(stop)
	}()
	m.Run(stop)

	assert.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestMainLoop_RendersOnTick(t *testing.T) {
	reducer := &mockReducer{}
	renderer := &mockRenderer{}
	m := newMainLoop(reducer, renderer, nil, core.FrequencyRange{}, 100, nil)

	stop := make(chan struct{})
	defer close(stop)
	go m.Run(stop)

	waitFor(t, time.Second, func() bool { return renderer.renders.Load() > 0 })

	select {
	case frame := <-m.Frames():
		assert.NotEmpty(t, frame.Plot)
		assert.NotEmpty(t, frame.Legend)
		assert.False(t, frame.Time.IsZero())
	case <-time.After(time.Second):
		require.Fail(t, "missing frame")
	}
}

func TestMainLoop_AppendsSubmittedRows(t *testing.T) {
	reducer := &mockReducer{}
	m := newMainLoop(reducer, &mockRenderer{}, nil, core.FrequencyRange{}, 100, nil)

	stop := make(chan struct{})
	defer close(stop)
	go m.Run(stop)

	m.SubmitRow(&core.DecodedRow{DB: []float64{1}})
	waitFor(t, time.Second, func() bool { return reducer.appended.Load() == 1 })
}

func TestMainLoop_CommandsRunOnLoop(t *testing.T) {
	reducer := &mockReducer{}
	m := newMainLoop(reducer, &mockRenderer{}, nil, core.FrequencyRange{}, 100, nil)

	stop := make(chan struct{})
	defer close(stop)
	go m.Run(stop)

	m.RequestRescale()
	waitFor(t, time.Second, func() bool { return reducer.rescales.Load() == 1 })
}

func encodeFloat32(values ...float32) string {
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func testConfiguration() core.Configuration {
	return core.Configuration{
		FramesPerSec: 100,
		HistoryDepth: 8,
		PlotWidth:    16,
		PlotHeight:   16,
		PixelRatio:   1,
	}
}

func TestController_SubmitCapture(t *testing.T) {
	c := New(testConfiguration(), nil)
	c.Startup()
	defer c.Shutdown()

	err := c.SubmitCapture([]byte(`{
		"data": "` + encodeFloat32(0.001, 0.01) + `",
		"data_type": "float32",
		"min_frequency": 1000000,
		"max_frequency": 2000000,
		"mac_address": "aa:bb"
	}`))
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return c.Snapshot().Rows != nil && len(c.Snapshot().Rows) == 1 })
	assert.Equal(t, []float64{0, 10}, c.Snapshot().Rows[0].DB)
}

func TestController_SubmitCapture_SentinelDropped(t *testing.T) {
	c := New(testConfiguration(), nil)
	c.Startup()
	defer c.Shutdown()

	err := c.SubmitCapture([]byte(`{
		"data": "AAAAAAAA",
		"data_type": "float32",
		"min_frequency": 1,
		"max_frequency": 2,
		"mac_address": "aa:bb"
	}`))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.Snapshot().Rows, "sentinel frames must not reach the history")
}

func TestController_SubmitCapture_Invalid(t *testing.T) {
	c := New(testConfiguration(), nil)
	c.Startup()
	defer c.Shutdown()

	assert.Error(t, c.SubmitCapture([]byte(`{}`)))
}

func TestController_TestmodeProducesRows(t *testing.T) {
	configuration := testConfiguration()
	configuration.Testmode = true
	c := New(configuration, nil)
	c.Startup()
	defer c.Shutdown()

	waitFor(t, 2*time.Second, func() bool { return len(c.Snapshot().Rows) > 0 })
	assert.Equal(t, syntheticBins, c.Snapshot().Bins)
}

func TestController_NoJobsWithoutBackend(t *testing.T) {
	c := New(testConfiguration(), nil)
	c.Startup()
	defer c.Shutdown()

	assert.Nil(t, c.Jobs())
}
