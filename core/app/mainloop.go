package app

import (
	"bytes"
	"image"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/spectrumx/svi/core"
	"github.com/spectrumx/svi/core/dsp"
	uiwaterfall "github.com/spectrumx/svi/ui/waterfall"
)

// Frame is one rendered waterfall frame, PNG-encoded.
type Frame struct {
	Plot   []byte
	Legend []byte
	Time   time.Time
}

type command func()

type reducerType interface {
	Append(*core.DecodedRow)
	RequestRescale()
	SetMaxHold(bool)
	Snapshot() core.Snapshot
	Rescale() core.DBRange
	ClearScaleChanged()
}

type rendererType interface {
	NewPlot() *image.RGBA
	NewLegend() *image.RGBA
	Render(plot, legend *image.RGBA, state uiwaterfall.State)
}

// syntheticDevice identifies rows produced from the test-mode sample input.
const syntheticDevice = core.DeviceID("synthetic")

const syntheticBins = 256

func newMainLoop(reducer reducerType, renderer rendererType, samplesInput core.SamplesInput, sampleRange core.FrequencyRange, framesPerSecond int, logger *zap.Logger) *mainLoop {
	if framesPerSecond <= 0 {
		framesPerSecond = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	redrawInterval := time.Second / time.Duration(framesPerSecond)
	return &mainLoop{
		reducer:      reducer,
		renderer:     renderer,
		samplesInput: samplesInput,
		sampleRange:  sampleRange,

		plot:   renderer.NewPlot(),
		legend: renderer.NewLegend(),

		redrawTick: time.NewTicker(redrawInterval),
		rows:       make(chan *core.DecodedRow, 16),
		command:    make(chan command, 1),
		frames:     make(chan Frame, 1),
		logger:     logger,
	}
}

type mainLoop struct {
	reducer      reducerType
	renderer     rendererType
	samplesInput core.SamplesInput
	sampleRange  core.FrequencyRange

	plot   *image.RGBA
	legend *image.RGBA

	redrawTick *time.Ticker
	rows       chan *core.DecodedRow
	command    chan command
	frames     chan Frame
	logger     *zap.Logger
}

// Run the main loop until the stop channel closes. All reducer mutation and
// all rendering happens here, so rows are never appended while a render pass
// for the same buffer is in progress.
func (m *mainLoop) Run(stop chan struct{}) {
	defer m.logger.Info("main loop shutdown")

	var samples <-chan []complex128
	if m.samplesInput != nil {
		samples = m.samplesInput.Samples()
	}

	for {
		select {
		case block, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			m.reducer.Append(dsp.Row(syntheticDevice, m.sampleRange, block, syntheticBins))
		case row := <-m.rows:
			m.reducer.Append(row)
		case <-m.redrawTick.C:
			m.redraw()
		case command := <-m.command:
			command()
		case <-stop:
			m.redrawTick.Stop()
			return
		}
	}
}

func (m *mainLoop) redraw() {
	m.renderer.Render(m.plot, m.legend, m.reducer)

	frame := Frame{
		Plot:   encodePNG(m.plot, m.logger),
		Legend: encodePNG(m.legend, m.logger),
		Time:   time.Now(),
	}

	// keep only the latest frame for slow consumers
	select {
	case m.frames <- frame:
	default:
		select {
		case <-m.frames:
		default:
		}
		select {
		case m.frames <- frame:
		default:
		}
	}
}

// Frames delivers the rendered frames, most recent only.
func (m *mainLoop) Frames() <-chan Frame {
	return m.frames
}

// SubmitRow queues a decoded row for the next loop iteration. Rows are
// dropped when the queue is full.
func (m *mainLoop) SubmitRow(row *core.DecodedRow) {
	select {
	case m.rows <- row:
	default:
		m.logger.Warn("row queue full, dropping row")
	}
}

func (m *mainLoop) q(cmd command) {
	select {
	case m.command <- cmd:
	default:
		m.logger.Warn("command queue full")
	}
}

// RequestRescale schedules a full rescale on the loop.
func (m *mainLoop) RequestRescale() {
	m.q(func() {
		m.reducer.RequestRescale()
	})
}

// SetMaxHold switches max-hold tracking on the loop.
func (m *mainLoop) SetMaxHold(on bool) {
	m.q(func() {
		m.reducer.SetMaxHold(on)
	})
}

func encodePNG(img *image.RGBA, logger *zap.Logger) []byte {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		logger.Error("cannot encode frame", zap.Error(err))
		return nil
	}
	return buffer.Bytes()
}
