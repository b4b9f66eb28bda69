// Package app wires the decoding pipeline, the waterfall state, and the
// renderer into one running application.
package app

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/spectrumx/svi/core"
	"github.com/spectrumx/svi/core/capture"
	"github.com/spectrumx/svi/core/decode"
	"github.com/spectrumx/svi/core/jobs"
	"github.com/spectrumx/svi/core/playback"
	"github.com/spectrumx/svi/core/rx"
	"github.com/spectrumx/svi/core/waterfall"
	uiwaterfall "github.com/spectrumx/svi/ui/waterfall"
)

// New returns a new controller for the given configuration.
func New(configuration core.Configuration, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		configuration: configuration,
		logger:        logger,
	}
}

// Controller owns the application state and its lifecycle.
type Controller struct {
	configuration core.Configuration
	logger        *zap.Logger

	reducer      *waterfall.Waterfall
	loop         *mainLoop
	samplesInput core.SamplesInput
	jobClient    *jobs.Client

	done         chan struct{}
	subProcesses *sync.WaitGroup
}

// Startup the application.
func (c *Controller) Startup() {
	c.done = make(chan struct{})
	c.subProcesses = new(sync.WaitGroup)

	c.reducer = waterfall.New(c.configuration.HistoryDepth, c.logger)
	if c.configuration.Scale.Width() > 0 {
		c.reducer.SetScale(c.configuration.Scale)
	}

	renderer := uiwaterfall.NewRenderer(
		core.Px(c.configuration.PlotWidth),
		core.Px(c.configuration.PlotHeight),
		c.configuration.PixelRatio,
	)

	sampleRange := core.FrequencyRange{From: 88000000, To: 108000000}
	if c.configuration.Testmode {
		c.samplesInput = rx.NewRandomInput(4096, 250*time.Millisecond)
		c.logger.Info("test mode: feeding synthetic samples")
	}

	if c.configuration.BackendURL != "" {
		c.jobClient = jobs.NewClient(jobs.Config{
			BaseURL:      c.configuration.BackendURL,
			PollInterval: c.configuration.PollInterval,
			RetryLimit:   c.configuration.PollRetryLimit,
			StaleAfter:   c.configuration.JobTimeout,
		}, c.logger)
	}

	c.loop = newMainLoop(c.reducer, renderer, c.samplesInput, sampleRange, c.configuration.FramesPerSec, c.logger)

	c.subProcesses.Add(1)
	go func() {
		defer c.subProcesses.Done()
		c.loop.Run(c.done)
	}()
}

// Shutdown the application.
func (c *Controller) Shutdown() {
	close(c.done)
	if c.samplesInput != nil {
		c.samplesInput.Close()
	}
	c.subProcesses.Wait()
}

// SubmitCapture validates, decodes, and queues one capture-row JSON document.
// Sentinel-invalid payloads are dropped silently; validation and decoding
// failures are returned to the caller.
func (c *Controller) SubmitCapture(raw []byte) error {
	captureRow, err := capture.Parse(raw)
	if err != nil {
		return err
	}

	row, err := decode.Row(captureRow)
	if err != nil {
		return errors.Wrap(err, "cannot decode capture row")
	}
	if row == nil {
		c.logger.Info("dropping invalid capture frame", zap.String("device", string(captureRow.Device)))
		return nil
	}

	c.loop.SubmitRow(row)
	return nil
}

// SubmitRow queues an already decoded row.
func (c *Controller) SubmitRow(row *core.DecodedRow) {
	c.loop.SubmitRow(row)
}

// RequestRescale schedules a full rescale of the color scale.
func (c *Controller) RequestRescale() {
	c.loop.RequestRescale()
}

// SetMaxHold switches per-device max-hold tracking.
func (c *Controller) SetMaxHold(on bool) {
	c.loop.SetMaxHold(on)
}

// MaxHold returns the accumulated maxima for the given device.
func (c *Controller) MaxHold(device core.DeviceID) []float64 {
	return c.reducer.MaxHold(device)
}

// Frames delivers rendered frames, most recent only.
func (c *Controller) Frames() <-chan Frame {
	return c.loop.Frames()
}

// Snapshot of the current waterfall state.
func (c *Controller) Snapshot() core.Snapshot {
	return c.reducer.Snapshot()
}

// Jobs returns the backend job client, or nil when no backend is configured.
func (c *Controller) Jobs() *jobs.Client {
	return c.jobClient
}

// NewPlayer returns a player over the current history that feeds the given
// sink. The caller owns the player and must stop it.
func (c *Controller) NewPlayer(interval time.Duration, sink playback.Sink) *playback.Player {
	return playback.NewPlayer(c.reducer.Snapshot().Rows, interval, sink)
}
