package cfg

import (
	"time"

	"github.com/ftl/hamradio/cfg"

	"github.com/spectrumx/svi/core"
)

const (
	testmode       cfg.Key = "svi.testmode"
	listenAddress  cfg.Key = "svi.listenAddress"
	backendURL     cfg.Key = "svi.backendURL"
	framesPerSec   cfg.Key = "svi.framesPerSecond"
	historyDepth   cfg.Key = "svi.historyDepth"
	plotWidth      cfg.Key = "svi.plot.width"
	plotHeight     cfg.Key = "svi.plot.height"
	pixelRatio     cfg.Key = "svi.plot.pixelRatio"
	pollInterval   cfg.Key = "svi.jobs.pollIntervalSeconds"
	pollRetryLimit cfg.Key = "svi.jobs.retryLimit"
	jobTimeout     cfg.Key = "svi.jobs.timeoutMinutes"
	scaleFrom      cfg.Key = "svi.scale.from"
	scaleTo        cfg.Key = "svi.scale.to"
)

// Load reads the configuration from the default location.
func Load() (core.Configuration, error) {
	configuration, err := cfg.LoadDefault()
	if err != nil {
		return core.Configuration{}, err
	}

	result := core.Configuration{
		Testmode:       configuration.Get(testmode, false).(bool),
		ListenAddress:  configuration.Get(listenAddress, ":8090").(string),
		BackendURL:     configuration.Get(backendURL, "").(string),
		FramesPerSec:   int(configuration.Get(framesPerSec, 4.0).(float64)),
		HistoryDepth:   int(configuration.Get(historyDepth, 80.0).(float64)),
		PlotWidth:      int(configuration.Get(plotWidth, 600.0).(float64)),
		PlotHeight:     int(configuration.Get(plotHeight, 400.0).(float64)),
		PixelRatio:     configuration.Get(pixelRatio, 1.0).(float64),
		PollInterval:   time.Duration(configuration.Get(pollInterval, 2.0).(float64) * float64(time.Second)),
		PollRetryLimit: int(configuration.Get(pollRetryLimit, 5.0).(float64)),
		JobTimeout:     time.Duration(configuration.Get(jobTimeout, 30.0).(float64) * float64(time.Minute)),
		Scale: core.DBRange{
			From: core.DB(configuration.Get(scaleFrom, -135.0).(float64)),
			To:   core.DB(configuration.Get(scaleTo, -20.0).(float64)),
		}.Normalized(),
	}

	return result, nil
}

// Static returns the default configuration, used when no config file exists.
func Static() core.Configuration {
	return core.Configuration{
		ListenAddress:  ":8090",
		FramesPerSec:   4,
		HistoryDepth:   80,
		PlotWidth:      600,
		PlotHeight:     400,
		PixelRatio:     1,
		PollInterval:   2 * time.Second,
		PollRetryLimit: 5,
		JobTimeout:     30 * time.Minute,
		Scale:          core.DBRange{From: -135, To: -20},
	}
}
