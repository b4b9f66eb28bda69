package core

import (
	"fmt"
	"time"
)

// Frequency represents a frequency in Hz.
type Frequency float64

func (f Frequency) String() string {
	return fmt.Sprintf("%.2fHz", float64(f))
}

// FrequencyRange represents a range of frequencies.
type FrequencyRange struct {
	From, To Frequency
}

func (r FrequencyRange) String() string {
	return fmt.Sprintf("[%v,%v]", r.From, r.To)
}

// Center frequency of this range.
func (r FrequencyRange) Center() Frequency {
	return r.From + (r.To-r.From)/2
}

// Width of the frequency range.
func (r FrequencyRange) Width() Frequency {
	return r.To - r.From
}

// Contains the given frequency.
func (r FrequencyRange) Contains(f Frequency) bool {
	return f >= r.From && f <= r.To
}

// DB represents decibel (dB).
type DB float64

func (d DB) String() string {
	return fmt.Sprintf("%.2fdB", float64(d))
}

// DBRange represents a range of dB.
type DBRange struct {
	From, To DB
}

func (r DBRange) String() string {
	return fmt.Sprintf("[%v,%v]", r.From, r.To)
}

// Width of the dB range.
func (r DBRange) Width() DB {
	return r.To - r.From
}

// Contains the given value in dB.
func (r DBRange) Contains(value DB) bool {
	return value >= r.From && value <= r.To
}

// Normalized returns the range with From <= To.
func (r DBRange) Normalized() DBRange {
	if r.From > r.To {
		return DBRange{From: r.To, To: r.From}
	}
	return r
}

// Frct is a normalized fraction within a range, usually in [0,1].
type Frct float64

// ToDBFrct converts the given value into the fraction of the given range.
func ToDBFrct(value DB, r DBRange) Frct {
	if r.Width() == 0 {
		return 0
	}
	return Frct((value - r.From) / r.Width())
}

// ToFrequencyFrct converts the given frequency into the fraction of the given range.
func ToFrequencyFrct(f Frequency, r FrequencyRange) Frct {
	if r.Width() == 0 {
		return 0
	}
	return Frct((f - r.From) / r.Width())
}

// Px unit for pixels.
type Px float64

// DBMark on the dB legend scale. Y is the fraction of the legend height,
// measured from the bottom of the scale.
type DBMark struct {
	DB DB
	Y  Frct
}

// SampleFormat names the element type of a binary sample payload.
type SampleFormat string

// All supported sample formats.
const (
	FormatFloat32 SampleFormat = "float32"
	FormatFloat64 SampleFormat = "float64"
)

// Valid indicates if this is a known sample format.
func (f SampleFormat) Valid() bool {
	return f == FormatFloat32 || f == FormatFloat64
}

// DeviceID identifies the sensor a capture row originates from.
type DeviceID string

// SamplesInput provides blocks of raw IQ samples.
type SamplesInput interface {
	Samples() <-chan []complex128
	Close() error
}

// CaptureRow is one unit of spectral data as it arrives at the boundary,
// before decoding. Samples and Payload are mutually exclusive: Samples carries
// already-decoded magnitudes, Payload carries base64-encoded binary data in
// the given Format.
type CaptureRow struct {
	Device     DeviceID
	Range      FrequencyRange
	SampleRate float64
	Timestamp  time.Time

	Samples []float64
	Payload string
	Format  SampleFormat
}

// DecodedRow is a capture row after decoding, immutable once created.
// Power holds the linear magnitudes, DB the decibel values; both have the
// same length.
type DecodedRow struct {
	Device    DeviceID
	Range     FrequencyRange
	Timestamp time.Time
	Power     []float64
	DB        []float64
}

// Bins returns the number of frequency bins in this row.
func (r *DecodedRow) Bins() int {
	if r == nil {
		return 0
	}
	return len(r.DB)
}

// DirtyState tells the renderer how much of the display needs repainting.
type DirtyState int

// All dirty states.
const (
	Clean DirtyState = iota
	ScaleChanged
	ResetPending
)

func (s DirtyState) String() string {
	switch s {
	case Clean:
		return "clean"
	case ScaleChanged:
		return "scale-changed"
	case ResetPending:
		return "reset-pending"
	}
	return fmt.Sprintf("DirtyState(%d)", int(s))
}

// Snapshot is the read-only view of the waterfall state the renderer consumes.
// Rows are ordered oldest to newest.
type Snapshot struct {
	Rows     []*DecodedRow
	Capacity int
	Bins     int
	Scale    DBRange
	Dirty    DirtyState
}

// Configuration parameters of the application.
type Configuration struct {
	Testmode       bool
	ListenAddress  string
	BackendURL     string
	FramesPerSec   int
	HistoryDepth   int
	PlotWidth      int
	PlotHeight     int
	PixelRatio     float64
	PollInterval   time.Duration
	PollRetryLimit int
	JobTimeout     time.Duration
	Scale          DBRange
}
