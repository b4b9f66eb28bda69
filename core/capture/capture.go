// Package capture validates capture-row JSON at the boundary. Nothing
// downstream of this package touches unvalidated fields.
package capture

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/spectrumx/svi/core"
)

// ValidationError names the offending field of a rejected capture row.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid capture row: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type rowJSON struct {
	Data       json.RawMessage `json:"data"`
	DataType   string          `json:"data_type"`
	Type       string          `json:"type"`
	SampleRate float64         `json:"sample_rate"`
	CenterFreq *float64        `json:"center_frequency"`
	MinFreq    *float64        `json:"min_frequency"`
	MaxFreq    *float64        `json:"max_frequency"`
	Timestamp  string          `json:"timestamp"`
	MacAddress string          `json:"mac_address"`
	ShortName  string          `json:"short_name"`
}

// Parse validates one capture row. The data field is either a plain number
// array or a base64 string with its element type named by data_type (or the
// legacy type field). The frequency range comes from explicit min/max
// frequencies, or is derived from center frequency and sample rate.
func Parse(raw []byte) (core.CaptureRow, error) {
	var row rowJSON
	if err := json.Unmarshal(raw, &row); err != nil {
		return core.CaptureRow{}, errors.Wrap(err, "cannot parse capture row")
	}

	result := core.CaptureRow{SampleRate: row.SampleRate}

	if len(row.Data) == 0 {
		return core.CaptureRow{}, invalid("data", "missing")
	}
	var samples []float64
	if err := json.Unmarshal(row.Data, &samples); err == nil {
		result.Samples = samples
	} else {
		var payload string
		if err := json.Unmarshal(row.Data, &payload); err != nil {
			return core.CaptureRow{}, invalid("data", "neither a number array nor a base64 string")
		}
		result.Payload = payload
		result.Format = sampleFormat(row)
		if result.Format != "" && !result.Format.Valid() {
			return core.CaptureRow{}, invalid("data_type", fmt.Sprintf("unknown sample format %q", result.Format))
		}
	}

	frequencyRange, err := frequencyRange(row)
	if err != nil {
		return core.CaptureRow{}, err
	}
	result.Range = frequencyRange

	if row.Timestamp != "" {
		timestamp, err := time.Parse(time.RFC3339, row.Timestamp)
		if err != nil {
			return core.CaptureRow{}, invalid("timestamp", "not RFC 3339")
		}
		result.Timestamp = timestamp
	}

	switch {
	case row.MacAddress != "":
		result.Device = core.DeviceID(row.MacAddress)
	case row.ShortName != "":
		result.Device = core.DeviceID(row.ShortName)
	default:
		return core.CaptureRow{}, invalid("mac_address", "missing device identity")
	}

	return result, nil
}

func sampleFormat(row rowJSON) core.SampleFormat {
	if row.DataType != "" {
		return core.SampleFormat(row.DataType)
	}
	return core.SampleFormat(row.Type)
}

func frequencyRange(row rowJSON) (core.FrequencyRange, error) {
	switch {
	case row.MinFreq != nil && row.MaxFreq != nil:
		if *row.MaxFreq < *row.MinFreq {
			return core.FrequencyRange{}, invalid("max_frequency", "below min_frequency")
		}
		return core.FrequencyRange{
			From: core.Frequency(*row.MinFreq),
			To:   core.Frequency(*row.MaxFreq),
		}, nil
	case row.CenterFreq != nil && row.SampleRate > 0:
		half := core.Frequency(row.SampleRate / 2)
		center := core.Frequency(*row.CenterFreq)
		return core.FrequencyRange{From: center - half, To: center + half}, nil
	default:
		return core.FrequencyRange{}, invalid("center_frequency", "no usable frequency range")
	}
}
