package decode

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/spectrumx/svi/core"
)

// invalidSentinel marks a known-garbage frame: eight base64 characters of
// all-zero bytes at the start of the payload.
const invalidSentinel = "AAAAAAAA"

// ErrSkip indicates a payload that is recognized as invalid and must be
// dropped without further processing.
var ErrSkip = errors.New("invalid data sentinel")

// Row decodes the given capture row into a decoded row. It returns nil
// without an error when the payload carries the invalid-data sentinel; such
// rows are dropped by the caller. Already-decoded numeric payloads are used
// as magnitudes directly.
func Row(capture core.CaptureRow) (*core.DecodedRow, error) {
	var power []float64
	switch {
	case capture.Samples != nil:
		power = append([]float64(nil), capture.Samples...)
	case capture.Payload != "":
		var err error
		power, err = Base64(capture.Payload, capture.Format)
		if errors.Is(err, ErrSkip) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("capture row carries no payload")
	}

	return &core.DecodedRow{
		Device:    capture.Device,
		Range:     capture.Range,
		Timestamp: capture.Timestamp,
		Power:     power,
		DB:        ToDB(power),
	}, nil
}

// Base64 decodes a base64-encoded binary payload into magnitudes, interpreting
// the bytes as little-endian values of the given format. An empty format
// defaults to float32. Payloads starting with the invalid-data sentinel yield
// ErrSkip before any decoding work is done.
func Base64(payload string, format core.SampleFormat) ([]float64, error) {
	if len(payload) >= len(invalidSentinel) && payload[:len(invalidSentinel)] == invalidSentinel {
		return nil, ErrSkip
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode base64 payload")
	}

	switch format {
	case core.FormatFloat64:
		return bytesToFloat64(raw), nil
	case core.FormatFloat32, "":
		return bytesToFloat32(raw), nil
	default:
		return nil, errors.Errorf("unknown sample format %q", format)
	}
}

func bytesToFloat32(raw []byte) []float64 {
	result := make([]float64, len(raw)/4)
	for i := range result {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		result[i] = float64(math.Float32frombits(bits))
	}
	return result
}

func bytesToFloat64(raw []byte) []float64 {
	result := make([]float64, len(raw)/8)
	for i := range result {
		bits := binary.LittleEndian.Uint64(raw[i*8:])
		result[i] = math.Float64frombits(bits)
	}
	return result
}

// ToDB converts linear magnitudes to rounded decibel values, elementwise as
// round(10*log10(v*1000)). Values <= 0 pass through untransformed; the legacy
// pipeline behaves this way and downstream scaling depends on it.
func ToDB(power []float64) []float64 {
	result := make([]float64, len(power))
	for i, v := range power {
		if v <= 0 {
			result[i] = v
			continue
		}
		result[i] = math.Round(10 * math.Log10(v*1000))
	}
	return result
}
