package waterfall

import (
	"github.com/spectrumx/svi/core"
)

// SetMaxHold switches max-hold tracking on or off. Switching it off discards
// the accumulated per-device maxima.
func (w *Waterfall) SetMaxHold(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.holdOn = on
	if !on {
		w.maxHold = make(map[core.DeviceID][]float64)
	}
}

// MaxHoldActive indicates if max-hold tracking is on.
func (w *Waterfall) MaxHoldActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.holdOn
}

// MaxHold returns a copy of the accumulated per-bin maxima for the given
// device, or nil if the device has not been seen.
func (w *Waterfall) MaxHold(device core.DeviceID) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	hold, ok := w.maxHold[device]
	if !ok {
		return nil
	}
	return append([]float64(nil), hold...)
}

// updateMaxHold folds a new row into the per-device maxima. The hold array is
// created on first sight of a device and discarded whenever the row length
// changes, so maxima are never compared across different FFT sizes. Callers
// hold the lock.
func (w *Waterfall) updateMaxHold(row *core.DecodedRow) {
	hold, ok := w.maxHold[row.Device]
	if !ok || len(hold) != row.Bins() {
		w.maxHold[row.Device] = append([]float64(nil), row.DB...)
		return
	}
	for i, v := range row.DB {
		if v > hold[i] {
			hold[i] = v
		}
	}
}
