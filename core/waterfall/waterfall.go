// Package waterfall keeps the bounded history and display scale of a
// waterfall visualization session. It owns the history buffer exclusively;
// renderers only ever see a snapshot.
package waterfall

import (
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/spectrumx/svi/core"
)

// DefaultCapacity bounds the history buffer when no explicit depth is configured.
const DefaultCapacity = 80

// Waterfall is the state reducer for one visualization session. New rows are
// merged into the bounded FIFO history and the running color-scale domain.
// Append and Snapshot are safe to call from different goroutines; everything
// else follows the single-owner discipline of the main loop.
type Waterfall struct {
	mu sync.Mutex

	capacity int
	rows     []*core.DecodedRow
	bins     int

	observed core.DBRange
	seenAny  bool
	scale    core.DBRange
	dirty    core.DirtyState
	scaleSet bool
	maxHold  map[core.DeviceID][]float64
	holdOn   bool
	logger   *zap.Logger
}

// New returns a new waterfall state with the given history capacity.
// A capacity <= 0 falls back to DefaultCapacity.
func New(capacity int, logger *zap.Logger) *Waterfall {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waterfall{
		capacity: capacity,
		rows:     make([]*core.DecodedRow, 0, capacity),
		dirty:    core.ResetPending,
		maxHold:  make(map[core.DeviceID][]float64),
		logger:   logger,
	}
}

// Capacity of the history buffer.
func (w *Waterfall) Capacity() int {
	return w.capacity
}

// Len returns the current number of rows in the history.
func (w *Waterfall) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Append merges a decoded row into the history, evicting the oldest row once
// the buffer is at capacity. The scale domain is updated by scanning the new
// row only; a full rescan happens lazily when a rescale is pending. Nil rows
// (dropped by the decoder) are discarded silently.
func (w *Waterfall) Append(row *core.DecodedRow) {
	if row == nil || row.Bins() == 0 {
		w.logger.Debug("dropping empty row")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bins != 0 && w.bins != row.Bins() {
		w.logger.Info("row length changed, forcing rescale",
			zap.Int("old", w.bins), zap.Int("new", row.Bins()),
			zap.String("device", string(row.Device)))
		w.dirty = core.ResetPending
		delete(w.maxHold, row.Device)
	}
	w.bins = row.Bins()

	if len(w.rows) >= w.capacity {
		evict := len(w.rows) - w.capacity + 1
		w.rows = append(w.rows[:0], w.rows[evict:]...)
	}
	w.rows = append(w.rows, row)

	if w.dirty != core.ResetPending {
		w.mergeBounds(floats.Min(row.DB), floats.Max(row.DB))
	}

	if w.holdOn {
		w.updateMaxHold(row)
	}
}

// mergeBounds widens the observed bounds by the extremes of a single row and
// marks the scale changed when the domain grew. Callers hold the lock.
func (w *Waterfall) mergeBounds(min, max float64) {
	changed := false
	if !w.seenAny || core.DB(min) < w.observed.From {
		w.observed.From = core.DB(min)
		changed = true
	}
	if !w.seenAny || core.DB(max) > w.observed.To {
		w.observed.To = core.DB(max)
		changed = true
	}
	w.seenAny = true

	if changed || !w.scaleSet {
		w.scale = w.observed
		w.scaleSet = true
		if w.dirty == core.Clean {
			w.dirty = core.ScaleChanged
		}
	}
}

// RequestRescale marks the scale stale. The next render pass performs a full
// scan of the history to recompute the true bounds; incremental tracking can
// drift once rows carrying the extremes have been evicted.
func (w *Waterfall) RequestRescale() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = core.ResetPending
}

// Rescale recomputes the true scale domain over the current history contents
// and clears the dirty state. It is called by the renderer on the full-redraw
// path.
func (w *Waterfall) Rescale() core.DBRange {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.rows) == 0 {
		w.dirty = core.Clean
		return w.scale
	}

	min := floats.Min(w.rows[0].DB)
	max := floats.Max(w.rows[0].DB)
	for _, row := range w.rows[1:] {
		if v := floats.Min(row.DB); v < min {
			min = v
		}
		if v := floats.Max(row.DB); v > max {
			max = v
		}
	}

	w.observed = core.DBRange{From: core.DB(min), To: core.DB(max)}
	w.seenAny = true
	w.scale = w.observed
	w.scaleSet = true
	w.dirty = core.Clean

	return w.scale
}

// ClearScaleChanged transitions scale-changed back to clean after the legend
// has been repainted. A pending reset is left untouched.
func (w *Waterfall) ClearScaleChanged() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirty == core.ScaleChanged {
		w.dirty = core.Clean
	}
}

// SetScale overrides the scale domain, e.g. from configuration. This only
// affects the legend, so it marks the scale changed without a full reset.
func (w *Waterfall) SetScale(scale core.DBRange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scale = scale.Normalized()
	w.scaleSet = true
	if w.dirty == core.Clean {
		w.dirty = core.ScaleChanged
	}
}

// Snapshot returns a copy of the state for rendering. The contained rows are
// immutable and shared.
func (w *Waterfall) Snapshot() core.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := make([]*core.DecodedRow, len(w.rows))
	copy(rows, w.rows)

	return core.Snapshot{
		Rows:     rows,
		Capacity: w.capacity,
		Bins:     w.bins,
		Scale:    w.scale,
		Dirty:    w.dirty,
	}
}
