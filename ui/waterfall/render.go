// Package waterfall paints the color-coded waterfall plot and its dB legend
// onto offscreen rasters.
package waterfall

import (
	"image"
	"image/color"
	"math"

	"github.com/spectrumx/svi/core"
)

// State is the part of the waterfall reducer the renderer talks to.
type State interface {
	Snapshot() core.Snapshot
	Rescale() core.DBRange
	ClearScaleChanged()
}

// Renderer paints waterfall snapshots. The plot geometry is fixed at
// construction: cell height is derived from the history capacity, not from
// the current row count, so the grid stays stable while rows are appended
// and evicted.
type Renderer struct {
	width, height core.Px
	legendWidth   core.Px
	ratio         float64

	colors     ColorScale
	haveColors bool
}

// NewRenderer returns a renderer for a plot of the given CSS size. The
// backing rasters are scaled by the device pixel ratio; a ratio <= 0 is
// treated as 1.
func NewRenderer(width, height core.Px, pixelRatio float64) *Renderer {
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	return &Renderer{
		width:       width,
		height:      height,
		legendWidth: 24,
		ratio:       pixelRatio,
	}
}

// NewPlot allocates the plot raster, CSS size times the device pixel ratio.
func (r *Renderer) NewPlot() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, r.scaled(r.width), r.scaled(r.height)))
}

// NewLegend allocates the legend raster.
func (r *Renderer) NewLegend() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, r.scaled(r.legendWidth), r.scaled(r.height)))
}

func (r *Renderer) scaled(p core.Px) int {
	return int(math.Round(float64(p) * r.ratio))
}

// Render paints the current state onto the plot and legend rasters. A pending
// rescale triggers the full-redraw path: recompute the true scale, rebuild
// the color scale, repaint everything including the legend. Otherwise the
// rows are repainted in place and the legend only when the scale changed or
// the legend raster is still blank. A missing render target is a programming
// error and panics.
func (r *Renderer) Render(plot, legend *image.RGBA, state State) {
	if plot == nil || plot.Bounds().Empty() {
		panic("waterfall: missing plot raster")
	}
	if legend == nil || legend.Bounds().Empty() {
		panic("waterfall: missing legend raster")
	}

	snapshot := state.Snapshot()

	switch snapshot.Dirty {
	case core.ResetPending:
		snapshot.Scale = state.Rescale()
		r.colors = NewColorScale(snapshot.Scale)
		r.haveColors = true
		clearRaster(plot)
		r.paintRows(plot, snapshot)
		r.RenderLegend(legend, r.colors)
	case core.ScaleChanged:
		r.ensureColors(snapshot.Scale)
		r.paintRows(plot, snapshot)
		r.RenderLegend(legend, r.colors)
		state.ClearScaleChanged()
	default:
		r.ensureColors(snapshot.Scale)
		r.paintRows(plot, snapshot)
		if blank(legend) {
			r.RenderLegend(legend, r.colors)
		}
	}
}

func (r *Renderer) ensureColors(scale core.DBRange) {
	if !r.haveColors || r.colors.Domain() != scale {
		r.colors = NewColorScale(scale)
		r.haveColors = true
	}
}

// paintRows repaints the visible rows, newest at the top. Each grid slot is
// height/capacity tall regardless of how many rows are present.
func (r *Renderer) paintRows(plot *image.RGBA, snapshot core.Snapshot) {
	if snapshot.Capacity == 0 || len(snapshot.Rows) == 0 {
		return
	}

	bounds := plot.Bounds()
	cellH := float64(bounds.Dy()) / float64(snapshot.Capacity)

	for slot := 0; slot < len(snapshot.Rows); slot++ {
		row := snapshot.Rows[len(snapshot.Rows)-1-slot]
		if row.Bins() == 0 {
			continue
		}
		cellW := float64(bounds.Dx()) / float64(row.Bins())
		y0 := bounds.Min.Y + int(math.Round(float64(slot)*cellH))
		y1 := bounds.Min.Y + int(math.Round(float64(slot+1)*cellH))
		for bin, value := range row.DB {
			x0 := bounds.Min.X + int(math.Round(float64(bin)*cellW))
			x1 := bounds.Min.X + int(math.Round(float64(bin+1)*cellW))
			fillRect(plot, x0, y0, x1, y1, r.colors.At(core.DB(value)))
		}
	}
}

// RenderLegend paints the vertical dB gradient strip with tick marks at the
// positions reported by DBMarks, strongest value at the top.
func (r *Renderer) RenderLegend(legend *image.RGBA, colors ColorScale) {
	if legend == nil || legend.Bounds().Empty() {
		panic("waterfall: missing legend raster")
	}

	bounds := legend.Bounds()
	height := bounds.Dy()
	for y := 0; y < height; y++ {
		t := 1.0
		if height > 1 {
			t = 1 - float64(y)/float64(height-1)
		}
		fillRect(legend, bounds.Min.X, bounds.Min.Y+y, bounds.Max.X, bounds.Min.Y+y+1, colors.AtFrct(core.Frct(t)))
	}

	tick := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	tickWidth := bounds.Dx() / 4
	for _, mark := range DBMarks(colors.Domain()) {
		y := bounds.Min.Y + int(math.Round((1-float64(mark.Y))*float64(height-1)))
		fillRect(legend, bounds.Max.X-tickWidth, y, bounds.Max.X, y+1, tick)
	}
}

// DBMarks returns the tick marks of the legend scale, one per full 10 dB step
// within the domain.
func DBMarks(scale core.DBRange) []core.DBMark {
	startDB := int(scale.From) - int(scale.From)%10
	if core.DB(startDB) < scale.From {
		startDB += 10
	}

	marks := make([]core.DBMark, 0, int(scale.Width())/10+1)
	for db := startDB; core.DB(db) <= scale.To; db += 10 {
		marks = append(marks, core.DBMark{
			DB: core.DB(db),
			Y:  core.ToDBFrct(core.DB(db), scale),
		})
	}
	return marks
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	bounds := img.Bounds()
	if x0 < bounds.Min.X {
		x0 = bounds.Min.X
	}
	if y0 < bounds.Min.Y {
		y0 = bounds.Min.Y
	}
	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func clearRaster(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

// blank reports if no pixel of the raster has been painted yet.
func blank(img *image.RGBA) bool {
	for _, p := range img.Pix {
		if p != 0 {
			return false
		}
	}
	return true
}
