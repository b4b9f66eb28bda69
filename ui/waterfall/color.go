package waterfall

import (
	"image/color"
	"math"

	"github.com/spectrumx/svi/core"
)

// HSL is a color in hue/saturation/lightness space, hue in degrees.
type HSL struct {
	H, S, L float64
}

// RGBA converts to 8-bit RGB.
func (c HSL) RGBA() color.RGBA {
	chroma := (1 - math.Abs(2*c.L-1)) * c.S
	hp := math.Mod(c.H, 360) / 60
	if hp < 0 {
		hp += 6
	}
	x := chroma * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = chroma, x, 0
	case hp < 2:
		r, g, b = x, chroma, 0
	case hp < 3:
		r, g, b = 0, chroma, x
	case hp < 4:
		r, g, b = 0, x, chroma
	case hp < 5:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}

	m := c.L - chroma/2
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

// Default endpoint hues of the waterfall color scale, weak signals in blue,
// strong signals in red.
var (
	DefaultCold = HSL{H: 240, S: 1, L: 0.5}
	DefaultHot  = HSL{H: 0, S: 1, L: 0.5}
)

// ColorScale maps dB values within a domain to colors by linear interpolation
// between two endpoint hues in HSL space. Values outside the domain saturate
// at the endpoint colors.
type ColorScale struct {
	domain core.DBRange
	cold   HSL
	hot    HSL
}

// NewColorScale returns a color scale over the given domain with the default
// endpoint hues.
func NewColorScale(domain core.DBRange) ColorScale {
	return ColorScale{domain: domain.Normalized(), cold: DefaultCold, hot: DefaultHot}
}

// Domain of this scale.
func (s ColorScale) Domain() core.DBRange {
	return s.domain
}

// At returns the color for the given dB value.
func (s ColorScale) At(value core.DB) color.RGBA {
	return s.AtFrct(core.ToDBFrct(value, s.domain))
}

// AtFrct returns the color for the given fraction of the domain, clamped to [0,1].
func (s ColorScale) AtFrct(t core.Frct) color.RGBA {
	f := math.Max(0, math.Min(1, float64(t)))
	return HSL{
		H: s.cold.H + (s.hot.H-s.cold.H)*f,
		S: s.cold.S + (s.hot.S-s.cold.S)*f,
		L: s.cold.L + (s.hot.L-s.cold.L)*f,
	}.RGBA()
}
