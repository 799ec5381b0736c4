package render

import (
	"image/color"
	"math"
)

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

// Colors for convenience
var (
	ColorBlack = color.RGBA{0, 0, 0, 255}
	ColorWhite = color.RGBA{255, 255, 255, 255}
	ColorRed   = color.RGBA{255, 0, 0, 255}
)

// RGB creates an opaque color from 8-bit channels.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}

// ColorRGB is a linear floating point color used during shading.
// Channels are nominally in [0, 1] but may exceed it before MaxToOne.
type ColorRGB struct {
	R, G, B float64
}

// Grey returns a color with all three channels set to v.
func Grey(v float64) ColorRGB {
	return ColorRGB{v, v, v}
}

// Add returns a + b.
func (a ColorRGB) Add(b ColorRGB) ColorRGB {
	return ColorRGB{a.R + b.R, a.G + b.G, a.B + b.B}
}

// Sub returns a - b.
func (a ColorRGB) Sub(b ColorRGB) ColorRGB {
	return ColorRGB{a.R - b.R, a.G - b.G, a.B - b.B}
}

// Scale multiplies every channel by s.
func (a ColorRGB) Scale(s float64) ColorRGB {
	return ColorRGB{a.R * s, a.G * s, a.B * s}
}

// Mul multiplies channel by channel.
func (a ColorRGB) Mul(b ColorRGB) ColorRGB {
	return ColorRGB{a.R * b.R, a.G * b.G, a.B * b.B}
}

// MaxToOne scales the color down uniformly so no channel exceeds 1,
// keeping the hue.
func (a ColorRGB) MaxToOne() ColorRGB {
	m := math.Max(a.R, math.Max(a.G, a.B))
	if m > 1 {
		return a.Scale(1 / m)
	}
	return a
}

// ToRGBA converts to an opaque 8-bit color. Channels are clamped to
// [0, 1] and truncated.
func (a ColorRGB) ToRGBA() color.RGBA {
	return color.RGBA{
		R: toByte(a.R),
		G: toByte(a.G),
		B: toByte(a.B),
		A: 255,
	}
}

func toByte(v float64) uint8 {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// colorFromRGBA converts an 8-bit color to [0, 1] channels.
func colorFromRGBA(c color.RGBA) ColorRGB {
	return ColorRGB{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}
