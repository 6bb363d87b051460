package flame

import (
	"fmt"
	"sort"

	"github.com/gogpu/flame/internal/color"
)

// GradientTableSize is the number of texels in a gradient lookup table.
const GradientTableSize = 256

// ColorStop is a color at a position in a gradient.
type ColorStop struct {
	Offset float64 // 0.0 to 1.0
	Color  RGBA
}

// Gradient is a 1D colour ramp used by gradient tone mapping.
// Colours between stops are interpolated in linear light; positions
// outside [0, 1] take the nearest end color.
type Gradient struct {
	stops []ColorStop
}

// NewGradient returns a gradient through the given stops (any order).
func NewGradient(stops ...ColorStop) (*Gradient, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("gradient needs at least one stop")
	}
	for _, s := range stops {
		if s.Offset < 0 || s.Offset > 1 {
			return nil, fmt.Errorf("gradient stop offset %g outside [0, 1]", s.Offset)
		}
	}
	return &Gradient{stops: sortStops(stops)}, nil
}

// DefaultGradient is a fire ramp from black through red and orange to
// white.
func DefaultGradient() *Gradient {
	g, _ := NewGradient(
		ColorStop{0, Black},
		ColorStop{0.3, RGB(0.6, 0.05, 0.02)},
		ColorStop{0.6, RGB(1, 0.55, 0.05)},
		ColorStop{0.85, RGB(1, 0.9, 0.4)},
		ColorStop{1, White},
	)
	return g
}

// Stops returns a copy of the sorted stops.
func (g *Gradient) Stops() []ColorStop {
	return append([]ColorStop(nil), g.stops...)
}

// At returns the colour at t.
func (g *Gradient) At(t float64) RGBA {
	return colorAtOffset(g.stops, clamp01(t))
}

// Table samples the gradient at n texel centres and returns RGBA8 bytes,
// the contents of the 1D lookup texture.
func (g *Gradient) Table(n int) []byte {
	if n <= 0 {
		n = GradientTableSize
	}
	out := make([]byte, 4*n)
	for i := range n {
		c := g.At((float64(i) + 0.5) / float64(n))
		out[4*i] = to8(c.R)
		out[4*i+1] = to8(c.G)
		out[4*i+2] = to8(c.B)
		out[4*i+3] = to8(c.A)
	}
	return out
}

// sortStops returns a copy sorted by offset.
func sortStops(stops []ColorStop) []ColorStop {
	sorted := make([]ColorStop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	return sorted
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func toF32(c RGBA) color.ColorF32 {
	return color.ColorF32{R: float32(c.R), G: float32(c.G), B: float32(c.B), A: float32(c.A)}
}

// colorAtOffset returns the interpolated color at t from sorted stops.
func colorAtOffset(stops []ColorStop, t float64) RGBA {
	if len(stops) == 1 {
		return stops[0].Color
	}
	idx := sort.Search(len(stops), func(i int) bool {
		return stops[i].Offset >= t
	})
	if idx == 0 {
		return stops[0].Color
	}
	if idx >= len(stops) {
		return stops[len(stops)-1].Color
	}
	s1, s2 := stops[idx-1], stops[idx]
	if s2.Offset == s1.Offset {
		return s1.Color
	}
	f := (t - s1.Offset) / (s2.Offset - s1.Offset)
	c := color.LerpLinear(toF32(s1.Color), toF32(s2.Color), float32(f))
	return RGBA{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}
