package flame

import (
	"fmt"
	"image/color"

	"github.com/chewxy/math32"
)

// ToneMode selects the tone-mapping strategy.
type ToneMode int

const (
	// ToneLog maps log2 density onto a piecewise ramp through red, yellow,
	// white and back down through cyan and blue.
	ToneLog ToneMode = iota

	// ToneGradient looks log2 density, normalized by MaxLevel, up in a
	// gradient texture.
	ToneGradient
)

// String implements fmt.Stringer.
func (m ToneMode) String() string {
	switch m {
	case ToneLog:
		return "log"
	case ToneGradient:
		return "gradient"
	}
	return fmt.Sprintf("ToneMode(%d)", int(m))
}

// ParseToneMode parses "log" or "gradient".
func ParseToneMode(name string) (ToneMode, error) {
	switch name {
	case "log":
		return ToneLog, nil
	case "gradient":
		return ToneGradient, nil
	}
	return 0, fmt.Errorf("unknown tone mode %q", name)
}

// ToneMapConfig configures tone mapping of the accumulated density v.
// ToneLog uses l = log2(v)/LogBase + Bias; ToneGradient uses l = log2(v)
// and ignores LogBase and Bias.
type ToneMapConfig struct {
	Mode ToneMode

	// LogBase divides log2 density in ToneLog (default 1).
	LogBase float64

	// Bias is added to the scaled log density in ToneLog. The offset is
	// written as "l - bias" elsewhere; here a positive Bias brightens, so
	// that form corresponds to a negative Bias.
	Bias float64

	// Gradient is the ramp used by ToneGradient (default DefaultGradient).
	Gradient *Gradient

	// MaxLevel is L_max, the level mapped to the end of the gradient.
	// Zero derives it from the plan.
	MaxLevel float64
}

// DefaultToneMapConfig returns log mode with a bias of 1, so a density of
// one visit maps to pure red.
func DefaultToneMapConfig() ToneMapConfig {
	return ToneMapConfig{Mode: ToneLog, LogBase: 1, Bias: 1}
}

// Resolve fills unset fields: LogBase 1, DefaultGradient, and maxLevel
// for MaxLevel.
func (c ToneMapConfig) Resolve(maxLevel float64) ToneMapConfig {
	if c.LogBase == 0 {
		c.LogBase = 1
	}
	if c.Gradient == nil {
		c.Gradient = DefaultGradient()
	}
	if c.MaxLevel <= 0 {
		c.MaxLevel = maxLevel
	}
	if c.MaxLevel <= 0 {
		c.MaxLevel = 1
	}
	return c
}

// ToneMapper converts accumulated density into display colour.
type ToneMapper interface {
	// Map returns the colour of density v. Zero, negative and non-finite
	// densities map to Darkest.
	Map(v float32) color.RGBA

	// Darkest returns the colour of zero density.
	Darkest() color.RGBA
}

// NewToneMapper returns the mapper for a resolved configuration.
func NewToneMapper(c ToneMapConfig) (ToneMapper, error) {
	if c.LogBase <= 0 {
		return nil, fmt.Errorf("tone map log base %g must be positive", c.LogBase)
	}
	switch c.Mode {
	case ToneLog:
		return &LogMapper{LogBase: float32(c.LogBase), Bias: float32(c.Bias)}, nil
	case ToneGradient:
		if c.Gradient == nil || c.MaxLevel <= 0 {
			return nil, fmt.Errorf("gradient tone map needs a gradient and a positive max level")
		}
		return &GradientMapper{
			MaxLevel: float32(c.MaxLevel),
			table:    c.Gradient.Table(GradientTableSize),
		}, nil
	}
	return nil, fmt.Errorf("unknown tone mode %v", c.Mode)
}

// IsFiniteDensity reports whether v is neither NaN nor infinite.
func IsFiniteDensity(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// level returns log2(v)/logBase + bias, and false for densities that map
// to the darkest colour.
func level(v, logBase, bias float32) (float32, bool) {
	if !(v > 0) || v > math32.MaxFloat32 {
		return 0, false
	}
	return math32.Log2(v)/logBase + bias, true
}

// LogChannels is the piecewise log ramp:
//
//	l > 3:  l -= 3; (1-l, 2-l, 3-l)
//	else:   (l, l-1, l-2)
//
// each channel clamped to [0, 1]. Both branches give white at l = 3.
func LogChannels(l float32) [3]float32 {
	var c [3]float32
	if l > 3 {
		l -= 3
		c = [3]float32{1 - l, 2 - l, 3 - l}
	} else {
		c = [3]float32{l, l - 1, l - 2}
	}
	for i := range c {
		c[i] = clampF32(c[i])
	}
	return c
}

// LogMapper implements ToneLog: l = log2(v)/LogBase + Bias fed to
// LogChannels.
type LogMapper struct {
	LogBase float32
	Bias    float32
}

// Map implements ToneMapper.
func (m *LogMapper) Map(v float32) color.RGBA {
	l, ok := level(v, m.LogBase, m.Bias)
	if !ok {
		return m.Darkest()
	}
	c := LogChannels(l)
	return color.RGBA{R: unorm8(c[0]), G: unorm8(c[1]), B: unorm8(c[2]), A: 255}
}

// Darkest implements ToneMapper.
func (m *LogMapper) Darkest() color.RGBA {
	return color.RGBA{A: 255}
}

// GradientMapper implements ToneGradient. It samples the gradient table at
// clamp(log2(v)/MaxLevel) with clamp-to-edge linear filtering, like the 1D
// gradient texture.
type GradientMapper struct {
	MaxLevel float32
	table    []byte
}

// Map implements ToneMapper.
func (m *GradientMapper) Map(v float32) color.RGBA {
	var t float32
	if l, ok := level(v, 1, 0); ok {
		t = clampF32(l / m.MaxLevel)
	}
	return m.sample(t)
}

// Darkest implements ToneMapper.
func (m *GradientMapper) Darkest() color.RGBA {
	return m.sample(0)
}

func (m *GradientMapper) sample(t float32) color.RGBA {
	n := len(m.table) / 4
	x := t*float32(n) - 0.5
	x0 := math32.Floor(x)
	f := x - x0
	i0 := clampIndex(int(x0), n)
	i1 := clampIndex(int(x0)+1, n)
	var out [4]uint8
	for ch := range out {
		a := float32(m.table[4*i0+ch]) / 255
		b := float32(m.table[4*i1+ch]) / 255
		out[ch] = unorm8(a + f*(b-a))
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: 255}
}

func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}

func clampF32(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// unorm8 converts [0,1] to an 8-bit unsigned normalized value with
// round-to-nearest.
func unorm8(v float32) uint8 {
	return uint8(clampF32(v)*255 + 0.5)
}
