package color

import "github.com/chewxy/math32"

// SRGBToLinear converts an sRGB component in [0,1] to linear light.
func SRGBToLinear(s float32) float32 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math32.Pow((s+0.055)/1.055, 2.4)
}

// LinearToSRGB converts a linear component in [0,1] to sRGB.
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math32.Pow(l, 1.0/2.4) - 0.055
}

// SRGBToLinearColor converts RGB from sRGB to linear; alpha is unchanged.
func SRGBToLinearColor(c ColorF32) ColorF32 {
	return ColorF32{R: SRGBToLinear(c.R), G: SRGBToLinear(c.G), B: SRGBToLinear(c.B), A: c.A}
}

// LinearToSRGBColor converts RGB from linear to sRGB; alpha is unchanged.
func LinearToSRGBColor(c ColorF32) ColorF32 {
	return ColorF32{R: LinearToSRGB(c.R), G: LinearToSRGB(c.G), B: LinearToSRGB(c.B), A: c.A}
}

// LerpLinear interpolates two sRGB colours in linear light and returns the
// sRGB result. t is not clamped.
func LerpLinear(a, b ColorF32, t float32) ColorF32 {
	la, lb := SRGBToLinearColor(a), SRGBToLinearColor(b)
	return LinearToSRGBColor(ColorF32{
		R: la.R + t*(lb.R-la.R),
		G: la.G + t*(lb.G-la.G),
		B: la.B + t*(lb.B-la.B),
		A: la.A + t*(lb.A-la.A),
	})
}

// F32ToU8 converts to 8-bit components with clamping and rounding.
func F32ToU8(c ColorF32) ColorU8 {
	return ColorU8{
		R: clampAndRound(c.R),
		G: clampAndRound(c.G),
		B: clampAndRound(c.B),
		A: clampAndRound(c.A),
	}
}

// U8ToF32 maps 8-bit components to [0,1].
func U8ToF32(c ColorU8) ColorF32 {
	return ColorF32{
		R: float32(c.R) / 255,
		G: float32(c.G) / 255,
		B: float32(c.B) / 255,
		A: float32(c.A) / 255,
	}
}

func clampAndRound(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
