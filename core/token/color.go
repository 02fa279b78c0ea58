package token

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is a color in 8-bit sRGB channels.
type RGB struct {
	R, G, B uint8
}

// ParseHex parses a "#rrggbb" string into an RGB value.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, fmt.Errorf("malformed hex color %q", s)
	}

	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("malformed hex color %q: %w", s, err)
	}

	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Hex renders the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Lab is a color in CIE L*a*b* space (D65 illuminant).
type Lab struct {
	L, A, B float64
}

// ToLab converts the sRGB color to CIE L*a*b*.
func (c RGB) ToLab() Lab {
	x, y, z := c.toXYZ()
	return xyzToLab(x, y, z)
}

// toXYZ converts gamma-encoded sRGB to CIE XYZ.
func (c RGB) toXYZ() (x, y, z float64) {
	r := linearize(float64(c.R) / 255)
	g := linearize(float64(c.G) / 255)
	b := linearize(float64(c.B) / 255)

	x = 0.4124*r + 0.3576*g + 0.1805*b
	y = 0.2126*r + 0.7152*g + 0.0722*b
	z = 0.0193*r + 0.1192*g + 0.9505*b
	return x, y, z
}

// linearize removes the sRGB gamma encoding from a channel in [0,1].
func linearize(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// D65 reference white.
const (
	refX = 0.95047
	refY = 1.00000
	refZ = 1.08883
)

func xyzToLab(x, y, z float64) Lab {
	fx := labF(x / refX)
	fy := labF(y / refY)
	fz := labF(z / refZ)

	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

// DeltaE computes the CIE76 color difference between two Lab colors.
func DeltaE(a, b Lab) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// RelativeLuminance computes the WCAG relative luminance of the color.
func (c RGB) RelativeLuminance() float64 {
	r := linearize(float64(c.R) / 255)
	g := linearize(float64(c.G) / 255)
	b := linearize(float64(c.B) / 255)
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ContrastRatio computes the WCAG contrast ratio between two colors:
// (L_lighter + 0.05) / (L_darker + 0.05), in the range [1, 21].
func ContrastRatio(a, b RGB) float64 {
	la := a.RelativeLuminance()
	lb := b.RelativeLuminance()
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}
