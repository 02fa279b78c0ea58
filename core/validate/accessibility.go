package validate

import (
	"github.com/adalundhe/prism/core/token"
)

// WCAG contrast thresholds: AA and AAA levels for normal and large text.
const (
	aaNormal  = 4.5
	aaLarge   = 3.0
	aaaNormal = 7.0
	aaaLarge  = 4.5
)

var (
	white = token.RGB{R: 255, G: 255, B: 255}
	black = token.RGB{R: 0, G: 0, B: 0}
)

// colorAccessibility computes WCAG contrast ratios for a color value against
// the white and black reference backgrounds and reports pass/fail at both
// levels for both text-size classes, judged on the better of the two.
func colorAccessibility(value map[string]any) *token.AccessibilityReport {
	hex, ok := value["hex"].(string)
	if !ok {
		return nil
	}
	rgb, err := token.ParseHex(hex)
	if err != nil {
		return nil
	}

	onWhite := token.ContrastRatio(rgb, white)
	onBlack := token.ContrastRatio(rgb, black)

	best := onWhite
	if onBlack > best {
		best = onBlack
	}

	return &token.AccessibilityReport{
		ContrastOnWhite: onWhite,
		ContrastOnBlack: onBlack,
		AANormal:        best >= aaNormal,
		AALarge:         best >= aaLarge,
		AAANormal:       best >= aaaNormal,
		AAALarge:        best >= aaaLarge,
	}
}
