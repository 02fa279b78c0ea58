package token

import (
	"fmt"
	"math"
)

// Distance metrics return values normalized so the category threshold applies
// directly: 0 means identical, larger means further apart.

// maxDeltaE scales perceptual color difference into threshold units. A ΔE of
// 100 separates opposing colors, so a 0.10 threshold allows ΔE up to 10.
const maxDeltaE = 100.0

// ColorDistance measures perceptual difference between two color values as
// CIE76 ΔE scaled to [0, ~1].
func ColorDistance(a, b map[string]any) (float64, error) {
	ca, err := hexField(a, "hex")
	if err != nil {
		return 0, err
	}
	cb, err := hexField(b, "hex")
	if err != nil {
		return 0, err
	}
	return DeltaE(ca.ToLab(), cb.ToLab()) / maxDeltaE, nil
}

// numericDistance builds a metric measuring relative difference between two
// numeric fields: |a-b| divided by the smaller magnitude, so a 10% threshold
// merges 16 and 17.6 but keeps 16 and 18 apart.
func numericDistance(field string) SimilarityFunc {
	return func(a, b map[string]any) (float64, error) {
		va, err := numberField(a, field)
		if err != nil {
			return 0, err
		}
		vb, err := numberField(b, field)
		if err != nil {
			return 0, err
		}
		return relativeDiff(va, vb), nil
	}
}

// relativeDiff returns |a-b| relative to the smaller magnitude.
func relativeDiff(a, b float64) float64 {
	diff := math.Abs(a - b)
	if diff == 0 {
		return 0
	}
	base := math.Min(math.Abs(a), math.Abs(b))
	if base == 0 {
		return 1
	}
	return diff / base
}

// TypographyDistance compares typography values: different families never
// merge; same-family values merge on relative size difference.
func TypographyDistance(a, b map[string]any) (float64, error) {
	fa, err := stringField(a, "family")
	if err != nil {
		return 0, err
	}
	fb, err := stringField(b, "family")
	if err != nil {
		return 0, err
	}
	if fa != fb {
		return 1, nil
	}

	sa, err := numberField(a, "size")
	if err != nil {
		return 0, err
	}
	sb, err := numberField(b, "size")
	if err != nil {
		return 0, err
	}

	d := relativeDiff(sa, sb)
	if wa, ok := numberFieldOK(a, "weight"); ok {
		if wb, ok := numberFieldOK(b, "weight"); ok && wa != wb {
			// Same face at a different weight is a different token.
			return math.Max(d, 1), nil
		}
	}
	return d, nil
}

// ShadowDistance compares shadow values as the mean of the geometry and
// color components.
func ShadowDistance(a, b map[string]any) (float64, error) {
	colorDist, err := hexPairDistance(a, b, "color")
	if err != nil {
		return 0, err
	}

	var geo float64
	for _, field := range []string{"offset_x", "offset_y", "blur"} {
		va, err := numberField(a, field)
		if err != nil {
			return 0, err
		}
		vb, err := numberField(b, field)
		if err != nil {
			return 0, err
		}
		geo += math.Min(relativeDiff(va, vb), 1)
	}
	geo /= 3

	return (geo + colorDist) / 2, nil
}

// GradientDistance compares gradients by kind, then by the mean perceptual
// distance of positionally paired stops.
func GradientDistance(a, b map[string]any) (float64, error) {
	ka, err := stringField(a, "kind")
	if err != nil {
		return 0, err
	}
	kb, err := stringField(b, "kind")
	if err != nil {
		return 0, err
	}
	if ka != kb {
		return 1, nil
	}

	sa, err := stopsField(a)
	if err != nil {
		return 0, err
	}
	sb, err := stopsField(b)
	if err != nil {
		return 0, err
	}
	if len(sa) != len(sb) {
		return 1, nil
	}

	var total float64
	for i := range sa {
		d, err := hexPairDistance(sa[i], sb[i], "color")
		if err != nil {
			return 0, err
		}
		total += d + math.Abs(positionOf(sa[i])-positionOf(sb[i]))
	}
	return total / float64(len(sa)), nil
}

// scalarField builds a ScalarFunc reading one numeric field.
func scalarField(field string) ScalarFunc {
	return func(value map[string]any) (float64, bool) {
		return numberFieldOK(value, field)
	}
}

// =============================================================================
// Payload field access
// =============================================================================

func numberField(m map[string]any, field string) (float64, error) {
	v, ok := numberFieldOK(m, field)
	if !ok {
		return 0, fmt.Errorf("value missing numeric field %q", field)
	}
	return v, nil
}

func numberFieldOK(m map[string]any, field string) (float64, bool) {
	switch v := m[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringField(m map[string]any, field string) (string, error) {
	s, ok := m[field].(string)
	if !ok {
		return "", fmt.Errorf("value missing string field %q", field)
	}
	return s, nil
}

func hexField(m map[string]any, field string) (RGB, error) {
	s, err := stringField(m, field)
	if err != nil {
		return RGB{}, err
	}
	return ParseHex(s)
}

func hexPairDistance(a, b map[string]any, field string) (float64, error) {
	ca, err := hexField(a, field)
	if err != nil {
		return 0, err
	}
	cb, err := hexField(b, field)
	if err != nil {
		return 0, err
	}
	return DeltaE(ca.ToLab(), cb.ToLab()) / maxDeltaE, nil
}

func stopsField(m map[string]any) ([]map[string]any, error) {
	raw, ok := m["stops"].([]any)
	if !ok {
		return nil, fmt.Errorf("gradient value missing stops array")
	}
	stops := make([]map[string]any, 0, len(raw))
	for _, s := range raw {
		stop, ok := s.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("gradient stop is not an object")
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func positionOf(stop map[string]any) float64 {
	p, _ := numberFieldOK(stop, "position")
	return p
}
