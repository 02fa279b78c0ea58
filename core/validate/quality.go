package validate

import (
	"math"
	"strings"

	"github.com/adalundhe/prism/core/token"
)

// qualityScore combines how tightly the value matches its category, how
// distinctive vs. generic it is, and how many independent sources support
// it, weighted per the category's QualityRules and bounded to [0,1].
//
// The individual heuristics are tunable configuration, not contracts.
func (a *Agent) qualityScore(t token.Aggregated, spec token.CategorySpec) float64 {
	rules := spec.Quality

	tightness := tightnessOf(t, spec)
	distinctiveness := distinctivenessOf(t)
	support := supportOf(t, rules)

	totalWeight := rules.TightnessWeight + rules.DistinctivenessWeight + rules.SupportWeight
	if totalWeight <= 0 {
		return clamp01(support)
	}

	score := (rules.TightnessWeight*tightness +
		rules.DistinctivenessWeight*distinctiveness +
		rules.SupportWeight*support) / totalWeight

	return clamp01(score)
}

// tightnessOf scores how cleanly the value fits its category. Whole-pixel
// measurements score higher than fractional ones; everything that passed
// the schema starts at full score.
func tightnessOf(t token.Aggregated, spec token.CategorySpec) float64 {
	if spec.Scalar == nil {
		return 1
	}
	v, ok := spec.Scalar(t.Value)
	if !ok {
		return 0.5
	}
	if v == math.Trunc(v) {
		return 1
	}
	return 0.7
}

// distinctivenessOf scores how distinctive the value is versus a generic
// default.
func distinctivenessOf(t token.Aggregated) float64 {
	switch t.Category {
	case token.CategoryColor:
		return colorDistinctiveness(t.Value)
	case token.CategoryTypography:
		return typographyDistinctiveness(t.Value)
	default:
		return 0.8
	}
}

// colorDistinctiveness uses chroma: near-grays are generic, saturated
// colors are distinctive.
func colorDistinctiveness(value map[string]any) float64 {
	hex, ok := value["hex"].(string)
	if !ok {
		return 0
	}
	rgb, err := token.ParseHex(hex)
	if err != nil {
		return 0
	}

	lab := rgb.ToLab()
	chroma := math.Sqrt(lab.A*lab.A + lab.B*lab.B)

	// Chroma beyond ~60 is already vivid.
	return clamp01(0.3 + chroma/60*0.7)
}

// genericFamilies are CSS keyword families rather than concrete typefaces.
var genericFamilies = map[string]bool{
	"serif":      true,
	"sans-serif": true,
	"monospace":  true,
	"cursive":    true,
	"fantasy":    true,
	"system-ui":  true,
}

func typographyDistinctiveness(value map[string]any) float64 {
	family, ok := value["family"].(string)
	if !ok {
		return 0
	}
	if genericFamilies[strings.ToLower(strings.TrimSpace(family))] {
		return 0.3
	}
	return 1
}

// supportOf scores source backing, saturating at FullSupportSources.
func supportOf(t token.Aggregated, rules token.QualityRules) float64 {
	full := rules.FullSupportSources
	if full <= 0 {
		full = 3
	}
	return clamp01(float64(t.OccurrenceCount()) / float64(full))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
