package aggregate

import (
	"math"

	"github.com/adalundhe/prism/core/token"
)

// CategoryStats summarizes the aggregated values of one category. Statistics
// are derived once over the final set, never stored redundantly per token.
type CategoryStats struct {
	Category token.Category `json:"category"`
	Count    int            `json:"count"`

	// Numeric summaries, present when the category has a scalar magnitude.
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Mean     float64 `json:"mean,omitempty"`
	Variance float64 `json:"variance,omitempty"`

	// BaseUnit is the largest whole-pixel grid all observed values share
	// (a 4px or 8px grid in a disciplined design system). Zero when the
	// values share no grid of at least 2.
	BaseUnit int `json:"base_unit,omitempty"`

	// Consistent reports whether the observed values share a base unit.
	Consistent bool `json:"consistent"`
}

// Statistics derives per-category summaries over an aggregated token set.
func (a *Agent) Statistics(tokens []token.Aggregated) map[token.Category]CategoryStats {
	values := make(map[token.Category][]float64)
	counts := make(map[token.Category]int)

	for _, t := range tokens {
		counts[t.Category]++

		spec, ok := a.registry.Get(t.Category)
		if !ok || spec.Scalar == nil {
			continue
		}
		if v, ok := spec.Scalar(t.Value); ok {
			values[t.Category] = append(values[t.Category], v)
		}
	}

	stats := make(map[token.Category]CategoryStats, len(counts))
	for category, count := range counts {
		s := CategoryStats{Category: category, Count: count}
		if vs := values[category]; len(vs) > 0 {
			s.Min, s.Max, s.Mean, s.Variance = summarize(vs)
			s.BaseUnit = commonBaseUnit(vs)
			s.Consistent = s.BaseUnit >= 2
		}
		stats[category] = s
	}
	return stats
}

// summarize computes min, max, mean, and population variance.
func summarize(vs []float64) (min, max, mean, variance float64) {
	min, max = vs[0], vs[0]
	var sum float64
	for _, v := range vs {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean = sum / float64(len(vs))

	var sq float64
	for _, v := range vs {
		d := v - mean
		sq += d * d
	}
	variance = sq / float64(len(vs))
	return min, max, mean, variance
}

// commonBaseUnit returns the greatest whole-pixel grid dividing every value,
// or 0 when values are fractional or share no grid of at least 2.
func commonBaseUnit(vs []float64) int {
	g := 0
	for _, v := range vs {
		rounded := math.Round(v)
		if math.Abs(v-rounded) > 1e-6 || rounded <= 0 {
			return 0
		}
		g = gcd(g, int(rounded))
	}
	if g < 2 {
		return 0
	}
	return g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
