package generate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/adalundhe/prism/core/token"
)

// IRToken is the canonical intermediate representation every export format
// renders from: a stable generated name, the semantic group, and the value
// resolved to a single string.
type IRToken struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Value           string  `json:"value"`
	Confidence      float64 `json:"confidence"`
	Sources         int     `json:"sources"`
	QualityScore    float64 `json:"quality_score"`
	StructuralValid bool    `json:"structural_valid"`
}

// IRGroup collects one category's tokens for grouped rendering.
type IRGroup struct {
	Category string    `json:"category"`
	Tokens   []IRToken `json:"tokens"`
}

// irDocument is the data handed to every format template.
type irDocument struct {
	Groups []IRGroup
	Tokens []IRToken
}

// buildIR converts validated tokens into the canonical representation,
// ordered deterministically: categories in their declared order, values in
// canonical order within each, names numbered from 1 per category.
func buildIR(tokens []token.Validated) irDocument {
	byCategory := make(map[token.Category][]token.Validated)
	for _, t := range tokens {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	var doc irDocument
	for _, category := range token.AllCategories() {
		group := byCategory[category]
		if len(group) == 0 {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return resolveValue(group[i]) < resolveValue(group[j])
		})

		irGroup := IRGroup{Category: string(category)}
		for i, t := range group {
			ir := IRToken{
				Name:            fmt.Sprintf("%s-%d", category, i+1),
				Category:        string(category),
				Value:           resolveValue(t),
				Confidence:      t.AverageConfidence,
				Sources:         t.OccurrenceCount(),
				QualityScore:    t.QualityScore,
				StructuralValid: t.StructuralValid,
			}
			irGroup.Tokens = append(irGroup.Tokens, ir)
			doc.Tokens = append(doc.Tokens, ir)
		}
		doc.Groups = append(doc.Groups, irGroup)
	}

	return doc
}

// resolveValue renders a token's payload as one CSS-compatible string.
func resolveValue(t token.Validated) string {
	switch t.Category {
	case token.CategoryColor:
		return stringAt(t.Value, "hex")
	case token.CategorySpacing, token.CategoryRadius:
		return formatMeasurement(t.Value)
	case token.CategoryTypography:
		return formatTypography(t.Value)
	case token.CategoryShadow:
		return formatShadow(t.Value)
	case token.CategoryGradient:
		return formatGradient(t.Value)
	default:
		return ""
	}
}

func formatMeasurement(value map[string]any) string {
	return formatNumber(numberAt(value, "value")) + stringAt(value, "unit")
}

func formatTypography(value map[string]any) string {
	parts := []string{stringAt(value, "family")}
	if size := numberAt(value, "size"); size > 0 {
		parts = append(parts, formatNumber(size)+"px")
	}
	if weight := numberAt(value, "weight"); weight > 0 {
		parts = append(parts, formatNumber(weight))
	}
	if lh := numberAt(value, "line_height"); lh > 0 {
		parts = append(parts, "/"+formatNumber(lh))
	}
	return strings.Join(parts, " ")
}

func formatShadow(value map[string]any) string {
	s := fmt.Sprintf("%spx %spx %spx",
		formatNumber(numberAt(value, "offset_x")),
		formatNumber(numberAt(value, "offset_y")),
		formatNumber(numberAt(value, "blur")))
	if spread, ok := value["spread"]; ok {
		if f, isNum := spread.(float64); isNum {
			s += fmt.Sprintf(" %spx", formatNumber(f))
		}
	}
	return s + " " + stringAt(value, "color")
}

func formatGradient(value map[string]any) string {
	kind := stringAt(value, "kind")
	stops, _ := value["stops"].([]any)

	rendered := make([]string, 0, len(stops))
	for _, raw := range stops {
		stop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rendered = append(rendered, fmt.Sprintf("%s %s%%",
			stringAt(stop, "color"),
			formatNumber(numberAt(stop, "position")*100)))
	}

	if kind == "radial" {
		return fmt.Sprintf("radial-gradient(%s)", strings.Join(rendered, ", "))
	}
	angle := numberAt(value, "angle")
	return fmt.Sprintf("linear-gradient(%sdeg, %s)", formatNumber(angle), strings.Join(rendered, ", "))
}

// formatNumber renders a float without a trailing ".0".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberAt(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}
