package token

import (
	"fmt"
	"sync"
)

// SimilarityFunc computes a normalized distance between two values of the
// same category. A distance at or below the category threshold means the two
// values are occurrences of the same token.
type SimilarityFunc func(a, b map[string]any) (float64, error)

// ScalarFunc extracts the representative numeric magnitude from a value
// payload, when the category has one (spacing, radius). Returns false when
// the payload has no usable magnitude.
type ScalarFunc func(value map[string]any) (float64, bool)

// QualityRules holds the tunable weights and cutoffs used when scoring a
// token. The defaults are hand-tuned; treat them as configuration, not
// contracts.
type QualityRules struct {
	// TightnessWeight scores how closely the value conforms to its category.
	TightnessWeight float64 `yaml:"tightness_weight"`

	// DistinctivenessWeight scores how distinctive vs. generic the value is.
	DistinctivenessWeight float64 `yaml:"distinctiveness_weight"`

	// SupportWeight scores how many independent sources back the token.
	SupportWeight float64 `yaml:"support_weight"`

	// FullSupportSources is the source count at which support saturates.
	FullSupportSources int `yaml:"full_support_sources"`
}

// DefaultQualityRules returns the default scoring configuration.
func DefaultQualityRules() QualityRules {
	return QualityRules{
		TightnessWeight:       0.5,
		DistinctivenessWeight: 0.2,
		SupportWeight:         0.3,
		FullSupportSources:    3,
	}
}

// CategorySpec is the declarative configuration for one category: the JSON
// schema the model capability must satisfy, the similarity metric used for
// dedup, and the routing/fallback wiring. Adding a category means adding a
// spec, not a new agent.
type CategorySpec struct {
	Category Category

	// Schema is the JSON schema (draft 2020-12 subset) one candidate value
	// must conform to.
	Schema map[string]any

	// Similarity is the category's dedup distance metric.
	Similarity SimilarityFunc

	// Scalar extracts a numeric magnitude for statistics, when present.
	Scalar ScalarFunc

	// Threshold is the default merge distance for the category.
	Threshold float64

	// Group names the external-dependency group serving the category.
	// Categories sharing a group may be extracted in a single model call.
	Group string

	// Fallbacks is the ordered list of provider configurations to attempt,
	// most preferred first.
	Fallbacks []string

	Quality QualityRules
}

// Registry maps categories to their specs. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[Category]CategorySpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Category]CategorySpec)}
}

// Register adds or replaces the spec for a category.
func (r *Registry) Register(spec CategorySpec) error {
	if !spec.Category.Valid() {
		return fmt.Errorf("unknown category %q", spec.Category)
	}
	if spec.Similarity == nil {
		return fmt.Errorf("category %q: similarity metric is required", spec.Category)
	}
	if spec.Threshold <= 0 {
		return fmt.Errorf("category %q: threshold must be positive", spec.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Category] = spec
	return nil
}

// Get returns the spec for a category.
func (r *Registry) Get(category Category) (CategorySpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[category]
	return spec, ok
}

// Categories returns every registered category in stable order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Category, 0, len(r.specs))
	for _, c := range AllCategories() {
		if _, ok := r.specs[c]; ok {
			result = append(result, c)
		}
	}
	return result
}

// DefaultRegistry returns a registry populated with the six built-in
// categories. All six share the vision group and the default fallback chain;
// deployments override per category as needed.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	fallbacks := []string{"anthropic", "openai"}

	specs := []CategorySpec{
		{
			Category:   CategoryColor,
			Schema:     colorSchema(),
			Similarity: ColorDistance,
			Threshold:  0.10,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
		{
			Category:   CategorySpacing,
			Schema:     measurementSchema(),
			Similarity: numericDistance("value"),
			Scalar:     scalarField("value"),
			Threshold:  0.10,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
		{
			Category:   CategoryTypography,
			Schema:     typographySchema(),
			Similarity: TypographyDistance,
			Scalar:     scalarField("size"),
			Threshold:  0.15,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
		{
			Category:   CategoryShadow,
			Schema:     shadowSchema(),
			Similarity: ShadowDistance,
			Threshold:  0.20,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
		{
			Category:   CategoryGradient,
			Schema:     gradientSchema(),
			Similarity: GradientDistance,
			Threshold:  0.15,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
		{
			Category:   CategoryRadius,
			Schema:     measurementSchema(),
			Similarity: numericDistance("value"),
			Scalar:     scalarField("value"),
			Threshold:  0.10,
			Group:      "vision",
			Fallbacks:  fallbacks,
			Quality:    DefaultQualityRules(),
		},
	}

	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
	return r
}

// =============================================================================
// Category schemas
// =============================================================================

func hexProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^#[0-9a-fA-F]{6}$`,
	}
}

func confidenceProp() map[string]any {
	return map[string]any{
		"type":    "number",
		"minimum": 0.0,
		"maximum": 1.0,
	}
}

func colorSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"hex":   hexProp(),
			"alpha": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"usage": map[string]any{"type": "string"},
		},
		"required": []any{"hex"},
	}
}

func measurementSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"value": map[string]any{"type": "number", "minimum": 0.0},
			"unit":  map[string]any{"type": "string", "enum": []any{"px", "rem", "em", "pt"}},
		},
		"required": []any{"value", "unit"},
	}
}

func typographySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"family":      map[string]any{"type": "string", "minLength": 1},
			"size":        map[string]any{"type": "number", "minimum": 1.0},
			"weight":      map[string]any{"type": "number", "minimum": 100.0, "maximum": 1000.0},
			"line_height": map[string]any{"type": "number", "minimum": 0.0},
		},
		"required": []any{"family", "size"},
	}
}

func shadowSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"offset_x": map[string]any{"type": "number"},
			"offset_y": map[string]any{"type": "number"},
			"blur":     map[string]any{"type": "number", "minimum": 0.0},
			"spread":   map[string]any{"type": "number"},
			"color":    hexProp(),
			"alpha":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []any{"offset_x", "offset_y", "blur", "color"},
	}
}

func gradientSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"kind":  map[string]any{"type": "string", "enum": []any{"linear", "radial"}},
			"angle": map[string]any{"type": "number", "minimum": 0.0, "maximum": 360.0},
			"stops": map[string]any{
				"type":     "array",
				"minItems": 2,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"color":    hexProp(),
						"position": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
					"required": []any{"color", "position"},
				},
			},
		},
		"required": []any{"kind", "stops"},
	}
}

// CandidateSetSchema wraps per-category candidate schemas into the single
// tool schema sent to the model capability: one array property per requested
// category, each element carrying a value, confidence, and optional region.
func CandidateSetSchema(specs []CategorySpec) map[string]any {
	props := make(map[string]any, len(specs))
	for _, spec := range specs {
		props[string(spec.Category)] = map[string]any{
			"type":  "array",
			"items": candidateSchema(spec.Schema),
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func candidateSchema(valueSchema map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"value":      valueSchema,
			"confidence": confidenceProp(),
			"region": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"x":      map[string]any{"type": "integer", "minimum": 0.0},
					"y":      map[string]any{"type": "integer", "minimum": 0.0},
					"width":  map[string]any{"type": "integer", "minimum": 1.0},
					"height": map[string]any{"type": "integer", "minimum": 1.0},
				},
				"required": []any{"x", "y", "width", "height"},
			},
		},
		"required": []any{"value", "confidence"},
	}
}
