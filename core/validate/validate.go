// Package validate implements the fourth pipeline stage: structural checks
// and derived quality signals over aggregated tokens. Tokens are never
// discarded here; invalid ones are retained with structural_valid=false and
// a reason, and downstream consumers decide whether to filter.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adalundhe/prism/core/token"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Agent is the validation stage. Stateless apart from its compiled schema
// cache, which is safe for concurrent use.
type Agent struct {
	registry *token.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	schemas map[token.Category]*jsonschema.Schema
}

// NewAgent creates a validation agent over the category registry.
func NewAgent(registry *token.Registry, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		registry: registry,
		logger:   logger,
		schemas:  make(map[token.Category]*jsonschema.Schema),
	}
}

// Validate annotates every aggregated token with structural validity,
// a quality score, and category-specific accessibility signals. Bad token
// data never raises; only the annotations change.
func (a *Agent) Validate(tokens []token.Aggregated) []token.Validated {
	result := make([]token.Validated, 0, len(tokens))
	for _, t := range tokens {
		result = append(result, a.validateOne(t))
	}
	return result
}

func (a *Agent) validateOne(t token.Aggregated) token.Validated {
	v := token.Validated{Aggregated: t, StructuralValid: true}

	spec, ok := a.registry.Get(t.Category)
	if !ok {
		v.StructuralValid = false
		v.InvalidReason = fmt.Sprintf("category %q is not registered", t.Category)
		return v
	}

	if reason := a.structuralReason(t, spec); reason != "" {
		v.StructuralValid = false
		v.InvalidReason = reason
	}

	if t.Category == token.CategoryColor {
		v.Accessibility = colorAccessibility(t.Value)
	}

	if v.StructuralValid {
		v.QualityScore = a.qualityScore(t, spec)
	}

	return v
}

// structuralReason returns a non-empty reason when the token violates its
// structural constraints.
func (a *Agent) structuralReason(t token.Aggregated, spec token.CategorySpec) string {
	if t.AverageConfidence < 0 || t.AverageConfidence > 1 {
		return fmt.Sprintf("average confidence %v outside [0,1]", t.AverageConfidence)
	}
	if len(t.SourceIDs) == 0 {
		return "token has no provenance"
	}

	schema, err := a.schemaFor(spec)
	if err != nil {
		return fmt.Sprintf("compiling schema: %v", err)
	}

	// Round-trip through JSON so the validator sees plain generic values.
	raw, err := json.Marshal(t.Value)
	if err != nil {
		return fmt.Sprintf("value is not serializable: %v", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Sprintf("value round-trip: %v", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Sprintf("value violates %s schema: %v", t.Category, err)
	}

	return ""
}

// schemaFor compiles and caches the category's value schema.
func (a *Agent) schemaFor(spec token.CategorySpec) (*jsonschema.Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if schema, ok := a.schemas[spec.Category]; ok {
		return schema, nil
	}

	b, err := json.Marshal(spec.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, err
	}

	a.schemas[spec.Category] = schema
	return schema, nil
}
