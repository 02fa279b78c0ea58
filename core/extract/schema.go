package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/adalundhe/prism/core/token"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles and caches the per-category candidate-array schemas
// used to validate model output.
type schemaCache struct {
	mu       sync.Mutex
	compiled map[token.Category]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{compiled: make(map[token.Category]*jsonschema.Schema)}
}

// forCategory returns the compiled schema validating one category's
// candidate array.
func (c *schemaCache) forCategory(spec token.CategorySpec) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if schema, ok := c.compiled[spec.Category]; ok {
		return schema, nil
	}

	wrapped := token.CandidateSetSchema([]token.CategorySpec{spec})
	arraySchema, ok := wrapped["properties"].(map[string]any)[string(spec.Category)]
	if !ok {
		return nil, fmt.Errorf("building schema for category %q", spec.Category)
	}

	schema, err := compileSchema(arraySchema)
	if err != nil {
		return nil, fmt.Errorf("compiling schema for category %q: %w", spec.Category, err)
	}

	c.compiled[spec.Category] = schema
	return schema, nil
}

// compileSchema compiles a generic schema map into a validator.
func compileSchema(schemaMap any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("schema.json")
}
