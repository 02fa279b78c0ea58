// Package orchestrator coordinates the five pipeline stages: task creation,
// routing, pooled concurrent execution, failure isolation, and result
// aggregation. It depends only on the stage interfaces below, never on the
// agents' concrete implementations.
package orchestrator

import (
	"context"

	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/token"
)

// Preprocessor is the first-stage contract: image reference in, normalized
// prepared image out.
type Preprocessor interface {
	Process(ctx context.Context, ref token.ImageReference) (*preprocess.PreparedImage, error)
}

// Extractor is the second-stage contract. The per-category error map
// reports partial parse failures that did not fail the whole call.
type Extractor interface {
	Extract(ctx context.Context, img *preprocess.PreparedImage, categories []token.Category) ([]token.Candidate, map[token.Category]error, error)
}

// Aggregator is the third-stage contract.
type Aggregator interface {
	Aggregate(groups [][]token.Candidate) ([]token.Aggregated, error)
}

// Validator is the fourth-stage contract.
type Validator interface {
	Validate(tokens []token.Aggregated) []token.Validated
}

// Generator is the fifth-stage contract.
type Generator interface {
	Generate(tokens []token.Validated, format string) (string, error)
}
