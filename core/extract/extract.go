// Package extract implements the second pipeline stage: turning a prepared
// image into raw token candidates through the model capability boundary.
// The capability's output is held to a declared JSON schema per category;
// non-conformant output is a hard extraction error, never best-effort text
// parsing.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/providers"
	"github.com/adalundhe/prism/core/token"
)

const toolName = "record_design_tokens"

// Config configures the extraction agent.
type Config struct {
	// MaxTokens bounds the model's structured response size.
	MaxTokens int `yaml:"max_tokens"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{MaxTokens: 4096}
}

// Agent is the extraction stage. It is stateless across calls; all state
// flows through arguments and results.
type Agent struct {
	config   Config
	registry *token.Registry
	invokers *providers.Registry
	schemas  *schemaCache
	logger   *slog.Logger
}

// NewAgent creates an extraction agent over the given category and invoker
// registries.
func NewAgent(cfg Config, registry *token.Registry, invokers *providers.Registry) *Agent {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Agent{
		config:   cfg,
		registry: registry,
		invokers: invokers,
		schemas:  newSchemaCache(),
		logger:   cfg.Logger,
	}
}

// Extract requests candidates for the given categories from one prepared
// image. All categories are sent in a single call; a parse failure in one
// category never blocks the others, so the result carries both candidates
// and a per-category error map. The error return is non-nil only when the
// whole call failed for every configured fallback.
func (a *Agent) Extract(ctx context.Context, img *preprocess.PreparedImage, categories []token.Category) ([]token.Candidate, map[token.Category]error, error) {
	specs, err := a.resolveSpecs(categories)
	if err != nil {
		return nil, nil, err
	}

	req := &providers.Request{
		ImageData: img.Data,
		MediaType: img.MediaType,
		Prompt:    buildPrompt(categories),
		MaxTokens: a.config.MaxTokens,
		Tool: providers.Tool{
			Name:        toolName,
			Description: "Record the design tokens extracted from the screenshot.",
			Parameters:  token.CandidateSetSchema(specs),
		},
	}

	resp, extractor, err := a.invokeWithFallback(ctx, specs, req)
	if err != nil {
		return nil, nil, err
	}

	return a.parseResponse(resp, extractor, img.ID, specs)
}

// resolveSpecs maps categories to their registry specs.
func (a *Agent) resolveSpecs(categories []token.Category) ([]token.CategorySpec, error) {
	if len(categories) == 0 {
		return nil, errors.New(errors.KindValidation, "no categories requested", nil)
	}

	specs := make([]token.CategorySpec, 0, len(categories))
	for _, c := range categories {
		spec, ok := a.registry.Get(c)
		if !ok {
			return nil, errors.New(errors.KindValidation, fmt.Sprintf("category %q is not registered", c), nil)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// invokeWithFallback attempts each configuration in the category's ordered
// fallback chain until one succeeds. Categories routed into one call share a
// dependency group and therefore a chain.
func (a *Agent) invokeWithFallback(ctx context.Context, specs []token.CategorySpec, req *providers.Request) (*providers.Response, string, error) {
	chain := specs[0].Fallbacks
	if len(chain) == 0 {
		return nil, "", errors.New(errors.KindValidation,
			fmt.Sprintf("category %q has no extraction configurations", specs[0].Category), nil)
	}

	var lastErr error
	for _, name := range chain {
		invoker, err := a.invokers.Get(name)
		if err != nil {
			lastErr = errors.New(errors.KindValidation, "resolving extraction configuration", err)
			continue
		}

		resp, err := invoker.Invoke(ctx, req)
		if err == nil {
			return resp, name, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		a.logger.Warn("extraction configuration failed, trying next",
			"configuration", name,
			"error", err)
	}

	return nil, "", errors.Wrap(errors.KindExtraction, "all extraction configurations exhausted", lastErr)
}

// rawCandidate mirrors one element of the tool's candidate arrays.
type rawCandidate struct {
	Value      map[string]any     `json:"value"`
	Confidence *float64           `json:"confidence"`
	Region     *token.BoundingBox `json:"region,omitempty"`
}

// parseResponse validates the structured payload per category and converts
// it into candidates. A category whose payload violates its schema gets an
// entry in the error map; conformant categories are returned regardless.
func (a *Agent) parseResponse(resp *providers.Response, extractor, provenanceID string, specs []token.CategorySpec) ([]token.Candidate, map[token.Category]error, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(resp.Arguments), &payload); err != nil {
		return nil, nil, errors.New(errors.KindExtraction, "tool arguments are not a JSON object", err)
	}

	var candidates []token.Candidate
	catErrors := make(map[token.Category]error)

	for _, spec := range specs {
		raw, ok := payload[string(spec.Category)]
		if !ok {
			continue
		}

		parsed, err := a.parseCategory(raw, extractor, provenanceID, spec)
		if err != nil {
			catErrors[spec.Category] = err
			continue
		}
		candidates = append(candidates, parsed...)
	}

	return candidates, catErrors, nil
}

// parseCategory validates one category's candidate array against its schema
// and converts the elements.
func (a *Agent) parseCategory(raw json.RawMessage, extractor, provenanceID string, spec token.CategorySpec) ([]token.Candidate, error) {
	schema, err := a.schemas.forCategory(spec)
	if err != nil {
		return nil, errors.New(errors.KindExtraction, "compiling category schema", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.New(errors.KindExtraction,
			fmt.Sprintf("category %q payload is not valid JSON", spec.Category), err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, errors.New(errors.KindExtraction,
			fmt.Sprintf("category %q payload violates its schema", spec.Category), err)
	}

	var rawCandidates []rawCandidate
	if err := json.Unmarshal(raw, &rawCandidates); err != nil {
		return nil, errors.New(errors.KindExtraction,
			fmt.Sprintf("category %q payload shape", spec.Category), err)
	}

	candidates := make([]token.Candidate, 0, len(rawCandidates))
	for i, rc := range rawCandidates {
		// The schema requires confidence; a capability that omits it fails
		// here rather than having a value fabricated.
		if rc.Confidence == nil {
			return nil, errors.New(errors.KindExtraction,
				fmt.Sprintf("category %q candidate %d has no confidence", spec.Category, i), nil)
		}

		candidate, err := token.NewCandidate(spec.Category, rc.Value, *rc.Confidence, provenanceID)
		if err != nil {
			return nil, errors.New(errors.KindExtraction,
				fmt.Sprintf("category %q candidate %d", spec.Category, i), err)
		}
		candidate.SourceRegion = rc.Region
		candidate.Extractor = extractor
		candidate.OccurrenceID = fmt.Sprintf("%s/%s/%d", provenanceID, spec.Category, i)
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
