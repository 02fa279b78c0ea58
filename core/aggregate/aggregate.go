// Package aggregate implements the third pipeline stage: merging candidates
// from multiple extractions into deduplicated tokens with provenance.
//
// Aggregation is commutative and associative over the candidate multiset:
// candidates are folded in a canonical order, so batch order and
// within-batch order never change the resulting token set.
package aggregate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/token"
)

// Agent is the aggregation stage. Stateless; each call folds its input into
// a fresh token set.
type Agent struct {
	registry *token.Registry
	logger   *slog.Logger
}

// NewAgent creates an aggregation agent over the category registry.
func NewAgent(registry *token.Registry, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{registry: registry, logger: logger}
}

// bucket is one in-progress aggregated token during the fold.
type bucket struct {
	representative token.Candidate
	sourceIDs      []string
	confidenceSum  float64
	occurrences    map[string]bool
}

// Aggregate merges candidate groups (one inner slice per source extraction)
// into deduplicated tokens. Candidates of the same category within the
// category's similarity threshold merge into one token; a candidate within
// threshold of several existing tokens merges into the closest only.
// Occurrences that were already folded (same occurrence key) are skipped, so
// re-merging identical provenance never double-counts.
func (a *Agent) Aggregate(groups [][]token.Candidate) ([]token.Aggregated, error) {
	flat := flatten(groups)
	sortCanonical(flat)

	var buckets []*bucket
	seen := make(map[string]bool)

	for _, candidate := range flat {
		key := occurrenceKey(candidate)
		if seen[key] {
			continue
		}
		seen[key] = true

		spec, ok := a.registry.Get(candidate.Category)
		if !ok {
			return nil, errors.New(errors.KindValidation,
				fmt.Sprintf("category %q is not registered", candidate.Category), nil)
		}

		target, err := a.closestBucket(buckets, candidate, spec)
		if err != nil {
			return nil, err
		}

		if target == nil {
			buckets = append(buckets, &bucket{
				representative: candidate,
				sourceIDs:      []string{candidate.ProvenanceID},
				confidenceSum:  candidate.Confidence,
				occurrences:    map[string]bool{key: true},
			})
			continue
		}

		target.sourceIDs = append(target.sourceIDs, candidate.ProvenanceID)
		target.confidenceSum += candidate.Confidence
		target.occurrences[key] = true
	}

	result := make([]token.Aggregated, 0, len(buckets))
	for _, b := range buckets {
		n := float64(len(b.sourceIDs))
		result = append(result, token.Aggregated{
			Candidate:         b.representative,
			SourceIDs:         b.sourceIDs,
			AverageConfidence: b.confidenceSum / n,
		})
	}

	a.logger.Debug("aggregation complete",
		"candidates", len(flat),
		"tokens", len(result))

	return result, nil
}

// closestBucket finds the same-category bucket within threshold that is
// nearest to the candidate, or nil when none qualifies. Merging is a
// function: a candidate joins at most one bucket.
func (a *Agent) closestBucket(buckets []*bucket, candidate token.Candidate, spec token.CategorySpec) (*bucket, error) {
	var (
		best     *bucket
		bestDist = math.Inf(1)
	)

	for _, b := range buckets {
		if b.representative.Category != candidate.Category {
			continue
		}

		dist, err := spec.Similarity(b.representative.Value, candidate.Value)
		if err != nil {
			return nil, errors.New(errors.KindValidation,
				fmt.Sprintf("comparing %q values", candidate.Category), err)
		}

		// A distance exactly at the threshold still merges.
		if dist <= spec.Threshold && dist < bestDist {
			best = b
			bestDist = dist
		}
	}

	return best, nil
}

// flatten joins the per-source groups into one slice.
func flatten(groups [][]token.Candidate) []token.Candidate {
	var total int
	for _, g := range groups {
		total += len(g)
	}

	flat := make([]token.Candidate, 0, total)
	for _, g := range groups {
		flat = append(flat, g...)
	}
	return flat
}

// sortCanonical orders candidates deterministically regardless of the order
// they arrived in, which makes the greedy fold order-independent.
func sortCanonical(candidates []token.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		av, bv := canonicalValue(a.Value), canonicalValue(b.Value)
		if av != bv {
			return av < bv
		}
		return occurrenceKey(a) < occurrenceKey(b)
	})
}

// canonicalValue renders a value payload with sorted keys.
func canonicalValue(value map[string]any) string {
	// encoding/json sorts map keys, which is exactly the determinism needed.
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}

// occurrenceKey identifies one candidate occurrence for idempotent
// re-merging.
func occurrenceKey(c token.Candidate) string {
	if c.OccurrenceID != "" {
		return c.OccurrenceID
	}
	return fmt.Sprintf("%s#%s#%s#%g", c.ProvenanceID, c.Category, canonicalValue(c.Value), c.Confidence)
}
