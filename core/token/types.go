// Package token defines the data contracts shared by every pipeline stage:
// categories, extraction tasks, candidate and aggregated tokens, and the
// final pipeline result.
package token

import (
	"fmt"
	"time"
)

// Category identifies the kind of design attribute a token describes.
// The set is closed; new categories are added here plus a registry entry,
// never by writing a new agent.
type Category string

const (
	// CategoryColor covers solid color values (hex/RGB payloads).
	CategoryColor Category = "color"

	// CategorySpacing covers spacing and sizing measurements.
	CategorySpacing Category = "spacing"

	// CategoryTypography covers font family/size/weight/line-height groups.
	CategoryTypography Category = "typography"

	// CategoryShadow covers box-shadow definitions.
	CategoryShadow Category = "shadow"

	// CategoryGradient covers multi-stop gradient definitions.
	CategoryGradient Category = "gradient"

	// CategoryRadius covers corner radius measurements.
	CategoryRadius Category = "radius"
)

// AllCategories returns every known category in stable order.
func AllCategories() []Category {
	return []Category{
		CategoryColor,
		CategorySpacing,
		CategoryTypography,
		CategoryShadow,
		CategoryGradient,
		CategoryRadius,
	}
}

// Valid reports whether the category is a known variant.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Priority orders tasks within a stage queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// ImageReference points at the image a task should process. Exactly one of
// URL or Data is set.
type ImageReference struct {
	URL  string `json:"url,omitempty"`
	Data []byte `json:"-"`
}

// IsRemote reports whether the reference requires a network fetch.
func (r ImageReference) IsRemote() bool {
	return r.URL != ""
}

// ExtractionTask is one unit of pipeline work: a single image crossed with a
// group of requested categories. Tasks are immutable once dispatched; a
// retry produces a superseding task via Retried rather than mutating the
// original.
type ExtractionTask struct {
	ID         string
	Image      ImageReference
	Categories []Category
	Priority   Priority
	Timeout    time.Duration
	RetryCount int
}

// Retried returns a copy of the task with the retry counter incremented.
func (t ExtractionTask) Retried() ExtractionTask {
	next := t
	next.RetryCount++
	next.Categories = append([]Category(nil), t.Categories...)
	return next
}

// BoundingBox locates a token occurrence within its source image, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Candidate is a single raw token produced by the extraction stage. Value
// holds the category-specific payload as returned by the model capability,
// already verified against the category schema.
type Candidate struct {
	Category     Category       `json:"category"`
	Value        map[string]any `json:"value"`
	Confidence   float64        `json:"confidence"`
	SourceRegion *BoundingBox   `json:"source_region,omitempty"`
	ProvenanceID string         `json:"provenance_id"`

	// Extractor names the provider configuration that produced the candidate,
	// so consumers can tell when a fallback configuration was used.
	Extractor string `json:"extractor,omitempty"`

	// OccurrenceID uniquely identifies this candidate occurrence. Aggregation
	// uses it to keep re-merges of the same occurrences from double-counting.
	OccurrenceID string `json:"occurrence_id,omitempty"`
}

// NewCandidate builds a candidate, rejecting out-of-range confidence values.
// Confidence outside [0,1] is a contract violation by the capability, never
// silently clamped.
func NewCandidate(category Category, value map[string]any, confidence float64, provenanceID string) (Candidate, error) {
	if !category.Valid() {
		return Candidate{}, fmt.Errorf("unknown category %q", category)
	}
	if confidence < 0 || confidence > 1 {
		return Candidate{}, fmt.Errorf("confidence %v outside [0,1] for category %q", confidence, category)
	}
	return Candidate{
		Category:     category,
		Value:        value,
		Confidence:   confidence,
		ProvenanceID: provenanceID,
	}, nil
}

// Aggregated is a merged token: one representative value plus the provenance
// of every contributing occurrence. Merging is monotonic; an aggregated
// token is never split again.
type Aggregated struct {
	Candidate

	// SourceIDs lists one provenance id per contributing occurrence, in
	// canonical order. Duplicates across distinct occurrences are allowed.
	SourceIDs []string `json:"source_ids"`

	// AverageConfidence is the mean of the contributing confidences.
	AverageConfidence float64 `json:"average_confidence"`
}

// OccurrenceCount returns how many occurrences contributed to the token.
func (a Aggregated) OccurrenceCount() int {
	return len(a.SourceIDs)
}

// AccessibilityReport carries WCAG contrast results for a color token,
// evaluated against the standard white and black reference backgrounds.
type AccessibilityReport struct {
	ContrastOnWhite float64 `json:"contrast_on_white"`
	ContrastOnBlack float64 `json:"contrast_on_black"`

	// AANormal/AALarge/AAANormal/AAALarge report whether the better of the
	// two reference contrasts passes each WCAG level and text-size class.
	AANormal  bool `json:"aa_normal"`
	AALarge   bool `json:"aa_large"`
	AAANormal bool `json:"aaa_normal"`
	AAALarge  bool `json:"aaa_large"`
}

// Validated is an aggregated token annotated with structural validity and
// quality signals. Invalid tokens are retained with StructuralValid=false;
// downstream consumers decide whether to filter.
type Validated struct {
	Aggregated

	QualityScore    float64              `json:"quality_score"`
	StructuralValid bool                 `json:"structural_valid"`
	InvalidReason   string               `json:"invalid_reason,omitempty"`
	Accessibility   *AccessibilityReport `json:"accessibility,omitempty"`
}

// TaskError records one task-level failure inside a pipeline result.
type TaskError struct {
	TaskID  string `json:"task_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PipelineResult is the single output of a pipeline run. It always carries
// both the tokens that were produced and the failures that occurred;
// failure detail is never dropped.
type PipelineResult struct {
	SessionID        string            `json:"session_id"`
	Tokens           []Validated       `json:"tokens"`
	GeneratedOutputs map[string]string `json:"generated_outputs,omitempty"`
	Errors           []TaskError       `json:"errors,omitempty"`

	// PartialSuccess is true when at least one task failed but at least one
	// token was still produced.
	PartialSuccess bool `json:"partial_success"`
}
