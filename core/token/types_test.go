package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCandidateRejectsOutOfRangeConfidence(t *testing.T) {
	value := map[string]any{"hex": "#336699"}

	_, err := NewCandidate(CategoryColor, value, 1.2, "img-1")
	assert.Error(t, err, "confidence above 1 must be rejected")

	_, err = NewCandidate(CategoryColor, value, -0.1, "img-1")
	assert.Error(t, err, "confidence below 0 must be rejected")

	for _, confidence := range []float64{0, 0.5, 1} {
		_, err := NewCandidate(CategoryColor, value, confidence, "img-1")
		assert.NoError(t, err, "confidence %v is in range", confidence)
	}
}

func TestNewCandidateRejectsUnknownCategory(t *testing.T) {
	_, err := NewCandidate(Category("sparkles"), map[string]any{"hex": "#ffffff"}, 0.9, "img-1")
	assert.Error(t, err)
}

func TestCategoryValid(t *testing.T) {
	for _, c := range AllCategories() {
		assert.True(t, c.Valid(), "%s should be valid", c)
	}
	assert.False(t, Category("sparkles").Valid())
}

func TestRetriedSupersedesWithoutMutation(t *testing.T) {
	task := ExtractionTask{
		ID:         "t-1",
		Categories: []Category{CategoryColor, CategorySpacing},
	}

	retry := task.Retried()
	require.Equal(t, 1, retry.RetryCount)
	assert.Equal(t, 0, task.RetryCount, "original task must stay untouched")

	retry.Categories[0] = CategoryShadow
	assert.Equal(t, CategoryColor, task.Categories[0], "categories must be copied")
}

func TestOccurrenceCount(t *testing.T) {
	agg := Aggregated{SourceIDs: []string{"a", "b", "b"}}
	assert.Equal(t, 3, agg.OccurrenceCount())
}

func TestImageReferenceIsRemote(t *testing.T) {
	assert.True(t, ImageReference{URL: "https://example.com/a.png"}.IsRemote())
	assert.False(t, ImageReference{Data: []byte{1}}.IsRemote())
}
