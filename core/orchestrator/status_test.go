package orchestrator

import (
	"context"
	"testing"

	"github.com/adalundhe/prism/core/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCoversEveryStage(t *testing.T) {
	c := newTestCoordinator(&fakePreprocessor{}, &fakeExtractor{}, Config{})

	status := c.Status()
	require.Len(t, status, 5)
	for _, stage := range []string{StagePreprocess, StageExtract, StageAggregate, StageValidate, StageGenerate} {
		require.Contains(t, status, stage)
	}

	assert.Equal(t, 8, status[StagePreprocess].Limit)
	assert.Equal(t, 2, status[StageExtract].Limit)
	assert.Equal(t, 1, status[StageAggregate].Limit)

	// No extraction has run, so no breakers exist yet.
	assert.Nil(t, status[StageExtract].Circuits)
}

func TestStatusReportsCountersAndCircuits(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{candidates: map[string][]token.Candidate{
		"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
	}}
	c := newTestCoordinator(pre, ext, Config{})

	_, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.CategoryColor},
		[]string{"css"})
	require.NoError(t, err)

	status := c.Status()
	assert.Equal(t, int64(1), status[StagePreprocess].Completed)
	assert.Equal(t, int64(1), status[StageExtract].Completed)
	assert.Equal(t, int64(1), status[StageGenerate].Completed)
	assert.Equal(t, int64(0), status[StageExtract].Active)

	require.Contains(t, status[StageExtract].Circuits, "vision")
	assert.Equal(t, "closed", status[StageExtract].Circuits["vision"])
}
