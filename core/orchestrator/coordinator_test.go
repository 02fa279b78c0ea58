package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adalundhe/prism/core/aggregate"
	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/generate"
	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/token"
	"github.com/adalundhe/prism/core/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePreprocessor struct {
	mu    sync.Mutex
	calls int
	fail  map[byte]error
}

func (f *fakePreprocessor) Process(_ context.Context, ref token.ImageReference) (*preprocess.PreparedImage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	var key byte
	if len(ref.Data) > 0 {
		key = ref.Data[0]
	}
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return &preprocess.PreparedImage{
		ID:        fmt.Sprintf("img-%d", key),
		Data:      ref.Data,
		MediaType: "image/png",
		Width:     100,
		Height:    100,
	}, nil
}

type fakeExtractor struct {
	mu         sync.Mutex
	calls      int
	candidates map[string][]token.Candidate
	catErrs    map[token.Category]error
	fail       map[string]error
	err        error
}

func (f *fakeExtractor) Extract(_ context.Context, img *preprocess.PreparedImage, _ []token.Category) ([]token.Candidate, map[token.Category]error, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}
	if err, ok := f.fail[img.ID]; ok {
		return nil, nil, err
	}
	return f.candidates[img.ID], f.catErrs, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func colorOccurrence(imageID, hex string, confidence float64) token.Candidate {
	id := imageID + "/color/0"
	return token.Candidate{
		Category:     token.CategoryColor,
		Value:        map[string]any{"hex": hex},
		Confidence:   confidence,
		ProvenanceID: id,
		OccurrenceID: id,
	}
}

func newTestCoordinator(pre Preprocessor, ext Extractor, cfg Config) *Coordinator {
	registry := token.DefaultRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Logger = logger
	return New(cfg, registry, pre, ext,
		aggregate.NewAgent(registry, logger),
		validate.NewAgent(registry, logger),
		generate.NewAgent())
}

func imageData(key byte) token.ImageReference {
	return token.ImageReference{Data: []byte{key}}
}

func TestRunExtractionMergesAcrossImages(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{candidates: map[string][]token.Candidate{
		"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
		"img-2": {colorOccurrence("img-2", "#35689b", 0.8)},
	}}
	c := newTestCoordinator(pre, ext, Config{})

	result, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1), imageData(2)},
		[]token.Category{token.CategoryColor},
		[]string{"css"})
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.False(t, result.PartialSuccess)
	assert.NotEmpty(t, result.SessionID)

	// Near-identical colors from different images fold into one token.
	require.Len(t, result.Tokens, 1)
	merged := result.Tokens[0]
	assert.Equal(t, 2, merged.OccurrenceCount())
	assert.InDelta(t, 0.85, merged.AverageConfidence, 1e-9)
	assert.True(t, merged.StructuralValid)

	require.Contains(t, result.GeneratedOutputs, "css")
	assert.Contains(t, result.GeneratedOutputs["css"], "--color-1:")
}

func TestRunExtractionIsolatesFailedImage(t *testing.T) {
	pre := &fakePreprocessor{fail: map[byte]error{
		2: errors.New(errors.KindValidation, "image exceeds pixel limits", nil),
	}}
	ext := &fakeExtractor{candidates: map[string][]token.Candidate{
		"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
		"img-3": {colorOccurrence("img-3", "#ff0000", 0.7)},
	}}
	c := newTestCoordinator(pre, ext, Config{})

	result, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1), imageData(2), imageData(3)},
		[]token.Category{token.CategoryColor},
		nil)
	require.NoError(t, err)

	// The failed image is reported; its siblings still produce tokens.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "validation", result.Errors[0].Kind)
	assert.Contains(t, result.Errors[0].TaskID, "/image-")
	assert.Len(t, result.Tokens, 2)
	assert.True(t, result.PartialSuccess)
}

func TestRunExtractionIsolatesExhaustedExtraction(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{
		candidates: map[string][]token.Candidate{
			"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
			"img-3": {colorOccurrence("img-3", "#ff0000", 0.7)},
		},
		fail: map[string]error{
			"img-2": errors.New(errors.KindExtraction, "all fallbacks exhausted", nil),
		},
	}
	c := newTestCoordinator(pre, ext, Config{
		RetryPolicies: map[errors.Kind]*errors.RetryPolicy{},
	})

	result, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1), imageData(2), imageData(3)},
		[]token.Category{token.CategoryColor},
		nil)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "extraction", result.Errors[0].Kind)
	assert.True(t, strings.HasSuffix(result.Errors[0].TaskID, "/vision"))
	assert.Len(t, result.Tokens, 2)
	assert.True(t, result.PartialSuccess)
}

func TestRunExtractionFailsFastWhenCircuitOpen(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{err: errors.New(errors.KindValidation, "capability rejected request", nil)}
	c := newTestCoordinator(pre, ext, Config{
		Breaker: errors.CircuitBreakerConfig{
			FailureThreshold:  1,
			RecoveryTimeout:   time.Hour,
			HalfOpenMaxProbes: 1,
			HalfOpenSuccesses: 1,
		},
	})

	first, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.CategoryColor},
		nil)
	require.NoError(t, err)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, "validation", first.Errors[0].Kind)
	assert.Equal(t, 1, ext.callCount())

	// The tripped breaker rejects the next run before the extractor or its
	// pool are touched.
	second, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.CategoryColor},
		nil)
	require.NoError(t, err)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, "circuit_open", second.Errors[0].Kind)
	assert.True(t, strings.HasSuffix(second.Errors[0].TaskID, "/vision"))
	assert.Equal(t, 1, ext.callCount())
	assert.Empty(t, second.Tokens)
	assert.False(t, second.PartialSuccess)
}

func TestRunExtractionRecordsCategoryParseFailures(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{
		candidates: map[string][]token.Candidate{
			"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
		},
		catErrs: map[token.Category]error{
			token.CategoryGradient: errors.New(errors.KindExtraction, "schema violation", nil),
		},
	}
	c := newTestCoordinator(pre, ext, Config{})

	result, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.CategoryColor, token.CategoryGradient},
		nil)
	require.NoError(t, err)

	// A per-category parse failure is reported without failing the
	// categories that parsed.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "extraction", result.Errors[0].Kind)
	assert.True(t, strings.HasSuffix(result.Errors[0].TaskID, "/vision/gradient"))
	assert.Len(t, result.Tokens, 1)
	assert.True(t, result.PartialSuccess)
}

func TestRunExtractionUnsupportedFormatIsIsolated(t *testing.T) {
	pre := &fakePreprocessor{}
	ext := &fakeExtractor{candidates: map[string][]token.Candidate{
		"img-1": {colorOccurrence("img-1", "#336699", 0.9)},
	}}
	c := newTestCoordinator(pre, ext, Config{})

	result, err := c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.CategoryColor},
		[]string{"css", "bogus"})
	require.NoError(t, err)

	require.Contains(t, result.GeneratedOutputs, "css")
	assert.NotContains(t, result.GeneratedOutputs, "bogus")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "generate/bogus", result.Errors[0].TaskID)
	assert.Equal(t, "unsupported_format", result.Errors[0].Kind)
	assert.True(t, result.PartialSuccess)
}

func TestRunExtractionRejectsMalformedInput(t *testing.T) {
	c := newTestCoordinator(&fakePreprocessor{}, &fakeExtractor{}, Config{})

	_, err := c.RunExtraction(context.Background(), nil,
		[]token.Category{token.CategoryColor}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	_, err = c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	_, err = c.RunExtraction(context.Background(),
		[]token.ImageReference{imageData(1)},
		[]token.Category{token.Category("sparkline")}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}
