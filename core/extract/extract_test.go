package extract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/providers"
	"github.com/adalundhe/prism/core/token"
)

// fakeInvoker returns a canned response or error and records calls.
type fakeInvoker struct {
	name     string
	response *providers.Response
	err      error
	calls    int
	lastReq  *providers.Request
}

func (f *fakeInvoker) Name() string { return f.name }

func (f *fakeInvoker) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func testImage() *preprocess.PreparedImage {
	return &preprocess.PreparedImage{
		ID:        "img-1",
		Data:      []byte("png-bytes"),
		MediaType: "image/png",
	}
}

func argumentsJSON(t *testing.T, payload map[string]any) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(b)
}

func newTestAgent(invokers ...providers.Invoker) *Agent {
	registry := providers.NewRegistry()
	for _, inv := range invokers {
		registry.Register(inv)
	}
	return NewAgent(DefaultConfig(), token.DefaultRegistry(), registry)
}

func TestExtractParsesCandidates(t *testing.T) {
	primary := &fakeInvoker{
		name: "anthropic",
		response: &providers.Response{
			Arguments: argumentsJSON(t, map[string]any{
				"color": []any{
					map[string]any{
						"value":      map[string]any{"hex": "#336699"},
						"confidence": 0.92,
						"region":     map[string]any{"x": 0, "y": 0, "width": 10, "height": 10},
					},
					map[string]any{
						"value":      map[string]any{"hex": "#ffffff"},
						"confidence": 0.81,
					},
				},
			}),
			Model: "claude-sonnet-4-5-20250901",
		},
	}
	agent := newTestAgent(primary)

	candidates, catErrs, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.NoError(t, err)
	assert.Empty(t, catErrs)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, token.CategoryColor, first.Category)
	assert.Equal(t, "#336699", first.Value["hex"])
	assert.Equal(t, 0.92, first.Confidence)
	assert.Equal(t, "img-1", first.ProvenanceID)
	assert.Equal(t, "anthropic", first.Extractor)
	assert.Equal(t, "img-1/color/0", first.OccurrenceID)
	require.NotNil(t, first.SourceRegion)
	assert.Equal(t, 10, first.SourceRegion.Width)

	assert.Equal(t, "img-1/color/1", candidates[1].OccurrenceID)
	assert.Nil(t, candidates[1].SourceRegion)
}

func TestExtractSendsForcedToolRequest(t *testing.T) {
	primary := &fakeInvoker{
		name:     "anthropic",
		response: &providers.Response{Arguments: "{}"},
	}
	agent := newTestAgent(primary)

	_, _, err := agent.Extract(context.Background(), testImage(),
		[]token.Category{token.CategoryColor, token.CategorySpacing})
	require.NoError(t, err)

	require.NotNil(t, primary.lastReq)
	assert.Equal(t, toolName, primary.lastReq.Tool.Name)
	assert.Equal(t, []byte("png-bytes"), primary.lastReq.ImageData)
	assert.Equal(t, "image/png", primary.lastReq.MediaType)

	props := primary.lastReq.Tool.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "color")
	assert.Contains(t, props, "spacing")
}

func TestExtractFallsBackToSecondary(t *testing.T) {
	primary := &fakeInvoker{
		name: "anthropic",
		err:  errors.New(errors.KindExtraction, "model unavailable", nil),
	}
	secondary := &fakeInvoker{
		name: "openai",
		response: &providers.Response{
			Arguments: argumentsJSON(t, map[string]any{
				"color": []any{
					map[string]any{"value": map[string]any{"hex": "#000000"}, "confidence": 0.7},
				},
			}),
		},
	}
	agent := newTestAgent(primary, secondary)

	candidates, _, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, "openai", candidates[0].Extractor, "fallback configuration must be recorded")
}

func TestExtractExhaustedChain(t *testing.T) {
	primary := &fakeInvoker{name: "anthropic", err: errors.New(errors.KindExtraction, "down", nil)}
	secondary := &fakeInvoker{name: "openai", err: errors.New(errors.KindExtraction, "also down", nil)}
	agent := newTestAgent(primary, secondary)

	_, _, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.Error(t, err)
	assert.Equal(t, errors.KindExtraction, errors.GetKind(err))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestExtractStopsFallbackOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &fakeInvoker{name: "anthropic", err: errors.New(errors.KindTimeout, "deadline", nil)}
	secondary := &fakeInvoker{name: "openai", response: &providers.Response{Arguments: "{}"}}
	agent := newTestAgent(primary, secondary)

	cancel()
	_, _, err := agent.Extract(ctx, testImage(), []token.Category{token.CategoryColor})
	require.Error(t, err)
	assert.Equal(t, 0, secondary.calls, "cancelled context must not start the next fallback")
}

func TestExtractSchemaViolationIsolatedPerCategory(t *testing.T) {
	primary := &fakeInvoker{
		name: "anthropic",
		response: &providers.Response{
			Arguments: argumentsJSON(t, map[string]any{
				"color": []any{
					map[string]any{"value": map[string]any{"hex": "not-a-hex"}, "confidence": 0.9},
				},
				"spacing": []any{
					map[string]any{"value": map[string]any{"value": 16, "unit": "px"}, "confidence": 0.88},
				},
			}),
		},
	}
	agent := newTestAgent(primary)

	candidates, catErrs, err := agent.Extract(context.Background(), testImage(),
		[]token.Category{token.CategoryColor, token.CategorySpacing})
	require.NoError(t, err)

	require.Len(t, candidates, 1, "conformant category must survive")
	assert.Equal(t, token.CategorySpacing, candidates[0].Category)

	require.Contains(t, catErrs, token.CategoryColor)
	assert.Equal(t, errors.KindExtraction, errors.GetKind(catErrs[token.CategoryColor]))
}

func TestExtractMissingConfidenceRejected(t *testing.T) {
	primary := &fakeInvoker{
		name: "anthropic",
		response: &providers.Response{
			Arguments: `{"color":[{"value":{"hex":"#336699"}}]}`,
		},
	}
	agent := newTestAgent(primary)

	candidates, catErrs, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Contains(t, catErrs, token.CategoryColor)
}

func TestExtractMissingCategoryKeySkipped(t *testing.T) {
	primary := &fakeInvoker{
		name:     "anthropic",
		response: &providers.Response{Arguments: "{}"},
	}
	agent := newTestAgent(primary)

	candidates, catErrs, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, catErrs, "an absent category is no tokens found, not an error")
}

func TestExtractMalformedArguments(t *testing.T) {
	primary := &fakeInvoker{
		name:     "anthropic",
		response: &providers.Response{Arguments: "not json"},
	}
	agent := newTestAgent(primary)

	_, _, err := agent.Extract(context.Background(), testImage(), []token.Category{token.CategoryColor})
	require.Error(t, err)
	assert.Equal(t, errors.KindExtraction, errors.GetKind(err))
}

func TestExtractUnknownCategory(t *testing.T) {
	agent := newTestAgent(&fakeInvoker{name: "anthropic"})

	_, _, err := agent.Extract(context.Background(), testImage(), []token.Category{token.Category("sparkles")})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestBuildPromptMentionsCategories(t *testing.T) {
	prompt := buildPrompt([]token.Category{token.CategoryColor, token.CategoryShadow})
	assert.Contains(t, prompt, "color")
	assert.Contains(t, prompt, "shadow")
	assert.NotContains(t, prompt, "gradient")
}
