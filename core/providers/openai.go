package providers

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"

	"github.com/adalundhe/prism/core/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIInvoker implements Invoker for OpenAI's multimodal models.
type OpenAIInvoker struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIInvoker creates a new OpenAI adapter with the given configuration.
func NewOpenAIInvoker(config OpenAIConfig) (*OpenAIInvoker, error) {
	if config.Model == "" {
		config.Model = DefaultOpenAIConfig().Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultOpenAIConfig().MaxTokens
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Organization != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", config.Organization))
	}

	client := openai.NewClient(opts...)

	return &OpenAIInvoker{
		client: &client,
		config: config,
	}, nil
}

// Name returns the adapter identifier.
func (p *OpenAIInvoker) Name() string {
	return "openai"
}

// Invoke sends the image with a forced function call so the response is the
// function's structured arguments, never prose.
func (p *OpenAIInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.classifyError(err, ctx)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New(errors.KindExtraction, "openai returned no choices", nil)
	}

	for _, call := range completion.Choices[0].Message.ToolCalls {
		if call.Function.Name == req.Tool.Name {
			return &Response{
				Arguments: call.Function.Arguments,
				Model:     completion.Model,
				Usage: Usage{
					InputTokens:  int(completion.Usage.PromptTokens),
					OutputTokens: int(completion.Usage.CompletionTokens),
				},
			}, nil
		}
	}

	return nil, errors.New(errors.KindExtraction,
		fmt.Sprintf("model did not call tool %q", req.Tool.Name), nil)
}

// buildParams constructs OpenAI API parameters from a Request.
func (p *OpenAIInvoker) buildParams(req *Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		req.MediaType, base64.StdEncoding.EncodeToString(req.ImageData))

	return openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.config.Model),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
				openai.TextContentPart(req.Prompt),
			}),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: shared.FunctionDefinitionParam{
				Name:        req.Tool.Name,
				Description: openai.String(req.Tool.Description),
				Parameters:  shared.FunctionParameters(req.Tool.Parameters),
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: req.Tool.Name,
				},
			},
		},
	}
}

// classifyError maps SDK failures onto the pipeline error taxonomy.
func (p *OpenAIInvoker) classifyError(err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return errors.New(errors.KindTimeout, "openai invoke", err)
	}

	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return errors.New(errors.KindRateLimit, "openai invoke", err).
				WithRetryAfter(retryAfterOf(apiErr.Response.Header.Get("Retry-After")))
		case apiErr.StatusCode >= 500:
			return errors.New(errors.KindExtraction, "openai invoke", err)
		}
	}

	return errors.New(errors.KindExtraction, "openai invoke", err)
}
