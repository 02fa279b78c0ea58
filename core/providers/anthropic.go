package providers

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adalundhe/prism/core/errors"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicInvoker implements Invoker for Anthropic's Claude models.
type AnthropicInvoker struct {
	client *anthropic.Client
	config AnthropicConfig
}

// NewAnthropicInvoker creates a new Anthropic adapter with the given
// configuration.
func NewAnthropicInvoker(config AnthropicConfig) (*AnthropicInvoker, error) {
	if config.Model == "" {
		config.Model = DefaultAnthropicConfig().Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultAnthropicConfig().MaxTokens
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

	client := anthropic.NewClient(opts...)

	return &AnthropicInvoker{
		client: &client,
		config: config,
	}, nil
}

// Name returns the adapter identifier.
func (p *AnthropicInvoker) Name() string {
	return "anthropic"
}

// Invoke sends the image with a forced tool choice so the response is the
// tool's structured arguments, never prose.
func (p *AnthropicInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.classifyError(err, ctx)
	}

	for _, block := range msg.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok && tu.Name == req.Tool.Name {
			args, err := tu.Input.MarshalJSON()
			if err != nil {
				return nil, errors.New(errors.KindExtraction, "reading tool arguments", err)
			}
			return &Response{
				Arguments: string(args),
				Model:     string(msg.Model),
				Usage: Usage{
					InputTokens:  int(msg.Usage.InputTokens),
					OutputTokens: int(msg.Usage.OutputTokens),
				},
			}, nil
		}
	}

	return nil, errors.New(errors.KindExtraction,
		fmt.Sprintf("model did not call tool %q", req.Tool.Name), nil)
}

// buildParams constructs Anthropic API parameters from a Request.
func (p *AnthropicInvoker) buildParams(req *Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	encoded := base64.StdEncoding.EncodeToString(req.ImageData)

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(req.MediaType, encoded),
				anthropic.NewTextBlock(req.Prompt),
			),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.Tool.Name,
				Description: anthropic.String(req.Tool.Description),
				InputSchema: buildAnthropicSchema(req.Tool.Parameters),
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Tool.Name},
		},
	}
}

func buildAnthropicSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	return anthropic.ToolInputSchemaParam{
		Type:       "object",
		Properties: params["properties"],
		Required:   extractRequiredFields(params),
	}
}

func extractRequiredFields(params map[string]any) []string {
	req, ok := params["required"].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(req))
	for _, r := range req {
		if s, ok := r.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// classifyError maps SDK failures onto the pipeline error taxonomy.
func (p *AnthropicInvoker) classifyError(err error, ctx context.Context) error {
	if ctx.Err() != nil {
		return errors.New(errors.KindTimeout, "anthropic invoke", err)
	}

	var apiErr *anthropic.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return errors.New(errors.KindRateLimit, "anthropic invoke", err).
				WithRetryAfter(retryAfterOf(apiErr.Response.Header.Get("Retry-After")))
		case apiErr.StatusCode >= 500:
			return errors.New(errors.KindExtraction, "anthropic invoke", err)
		}
	}

	return errors.New(errors.KindExtraction, "anthropic invoke", err)
}

// retryAfterOf parses a Retry-After header value in seconds.
func retryAfterOf(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
