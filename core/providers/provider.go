// Package providers implements the model capability boundary: adapters that
// send a prepared image plus a token schema to an external multimodal model
// and return the structured tool-call payload, or fail explicitly. No
// free-text parsing happens here or anywhere downstream.
package providers

import (
	"context"
)

// Tool declares the structured-output contract for one invocation. The
// model must answer through this tool; its Parameters are a JSON schema.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request carries one prepared image and the schema contract to satisfy.
type Request struct {
	ImageData []byte
	MediaType string
	Prompt    string
	Tool      Tool
	MaxTokens int
}

// Usage reports token consumption for one invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the structured result of one invocation: the raw JSON
// arguments of the forced tool call.
type Response struct {
	Arguments string `json:"arguments"`
	Model     string `json:"model"`
	Usage     Usage  `json:"usage"`
}

// Invoker is the model capability contract the extraction stage depends on.
// Implementations either return schema-shaped structured data or fail with a
// classified error.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (*Response, error)
}
