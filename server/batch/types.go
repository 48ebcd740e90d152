// Package batch implements the prompt batch orchestrator: it windows
// incoming prompt lists, fans out concurrent provider calls per window,
// isolates per-item failures, and reassembles outcomes in input order.
package batch

import "time"

// Outcome status values. Every processed prompt ends in exactly one of
// these states; there is no retry state at this layer.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PromptRequest is one unit of work: a prompt, an optional response
// format descriptor, and an optional extraction path.
//
// ResponseFormat follows the caller-supplied wire shape:
//
//	{"type": "json_schema", "json_schema": {"name": ..., "schema": {...}}}
//
// Only type "json_schema" triggers structured output; any other or
// absent type means plain-text mode. An empty prompt is valid input.
type PromptRequest struct {
	Prompt           string                 `json:"prompt"`
	ResponseFormat   map[string]interface{} `json:"response_format,omitempty"`
	ExtractFieldPath string                 `json:"extract_field_path,omitempty"`
}

// PromptResponse is the outcome of processing one PromptRequest.
// Error is non-empty if and only if Status is "error"; Response is nil
// when Status is "error".
type PromptResponse struct {
	Status   string      `json:"status"`
	Response interface{} `json:"response"`
	Error    string      `json:"error,omitempty"`
}

// NewSuccessResponse builds a success outcome carrying a value.
func NewSuccessResponse(value interface{}) PromptResponse {
	return PromptResponse{Status: StatusSuccess, Response: value}
}

// NewErrorResponse builds an error outcome carrying a failure message.
func NewErrorResponse(message string) PromptResponse {
	return PromptResponse{Status: StatusError, Error: message}
}

// MultiplePromptsRequest is an ordered, non-empty, bounded sequence of
// prompt requests. The upper bound caps memory use and concurrency
// fan-out per call.
type MultiplePromptsRequest struct {
	Prompts []PromptRequest `json:"prompts" validate:"required,min=1,max=1000"`
}

// MultiplePromptsResponse carries one outcome per input prompt, in
// input order.
type MultiplePromptsResponse struct {
	Responses []PromptResponse `json:"responses"`
}

// RunStats summarizes a completed batch run for the caller and for
// observability. It is derived state; the outcome list is the sole
// output artifact.
type RunStats struct {
	Total             int
	Completed         int
	Failed            int
	Duration          time.Duration
	TimeToFirstResult time.Duration // zero when no prompt succeeded
}
