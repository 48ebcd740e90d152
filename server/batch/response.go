package batch

import (
	"github.com/humbleclay/humbleclay/server/extraction"
)

// formatResponseData normalizes raw provider output. Mappings and
// sequences pass through as containers; everything else is treated as
// an opaque scalar (typically text).
func formatResponseData(raw interface{}) interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v
	case []interface{}:
		return v
	default:
		return raw
	}
}

func isContainer(value interface{}) bool {
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

// PrepareResponse turns raw provider output into a final outcome,
// applying field extraction when requested.
//
// Without an extraction path the normalized value is returned as-is;
// scalar values are not wrapped. With an extraction path, a scalar
// value is first wrapped as {"result": value} so extraction always
// operates on a container, then the extractor's preconditions are
// checked and the path resolved. Extraction failures become error
// outcomes carrying the failure message; they never propagate.
func PrepareResponse(raw interface{}, extractFieldPath string, hasSchema bool) PromptResponse {
	formatted := formatResponseData(raw)

	if extractFieldPath == "" {
		return NewSuccessResponse(formatted)
	}

	if !isContainer(formatted) {
		formatted = map[string]interface{}{"result": formatted}
	}

	if err := extraction.ValidateRequest(formatted, extractFieldPath, hasSchema); err != nil {
		return NewErrorResponse(err.Error())
	}

	value, err := extraction.Extract(formatted, extractFieldPath)
	if err != nil {
		return NewErrorResponse(err.Error())
	}

	return NewSuccessResponse(value)
}
