package mocks

import (
	"context"

	"github.com/humbleclay/humbleclay/server/schema"
)

// MockClient implements provider.Client with pluggable behavior per
// call. Both funcs receive the prompt so tests can key responses and
// failures off prompt content.
type MockClient struct {
	GenerateFunc           func(ctx context.Context, prompt string) (string, error)
	GenerateStructuredFunc func(ctx context.Context, prompt string, shape *schema.ResponseShape) (map[string]interface{}, error)
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockClient) GenerateStructured(ctx context.Context, prompt string, shape *schema.ResponseShape) (map[string]interface{}, error) {
	if m.GenerateStructuredFunc != nil {
		return m.GenerateStructuredFunc(ctx, prompt, shape)
	}
	return map[string]interface{}{}, nil
}
