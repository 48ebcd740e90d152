// Package validation provides request-level validation for the prompt
// endpoints, including token budgeting against the provider's context
// window.
package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer defines the interface for token counting.
type Tokenizer interface {
	CountTokens(text string) int
}

// tiktokenWrapper adapts tiktoken to the Tokenizer interface.
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter counts prompt tokens using the encoding for the
// configured model, falling back to cl100k_base for models tiktoken
// does not know (e.g. gateway-routed Gemini models).
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the given model name.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get token encoding: %v", err)
		}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// NewTokenCounterWithTokenizer wires a custom tokenizer, used in tests.
func NewTokenCounterWithTokenizer(tok Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: tok}
}

// CountTokens returns the token count of a single prompt.
func (tc *TokenCounter) CountTokens(text string) int {
	return tc.encoding.CountTokens(text)
}

// ValidatePromptTokens checks a prompt against the context budget.
// A budget of zero or less disables the check.
func (tc *TokenCounter) ValidatePromptTokens(prompt string, maxContextTokens int) error {
	if maxContextTokens <= 0 {
		return nil
	}
	if n := tc.CountTokens(prompt); n > maxContextTokens {
		return fmt.Errorf("prompt tokens (%d) exceed max context length (%d)", n, maxContextTokens)
	}
	return nil
}
