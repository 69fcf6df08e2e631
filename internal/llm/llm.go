package llm

import "context"

// Client abstracts LLM providers for chat analysis.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single structured-output generation call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Usage carries provider-reported token counts.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add sums two usages, for accumulating across axis calls.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Response is the provider reply with the model that produced it.
type Response struct {
	Text  string
	Usage Usage
	Model string
}
