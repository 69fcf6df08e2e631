package gemini

import (
	"testing"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
)

func TestCostUSD(t *testing.T) {
	tests := []struct {
		name  string
		usage llm.Usage
		model string
		want  string
	}{
		{
			name:  "flash 2.0 one million each",
			usage: llm.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			model: "gemini-2.0-flash",
			want:  "0.375",
		},
		{
			name:  "flash 2.0 typical chat",
			usage: llm.Usage{InputTokens: 2000, OutputTokens: 500},
			model: "gemini-2.0-flash",
			want:  "0.0003",
		},
		{
			name:  "zero usage",
			usage: llm.Usage{},
			model: "gemini-2.0-flash",
			want:  "0",
		},
		{
			name:  "unknown model falls back to flash 2.0 rates",
			usage: llm.Usage{InputTokens: 1_000_000},
			model: "gemini-experimental",
			want:  "0.075",
		},
		{
			name:  "flash 2.5 rates",
			usage: llm.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
			model: "gemini-2.5-flash",
			want:  "2.8",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := CostUSD(tt.usage, tt.model)
			if got.String() != tt.want {
				t.Fatalf("CostUSD(%+v, %s) = %s, want %s", tt.usage, tt.model, got.String(), tt.want)
			}
		})
	}
}
