package gemini

import (
	"github.com/shopspring/decimal"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
)

type pricing struct {
	inputPerMillion  decimal.Decimal
	outputPerMillion decimal.Decimal
}

// USD per million tokens, per the published flash price sheet.
var pricingTable = map[string]pricing{
	"gemini-2.0-flash": {
		inputPerMillion:  decimal.NewFromFloat(0.075),
		outputPerMillion: decimal.NewFromFloat(0.30),
	},
	"gemini-2.5-flash": {
		inputPerMillion:  decimal.NewFromFloat(0.30),
		outputPerMillion: decimal.NewFromFloat(2.50),
	},
}

var million = decimal.NewFromInt(1_000_000)

// CostUSD estimates the billed cost of one call. Unknown models use the
// 2.0-flash rates.
func CostUSD(usage llm.Usage, model string) decimal.Decimal {
	rates, ok := pricingTable[model]
	if !ok {
		rates = pricingTable["gemini-2.0-flash"]
	}
	in := decimal.NewFromInt(int64(usage.InputTokens)).Mul(rates.inputPerMillion).Div(million)
	out := decimal.NewFromInt(int64(usage.OutputTokens)).Mul(rates.outputPerMillion).Div(million)
	return in.Add(out)
}
