// Package budget provides cost estimation and enforced spending limits at
// execution, project, and global scope.
package budget

import "strings"

// ModelPrice is USD per 1000 tokens.
type ModelPrice struct {
	InputPer1K  float64
	OutputPer1K float64
}

// defaultPrice applies to models missing from the table.
var defaultPrice = ModelPrice{InputPer1K: 0.001, OutputPer1K: 0.002}

// modelPrices holds known per-model pricing. Longest prefix wins so dated
// releases inherit their family's price.
var modelPrices = map[string]ModelPrice{
	"claude-opus-4":    {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-sonnet-4":  {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-haiku-4":   {InputPer1K: 0.001, OutputPer1K: 0.005},
	"gpt-4o":           {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":      {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4.1":          {InputPer1K: 0.002, OutputPer1K: 0.008},
	"o3":               {InputPer1K: 0.002, OutputPer1K: 0.008},
	"gemini-2.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.01},
	"gemini-2.5-flash": {InputPer1K: 0.0003, OutputPer1K: 0.0025},
	"deepseek-chat":    {InputPer1K: 0.00027, OutputPer1K: 0.0011},
}

// PriceFor returns the pricing for a model, falling back to the default
// when the model is unknown. Local models (ollama/lmstudio prefixes) are
// free.
func PriceFor(model string) ModelPrice {
	if model == "" {
		return defaultPrice
	}
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "ollama/") || strings.HasPrefix(lower, "lmstudio/") {
		return ModelPrice{}
	}

	var best string
	for prefix := range modelPrices {
		if strings.HasPrefix(lower, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return modelPrices[best]
	}
	return defaultPrice
}

// Estimate computes the USD cost for a token count against a model.
func Estimate(model string, inputTokens, outputTokens int) float64 {
	price := PriceFor(model)
	return float64(inputTokens)/1000*price.InputPer1K +
		float64(outputTokens)/1000*price.OutputPer1K
}
