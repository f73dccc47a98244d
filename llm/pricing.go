package llm

// modelPrice is USD per 1M tokens
type modelPrice struct {
	input  float64
	output float64
}

// Known per-model pricing. Unlisted models fall back to their provider's
// default entry.
var pricing = map[string]modelPrice{
	// Anthropic
	"claude-3-5-sonnet-20241022": {input: 3.00, output: 15.00},
	"claude-3-5-haiku-20241022":  {input: 0.80, output: 4.00},
	"claude-3-opus-20240229":     {input: 15.00, output: 75.00},

	// OpenAI
	"gpt-4o":      {input: 2.50, output: 10.00},
	"gpt-4o-mini": {input: 0.15, output: 0.60},
	"gpt-4-turbo": {input: 10.00, output: 30.00},

	// Provider defaults
	"anthropic-default": {input: 3.00, output: 15.00},
	"openai-default":    {input: 2.50, output: 10.00},
}

func costFor(provider, model string, inputTokens, outputTokens int) float64 {
	price, ok := pricing[model]
	if !ok {
		price, ok = pricing[provider+"-default"]
		if !ok {
			return 0
		}
	}
	return float64(inputTokens)/1e6*price.input + float64(outputTokens)/1e6*price.output
}
