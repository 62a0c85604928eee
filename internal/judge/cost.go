package judge

import "fmt"

// Cost is the estimated spend for one judge call, in USD.
type Cost struct {
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	InputCost    string `json:"inputCost"`
	OutputCost   string `json:"outputCost"`
	TotalCost    string `json:"totalCost"`
	Currency     string `json:"currency"`
}

// pricing is USD per million tokens.
type pricing struct {
	input  float64
	output float64
}

// modelPricing carries published per-model rates. Unknown models get no cost
// estimate rather than a guessed one.
var modelPricing = map[string]pricing{
	"gemini-2.0-flash":         {input: 0.10, output: 0.40},
	"gemini-2.5-flash":         {input: 0.30, output: 2.50},
	"gemini-2.5-pro":           {input: 1.25, output: 10.00},
	"gpt-4o":                   {input: 2.50, output: 10.00},
	"gpt-4o-mini":              {input: 0.15, output: 0.60},
	"claude-sonnet-4-20250514": {input: 3.00, output: 15.00},
	"claude-3-5-haiku-latest":  {input: 0.80, output: 4.00},
}

// EstimateCost converts token counts into a cost estimate, or nil for models
// without a pricing entry.
func EstimateCost(model string, inputTokens, outputTokens int) *Cost {
	p, ok := modelPricing[model]
	if !ok {
		return nil
	}

	in := float64(inputTokens) / 1e6 * p.input
	out := float64(outputTokens) / 1e6 * p.output
	return &Cost{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    fmt.Sprintf("%.6f", in),
		OutputCost:   fmt.Sprintf("%.6f", out),
		TotalCost:    fmt.Sprintf("%.6f", in+out),
		Currency:     "USD",
	}
}
