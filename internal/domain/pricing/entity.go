package pricing

// ModelPricing describes the credit cost of a single upstream model.
// Cost is linear in tokens: InputCostCredits credits buy PerInputTokens
// prompt tokens, OutputCostCredits credits buy PerOutputTokens response
// tokens.
type ModelPricing struct {
	ID                string `db:"id"`       // provider-qualified model id, unique
	Provider          string `db:"provider"` // "anthropic", "openai", "gemini"
	Name              string `db:"name"`     // display name
	InputCostCredits  int64  `db:"input_cost_credits"`
	PerInputTokens    int64  `db:"per_input_tokens"`
	OutputCostCredits int64  `db:"output_cost_credits"`
	PerOutputTokens   int64  `db:"per_output_tokens"`
}

// Paid reports whether using the model consumes credits.
// A model with both cost rates <= 0 is free and is never gated.
func (m ModelPricing) Paid() bool {
	return m.InputCostCredits > 0 || m.OutputCostCredits > 0
}

// CreditsForTokens converts raw token counts to fractional credits using the
// model's rate pairs. Rates with a non-positive token denominator contribute
// nothing.
func (m ModelPricing) CreditsForTokens(promptTokens, responseTokens int64) float64 {
	var credits float64
	if m.PerInputTokens > 0 {
		credits += float64(m.InputCostCredits) / float64(m.PerInputTokens) * float64(promptTokens)
	}
	if m.PerOutputTokens > 0 {
		credits += float64(m.OutputCostCredits) / float64(m.PerOutputTokens) * float64(responseTokens)
	}
	return credits
}
