package llm

import (
	"strings"
	"sync"
)

// CostTracker accumulates token usage and an estimated spend across
// decision calls.
type CostTracker struct {
	mu               sync.Mutex
	promptTokens     int64
	completionTokens int64
	estimatedUSD     float64
	lastUSD          float64
}

// Rough per-token USD rates; unknown models fall back to a generic
// rate.
var modelRates = []struct {
	prefix     string
	inputRate  float64
	outputRate float64
}{
	{"gpt-4o-mini", 0.000000150, 0.000000600},
	{"gpt-4o", 0.0000050, 0.0000150},
	{"gpt-4", 0.0000300, 0.0000600},
	{"claude-3-haiku", 0.00000025, 0.00000125},
	{"claude-3", 0.0000030, 0.0000150},
	{"claude-sonnet", 0.0000030, 0.0000150},
	{"gemini-1.5-flash", 0.000000075, 0.0000003},
	{"gemini", 0.00000125, 0.000010},
	{"deepseek", 0.00000014, 0.00000028},
}

func costFor(model string, prompt, completion int) float64 {
	lower := strings.ToLower(model)
	for _, r := range modelRates {
		if strings.HasPrefix(lower, r.prefix) {
			return float64(prompt)*r.inputRate + float64(completion)*r.outputRate
		}
	}
	return float64(prompt)*0.000005 + float64(completion)*0.000015
}

// AddUsage folds one call's usage into the running totals.
func (c *CostTracker) AddUsage(model string, u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptTokens += int64(u.PromptTokens)
	c.completionTokens += int64(u.CompletionTokens)
	c.lastUSD = costFor(model, u.PromptTokens, u.CompletionTokens)
	c.estimatedUSD += c.lastUSD
}

// Totals returns accumulated prompt tokens, completion tokens and
// estimated USD spend.
func (c *CostTracker) Totals() (int64, int64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptTokens, c.completionTokens, c.estimatedUSD
}

// LastCost returns the estimated cost of the most recent call.
func (c *CostTracker) LastCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUSD
}
