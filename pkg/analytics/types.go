// Package analytics computes per-agent health scores and cost
// optimisation recommendations from stored sessions and events (spec
// §4.8). It depends only on pkg/storage, never on pkg/guardrail, so
// guardrail's health_score_threshold condition can depend on analytics
// through the narrow HealthScorer interface without an import cycle.
package analytics

// Trend classifies how an agent's health score moved between two
// equal-length windows.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)

// HealthScore is the full breakdown for one agent over one window.
type HealthScore struct {
	AgentID    string
	WindowDays int
	Overall    float64
	Dimensions map[string]float64
	Trend      Trend
}

// Weights controls how the five health dimensions combine into the
// overall score. Defaults sum to 1.0; Validate tolerates 0.95-1.05 to
// allow for configuration rounding (spec §4.8).
type Weights struct {
	ErrorRate      float64
	CostEfficiency float64
	ToolSuccess    float64
	Latency        float64
	CompletionRate float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{
		ErrorRate:      0.30,
		CostEfficiency: 0.20,
		ToolSuccess:    0.20,
		Latency:        0.15,
		CompletionRate: 0.15,
	}
}

// Sum returns the total of the five weights.
func (w Weights) Sum() float64 {
	return w.ErrorRate + w.CostEfficiency + w.ToolSuccess + w.Latency + w.CompletionRate
}

// Validate checks the weights sum to approximately 1.0.
func (w Weights) Validate() error {
	sum := w.Sum()
	if sum < 0.95 || sum > 1.05 {
		return errWeightsOutOfRange(sum)
	}
	return nil
}
