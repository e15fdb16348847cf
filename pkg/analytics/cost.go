package analytics

import (
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// CallComplexity buckets an LLM call by input/output token count and
// tool usage (spec §4.8: "classify each LLM call into simple/moderate/
// complex").
type CallComplexity string

const (
	ComplexitySimple   CallComplexity = "simple"
	ComplexityModerate CallComplexity = "moderate"
	ComplexityComplex  CallComplexity = "complex"
)

// ComplexityThresholds configures the classifyComplexity boundaries.
type ComplexityThresholds struct {
	SimpleMaxInputTokens   int
	SimpleMaxToolCalls     int
	ModerateMaxInputTokens int
	ModerateMaxToolCalls   int
}

// DefaultComplexityThresholds is a reasonable starting configuration.
func DefaultComplexityThresholds() ComplexityThresholds {
	return ComplexityThresholds{
		SimpleMaxInputTokens:   1000,
		SimpleMaxToolCalls:     1,
		ModerateMaxInputTokens: 8000,
		ModerateMaxToolCalls:   5,
	}
}

func classifyComplexity(inputTokens, toolCalls int, th ComplexityThresholds) CallComplexity {
	if inputTokens <= th.SimpleMaxInputTokens && toolCalls <= th.SimpleMaxToolCalls {
		return ComplexitySimple
	}
	if inputTokens <= th.ModerateMaxInputTokens && toolCalls <= th.ModerateMaxToolCalls {
		return ComplexityModerate
	}
	return ComplexityComplex
}

const minCallCountForRecommendation = 10

// Confidence classes, keyed by the call count backing a recommendation
// (spec §4.8).
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

func confidenceFor(callCount int) string {
	switch {
	case callCount >= 100:
		return ConfidenceHigh
	case callCount >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Recommendation proposes switching an agent from one model to a
// cheaper one for a given complexity tier.
type Recommendation struct {
	AgentID                 string
	CurrentModel            string
	Tier                    CallComplexity
	RecommendedModel        string
	CallCount               int
	ProjectedMonthlySavings float64
	Confidence              string
}

// CostTable maps a model name to its configured cost per call.
type CostTable map[string]float64

type tierStats struct {
	count        int
	successCount int
}

type modelTierKey struct {
	model string
	tier  CallComplexity
}

const defaultCostWindowDays = 30

// CostRecommendations scans the agent's llm_call events over windowDays
// (default 30), groups them by (model, complexity tier), and for every
// group with at least minCallCountForRecommendation calls proposes the
// cheapest configured alternative model whose own observed success rate
// in the same tier is within 5 points (spec §4.8).
func (s *Scorer) CostRecommendations(ctx tenant.Context, agentID string, windowDays int, pricing CostTable, thresholds ComplexityThresholds) ([]Recommendation, error) {
	if windowDays < 1 {
		windowDays = defaultCostWindowDays
	}
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -windowDays)

	page, err := s.events.QueryEvents(ctx, storage.EventFilter{
		AgentID:   agentID,
		EventType: eventmodel.TypeLLMCall,
		From:      &from,
		To:        &now,
		Order:     storage.OrderAsc,
		Limit:     sessionFetchCap,
	})
	if err != nil {
		return nil, err
	}

	stats := map[modelTierKey]*tierStats{}
	for _, ev := range page.Events {
		model, _ := ev.Payload["model"].(string)
		if model == "" {
			continue
		}
		inputTokens := payloadInt(ev.Payload, "inputTokens")
		toolCalls := payloadInt(ev.Payload, "toolCount")
		tier := classifyComplexity(inputTokens, toolCalls, thresholds)

		key := modelTierKey{model: model, tier: tier}
		st, ok := stats[key]
		if !ok {
			st = &tierStats{}
			stats[key] = st
		}
		st.count++
		if success, ok := ev.Payload["success"].(bool); !ok || success {
			st.successCount++
		}
	}

	var recommendations []Recommendation
	for key, st := range stats {
		if st.count < minCallCountForRecommendation {
			continue
		}
		currentPrice, ok := pricing[key.model]
		if !ok {
			continue
		}
		currentSuccessRate := 100 * float64(st.successCount) / float64(st.count)

		var bestModel string
		bestPrice := currentPrice
		for candidate, price := range pricing {
			if candidate == key.model || price >= bestPrice {
				continue
			}
			candidateStats, ok := stats[modelTierKey{model: candidate, tier: key.tier}]
			if !ok || candidateStats.count == 0 {
				continue
			}
			candidateSuccessRate := 100 * float64(candidateStats.successCount) / float64(candidateStats.count)
			if abs(candidateSuccessRate-currentSuccessRate) > 5 {
				continue
			}
			bestModel = candidate
			bestPrice = price
		}
		if bestModel == "" {
			continue
		}

		callsPerMonth := float64(st.count) * (30.0 / float64(windowDays))
		savings := callsPerMonth * (currentPrice - bestPrice)

		recommendations = append(recommendations, Recommendation{
			AgentID:                 agentID,
			CurrentModel:            key.model,
			Tier:                    key.tier,
			RecommendedModel:        bestModel,
			CallCount:               st.count,
			ProjectedMonthlySavings: savings,
			Confidence:              confidenceFor(st.count),
		})
	}
	return recommendations, nil
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
