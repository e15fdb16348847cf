package guardrail

import (
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// HealthScorer supplies the current overall health score for an agent.
// Defined here rather than imported from an analytics package to avoid
// a dependency cycle (guardrail evaluates health but lives beneath
// analytics in the module graph).
type HealthScorer interface {
	OverallScore(ctx tenant.Context, agentID string) (float64, error)
}

// Evaluation is the outcome of evaluating a rule's condition against
// the current window for one agent.
type Evaluation struct {
	Triggered     bool
	ObservedValue float64
	Threshold     float64
}

const defaultErrorRateWindowMinutes = 5
const defaultMinEventCount = 1

// evaluateCondition dispatches to the condition-specific evaluator
// named by r.ConditionType (spec §4.6).
func evaluateCondition(store storage.AppendOnlyStore, scorer HealthScorer, ctx tenant.Context, r Rule, agentID string, now time.Time) (Evaluation, error) {
	switch r.ConditionType {
	case ConditionErrorRateThreshold:
		return evaluateErrorRateThreshold(store, ctx, r, agentID, now)
	case ConditionCostLimit:
		return evaluateCostLimit(store, ctx, r, agentID, now)
	case ConditionHealthScoreThreshold:
		return evaluateHealthScoreThreshold(scorer, ctx, r, agentID)
	case ConditionCustomMetric:
		return evaluateCustomMetric(store, ctx, r, agentID, now)
	default:
		return Evaluation{}, apperrors.Validation("unknown guardrail condition type %q", r.ConditionType)
	}
}

func configFloat(cfg map[string]any, key string, fallback float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return fallback
}

func configInt(cfg map[string]any, key string, fallback int) int {
	return int(configFloat(cfg, key, float64(fallback)))
}

func configString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return fallback
}

func windowEvents(store storage.AppendOnlyStore, ctx tenant.Context, agentID string, from, to time.Time) ([]eventmodel.Event, error) {
	page, err := store.QueryEvents(ctx, storage.EventFilter{
		AgentID: agentID,
		From:    &from,
		To:      &to,
		Order:   storage.OrderAsc,
		Limit:   0,
	})
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

func evaluateErrorRateThreshold(store storage.AppendOnlyStore, ctx tenant.Context, r Rule, agentID string, now time.Time) (Evaluation, error) {
	windowMinutes := configInt(r.ConditionConfig, "windowMinutes", defaultErrorRateWindowMinutes)
	minEvents := configInt(r.ConditionConfig, "minEventCount", defaultMinEventCount)
	threshold := configFloat(r.ConditionConfig, "threshold", 0)

	from := now.Add(-time.Duration(windowMinutes) * time.Minute)
	events, err := windowEvents(store, ctx, agentID, from, now)
	if err != nil {
		return Evaluation{}, err
	}
	if len(events) < minEvents {
		return Evaluation{Threshold: threshold}, nil
	}

	errorCount := 0
	for _, e := range events {
		if isErrorEvent(e) {
			errorCount++
		}
	}
	fraction := float64(errorCount) / float64(len(events))
	observed := fraction * 100
	return Evaluation{
		Triggered:     observed >= threshold,
		ObservedValue: observed,
		Threshold:     threshold,
	}, nil
}

func isErrorEvent(e eventmodel.Event) bool {
	if e.Severity.IsErrorLevel() {
		return true
	}
	if e.EventType == eventmodel.TypeToolError {
		return true
	}
	if e.EventType == eventmodel.TypeSessionEnded {
		if reason, _ := e.Payload["reason"].(string); reason == "error" {
			return true
		}
	}
	return false
}

func evaluateCostLimit(store storage.AppendOnlyStore, ctx tenant.Context, r Rule, agentID string, now time.Time) (Evaluation, error) {
	maxCostUSD := configFloat(r.ConditionConfig, "maxCostUsd", 0)
	scope := configString(r.ConditionConfig, "scope", "daily")

	var from time.Time
	switch scope {
	case "session":
		from = now.Add(-24 * time.Hour) // session scope still bounded by a lookback window; sessions rarely span longer
	default:
		from = now.Truncate(24 * time.Hour)
	}

	events, err := windowEvents(store, ctx, agentID, from, now)
	if err != nil {
		return Evaluation{}, err
	}

	var total float64
	seenSessions := map[string]bool{}
	for _, e := range events {
		if e.EventType != eventmodel.TypeCostTracked {
			continue
		}
		if scope == "session" {
			if seenSessions[e.SessionID] {
				continue
			}
		}
		if cost, ok := e.Payload["costUsd"].(float64); ok {
			total += cost
			seenSessions[e.SessionID] = true
		}
	}

	return Evaluation{
		Triggered:     total >= maxCostUSD,
		ObservedValue: total,
		Threshold:     maxCostUSD,
	}, nil
}

func evaluateHealthScoreThreshold(scorer HealthScorer, ctx tenant.Context, r Rule, agentID string) (Evaluation, error) {
	if scorer == nil {
		return Evaluation{}, apperrors.Internal("health_score_threshold condition requires a HealthScorer")
	}
	minScore := configFloat(r.ConditionConfig, "minScore", 0)
	score, err := scorer.OverallScore(ctx, agentID)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Triggered:     score <= minScore,
		ObservedValue: score,
		Threshold:     minScore,
	}, nil
}

func evaluateCustomMetric(store storage.AppendOnlyStore, ctx tenant.Context, r Rule, agentID string, now time.Time) (Evaluation, error) {
	windowMinutes := configInt(r.ConditionConfig, "windowMinutes", defaultErrorRateWindowMinutes)
	keyPath := configString(r.ConditionConfig, "metricKeyPath", "")
	operator := configString(r.ConditionConfig, "operator", "gte")
	value := configFloat(r.ConditionConfig, "value", 0)

	from := now.Add(-time.Duration(windowMinutes) * time.Minute)
	events, err := windowEvents(store, ctx, agentID, from, now)
	if err != nil {
		return Evaluation{}, err
	}

	var sum float64
	var count int
	for _, e := range events {
		v, ok := extractMetric(e.Payload, keyPath)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return Evaluation{Threshold: value}, nil
	}
	mean := sum / float64(count)

	return Evaluation{
		Triggered:     compareOperator(operator, mean, value),
		ObservedValue: mean,
		Threshold:     value,
	}, nil
}

// extractMetric walks keyPath ("a.b.c") through nested maps, returning
// the numeric leaf value if present.
func extractMetric(payload map[string]any, keyPath string) (float64, bool) {
	if keyPath == "" {
		return 0, false
	}
	var current any = payload
	for _, part := range splitKeyPath(keyPath) {
		m, ok := current.(map[string]any)
		if !ok {
			return 0, false
		}
		current, ok = m[part]
		if !ok {
			return 0, false
		}
	}
	switch n := current.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func splitKeyPath(keyPath string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(keyPath); i++ {
		if keyPath[i] == '.' {
			parts = append(parts, keyPath[start:i])
			start = i + 1
		}
	}
	parts = append(parts, keyPath[start:])
	return parts
}

func compareOperator(op string, observed, threshold float64) bool {
	switch op {
	case "gt":
		return observed > threshold
	case "gte":
		return observed >= threshold
	case "lt":
		return observed < threshold
	case "lte":
		return observed <= threshold
	case "eq":
		return observed == threshold
	default:
		return false
	}
}
