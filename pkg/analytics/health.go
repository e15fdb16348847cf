package analytics

import (
	"fmt"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

func errWeightsOutOfRange(sum float64) error {
	return fmt.Errorf("health score weights must sum to 0.95-1.05, got %.4f", sum)
}

const defaultHealthWindowDays = 7

// Scorer computes health scores and cost recommendations from the
// session/event projections pkg/storage already maintains.
type Scorer struct {
	projections storage.ProjectionStore
	events      storage.AppendOnlyStore
	weights     Weights
}

// NewScorer builds a Scorer. Passing a zero Weights uses DefaultWeights.
func NewScorer(projections storage.ProjectionStore, events storage.AppendOnlyStore, weights Weights) (*Scorer, error) {
	if weights.Sum() == 0 {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{projections: projections, events: events, weights: weights}, nil
}

// OverallScore satisfies guardrail.HealthScorer: the health_score_threshold
// condition only needs the single weighted number, computed over the
// default 7-day window.
func (s *Scorer) OverallScore(ctx tenant.Context, agentID string) (float64, error) {
	score, err := s.Score(ctx, agentID, defaultHealthWindowDays)
	if err != nil {
		return 0, err
	}
	return score.Overall, nil
}

// Score computes the full five-dimension breakdown, overall weighted
// score, and trend against the preceding window of equal length.
func (s *Scorer) Score(ctx tenant.Context, agentID string, windowDays int) (HealthScore, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	if windowDays > 90 {
		windowDays = 90
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -windowDays)
	prevStart := windowStart.AddDate(0, 0, -windowDays)

	current, err := s.windowDimensions(ctx, agentID, windowStart, now)
	if err != nil {
		return HealthScore{}, err
	}
	previous, err := s.windowDimensions(ctx, agentID, prevStart, windowStart)
	if err != nil {
		return HealthScore{}, err
	}

	overall := s.weighted(current)
	prevOverall := s.weighted(previous)
	delta := overall - prevOverall

	trend := TrendStable
	switch {
	case delta >= 5:
		trend = TrendImproving
	case delta <= -5:
		trend = TrendDegrading
	}

	return HealthScore{
		AgentID:    agentID,
		WindowDays: windowDays,
		Overall:    overall,
		Dimensions: map[string]float64{
			"error_rate":       current.errorRate,
			"cost_efficiency":  current.costEfficiency,
			"tool_success":     current.toolSuccess,
			"latency":          current.latency,
			"completion_rate":  current.completionRate,
		},
		Trend: trend,
	}, nil
}

type dimensionScores struct {
	errorRate      float64
	costEfficiency float64
	toolSuccess    float64
	latency        float64
	completionRate float64
}

func (s *Scorer) weighted(d dimensionScores) float64 {
	return s.weights.ErrorRate*d.errorRate +
		s.weights.CostEfficiency*d.costEfficiency +
		s.weights.ToolSuccess*d.toolSuccess +
		s.weights.Latency*d.latency +
		s.weights.CompletionRate*d.completionRate
}

// sessionFetchCap bounds how many sessions a single window aggregation
// pulls in one query; an agent with more sessions than this in a single
// window only has the most recent sessionFetchCap reflected in the score.
const sessionFetchCap = 10000

func (s *Scorer) windowDimensions(ctx tenant.Context, agentID string, from, to time.Time) (dimensionScores, error) {
	sessions, _, err := s.projections.GetSessions(ctx, storage.SessionFilter{
		AgentID: agentID,
		From:    &from,
		To:      &to,
		Limit:   sessionFetchCap,
	})
	if err != nil {
		return dimensionScores{}, err
	}

	if len(sessions) == 0 {
		return dimensionScores{
			errorRate: 100, costEfficiency: 100, toolSuccess: 100, latency: 100, completionRate: 100,
		}, nil
	}

	var errorSessions, completedSessions int
	var totalCost float64
	var totalDurationSeconds float64
	var durationSamples int

	for _, sess := range sessions {
		if sess.ErrorCount > 0 {
			errorSessions++
		}
		if sess.Status == storage.SessionCompleted {
			completedSessions++
		}
		totalCost += sess.CostUSD
		if sess.EndedAt != nil {
			totalDurationSeconds += sess.EndedAt.Sub(sess.StartedAt).Seconds()
			durationSamples++
		}
	}

	n := float64(len(sessions))
	errorFraction := float64(errorSessions) / n
	meanCost := totalCost / n
	completionFraction := float64(completedSessions) / n

	meanDuration := 0.0
	if durationSamples > 0 {
		meanDuration = totalDurationSeconds / float64(durationSamples)
	}

	toolSuccess, err := s.toolSuccessFraction(ctx, agentID, from, to)
	if err != nil {
		return dimensionScores{}, err
	}

	return dimensionScores{
		errorRate:      100 * (1 - errorFraction),
		costEfficiency: piecewiseLinear(meanCost, costEfficiencyPoints),
		toolSuccess:    100 * toolSuccess,
		latency:        piecewiseLinear(meanDuration, latencyPoints),
		completionRate: 100 * completionFraction,
	}, nil
}

// toolSuccessFraction approximates "fraction of tool calls with a
// response before an error" as responses observed per call issued,
// since the event store doesn't track per-call causal linkage directly.
func (s *Scorer) toolSuccessFraction(ctx tenant.Context, agentID string, from, to time.Time) (float64, error) {
	calls, err := s.countEvents(ctx, agentID, eventmodel.TypeToolCall, from, to)
	if err != nil {
		return 1, err
	}
	if calls == 0 {
		return 1, nil
	}
	responses, err := s.countEvents(ctx, agentID, eventmodel.TypeToolResponse, from, to)
	if err != nil {
		return 1, err
	}
	fraction := float64(responses) / float64(calls)
	if fraction > 1 {
		fraction = 1
	}
	return fraction, nil
}

func (s *Scorer) countEvents(ctx tenant.Context, agentID string, eventType eventmodel.Type, from, to time.Time) (int, error) {
	page, err := s.events.QueryEvents(ctx, storage.EventFilter{
		AgentID:   agentID,
		EventType: eventType,
		From:      &from,
		To:        &to,
		Order:     storage.OrderAsc,
		Limit:     1,
	})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

type point struct {
	x, y float64
}

var costEfficiencyPoints = []point{{0, 100}, {0.01, 70}, {0.10, 0}}
var latencyPoints = []point{{0, 100}, {60, 50}, {600, 0}}

// piecewiseLinear interpolates y for x across sorted control points,
// clamping to the first/last point's y outside the range.
func piecewiseLinear(x float64, points []point) float64 {
	if x <= points[0].x {
		return points[0].y
	}
	last := points[len(points)-1]
	if x >= last.x {
		return last.y
	}
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		if x >= a.x && x <= b.x {
			t := (x - a.x) / (b.x - a.x)
			return a.y + t*(b.y-a.y)
		}
	}
	return last.y
}
