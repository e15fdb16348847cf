// Package replay reconstructs a paginated, contextualized step sequence
// for a single session's events (spec §4.7).
package replay

import "github.com/agentkitai/agentlens-sub008/pkg/eventmodel"

// StepContext is the rolling context attached to a replay step: the
// last N LLM exchanges and every tool result observed before this step.
type StepContext struct {
	RecentLLMExchanges []eventmodel.Event `json:"recentLlmExchanges,omitempty"`
	ToolResults        []eventmodel.Event `json:"toolResults,omitempty"`
}

// Step is one position in a session's replay (spec §4.7).
type Step struct {
	Index   int             `json:"index"`
	Event   eventmodel.Event `json:"event"`
	Context StepContext     `json:"context"`
}

// Summary is returned alongside every page, regardless of pagination
// (spec §4.7 invariant).
type Summary struct {
	TotalToolCalls    int      `json:"totalToolCalls"`
	TotalLLMCalls     int      `json:"totalLlmCalls"`
	TotalCostUSD      float64  `json:"totalCostUsd"`
	DistinctToolNames []string `json:"distinctToolNames,omitempty"`
	ErrorCount        int      `json:"errorCount"`
}

// Replay is the full response for one replay request.
type Replay struct {
	SessionID  string  `json:"sessionId"`
	Steps      []Step  `json:"steps"`
	Summary    Summary `json:"summary"`
	ChainValid bool    `json:"chainValid"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	HasMore    bool    `json:"hasMore"`
}

// projectedSession is the cached, unpaginated projection for one
// session: every step with its context already computed, plus the
// summary and chain-validity flag (both computed once per session per
// spec §4.7).
type projectedSession struct {
	steps      []Step
	summary    Summary
	chainValid bool
}
