// Package guardrail implements the polling rule evaluator that watches
// agent behavior and reacts — pausing an agent, downgrading its model,
// or notifying an external system — when a condition crosses a
// tenant-configured threshold (spec §4.6).
package guardrail

import "time"

// ConditionType is the closed set of evaluable conditions.
type ConditionType string

const (
	ConditionErrorRateThreshold   ConditionType = "error_rate_threshold"
	ConditionCostLimit            ConditionType = "cost_limit"
	ConditionHealthScoreThreshold ConditionType = "health_score_threshold"
	ConditionCustomMetric         ConditionType = "custom_metric"
)

// ActionType is the closed set of dispatchable actions.
type ActionType string

const (
	ActionPauseAgent      ActionType = "pause_agent"
	ActionNotifyWebhook   ActionType = "notify_webhook"
	ActionDowngradeModel  ActionType = "downgrade_model"
	ActionAgentGatePolicy ActionType = "agentgate_policy"
)

// Rule is a tenant-configured binding of a condition to an action
// (spec §3, "Guardrail rule").
type Rule struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenantId"`
	Name            string         `json:"name"`
	Enabled         bool           `json:"enabled"`
	DryRun          bool           `json:"dryRun"`
	AgentID         *string        `json:"agentId,omitempty"` // nil means "every agent in the tenant"
	ConditionType   ConditionType  `json:"conditionType"`
	ConditionConfig map[string]any `json:"conditionConfig,omitempty"`
	ActionType      ActionType     `json:"actionType"`
	ActionConfig    map[string]any `json:"actionConfig,omitempty"`
	CooldownMinutes int            `json:"cooldownMinutes"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// State is the per-rule-per-agent evaluation state (spec §3,
// "Guardrail state").
type State struct {
	RuleID          string     `json:"ruleId"`
	TenantID        string     `json:"tenantId"`
	AgentID         string     `json:"agentId"`
	TriggerCount    int        `json:"triggerCount"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	CurrentValue    *float64   `json:"currentValue,omitempty"`
}

// InCooldown reports whether now is still within the rule's cooldown
// window since the last trigger.
func (s State) InCooldown(now time.Time, cooldown time.Duration) bool {
	if s.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*s.LastTriggeredAt) < cooldown
}

// TriggerRecord is one append-only history entry (spec §3, "Guardrail
// trigger history").
type TriggerRecord struct {
	ID             string         `json:"id"`
	RuleID         string         `json:"ruleId"`
	TenantID       string         `json:"tenantId"`
	AgentID        string         `json:"agentId"`
	TriggeredAt    time.Time      `json:"triggeredAt"`
	ObservedValue  float64        `json:"observedValue"`
	Threshold      float64        `json:"threshold"`
	ActionExecuted bool           `json:"actionExecuted"`
	ActionResult   string         `json:"actionResult,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
