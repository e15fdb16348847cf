// Package eventmodel defines the canonical Event record, its hash
// contract, and per-event-type payload validation (spec §3, §4.1).
package eventmodel

import "time"

// Type is a closed enumeration of event kinds.
type Type string

const (
	TypeSessionStarted    Type = "session_started"
	TypeSessionEnded      Type = "session_ended"
	TypeToolCall          Type = "tool_call"
	TypeToolResponse      Type = "tool_response"
	TypeToolError         Type = "tool_error"
	TypeApprovalRequested Type = "approval_requested"
	TypeApprovalGranted   Type = "approval_granted"
	TypeApprovalDenied    Type = "approval_denied"
	TypeFormRequested     Type = "form_requested"
	TypeFormSubmitted     Type = "form_submitted"
	TypeCostTracked       Type = "cost_tracked"
	TypeLLMCall           Type = "llm_call"
	TypeLLMResponse       Type = "llm_response"
	TypeAlertTriggered    Type = "alert_triggered"
	TypeAlertResolved     Type = "alert_resolved"
	TypeCustom            Type = "custom"
)

// knownTypes backs Type.Valid without reflection.
var knownTypes = map[Type]bool{
	TypeSessionStarted: true, TypeSessionEnded: true,
	TypeToolCall: true, TypeToolResponse: true, TypeToolError: true,
	TypeApprovalRequested: true, TypeApprovalGranted: true, TypeApprovalDenied: true,
	TypeFormRequested: true, TypeFormSubmitted: true,
	TypeCostTracked: true,
	TypeLLMCall:     true, TypeLLMResponse: true,
	TypeAlertTriggered: true, TypeAlertResolved: true,
	TypeCustom: true,
}

// Valid reports whether t is a member of the closed enumeration.
func (t Type) Valid() bool { return knownTypes[t] }

// Severity is a closed enumeration, ordered from least to most urgent.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var knownSeverities = map[Severity]bool{
	SeverityDebug: true, SeverityInfo: true, SeverityWarn: true,
	SeverityError: true, SeverityCritical: true,
}

// Valid reports whether s is a member of the closed enumeration.
func (s Severity) Valid() bool { return knownSeverities[s] }

// IsErrorLevel reports whether s counts toward error-rate aggregations
// (spec §4.6 error_rate_threshold, §4.3 session error count).
func (s Severity) IsErrorLevel() bool {
	return s == SeverityError || s == SeverityCritical
}

// Event is the atomic, hash-chained record (spec §3).
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenantId"`
	SessionID string         `json:"sessionId"`
	AgentID   string         `json:"agentId"`
	EventType Type           `json:"eventType"`
	Severity  Severity       `json:"severity"`
	Payload   map[string]any `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PrevHash  *string        `json:"prevHash"`
	Hash      string         `json:"hash"`
}

// WithDefaults returns a copy of e with unset fields defaulted: severity
// defaults to info (spec §4.1) and an empty payload/metadata map is
// normalized to non-nil so hashing is stable regardless of caller input.
func (e Event) WithDefaults() Event {
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e
}
