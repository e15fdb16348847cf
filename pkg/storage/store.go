// Package storage defines the dialect-neutral storage contract (spec
// §4.2) satisfied by the embedded (pkg/storage/embedded) and partitioned
// (pkg/storage/partitioned) backends. The contract is a capability set —
// {AppendOnlyStore, ProjectionStore, RetentionStore} — rather than a
// single monolithic interface, mirroring the variant split the spec
// describes (§9, "Polymorphism over backends").
package storage

import (
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// Order controls result ordering for QueryEvents.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// EventFilter narrows QueryEvents (spec §4.2).
type EventFilter struct {
	EventType eventmodel.Type
	SessionID string
	AgentID   string
	Severity  eventmodel.Severity
	From      *time.Time
	To        *time.Time
	Order     Order
	Limit     int
	Offset    int
}

// EventPage is the result of QueryEvents.
type EventPage struct {
	Events  []eventmodel.Event `json:"events"`
	Total   int                `json:"total"`
	HasMore bool               `json:"hasMore"`
}

// SessionStatus is the closed enumeration of session lifecycle states
// (spec §3).
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// Session is the projection derived from events sharing a session id
// (spec §3).
type Session struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenantId"`
	AgentID       string        `json:"agentId"`
	AgentName     string        `json:"agentName"`
	StartedAt     time.Time     `json:"startedAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
	Status        SessionStatus `json:"status"`
	EventCount    int           `json:"eventCount"`
	ToolCallCount int           `json:"toolCallCount"`
	ErrorCount    int           `json:"errorCount"`
	LLMCallCount  int           `json:"llmCallCount"`
	InputTokens   int64         `json:"inputTokens"`
	OutputTokens  int64         `json:"outputTokens"`
	CostUSD       float64       `json:"costUsd"`
	Tags          []string      `json:"tags,omitempty"`
}

// SessionFilter narrows GetSessions.
type SessionFilter struct {
	AgentID   string
	Status    SessionStatus
	Tags      []string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	CountOnly bool
}

// Agent is the per-tenant agent descriptor (spec §3).
type Agent struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	Name          string     `json:"name"`
	FirstSeen     time.Time  `json:"firstSeen"`
	LastSeen      time.Time  `json:"lastSeen"`
	SessionCount  int        `json:"sessionCount"`
	ModelOverride *string    `json:"modelOverride,omitempty"`
	PausedAt      *time.Time `json:"pausedAt,omitempty"`
	PauseReason   *string    `json:"pauseReason,omitempty"`
}

// Stats are the tenant-wide totals returned by GetStats.
type Stats struct {
	EventCount   int `json:"eventCount"`
	SessionCount int `json:"sessionCount"`
	AgentCount   int `json:"agentCount"`
}

// RetentionResult is the outcome of ApplyRetention.
type RetentionResult struct {
	DeletedCount int
	Skipped      bool
}

// AppendOnlyStore is the hash-chained append/query surface (C3).
type AppendOnlyStore interface {
	// InsertEvents atomically appends a batch, enforcing the per-session
	// hash chain. Duplicate event ids are absorbed idempotently; any
	// other violation rolls back the whole batch (spec §4.3).
	InsertEvents(ctx tenant.Context, events []eventmodel.Event) ([]string, error)
	GetEvent(ctx tenant.Context, id string) (eventmodel.Event, error)
	GetEventsBySession(ctx tenant.Context, sessionID string) ([]eventmodel.Event, error)
	QueryEvents(ctx tenant.Context, filter EventFilter) (EventPage, error)
}

// ProjectionStore is the session/agent projection surface (C3).
type ProjectionStore interface {
	GetSession(ctx tenant.Context, id string) (Session, error)
	UpsertSession(ctx tenant.Context, s Session) error
	GetSessions(ctx tenant.Context, filter SessionFilter) ([]Session, int, error)

	GetAgent(ctx tenant.Context, id string) (Agent, error)
	UpsertAgent(ctx tenant.Context, a Agent) error
	GetAgents(ctx tenant.Context) ([]Agent, error)

	GetStats(ctx tenant.Context) (Stats, error)
}

// RetentionStore is the purge surface (C9).
type RetentionStore interface {
	// ApplyRetention deletes events with timestamp < cutoff for the
	// bound tenant, then any session whose event count dropped to zero.
	// Skipped is true only when retention is disabled for the caller.
	ApplyRetention(ctx tenant.Context, cutoff time.Time) (RetentionResult, error)

	// ListTenants returns every tenant id with at least one agent row,
	// so the retention cron can iterate every known tenant without a
	// separate tenant directory (spec §4.9: "for each tenant").
	ListTenants(ctx tenant.AdminContext) ([]string, error)

	// RetentionOverrides returns the persisted per-tenant retention
	// override in days, keyed by tenant id, for every tenant with a row
	// in retention_tiers. This is the durable half of spec §4.9's
	// "plan tier, per-tenant override" pair; the tier defaults
	// themselves are static config (config.RetentionConfig).
	RetentionOverrides(ctx tenant.AdminContext) (map[string]int, error)

	// SetRetentionOverride upserts a direct per-tenant retention
	// override in days, taking priority over the tenant's plan tier.
	SetRetentionOverride(ctx tenant.AdminContext, tenantID string, days int) error
}

// Store is the full dialect-neutral contract. Both backend variants
// (embedded, partitioned) implement all three capabilities; callers
// that only need a subset (e.g. the replay projector only needs
// AppendOnlyStore) should depend on the narrower interface.
type Store interface {
	AppendOnlyStore
	ProjectionStore
	RetentionStore
}
