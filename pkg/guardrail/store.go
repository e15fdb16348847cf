package guardrail

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// RuleStore persists rules, per-rule-per-agent state, and trigger
// history. Rule/state reads and writes are tenant-scoped; the ticker
// additionally needs a cross-tenant listing, exposed separately and
// gated behind a tenant.AdminContext so the bypass is visible at the
// call site (spec §4.12).
type RuleStore interface {
	CreateRule(ctx tenant.Context, r Rule) (Rule, error)
	GetRule(ctx tenant.Context, id string) (Rule, error)
	ListRules(ctx tenant.Context) ([]Rule, error)
	UpdateRule(ctx tenant.Context, r Rule) error
	DeleteRule(ctx tenant.Context, id string) error

	ListEnabledRulesAllTenants(ctx tenant.AdminContext) ([]Rule, error)

	GetState(ctx tenant.Context, ruleID, agentID string) (State, bool, error)
	PutState(ctx tenant.Context, s State) error

	AppendTriggerHistory(ctx tenant.Context, rec TriggerRecord) error
	ListTriggerHistory(ctx tenant.Context, ruleID string, limit int) ([]TriggerRecord, error)
}

// Dialect isolates the SQL placeholder style so the same query text
// serves both the embedded and partitioned backends, following
// pkg/embedding's Dialect split.
type Dialect struct {
	Name           string
	Placeholder    func(n int) string
	CreateTableSQL string
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	CreateTableSQL: `
CREATE TABLE IF NOT EXISTS guardrail_rules (
	id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, name TEXT NOT NULL, enabled INTEGER NOT NULL,
	dry_run INTEGER NOT NULL, agent_id TEXT, condition_type TEXT NOT NULL, condition_config TEXT NOT NULL,
	action_type TEXT NOT NULL, action_config TEXT NOT NULL, cooldown_minutes INTEGER NOT NULL,
	created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS guardrail_state (
	rule_id TEXT NOT NULL, tenant_id TEXT NOT NULL, agent_id TEXT NOT NULL,
	trigger_count INTEGER NOT NULL DEFAULT 0, last_triggered_at TEXT, current_value REAL,
	PRIMARY KEY (rule_id, agent_id)
);
CREATE TABLE IF NOT EXISTS guardrail_trigger_history (
	id TEXT PRIMARY KEY, rule_id TEXT NOT NULL, tenant_id TEXT NOT NULL, agent_id TEXT NOT NULL,
	triggered_at TEXT NOT NULL, observed_value REAL NOT NULL, threshold REAL NOT NULL,
	action_executed INTEGER NOT NULL, action_result TEXT NOT NULL, metadata TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_guardrail_history_rule ON guardrail_trigger_history(rule_id, triggered_at);
`,
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	CreateTableSQL: `
CREATE TABLE IF NOT EXISTS guardrail_rules (
	id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, name TEXT NOT NULL, enabled BOOLEAN NOT NULL,
	dry_run BOOLEAN NOT NULL, agent_id TEXT, condition_type TEXT NOT NULL, condition_config JSONB NOT NULL,
	action_type TEXT NOT NULL, action_config JSONB NOT NULL, cooldown_minutes INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS guardrail_state (
	rule_id TEXT NOT NULL, tenant_id TEXT NOT NULL, agent_id TEXT NOT NULL,
	trigger_count INTEGER NOT NULL DEFAULT 0, last_triggered_at TIMESTAMPTZ, current_value DOUBLE PRECISION,
	PRIMARY KEY (rule_id, agent_id)
);
CREATE TABLE IF NOT EXISTS guardrail_trigger_history (
	id TEXT PRIMARY KEY, rule_id TEXT NOT NULL, tenant_id TEXT NOT NULL, agent_id TEXT NOT NULL,
	triggered_at TIMESTAMPTZ NOT NULL, observed_value DOUBLE PRECISION NOT NULL, threshold DOUBLE PRECISION NOT NULL,
	action_executed BOOLEAN NOT NULL, action_result TEXT NOT NULL, metadata JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_guardrail_history_rule ON guardrail_trigger_history(rule_id, triggered_at);
`,
}

// SQLRuleStore is the dialect-neutral RuleStore implementation.
type SQLRuleStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRuleStore applies the dialect's schema and returns a ready store.
func NewSQLRuleStore(db *sql.DB, dialect Dialect) (*SQLRuleStore, error) {
	if _, err := db.Exec(dialect.CreateTableSQL); err != nil {
		return nil, fmt.Errorf("apply guardrail schema: %w", err)
	}
	return &SQLRuleStore{db: db, dialect: dialect}, nil
}

func boolValue(dialect Dialect, b bool) any {
	if dialect.Name == "postgres" {
		return b
	}
	if b {
		return 1
	}
	return 0
}

func timeValue(dialect Dialect, t time.Time) any {
	if dialect.Name == "postgres" {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalJSONMap(s string) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func (s *SQLRuleStore) CreateRule(ctx tenant.Context, r Rule) (Rule, error) {
	p := s.dialect.Placeholder
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	r.TenantID = ctx.ID()

	var agentID any
	if r.AgentID != nil {
		agentID = *r.AgentID
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO guardrail_rules
		(id, tenant_id, name, enabled, dry_run, agent_id, condition_type, condition_config, action_type, action_config, cooldown_minutes, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10), p(11), p(12), p(13)),
		r.ID, r.TenantID, r.Name, boolValue(s.dialect, r.Enabled), boolValue(s.dialect, r.DryRun), agentID,
		string(r.ConditionType), marshalJSON(r.ConditionConfig), string(r.ActionType), marshalJSON(r.ActionConfig),
		r.CooldownMinutes, timeValue(s.dialect, r.CreatedAt), timeValue(s.dialect, r.UpdatedAt))
	if err != nil {
		return Rule{}, fmt.Errorf("insert guardrail rule: %w", err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (Rule, error) {
	var r Rule
	var enabled, dryRun bool
	var agentID sql.NullString
	var conditionType, conditionConfig, actionType, actionConfig string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&r.ID, &r.TenantID, &r.Name, &enabled, &dryRun, &agentID,
		&conditionType, &conditionConfig, &actionType, &actionConfig, &r.CooldownMinutes, &createdAt, &updatedAt); err != nil {
		return r, err
	}
	r.Enabled, r.DryRun = enabled, dryRun
	if agentID.Valid {
		v := agentID.String
		r.AgentID = &v
	}
	r.ConditionType = ConditionType(conditionType)
	r.ConditionConfig = unmarshalJSONMap(conditionConfig)
	r.ActionType = ActionType(actionType)
	r.ActionConfig = unmarshalJSONMap(actionConfig)
	r.CreatedAt, r.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
	return r, nil
}

const ruleSelectSQL = `SELECT id, tenant_id, name, enabled, dry_run, agent_id, condition_type, condition_config, action_type, action_config, cooldown_minutes, created_at, updated_at FROM guardrail_rules`

func (s *SQLRuleStore) GetRule(ctx tenant.Context, id string) (Rule, error) {
	p := s.dialect.Placeholder
	row := s.db.QueryRowContext(ctx, ruleSelectSQL+fmt.Sprintf(` WHERE tenant_id = %s AND id = %s`, p(1), p(2)), ctx.ID(), id)
	r, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Rule{}, apperrors.NotFound("guardrail rule %s not found", id)
		}
		return Rule{}, err
	}
	return r, nil
}

func (s *SQLRuleStore) ListRules(ctx tenant.Context) ([]Rule, error) {
	p := s.dialect.Placeholder
	rows, err := s.db.QueryContext(ctx, ruleSelectSQL+fmt.Sprintf(` WHERE tenant_id = %s ORDER BY created_at ASC`, p(1)), ctx.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLRuleStore) ListEnabledRulesAllTenants(ctx tenant.AdminContext) ([]Rule, error) {
	p := s.dialect.Placeholder
	rows, err := s.db.QueryContext(ctx, ruleSelectSQL+fmt.Sprintf(` WHERE enabled = %s ORDER BY tenant_id, created_at ASC`, p(1)), boolValue(s.dialect, true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *SQLRuleStore) UpdateRule(ctx tenant.Context, r Rule) error {
	p := s.dialect.Placeholder
	var agentID any
	if r.AgentID != nil {
		agentID = *r.AgentID
	}
	r.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE guardrail_rules SET
		name = %s, enabled = %s, dry_run = %s, agent_id = %s, condition_type = %s, condition_config = %s,
		action_type = %s, action_config = %s, cooldown_minutes = %s, updated_at = %s
		WHERE tenant_id = %s AND id = %s`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10), p(11), p(12)),
		r.Name, boolValue(s.dialect, r.Enabled), boolValue(s.dialect, r.DryRun), agentID, string(r.ConditionType),
		marshalJSON(r.ConditionConfig), string(r.ActionType), marshalJSON(r.ActionConfig), r.CooldownMinutes,
		timeValue(s.dialect, r.UpdatedAt), ctx.ID(), r.ID)
	return err
}

func (s *SQLRuleStore) DeleteRule(ctx tenant.Context, id string) error {
	p := s.dialect.Placeholder
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM guardrail_rules WHERE tenant_id = %s AND id = %s`, p(1), p(2)), ctx.ID(), id)
	return err
}

func (s *SQLRuleStore) GetState(ctx tenant.Context, ruleID, agentID string) (State, bool, error) {
	p := s.dialect.Placeholder
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT rule_id, tenant_id, agent_id, trigger_count, last_triggered_at, current_value
		FROM guardrail_state WHERE tenant_id = %s AND rule_id = %s AND agent_id = %s`, p(1), p(2), p(3)), ctx.ID(), ruleID, agentID)

	var st State
	var lastTriggeredAt sql.NullString
	var currentValue sql.NullFloat64
	if err := row.Scan(&st.RuleID, &st.TenantID, &st.AgentID, &st.TriggerCount, &lastTriggeredAt, &currentValue); err != nil {
		if err == sql.ErrNoRows {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	if lastTriggeredAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastTriggeredAt.String); err == nil {
			st.LastTriggeredAt = &t
		}
	}
	if currentValue.Valid {
		st.CurrentValue = &currentValue.Float64
	}
	return st, true, nil
}

func (s *SQLRuleStore) PutState(ctx tenant.Context, st State) error {
	p := s.dialect.Placeholder
	var lastTriggeredAt, currentValue any
	if st.LastTriggeredAt != nil {
		lastTriggeredAt = timeValue(s.dialect, *st.LastTriggeredAt)
	}
	if st.CurrentValue != nil {
		currentValue = *st.CurrentValue
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO guardrail_state (rule_id, tenant_id, agent_id, trigger_count, last_triggered_at, current_value)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (rule_id, agent_id) DO UPDATE SET
			trigger_count = excluded.trigger_count, last_triggered_at = excluded.last_triggered_at, current_value = excluded.current_value`,
		p(1), p(2), p(3), p(4), p(5), p(6)),
		st.RuleID, ctx.ID(), st.AgentID, st.TriggerCount, lastTriggeredAt, currentValue)
	return err
}

func (s *SQLRuleStore) AppendTriggerHistory(ctx tenant.Context, rec TriggerRecord) error {
	p := s.dialect.Placeholder
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO guardrail_trigger_history
		(id, rule_id, tenant_id, agent_id, triggered_at, observed_value, threshold, action_executed, action_result, metadata)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10)),
		rec.ID, rec.RuleID, ctx.ID(), rec.AgentID, timeValue(s.dialect, rec.TriggeredAt), rec.ObservedValue, rec.Threshold,
		boolValue(s.dialect, rec.ActionExecuted), rec.ActionResult, marshalJSON(rec.Metadata))
	return err
}

func (s *SQLRuleStore) ListTriggerHistory(ctx tenant.Context, ruleID string, limit int) ([]TriggerRecord, error) {
	p := s.dialect.Placeholder
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, rule_id, tenant_id, agent_id, triggered_at, observed_value, threshold, action_executed, action_result, metadata
		FROM guardrail_trigger_history WHERE tenant_id = %s AND rule_id = %s ORDER BY triggered_at DESC LIMIT %s`, p(1), p(2), p(3)),
		ctx.ID(), ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TriggerRecord
	for rows.Next() {
		var rec TriggerRecord
		var triggeredAt time.Time
		var metadata string
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.TenantID, &rec.AgentID, &triggeredAt, &rec.ObservedValue,
			&rec.Threshold, &rec.ActionExecuted, &rec.ActionResult, &metadata); err != nil {
			return nil, err
		}
		rec.TriggeredAt = triggeredAt.UTC()
		rec.Metadata = unmarshalJSONMap(metadata)
		out = append(out, rec)
	}
	return out, rows.Err()
}
