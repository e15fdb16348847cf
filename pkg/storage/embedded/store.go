// Package embedded implements the storage.Store contract as a single
// embedded SQLite database file shared by every tenant in one process
// (spec §4.2: "all tenants share one process-wide database file").
// Tenant isolation is enforced purely at the query layer by filtering
// every statement on tenant_id — there is no session-local identity to
// set, unlike the partitioned backend.
package embedded

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
	"github.com/agentkitai/agentlens-sub008/pkg/tracing"
)

// Store is the embedded single-node backend.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the embedded schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: serialize writers, matches teacher's single-process embedded assumption

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB so callers outside this package
// (the apikey and guardrail SQL stores, which speak database/sql
// directly) can share the same single-writer connection pool instead
// of opening a second handle onto the same file.
func (s *Store) DB() *sql.DB { return s.db }

var _ storage.Store = (*Store)(nil)

func rfc3339(t time.Time) string { return t.UTC().Format("2006-01-02T15:04:05.999999999Z07:00") }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
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

// InsertEvents implements the C3 insertion algorithm (spec §4.3).
func (s *Store) InsertEvents(ctx tenant.Context, events []eventmodel.Event) (insertedIDs []string, err error) {
	if len(events) == 0 {
		return nil, nil
	}

	_, span := tracing.StartEventInsert(ctx, ctx.ID(), len(events))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	partitions := storage.PartitionBySession(events)

	for _, sessionID := range storage.SessionIDsSorted(partitions) {
		partition := partitions[sessionID]

		var currentTail sql.NullString
		row := tx.QueryRow(`SELECT tail_hash FROM sessions WHERE tenant_id = ? AND id = ?`, ctx.ID(), sessionID)
		sessionExists := true
		if err := row.Scan(&currentTail); err != nil {
			if err != sql.ErrNoRows {
				return nil, fmt.Errorf("load session tail: %w", err)
			}
			sessionExists = false
		}
		var tailPtr *string
		if currentTail.Valid {
			v := currentTail.String
			tailPtr = &v
		}

		existing := func(id string) (string, bool) {
			var hash string
			row := tx.QueryRow(`SELECT hash FROM events WHERE tenant_id = ? AND id = ?`, ctx.ID(), id)
			if err := row.Scan(&hash); err != nil {
				return "", false
			}
			return hash, true
		}

		newTail, fresh, err := storage.VerifyChainDedup(tailPtr, partition, existing)
		if err != nil {
			return nil, err
		}
		if len(fresh) == 0 {
			continue // whole sub-batch already persisted: idempotent no-op
		}

		var nextSeq int
		_ = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE tenant_id = ? AND session_id = ?`, ctx.ID(), sessionID).Scan(&nextSeq)

		for _, e := range fresh {
			var prevHash any
			if e.PrevHash != nil {
				prevHash = *e.PrevHash
			}
			_, err := tx.Exec(`INSERT INTO events (id, tenant_id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, timestamp, seq)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, ctx.ID(), e.SessionID, e.AgentID, string(e.EventType), string(e.Severity),
				marshalJSON(e.Payload), marshalJSON(e.Metadata), prevHash, e.Hash, rfc3339(e.Timestamp), nextSeq)
			if err != nil {
				return nil, fmt.Errorf("insert event %s: %w", e.ID, err)
			}
			nextSeq++
			insertedIDs = append(insertedIDs, e.ID)

			if err := s.projectEvent(tx, ctx.ID(), e, !sessionExists); err != nil {
				return nil, err
			}
			sessionExists = true
		}

		if _, err := tx.Exec(`UPDATE sessions SET tail_hash = ? WHERE tenant_id = ? AND id = ?`, newTail, ctx.ID(), sessionID); err != nil {
			return nil, fmt.Errorf("update session tail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return insertedIDs, nil
}

// projectEvent applies the session/agent projection updates for a single
// newly-inserted event (spec §4.3 step 4).
func (s *Store) projectEvent(tx *sql.Tx, tenantID string, e eventmodel.Event, newSession bool) error {
	now := rfc3339(e.Timestamp)

	// Agent upsert.
	var sessionCountDelta int
	if newSession {
		sessionCountDelta = 1
	}
	res, err := tx.Exec(`UPDATE agents SET last_seen = ?, session_count = session_count + ? WHERE tenant_id = ? AND id = ?`,
		now, sessionCountDelta, tenantID, e.AgentID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sc := 0
		if newSession {
			sc = 1
		}
		if _, err := tx.Exec(`INSERT INTO agents (id, tenant_id, name, first_seen, last_seen, session_count) VALUES (?, ?, ?, ?, ?, ?)`,
			e.AgentID, tenantID, e.AgentID, now, now, sc); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}
	}

	// Session upsert.
	if newSession {
		if _, err := tx.Exec(`INSERT INTO sessions (id, tenant_id, agent_id, started_at, status) VALUES (?, ?, ?, ?, ?)`,
			e.SessionID, tenantID, e.AgentID, now, string(storage.SessionActive)); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}

	toolCallDelta := 0
	if e.EventType == eventmodel.TypeToolCall {
		toolCallDelta = 1
	}
	errorDelta := 0
	if e.Severity.IsErrorLevel() || e.EventType == eventmodel.TypeToolError {
		errorDelta = 1
	}
	llmCallDelta := 0
	if e.EventType == eventmodel.TypeLLMResponse {
		llmCallDelta = 1
	}
	costDelta := 0.0
	if e.EventType == eventmodel.TypeCostTracked {
		if v, ok := e.Payload["costUsd"].(float64); ok {
			costDelta = v
		}
	}
	inputTokDelta, outputTokDelta := int64(0), int64(0)
	if e.EventType == eventmodel.TypeLLMResponse {
		if v, ok := e.Payload["inputTokens"].(float64); ok {
			inputTokDelta = int64(v)
		}
		if v, ok := e.Payload["outputTokens"].(float64); ok {
			outputTokDelta = int64(v)
		}
	}

	if _, err := tx.Exec(`UPDATE sessions SET
			event_count = event_count + 1,
			tool_call_count = tool_call_count + ?,
			error_count = error_count + ?,
			llm_call_count = llm_call_count + ?,
			cost_usd = cost_usd + ?,
			input_tokens = input_tokens + ?,
			output_tokens = output_tokens + ?
		WHERE tenant_id = ? AND id = ?`,
		toolCallDelta, errorDelta, llmCallDelta, costDelta, inputTokDelta, outputTokDelta, tenantID, e.SessionID); err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}

	switch e.EventType {
	case eventmodel.TypeSessionStarted:
		agentName, _ := e.Payload["agentName"].(string)
		tagsRaw, _ := e.Payload["tags"].([]any)
		tags := make([]string, 0, len(tagsRaw))
		for _, t := range tagsRaw {
			if ts, ok := t.(string); ok {
				tags = append(tags, ts)
			}
		}
		if _, err := tx.Exec(`UPDATE sessions SET agent_name = ?, tags = ? WHERE tenant_id = ? AND id = ?`,
			agentName, marshalJSON(tags), tenantID, e.SessionID); err != nil {
			return fmt.Errorf("update session started fields: %w", err)
		}
	case eventmodel.TypeSessionEnded:
		status := string(storage.SessionCompleted)
		if reason, _ := e.Payload["reason"].(string); reason == "error" {
			status = string(storage.SessionError)
		}
		if _, err := tx.Exec(`UPDATE sessions SET ended_at = ?, status = ? WHERE tenant_id = ? AND id = ?`,
			now, status, tenantID, e.SessionID); err != nil {
			return fmt.Errorf("update session ended fields: %w", err)
		}
	}

	return nil
}

func (s *Store) GetEvent(ctx tenant.Context, id string) (eventmodel.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, timestamp
		FROM events WHERE tenant_id = ? AND id = ?`, ctx.ID(), id)
	e, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return eventmodel.Event{}, apperrors.NotFound("event %s not found", id)
		}
		return eventmodel.Event{}, err
	}
	e.TenantID = ctx.ID()
	return e, nil
}

func (s *Store) GetEventsBySession(ctx tenant.Context, sessionID string) ([]eventmodel.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, timestamp
		FROM events WHERE tenant_id = ? AND session_id = ? ORDER BY seq ASC`, ctx.ID(), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eventmodel.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		e.TenantID = ctx.ID()
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (eventmodel.Event, error) {
	var e eventmodel.Event
	var eventType, severity, payload, metadata, ts string
	var prevHash sql.NullString
	if err := row.Scan(&e.ID, &e.SessionID, &e.AgentID, &eventType, &severity, &payload, &metadata, &prevHash, &e.Hash, &ts); err != nil {
		return e, err
	}
	e.EventType = eventmodel.Type(eventType)
	e.Severity = eventmodel.Severity(severity)
	e.Payload = unmarshalJSONMap(payload)
	e.Metadata = unmarshalJSONMap(metadata)
	e.Timestamp = parseTime(ts)
	if prevHash.Valid {
		v := prevHash.String
		e.PrevHash = &v
	}
	return e, nil
}

func (s *Store) QueryEvents(ctx tenant.Context, filter storage.EventFilter) (storage.EventPage, error) {
	where := `WHERE tenant_id = ?`
	args := []any{ctx.ID()}

	if filter.EventType != "" {
		where += ` AND event_type = ?`
		args = append(args, string(filter.EventType))
	}
	if filter.SessionID != "" {
		where += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.AgentID != "" {
		where += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.Severity != "" {
		where += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.From != nil {
		where += ` AND timestamp >= ?`
		args = append(args, rfc3339(*filter.From))
	}
	if filter.To != nil {
		where += ` AND timestamp <= ?`
		args = append(args, rfc3339(*filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events `+where, args...).Scan(&total); err != nil {
		return storage.EventPage{}, err
	}

	order := "ASC"
	if filter.Order == storage.OrderDesc {
		order = "DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, timestamp
		FROM events %s ORDER BY timestamp %s, seq %s LIMIT ? OFFSET ?`, where, order, order)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.EventPage{}, err
	}
	defer rows.Close()

	var events []eventmodel.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return storage.EventPage{}, err
		}
		e.TenantID = ctx.ID()
		events = append(events, e)
	}

	return storage.EventPage{
		Events:  events,
		Total:   total,
		HasMore: filter.Offset+len(events) < total,
	}, rows.Err()
}

func (s *Store) GetSession(ctx tenant.Context, id string) (storage.Session, error) {
	row := s.db.QueryRowContext(ctx, sessionSelectSQL+` WHERE tenant_id = ? AND id = ?`, ctx.ID(), id)
	sess, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.Session{}, apperrors.NotFound("session %s not found", id)
		}
		return storage.Session{}, err
	}
	return sess, nil
}

const sessionSelectSQL = `SELECT id, tenant_id, agent_id, agent_name, started_at, ended_at, status,
	event_count, tool_call_count, error_count, llm_call_count, input_tokens, output_tokens, cost_usd, tags
	FROM sessions`

func scanSession(row scanner) (storage.Session, error) {
	var sess storage.Session
	var agentName, endedAt sql.NullString
	var startedAt, tags string
	if err := row.Scan(&sess.ID, &sess.TenantID, &sess.AgentID, &agentName, &startedAt, &endedAt, &sess.Status,
		&sess.EventCount, &sess.ToolCallCount, &sess.ErrorCount, &sess.LLMCallCount,
		&sess.InputTokens, &sess.OutputTokens, &sess.CostUSD, &tags); err != nil {
		return sess, err
	}
	sess.AgentName = agentName.String
	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	var tagList []string
	_ = json.Unmarshal([]byte(tags), &tagList)
	sess.Tags = tagList
	return sess, nil
}

// UpsertSession allows callers (e.g. guardrail agent pause/downgrade
// actions acting through the agent row, or administrative backfills) to
// write a full session snapshot directly.
func (s *Store) UpsertSession(ctx tenant.Context, sess storage.Session) error {
	var endedAt any
	if sess.EndedAt != nil {
		endedAt = rfc3339(*sess.EndedAt)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(id, tenant_id, agent_id, agent_name, started_at, ended_at, status, event_count, tool_call_count, error_count, llm_call_count, input_tokens, output_tokens, cost_usd, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			agent_id = excluded.agent_id, agent_name = excluded.agent_name, started_at = excluded.started_at,
			ended_at = excluded.ended_at, status = excluded.status, event_count = excluded.event_count,
			tool_call_count = excluded.tool_call_count, error_count = excluded.error_count,
			llm_call_count = excluded.llm_call_count, input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens, cost_usd = excluded.cost_usd, tags = excluded.tags`,
		sess.ID, ctx.ID(), sess.AgentID, sess.AgentName, rfc3339(sess.StartedAt), endedAt, string(sess.Status),
		sess.EventCount, sess.ToolCallCount, sess.ErrorCount, sess.LLMCallCount,
		sess.InputTokens, sess.OutputTokens, sess.CostUSD, marshalJSON(sess.Tags))
	return err
}

func (s *Store) GetSessions(ctx tenant.Context, filter storage.SessionFilter) ([]storage.Session, int, error) {
	where := `WHERE tenant_id = ?`
	args := []any{ctx.ID()}

	if filter.AgentID != "" {
		where += ` AND agent_id = ?`
		args = append(args, filter.AgentID)
	}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.From != nil {
		where += ` AND started_at >= ?`
		args = append(args, rfc3339(*filter.From))
	}
	if filter.To != nil {
		where += ` AND started_at <= ?`
		args = append(args, rfc3339(*filter.To))
	}
	for _, tag := range filter.Tags {
		where += ` AND tags LIKE ?`
		args = append(args, "%\""+tag+"\"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if filter.CountOnly {
		return nil, total, nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := sessionSelectSQL + " " + where + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []storage.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}

func (s *Store) GetAgent(ctx tenant.Context, id string) (storage.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason
		FROM agents WHERE tenant_id = ? AND id = ?`, ctx.ID(), id)
	a, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.Agent{}, apperrors.NotFound("agent %s not found", id)
		}
		return storage.Agent{}, err
	}
	return a, nil
}

func scanAgent(row scanner) (storage.Agent, error) {
	var a storage.Agent
	var firstSeen, lastSeen string
	var modelOverride, pausedAt, pauseReason sql.NullString
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &firstSeen, &lastSeen, &a.SessionCount, &modelOverride, &pausedAt, &pauseReason); err != nil {
		return a, err
	}
	a.FirstSeen = parseTime(firstSeen)
	a.LastSeen = parseTime(lastSeen)
	if modelOverride.Valid {
		v := modelOverride.String
		a.ModelOverride = &v
	}
	if pausedAt.Valid {
		t := parseTime(pausedAt.String)
		a.PausedAt = &t
	}
	if pauseReason.Valid {
		v := pauseReason.String
		a.PauseReason = &v
	}
	return a, nil
}

func (s *Store) UpsertAgent(ctx tenant.Context, a storage.Agent) error {
	var modelOverride, pausedAt, pauseReason any
	if a.ModelOverride != nil {
		modelOverride = *a.ModelOverride
	}
	if a.PausedAt != nil {
		pausedAt = rfc3339(*a.PausedAt)
	}
	if a.PauseReason != nil {
		pauseReason = *a.PauseReason
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO agents (id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name, last_seen = excluded.last_seen, session_count = excluded.session_count,
			model_override = excluded.model_override, paused_at = excluded.paused_at, pause_reason = excluded.pause_reason`,
		a.ID, ctx.ID(), a.Name, rfc3339(a.FirstSeen), rfc3339(a.LastSeen), a.SessionCount, modelOverride, pausedAt, pauseReason)
	return err
}

func (s *Store) GetAgents(ctx tenant.Context) ([]storage.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason
		FROM agents WHERE tenant_id = ? ORDER BY first_seen ASC`, ctx.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetStats(ctx tenant.Context) (storage.Stats, error) {
	var stats storage.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE tenant_id = ?`, ctx.ID()).Scan(&stats.EventCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE tenant_id = ?`, ctx.ID()).Scan(&stats.SessionCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE tenant_id = ?`, ctx.ID()).Scan(&stats.AgentCount); err != nil {
		return stats, err
	}
	return stats, nil
}

// ApplyRetention implements C9's embedded-backend path: a single
// transaction deletes events older than cutoff, then any session whose
// event count has dropped to zero (spec §4.3, "Retention operation").
func (s *Store) ApplyRetention(ctx tenant.Context, cutoff time.Time) (storage.RetentionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.RetentionResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM events WHERE tenant_id = ? AND timestamp < ?`, ctx.ID(), rfc3339(cutoff))
	if err != nil {
		return storage.RetentionResult{}, err
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.Exec(`UPDATE sessions SET event_count = (
			SELECT COUNT(*) FROM events WHERE events.tenant_id = sessions.tenant_id AND events.session_id = sessions.id
		) WHERE tenant_id = ?`, ctx.ID()); err != nil {
		return storage.RetentionResult{}, err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE tenant_id = ? AND event_count = 0`, ctx.ID()); err != nil {
		return storage.RetentionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.RetentionResult{}, err
	}

	return storage.RetentionResult{DeletedCount: int(deleted)}, nil
}

// ListTenants returns every distinct tenant id with at least one agent
// row, ignoring the AdminContext's embedded plain context since the
// embedded backend has no session-local identity to set.
func (s *Store) ListTenants(ctx tenant.AdminContext) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM agents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// RetentionOverrides returns every persisted per-tenant retention
// override.
func (s *Store) RetentionOverrides(ctx tenant.AdminContext) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, retain_days FROM retention_tiers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := map[string]int{}
	for rows.Next() {
		var id string
		var days int
		if err := rows.Scan(&id, &days); err != nil {
			return nil, err
		}
		overrides[id] = days
	}
	return overrides, rows.Err()
}

// SetRetentionOverride upserts tenantID's persisted retention override.
func (s *Store) SetRetentionOverride(ctx tenant.AdminContext, tenantID string, days int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retention_tiers (tenant_id, retain_days) VALUES (?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET retain_days = excluded.retain_days`,
		tenantID, days)
	return err
}
