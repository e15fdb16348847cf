package partitioned

import (
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
	"github.com/agentkitai/agentlens-sub008/pkg/tracing"
)

var _ storage.Store = (*Store)(nil)

func marshalJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func unmarshalJSONMap(b []byte) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(b, &out)
	return out
}

func (s *Store) InsertEvents(ctx tenant.Context, events []eventmodel.Event) (_ []string, err error) {
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

	var insertedIDs []string
	err = s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		partitions := storage.PartitionBySession(events)

		for _, sessionID := range storage.SessionIDsSorted(partitions) {
			partition := partitions[sessionID]

			var currentTail stdsql.NullString
			sessionExists := true
			row := tx.QueryRowContext(ctx, `SELECT tail_hash FROM sessions WHERE tenant_id = $1 AND id = $2`, ctx.ID(), sessionID)
			if err := row.Scan(&currentTail); err != nil {
				if err != stdsql.ErrNoRows {
					return fmt.Errorf("load session tail: %w", err)
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
				row := tx.QueryRowContext(ctx, `SELECT hash FROM events WHERE tenant_id = $1 AND id = $2`, ctx.ID(), id)
				if err := row.Scan(&hash); err != nil {
					return "", false
				}
				return hash, true
			}

			newTail, fresh, err := storage.VerifyChainDedup(tailPtr, partition, existing)
			if err != nil {
				return err
			}
			if len(fresh) == 0 {
				continue
			}

			var nextSeq int64
			_ = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE tenant_id = $1 AND session_id = $2`,
				ctx.ID(), sessionID).Scan(&nextSeq)

			for _, e := range fresh {
				var prevHash any
				if e.PrevHash != nil {
					prevHash = *e.PrevHash
				}
				if _, err := tx.ExecContext(ctx, `INSERT INTO events
					(id, tenant_id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, ts, seq)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
					e.ID, ctx.ID(), e.SessionID, e.AgentID, string(e.EventType), string(e.Severity),
					marshalJSON(e.Payload), marshalJSON(e.Metadata), prevHash, e.Hash, e.Timestamp.UTC(), nextSeq); err != nil {
					return fmt.Errorf("insert event %s: %w", e.ID, err)
				}
				nextSeq++
				insertedIDs = append(insertedIDs, e.ID)

				if err := projectEvent(ctx, tx, ctx.ID(), e, !sessionExists); err != nil {
					return err
				}
				sessionExists = true
			}

			if _, err := tx.ExecContext(ctx, `UPDATE sessions SET tail_hash = $1 WHERE tenant_id = $2 AND id = $3`,
				newTail, ctx.ID(), sessionID); err != nil {
				return fmt.Errorf("update session tail: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return insertedIDs, nil
}

func projectEvent(ctx tenant.Context, tx *stdsql.Tx, tenantID string, e eventmodel.Event, newSession bool) error {
	now := e.Timestamp.UTC()

	sessionCountDelta := 0
	if newSession {
		sessionCountDelta = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE agents SET last_seen = $1, session_count = session_count + $2 WHERE tenant_id = $3 AND id = $4`,
		now, sessionCountDelta, tenantID, e.AgentID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sc := 0
		if newSession {
			sc = 1
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO agents (id, tenant_id, name, first_seen, last_seen, session_count) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.AgentID, tenantID, e.AgentID, now, now, sc); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}
	}

	if newSession {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (id, tenant_id, agent_id, started_at, status) VALUES ($1, $2, $3, $4, $5)`,
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

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET
			event_count = event_count + 1,
			tool_call_count = tool_call_count + $1,
			error_count = error_count + $2,
			llm_call_count = llm_call_count + $3,
			cost_usd = cost_usd + $4,
			input_tokens = input_tokens + $5,
			output_tokens = output_tokens + $6
		WHERE tenant_id = $7 AND id = $8`,
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
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET agent_name = $1, tags = $2 WHERE tenant_id = $3 AND id = $4`,
			agentName, marshalJSON(tags), tenantID, e.SessionID); err != nil {
			return fmt.Errorf("update session started fields: %w", err)
		}
	case eventmodel.TypeSessionEnded:
		status := string(storage.SessionCompleted)
		if reason, _ := e.Payload["reason"].(string); reason == "error" {
			status = string(storage.SessionError)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET ended_at = $1, status = $2 WHERE tenant_id = $3 AND id = $4`,
			now, status, tenantID, e.SessionID); err != nil {
			return fmt.Errorf("update session ended fields: %w", err)
		}
	}

	return nil
}

func (s *Store) GetEvent(ctx tenant.Context, id string) (eventmodel.Event, error) {
	var e eventmodel.Event
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, ts
			FROM events WHERE tenant_id = $1 AND id = $2`, ctx.ID(), id)
		var err error
		e, err = scanEvent(row)
		return err
	})
	if err != nil {
		if err == stdsql.ErrNoRows {
			return eventmodel.Event{}, apperrors.NotFound("event %s not found", id)
		}
		return eventmodel.Event{}, err
	}
	e.TenantID = ctx.ID()
	return e, nil
}

func (s *Store) GetEventsBySession(ctx tenant.Context, sessionID string) ([]eventmodel.Event, error) {
	var out []eventmodel.Event
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, ts
			FROM events WHERE tenant_id = $1 AND session_id = $2 ORDER BY seq ASC`, ctx.ID(), sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			e.TenantID = ctx.ID()
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (eventmodel.Event, error) {
	var e eventmodel.Event
	var eventType, severity string
	var payload, metadata []byte
	var prevHash stdsql.NullString
	if err := row.Scan(&e.ID, &e.SessionID, &e.AgentID, &eventType, &severity, &payload, &metadata, &prevHash, &e.Hash, &e.Timestamp); err != nil {
		return e, err
	}
	e.EventType = eventmodel.Type(eventType)
	e.Severity = eventmodel.Severity(severity)
	e.Payload = unmarshalJSONMap(payload)
	e.Metadata = unmarshalJSONMap(metadata)
	e.Timestamp = e.Timestamp.UTC()
	if prevHash.Valid {
		v := prevHash.String
		e.PrevHash = &v
	}
	return e, nil
}

func (s *Store) QueryEvents(ctx tenant.Context, filter storage.EventFilter) (storage.EventPage, error) {
	var page storage.EventPage
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		where := `WHERE tenant_id = $1`
		args := []any{ctx.ID()}
		arg := func(v any) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}

		if filter.EventType != "" {
			where += ` AND event_type = ` + arg(string(filter.EventType))
		}
		if filter.SessionID != "" {
			where += ` AND session_id = ` + arg(filter.SessionID)
		}
		if filter.AgentID != "" {
			where += ` AND agent_id = ` + arg(filter.AgentID)
		}
		if filter.Severity != "" {
			where += ` AND severity = ` + arg(string(filter.Severity))
		}
		if filter.From != nil {
			where += ` AND ts >= ` + arg(filter.From.UTC())
		}
		if filter.To != nil {
			where += ` AND ts <= ` + arg(filter.To.UTC())
		}

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events `+where, args...).Scan(&page.Total); err != nil {
			return err
		}

		order := "ASC"
		if filter.Order == storage.OrderDesc {
			order = "DESC"
		}
		limit := filter.Limit
		if limit <= 0 {
			limit = 100
		}

		query := fmt.Sprintf(`SELECT id, session_id, agent_id, event_type, severity, payload, metadata, prev_hash, hash, ts
			FROM events %s ORDER BY ts %s, seq %s LIMIT %s OFFSET %s`,
			where, order, order, arg(limit), arg(filter.Offset))

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			e.TenantID = ctx.ID()
			page.Events = append(page.Events, e)
		}
		page.HasMore = filter.Offset+len(page.Events) < page.Total
		return rows.Err()
	})
	return page, err
}

const sessionSelectSQL = `SELECT id, tenant_id, agent_id, agent_name, started_at, ended_at, status,
	event_count, tool_call_count, error_count, llm_call_count, input_tokens, output_tokens, cost_usd, tags
	FROM sessions`

func scanSession(row scanner) (storage.Session, error) {
	var sess storage.Session
	var agentName stdsql.NullString
	var endedAt stdsql.NullTime
	var tags []byte
	if err := row.Scan(&sess.ID, &sess.TenantID, &sess.AgentID, &agentName, &sess.StartedAt, &endedAt, &sess.Status,
		&sess.EventCount, &sess.ToolCallCount, &sess.ErrorCount, &sess.LLMCallCount,
		&sess.InputTokens, &sess.OutputTokens, &sess.CostUSD, &tags); err != nil {
		return sess, err
	}
	sess.AgentName = agentName.String
	sess.StartedAt = sess.StartedAt.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sess.EndedAt = &t
	}
	var tagList []string
	_ = json.Unmarshal(tags, &tagList)
	sess.Tags = tagList
	return sess, nil
}

func (s *Store) GetSession(ctx tenant.Context, id string) (storage.Session, error) {
	var sess storage.Session
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		row := tx.QueryRowContext(ctx, sessionSelectSQL+` WHERE tenant_id = $1 AND id = $2`, ctx.ID(), id)
		var err error
		sess, err = scanSession(row)
		return err
	})
	if err != nil {
		if err == stdsql.ErrNoRows {
			return storage.Session{}, apperrors.NotFound("session %s not found", id)
		}
		return storage.Session{}, err
	}
	return sess, nil
}

func (s *Store) UpsertSession(ctx tenant.Context, sess storage.Session) error {
	return s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		var endedAt any
		if sess.EndedAt != nil {
			endedAt = sess.EndedAt.UTC()
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions
			(id, tenant_id, agent_id, agent_name, started_at, ended_at, status, event_count, tool_call_count, error_count, llm_call_count, input_tokens, output_tokens, cost_usd, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				agent_id = excluded.agent_id, agent_name = excluded.agent_name, started_at = excluded.started_at,
				ended_at = excluded.ended_at, status = excluded.status, event_count = excluded.event_count,
				tool_call_count = excluded.tool_call_count, error_count = excluded.error_count,
				llm_call_count = excluded.llm_call_count, input_tokens = excluded.input_tokens,
				output_tokens = excluded.output_tokens, cost_usd = excluded.cost_usd, tags = excluded.tags`,
			sess.ID, ctx.ID(), sess.AgentID, sess.AgentName, sess.StartedAt.UTC(), endedAt, string(sess.Status),
			sess.EventCount, sess.ToolCallCount, sess.ErrorCount, sess.LLMCallCount,
			sess.InputTokens, sess.OutputTokens, sess.CostUSD, marshalJSON(sess.Tags))
		return err
	})
}

func (s *Store) GetSessions(ctx tenant.Context, filter storage.SessionFilter) ([]storage.Session, int, error) {
	var out []storage.Session
	var total int
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		where := `WHERE tenant_id = $1`
		args := []any{ctx.ID()}
		arg := func(v any) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}

		if filter.AgentID != "" {
			where += ` AND agent_id = ` + arg(filter.AgentID)
		}
		if filter.Status != "" {
			where += ` AND status = ` + arg(string(filter.Status))
		}
		if filter.From != nil {
			where += ` AND started_at >= ` + arg(filter.From.UTC())
		}
		if filter.To != nil {
			where += ` AND started_at <= ` + arg(filter.To.UTC())
		}
		for _, tag := range filter.Tags {
			where += ` AND tags @> ` + arg(string(marshalJSON([]string{tag})))
		}

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
			return err
		}
		if filter.CountOnly {
			return nil
		}

		limit := filter.Limit
		if limit <= 0 {
			limit = 50
		}
		query := sessionSelectSQL + " " + where + fmt.Sprintf(` ORDER BY started_at DESC LIMIT %s OFFSET %s`, arg(limit), arg(filter.Offset))

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, sess)
		}
		return rows.Err()
	})
	return out, total, err
}

func scanAgent(row scanner) (storage.Agent, error) {
	var a storage.Agent
	var modelOverride, pauseReason stdsql.NullString
	var pausedAt stdsql.NullTime
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.FirstSeen, &a.LastSeen, &a.SessionCount, &modelOverride, &pausedAt, &pauseReason); err != nil {
		return a, err
	}
	a.FirstSeen = a.FirstSeen.UTC()
	a.LastSeen = a.LastSeen.UTC()
	if modelOverride.Valid {
		v := modelOverride.String
		a.ModelOverride = &v
	}
	if pausedAt.Valid {
		t := pausedAt.Time.UTC()
		a.PausedAt = &t
	}
	if pauseReason.Valid {
		v := pauseReason.String
		a.PauseReason = &v
	}
	return a, nil
}

func (s *Store) GetAgent(ctx tenant.Context, id string) (storage.Agent, error) {
	var a storage.Agent
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason
			FROM agents WHERE tenant_id = $1 AND id = $2`, ctx.ID(), id)
		var err error
		a, err = scanAgent(row)
		return err
	})
	if err != nil {
		if err == stdsql.ErrNoRows {
			return storage.Agent{}, apperrors.NotFound("agent %s not found", id)
		}
		return storage.Agent{}, err
	}
	return a, nil
}

func (s *Store) UpsertAgent(ctx tenant.Context, a storage.Agent) error {
	return s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		var modelOverride, pausedAt, pauseReason any
		if a.ModelOverride != nil {
			modelOverride = *a.ModelOverride
		}
		if a.PausedAt != nil {
			pausedAt = a.PausedAt.UTC()
		}
		if a.PauseReason != nil {
			pauseReason = *a.PauseReason
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO agents (id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				name = excluded.name, last_seen = excluded.last_seen, session_count = excluded.session_count,
				model_override = excluded.model_override, paused_at = excluded.paused_at, pause_reason = excluded.pause_reason`,
			a.ID, ctx.ID(), a.Name, a.FirstSeen.UTC(), a.LastSeen.UTC(), a.SessionCount, modelOverride, pausedAt, pauseReason)
		return err
	})
}

func (s *Store) GetAgents(ctx tenant.Context) ([]storage.Agent, error) {
	var out []storage.Agent
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, tenant_id, name, first_seen, last_seen, session_count, model_override, paused_at, pause_reason
			FROM agents WHERE tenant_id = $1 ORDER BY first_seen ASC`, ctx.ID())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAgent(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) GetStats(ctx tenant.Context) (storage.Stats, error) {
	var stats storage.Stats
	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE tenant_id = $1`, ctx.ID()).Scan(&stats.EventCount); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE tenant_id = $1`, ctx.ID()).Scan(&stats.SessionCount); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE tenant_id = $1`, ctx.ID()).Scan(&stats.AgentCount)
	})
	return stats, err
}

// ApplyRetention deletes rows older than cutoff for the bound tenant in
// batches of 10,000 (spec §4.9, "batched deletes to avoid long lock
// waits on a shared partition"), then purges any session left with zero
// events. Partition-drop (the faster path when every tenant sharing a
// partition has aged out) is driven separately by pkg/retention, which
// calls TenantsInPartition/DropPartition directly.
func (s *Store) ApplyRetention(ctx tenant.Context, cutoff time.Time) (storage.RetentionResult, error) {
	const batchSize = 10000
	var total int

	for {
		var deleted int
		err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
			res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE ctid IN (
					SELECT ctid FROM events WHERE tenant_id = $1 AND ts < $2 LIMIT $3
				)`, ctx.ID(), cutoff.UTC(), batchSize)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			deleted = int(n)
			return nil
		})
		if err != nil {
			return storage.RetentionResult{}, err
		}
		total += deleted
		if deleted < batchSize {
			break
		}
	}

	err := s.withTenant(ctx, ctx.ID(), func(tx *stdsql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET event_count = (
				SELECT COUNT(*) FROM events WHERE events.tenant_id = sessions.tenant_id AND events.session_id = sessions.id
			) WHERE tenant_id = $1`, ctx.ID()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE tenant_id = $1 AND event_count = 0`, ctx.ID())
		return err
	})
	if err != nil {
		return storage.RetentionResult{}, err
	}

	return storage.RetentionResult{DeletedCount: total}, nil
}

// ListTenants returns every distinct tenant id with at least one agent
// row, bypassing row-level security via the admin context since this
// query is deliberately cross-tenant (spec §4.9, "for each tenant").
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
// override. retention_tiers carries no row-level security policy since
// it is itself an admin-only table.
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
		INSERT INTO retention_tiers (tenant_id, retain_days) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET retain_days = excluded.retain_days`,
		tenantID, days)
	return err
}
