package guardrail

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agentkitai/agentlens-sub008/pkg/eventbus"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/metrics"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
	"github.com/agentkitai/agentlens-sub008/pkg/tracing"
)

// DefaultTickInterval is how often the engine re-evaluates every
// enabled rule (spec §4.6, "tick every 30s by default").
const DefaultTickInterval = 30 * time.Second

// Engine is the periodic rule evaluator. One Engine serves every
// tenant; rule enumeration happens per tick via an explicit
// tenant.AdminContext so the cross-tenant scan is visible at the call
// site rather than an ambient global.
type Engine struct {
	rules        RuleStore
	events       storage.AppendOnlyStore
	projections  storage.ProjectionStore
	bus          *eventbus.Bus
	scorer       HealthScorer
	httpClient   *http.Client
	tickInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithTickInterval overrides DefaultTickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tickInterval = d }
}

// WithHealthScorer wires a HealthScorer for health_score_threshold rules.
// Without one, rules of that condition type always fail with an
// internal error recorded against the rule's trigger history attempt.
func WithHealthScorer(s HealthScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithHTTPClient overrides the client used for notify_webhook and
// agentgate_policy dispatch (tests inject one pointed at an httptest
// server).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// NewEngine builds an Engine. rules persists rule/state/history; events
// supplies the window aggregations condition evaluators query; bus
// receives alert_triggered events.
func NewEngine(rules RuleStore, events storage.AppendOnlyStore, projections storage.ProjectionStore, bus *eventbus.Bus, opts ...Option) *Engine {
	e := &Engine{
		rules:        rules,
		events:       events,
		projections:  projections,
		bus:          bus,
		httpClient:   &http.Client{Timeout: actionDispatchTimeout},
		tickInterval: DefaultTickInterval,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the tick loop in a background goroutine. Safe to call
// only once; subsequent calls are no-ops.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		slog.Warn("guardrail engine already started, ignoring duplicate Start call")
		return
	}
	e.started = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop signals the tick loop to exit and waits for it to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick evaluates every enabled rule across every tenant once. Exported
// so callers (tests, an admin-triggered "evaluate now" endpoint) can
// force an out-of-band pass.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.GuardrailTickDuration.Observe(time.Since(start).Seconds()) }()

	now := time.Now().UTC()
	rules, err := e.rules.ListEnabledRulesAllTenants(tenant.AsAdmin(ctx))
	if err != nil {
		slog.Error("guardrail tick: list rules failed", "error", err)
		return
	}

	for _, r := range rules {
		e.evaluateRule(ctx, r, now)
	}
}

func (e *Engine) evaluateRule(ctx context.Context, r Rule, now time.Time) {
	tctx := tenant.WithTenant(ctx, r.TenantID)

	agentIDs, err := e.agentsInScope(tctx, r)
	if err != nil {
		slog.Error("guardrail tick: resolve agent scope failed", "rule_id", r.ID, "error", err)
		return
	}

	for _, agentID := range agentIDs {
		e.evaluateRuleForAgent(tctx, r, agentID, now)
	}
}

func (e *Engine) agentsInScope(ctx tenant.Context, r Rule) ([]string, error) {
	if r.AgentID != nil {
		return []string{*r.AgentID}, nil
	}
	agents, err := e.projections.GetAgents(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (e *Engine) evaluateRuleForAgent(ctx tenant.Context, r Rule, agentID string, now time.Time) {
	eval, err := evaluateCondition(e.events, e.scorer, ctx, r, agentID, now)
	if err != nil {
		slog.Error("guardrail tick: condition evaluation failed", "rule_id", r.ID, "agent_id", agentID, "error", err)
		return
	}
	if !eval.Triggered {
		return
	}

	cooldown := cooldownDuration(r.CooldownMinutes)
	state, _, err := e.rules.GetState(ctx, r.ID, agentID)
	if err != nil {
		slog.Error("guardrail tick: load state failed", "rule_id", r.ID, "agent_id", agentID, "error", err)
		return
	}
	if state.InCooldown(now, cooldown) {
		return
	}

	e.fire(ctx, r, agentID, eval, state, now)
}

func cooldownDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func (e *Engine) fire(ctx tenant.Context, r Rule, agentID string, eval Evaluation, state State, now time.Time) {
	_, span := tracing.StartGuardrailTrigger(ctx, r.TenantID, r.ID, string(r.ActionType))
	defer span.End()

	state.RuleID, state.TenantID, state.AgentID = r.ID, r.TenantID, agentID
	state.TriggerCount++
	state.LastTriggeredAt = &now
	state.CurrentValue = &eval.ObservedValue

	outcome := ActionOutcome{Executed: false, Result: "dry run: action not dispatched"}
	if !r.DryRun {
		outcome = dispatchAction(ctx, e.projections, e.httpClient, r, agentID, eval)
	}

	rec := TriggerRecord{
		RuleID:         r.ID,
		TenantID:       r.TenantID,
		AgentID:        agentID,
		TriggeredAt:    now,
		ObservedValue:  eval.ObservedValue,
		Threshold:      eval.Threshold,
		ActionExecuted: outcome.Executed,
		ActionResult:   outcome.Result,
	}

	if err := e.rules.AppendTriggerHistory(ctx, rec); err != nil {
		slog.Error("guardrail tick: append trigger history failed", "rule_id", r.ID, "agent_id", agentID, "error", err)
	}
	if err := e.rules.PutState(ctx, state); err != nil {
		slog.Error("guardrail tick: persist state failed", "rule_id", r.ID, "agent_id", agentID, "error", err)
	}
	metrics.GuardrailTriggersTotal.WithLabelValues(string(r.ActionType)).Inc()

	e.emitAlertTriggered(r, agentID, eval, outcome, now)
}

func (e *Engine) emitAlertTriggered(r Rule, agentID string, eval Evaluation, outcome ActionOutcome, now time.Time) {
	if e.bus == nil {
		return
	}
	severity := eventmodel.SeverityWarn
	if !outcome.Executed && !r.DryRun {
		severity = eventmodel.SeverityError
	}
	e.bus.Emit(eventmodel.Event{
		Timestamp: now,
		TenantID:  r.TenantID,
		AgentID:   agentID,
		EventType: eventmodel.TypeAlertTriggered,
		Severity:  severity,
		Payload: map[string]any{
			"ruleId":         r.ID,
			"ruleName":       r.Name,
			"conditionType":  string(r.ConditionType),
			"actionType":     string(r.ActionType),
			"observedValue":  eval.ObservedValue,
			"threshold":      eval.Threshold,
			"dryRun":         r.DryRun,
			"actionExecuted": outcome.Executed,
			"actionResult":   outcome.Result,
		},
	}.WithDefaults())
}
