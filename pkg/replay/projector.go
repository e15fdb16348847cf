package replay

import (
	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
	"github.com/agentkitai/agentlens-sub008/pkg/tenant"
)

// Projector builds and caches Replay responses.
type Projector struct {
	events           storage.AppendOnlyStore
	cache            *cache
	rollingLLMWindow int
	maxPageSize      int
}

// NewProjector builds a Projector sized by cfg.
func NewProjector(events storage.AppendOnlyStore, cfg config.ReplayConfig) *Projector {
	return &Projector{
		events:           events,
		cache:            newCache(cfg.CacheSize, cfg.CacheTTL),
		rollingLLMWindow: cfg.RollingLLMWindow,
		maxPageSize:      cfg.MaxPageSize,
	}
}

// Invalidate drops any cached projection for sessionID, e.g. after new
// events are inserted into an already-projected session.
func (p *Projector) Invalidate(ctx tenant.Context, sessionID string) {
	p.cache.invalidate(cacheKey{tenantID: ctx.ID(), sessionID: sessionID})
}

// Replay returns the [offset, offset+limit) page of steps for sessionID,
// optionally narrowed to eventTypes, with the session summary and
// chain-validity flag always populated (spec §4.7).
func (p *Projector) Replay(ctx tenant.Context, sessionID string, offset, limit int, eventTypes []eventmodel.Type, includeContext bool) (Replay, error) {
	if limit <= 0 || limit > p.maxPageSize {
		limit = p.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	key := cacheKey{tenantID: ctx.ID(), sessionID: sessionID}
	projected, ok := p.cache.get(key)
	if !ok {
		built, err := p.build(ctx, sessionID)
		if err != nil {
			return Replay{}, err
		}
		projected = built
		p.cache.put(key, projected)
	}

	steps := projected.steps
	if len(eventTypes) > 0 {
		steps = filterSteps(steps, eventTypes)
	}

	total := len(steps)
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}
	page := steps[offset:end]

	if !includeContext {
		page = stripContext(page)
	}

	return Replay{
		SessionID:  sessionID,
		Steps:      page,
		Summary:    projected.summary,
		ChainValid: projected.chainValid,
		Offset:     offset,
		Limit:      limit,
		Total:      total,
		HasMore:    offset+len(page) < total,
	}, nil
}

func (p *Projector) build(ctx tenant.Context, sessionID string) (*projectedSession, error) {
	events, err := p.events.GetEventsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	_, chainErr := storage.VerifyChain(nil, events)

	steps := make([]Step, len(events))
	toolNames := map[string]bool{}
	summary := Summary{}

	for i, ev := range events {
		steps[i] = Step{
			Index:   i,
			Event:   ev,
			Context: buildContext(events[:i], p.rollingLLMWindow),
		}

		switch ev.EventType {
		case eventmodel.TypeToolCall:
			summary.TotalToolCalls++
			if name, ok := ev.Payload["toolName"].(string); ok && name != "" {
				toolNames[name] = true
			}
		case eventmodel.TypeLLMCall:
			summary.TotalLLMCalls++
		case eventmodel.TypeCostTracked:
			if cost, ok := ev.Payload["costUsd"].(float64); ok {
				summary.TotalCostUSD += cost
			}
		}
		if ev.Severity.IsErrorLevel() {
			summary.ErrorCount++
		}
	}

	summary.DistinctToolNames = make([]string, 0, len(toolNames))
	for name := range toolNames {
		summary.DistinctToolNames = append(summary.DistinctToolNames, name)
	}

	return &projectedSession{
		steps:      steps,
		summary:    summary,
		chainValid: chainErr == nil,
	}, nil
}

func buildContext(prior []eventmodel.Event, rollingLLMWindow int) StepContext {
	var llm []eventmodel.Event
	var toolResults []eventmodel.Event

	for _, ev := range prior {
		switch ev.EventType {
		case eventmodel.TypeLLMCall, eventmodel.TypeLLMResponse:
			llm = append(llm, ev)
			if len(llm) > rollingLLMWindow {
				llm = llm[len(llm)-rollingLLMWindow:]
			}
		case eventmodel.TypeToolResponse, eventmodel.TypeToolError:
			toolResults = append(toolResults, ev)
		}
	}

	return StepContext{RecentLLMExchanges: llm, ToolResults: toolResults}
}

func filterSteps(steps []Step, eventTypes []eventmodel.Type) []Step {
	wanted := map[eventmodel.Type]bool{}
	for _, t := range eventTypes {
		wanted[t] = true
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if wanted[s.Event.EventType] {
			out = append(out, s)
		}
	}
	return out
}

func stripContext(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = Step{Index: s.Index, Event: s.Event}
	}
	return out
}
