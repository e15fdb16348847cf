package ingest

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/guardrail"
)

type createGuardrailRuleRequest struct {
	Name            string                 `json:"name" binding:"required"`
	Enabled         bool                   `json:"enabled"`
	DryRun          bool                   `json:"dryRun"`
	AgentID         *string                `json:"agentId"`
	ConditionType   guardrail.ConditionType `json:"conditionType" binding:"required"`
	ConditionConfig map[string]any         `json:"conditionConfig"`
	ActionType      guardrail.ActionType   `json:"actionType" binding:"required"`
	ActionConfig    map[string]any         `json:"actionConfig"`
	CooldownMinutes int                    `json:"cooldownMinutes"`
}

func (r createGuardrailRuleRequest) toRule() guardrail.Rule {
	return guardrail.Rule{
		Name:            r.Name,
		Enabled:         r.Enabled,
		DryRun:          r.DryRun,
		AgentID:         r.AgentID,
		ConditionType:   r.ConditionType,
		ConditionConfig: r.ConditionConfig,
		ActionType:      r.ActionType,
		ActionConfig:    r.ActionConfig,
		CooldownMinutes: r.CooldownMinutes,
	}
}

// handleCreateRule implements POST /api/guardrails.
func (s *Server) handleCreateRule(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	var req createGuardrailRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("malformed request body: %v", err))
		return
	}

	rule, err := s.rules.CreateRule(tctx, req.toRule())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// handleListRules implements GET /api/guardrails.
func (s *Server) handleListRules(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	rules, err := s.rules.ListRules(tctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// handleGetRule implements GET /api/guardrails/:id.
func (s *Server) handleGetRule(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	rule, err := s.rules.GetRule(tctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// handleUpdateRule implements PUT /api/guardrails/:id.
func (s *Server) handleUpdateRule(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	existing, err := s.rules.GetRule(tctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var req createGuardrailRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("malformed request body: %v", err))
		return
	}
	updated := req.toRule()
	updated.ID = existing.ID
	updated.TenantID = existing.TenantID
	updated.CreatedAt = existing.CreatedAt

	if err := s.rules.UpdateRule(tctx, updated); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleDeleteRule implements DELETE /api/guardrails/:id.
func (s *Server) handleDeleteRule(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	if err := s.rules.DeleteRule(tctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRuleStatus implements GET /api/guardrails/:id/status: the
// rule's current per-agent evaluation state, scoped the same way the
// engine's tick scopes agents for the rule (every tenant agent, or the
// single pinned agent).
func (s *Server) handleRuleStatus(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	rule, err := s.rules.GetRule(tctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var agentIDs []string
	if rule.AgentID != nil {
		agentIDs = []string{*rule.AgentID}
	} else {
		agents, err := s.store.GetAgents(tctx)
		if err != nil {
			writeError(c, err)
			return
		}
		for _, a := range agents {
			agentIDs = append(agentIDs, a.ID)
		}
	}

	states := make([]guardrail.State, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		st, found, err := s.rules.GetState(tctx, rule.ID, agentID)
		if err != nil {
			writeError(c, err)
			return
		}
		if found {
			states = append(states, st)
		}
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule, "states": states})
}

// handleRuleHistory implements GET /api/guardrails/history: the most
// recent trigger history across every rule owned by the tenant, since
// the underlying store only exposes per-rule history.
func (s *Server) handleRuleHistory(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	limit := parseIntQuery(c.Query("limit"), 50)

	rules, err := s.rules.ListRules(tctx)
	if err != nil {
		writeError(c, err)
		return
	}

	var all []guardrail.TriggerRecord
	for _, rule := range rules {
		recs, err := s.rules.ListTriggerHistory(tctx, rule.ID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		all = append(all, recs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TriggeredAt.After(all[j].TriggeredAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"history": all})
}
