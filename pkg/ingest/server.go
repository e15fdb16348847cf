// Package ingest is the HTTP gateway: batch event ingestion, event/session
// query, guardrail rule CRUD, and SSE streaming, all behind bearer API-key
// authentication (spec §4.10, §6).
package ingest

import (
	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apikey"
	"github.com/agentkitai/agentlens-sub008/pkg/config"
	"github.com/agentkitai/agentlens-sub008/pkg/eventbus"
	"github.com/agentkitai/agentlens-sub008/pkg/guardrail"
	"github.com/agentkitai/agentlens-sub008/pkg/redaction"
	"github.com/agentkitai/agentlens-sub008/pkg/replay"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
)

// Server wires the storage, bus, guardrail, and replay layers into one
// gin router, following the teacher's Server-struct-holding-dependencies
// shape (pkg/api/handlers.go's Server), generalized from a single alert
// endpoint to the full event/session/guardrail/stream surface.
type Server struct {
	store     storage.Store
	bus       *eventbus.Bus
	rules     guardrail.RuleStore
	projector *replay.Projector
	verifier  *apikey.Verifier
	redactor  *redaction.Pipeline
	limiter   *tenantLimiter
	cfg       config.IngestConfig
}

// NewServer builds a Server from its component dependencies. redactor
// backs the session export endpoint (spec §4.5's "artifacts destined
// for sharing"); it may be nil in tests that never exercise export.
func NewServer(store storage.Store, bus *eventbus.Bus, rules guardrail.RuleStore, projector *replay.Projector, verifier *apikey.Verifier, redactor *redaction.Pipeline, cfg config.IngestConfig) *Server {
	return &Server{
		store: store, bus: bus, rules: rules, projector: projector, verifier: verifier, redactor: redactor,
		limiter: newTenantLimiter(cfg), cfg: cfg,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.Use(apikey.RequireAPIKey(s.verifier))
	api.Use(rateLimitMiddleware(s.limiter))

	api.POST("/events", s.handleIngestEvents)
	api.GET("/events", s.handleQueryEvents)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.GET("/sessions/:id/replay", s.handleReplaySession)
	api.GET("/sessions/:id/export", s.handleExportSession)

	api.POST("/guardrails", s.handleCreateRule)
	api.GET("/guardrails", s.handleListRules)
	api.GET("/guardrails/:id", s.handleGetRule)
	api.PUT("/guardrails/:id", s.handleUpdateRule)
	api.DELETE("/guardrails/:id", s.handleDeleteRule)
	api.GET("/guardrails/:id/status", s.handleRuleStatus)
	api.GET("/guardrails/history", s.handleRuleHistory)

	api.GET("/stream", s.handleStream)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
