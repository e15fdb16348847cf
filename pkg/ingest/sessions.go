package ingest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
)

// handleListSessions implements GET /api/sessions.
func (s *Server) handleListSessions(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	filter := storage.SessionFilter{
		AgentID:   c.Query("agentId"),
		Limit:     parseIntQuery(c.Query("limit"), 100),
		Offset:    parseIntQuery(c.Query("offset"), 0),
		CountOnly: c.Query("countOnly") == "true",
	}
	if status := c.Query("status"); status != "" {
		filter.Status = storage.SessionStatus(status)
	}
	if tags := c.Query("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}
	if from, err := parseTimeQuery(c.Query("from")); err == nil && from != nil {
		filter.From = from
	}
	if to, err := parseTimeQuery(c.Query("to")); err == nil && to != nil {
		filter.To = to
	}

	sessions, count, err := s.store.GetSessions(tctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if filter.CountOnly {
		c.JSON(http.StatusOK, gin.H{"count": count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": count})
}

// handleGetSession implements GET /api/sessions/:id.
func (s *Server) handleGetSession(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	sess, err := s.store.GetSession(tctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleReplaySession implements GET /api/sessions/:id/replay.
func (s *Server) handleReplaySession(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	offset := parseIntQuery(c.Query("offset"), 0)
	limit := parseIntQuery(c.Query("limit"), 0)
	includeContext, _ := strconv.ParseBool(c.DefaultQuery("includeContext", "true"))

	var eventTypes []eventmodel.Type
	if raw := c.Query("eventTypes"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			eventTypes = append(eventTypes, eventmodel.Type(t))
		}
	}

	replay, err := s.projector.Replay(tctx, c.Param("id"), offset, limit, eventTypes, includeContext)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, replay)
}
