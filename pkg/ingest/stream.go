package ingest

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventbus"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

// handleStream implements GET /api/stream (spec §4.10): subscribes to
// the event bus filtered by the authenticated tenant and optional
// sessionId/eventType, emitting `event: <type>\ndata: <json>\n\n`
// frames with a heartbeat frame on a fixed cadence. The subscription is
// cancelled the moment the client disconnects.
func (s *Server) handleStream(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	sessionID := c.Query("sessionId")
	eventType := eventmodel.Type(c.Query("eventType"))

	sub := s.bus.Subscribe(eventbus.MatchTenant(tctx.ID(), sessionID, eventType))
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(s.cfg.StreamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.EventType), ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"ts": time.Now().UTC()})
			return true
		}
	})
}
