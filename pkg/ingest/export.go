package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/redaction"
)

// exportedEvent mirrors eventmodel.Event but carries the redacted
// payload text plus the pipeline's per-event verdict in place of the
// raw payload map.
type exportedEvent struct {
	ID              string `json:"id"`
	EventType       string `json:"eventType"`
	AgentID         string `json:"agentId"`
	RedactionStatus string `json:"redactionStatus"`
	Content         string `json:"content,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ReviewID        string `json:"reviewId,omitempty"`
}

type exportSessionResponse struct {
	SessionID string          `json:"sessionId"`
	Events    []exportedEvent `json:"events"`
}

// handleExportSession implements GET /api/sessions/:id/export, the
// share-surface the redaction pipeline exists for (spec §4.5: "an
// ordered multi-layer content rewriter applied before persisting
// artifacts destined for sharing"). Each event's payload is marshaled
// to text and folded through the pipeline independently, so one
// blocked or pending-review event never withholds the rest of the
// session.
func (s *Server) handleExportSession(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}
	if s.redactor == nil {
		writeError(c, apperrors.Internal("redaction pipeline not configured"))
		return
	}

	sessionID := c.Param("id")
	events, err := s.store.GetEventsBySession(tctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	redactCtx := redaction.Context{TenantID: tctx.ID()}
	out := make([]exportedEvent, 0, len(events))
	for _, ev := range events {
		payloadJSON, err := json.Marshal(ev.Payload)
		if err != nil {
			writeError(c, apperrors.Internal("marshal event payload for export: %v", err))
			return
		}

		result, err := s.redactor.Process(redaction.NewRaw(string(payloadJSON)), redactCtx)
		if err != nil {
			writeError(c, apperrors.Internal("run redaction pipeline: %v", err))
			return
		}

		item := exportedEvent{
			ID:              ev.ID,
			EventType:       string(ev.EventType),
			AgentID:         ev.AgentID,
			RedactionStatus: string(result.Status),
			Reason:          result.Reason,
			ReviewID:        result.ReviewID,
		}
		if result.Status == redaction.StatusRedacted {
			item.Content = result.Content.Text()
		}
		out = append(out, item)
	}

	c.JSON(http.StatusOK, exportSessionResponse{SessionID: sessionID, Events: out})
}
