package ingest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentkitai/agentlens-sub008/pkg/apperrors"
	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
	"github.com/agentkitai/agentlens-sub008/pkg/metrics"
	"github.com/agentkitai/agentlens-sub008/pkg/storage"
)

type ingestEventsRequest struct {
	Events []eventmodel.Event `json:"events" binding:"required"`
}

type ingestEventsResponse struct {
	IDs []string `json:"ids"`
}

// handleIngestEvents implements POST /api/events (spec §4.10): for each
// candidate event, validate structure and payload, stamp the
// authenticated tenant over any client-supplied one, stamp a timestamp
// if absent, mint a time-ordered id if absent, then recompute the hash
// over the finalized fields before handing the batch to the store.
func (s *Server) handleIngestEvents(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	var req ingestEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Validation("malformed request body: %v", err))
		return
	}
	if len(req.Events) == 0 {
		metrics.IngestBatchRejected.WithLabelValues("empty").Inc()
		writeError(c, apperrors.Validation("events must not be empty"))
		return
	}
	if len(req.Events) > s.cfg.MaxBatchSize {
		metrics.IngestBatchRejected.WithLabelValues("oversize").Inc()
		writeError(c, apperrors.Validation("batch of %d events exceeds the %d event limit", len(req.Events), s.cfg.MaxBatchSize))
		return
	}

	now := time.Now().UTC()
	stamped := make([]eventmodel.Event, len(req.Events))
	for i, e := range req.Events {
		e.TenantID = tctx.ID()
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		if e.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				writeError(c, apperrors.Internal("generate event id: %v", err))
				return
			}
			e.ID = id.String()
		}
		if e.SessionID == "" {
			writeError(c, apperrors.Validation("event at index %d is missing sessionId", i))
			return
		}
		e = e.WithDefaults()
		if err := eventmodel.ValidatePayload(e); err != nil {
			writeError(c, err)
			return
		}
		e.Hash = eventmodel.EventHash(e)
		stamped[i] = e
	}

	ids, err := s.store.InsertEvents(tctx, stamped)
	if err != nil {
		writeError(c, err)
		return
	}

	for _, e := range stamped {
		s.bus.Emit(e)
		metrics.IngestEventsTotal.WithLabelValues(string(e.EventType)).Inc()
	}

	c.JSON(http.StatusAccepted, ingestEventsResponse{IDs: ids})
}

// handleQueryEvents implements GET /api/events.
func (s *Server) handleQueryEvents(c *gin.Context) {
	tctx, ok := tenantFromGin(c)
	if !ok {
		writeError(c, apperrors.Authentication("missing bearer token"))
		return
	}

	filter := storage.EventFilter{
		SessionID: c.Query("sessionId"),
		AgentID:   c.Query("agentId"),
		EventType: eventmodel.Type(c.Query("eventType")),
		Order:     storage.OrderAsc,
	}
	if sev := c.Query("severity"); sev != "" {
		filter.Severity = eventmodel.Severity(sev)
	}
	if order := c.Query("order"); order == string(storage.OrderDesc) {
		filter.Order = storage.OrderDesc
	}
	if from, err := parseTimeQuery(c.Query("from")); err == nil && from != nil {
		filter.From = from
	}
	if to, err := parseTimeQuery(c.Query("to")); err == nil && to != nil {
		filter.To = to
	}
	filter.Limit = parseIntQuery(c.Query("limit"), 100)
	filter.Offset = parseIntQuery(c.Query("offset"), 0)

	page, err := s.store.QueryEvents(tctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func parseTimeQuery(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntQuery(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
