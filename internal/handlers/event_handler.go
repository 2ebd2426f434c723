package handlers

import (
	"encoding/json"

	"hako-backend/internal/models"
	"hako-backend/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventHandler serves the append-only audit log.
type EventHandler struct {
	events repository.EventRepository
	logger *logrus.Logger
}

func NewEventHandler(events repository.EventRepository, logger *logrus.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

func eventResponse(e *models.Event) gin.H {
	// Payload is stored as canonical JSON, re-embed it instead of
	// double-encoding.
	payload := json.RawMessage(e.Payload)
	return gin.H{
		"id":         e.ID,
		"type":       e.Type,
		"subject":    e.Subject,
		"topics":     []string(e.Topics),
		"payload":    payload,
		"created_at": e.CreatedAt,
	}
}

// GetEvents returns the audit log, optionally filtered by type, newest first.
func (h *EventHandler) GetEvents(c *gin.Context) {
	page, pageSize := pageParams(c)
	eventType := c.Query("type")

	events, total, err := h.events.FindByType(c.Request.Context(), eventType, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("failed to query events")
		respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(events))
	for _, e := range events {
		items = append(items, eventResponse(e))
	}
	respondOK(c, gin.H{
		"events":    items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetEventsBySubject returns every event recorded for one entity, oldest
// first, so a request or deposit's full history reads top to bottom.
func (h *EventHandler) GetEventsBySubject(c *gin.Context) {
	subject := c.Param("subject")

	events, err := h.events.FindBySubject(c.Request.Context(), subject)
	if err != nil {
		h.logger.WithError(err).Error("failed to query events by subject")
		respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(events))
	for _, e := range events {
		items = append(items, eventResponse(e))
	}
	respondOK(c, gin.H{"events": items})
}
