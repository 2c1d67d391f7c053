package handler

import (
	"net/http"

	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/sse"
)

// EventsHandler streams ledger changes over SSE
type EventsHandler struct {
	hub *sse.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/v1/bank/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := model.PlayerID(r.URL.Query().Get("player"))
	sse.ServeSSE(w, r, h.hub, player)
}
