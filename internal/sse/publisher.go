package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// Event names sent on the ledger feed
const (
	EventLedger = "ledger-event"
	EventReset  = "ledger-reset"
)

// Publisher turns bank ledger changes into SSE events
type Publisher struct {
	hub    *Hub
	logger *slog.Logger
}

// NewPublisher creates a publisher broadcasting on hub
func NewPublisher(hub *Hub, logger *slog.Logger) *Publisher {
	return &Publisher{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-publisher")),
	}
}

// PublishEvent broadcasts an applied ledger event as JSON
func (p *Publisher) PublishEvent(event model.LedgerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode ledger event",
			slog.String("event_id", event.ID),
			slog.Any("error", err))
		return
	}
	p.hub.BroadcastPlayerEvent(event.PlayerID, EventLedger, string(data))
}

// PublishReset tells every client the ledger was wiped
func (p *Publisher) PublishReset() {
	p.hub.BroadcastEvent(EventReset, `{"reset":true}`)
}
