package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tabletop-bank/internal/model"
	tu "github.com/mcoot/tabletop-bank/internal/testutil"
)

func TestPublisherEncodesEvents(t *testing.T) {
	hub := startHub(t)
	pub := NewPublisher(hub, tu.NopLogger())

	client := NewClient(hub, "p1")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	amount := int64(-300)
	pub.PublishEvent(model.LedgerEvent{
		ID: "p1-1", Seq: 1, PlayerID: "p1", PlayerName: "Alice",
		Kind: model.EventKindTransact, Amount: &amount, Message: "Alice paid 300",
	})

	frame := receive(t, client)
	require.True(t, strings.HasPrefix(frame, "event: ledger-event\ndata: "))

	var got model.LedgerEvent
	data := strings.TrimSuffix(strings.TrimPrefix(frame, "event: ledger-event\ndata: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "p1-1", got.ID)
	assert.Equal(t, int64(-300), *got.Amount)

	pub.PublishReset()
	assert.Equal(t, "event: ledger-reset\ndata: {\"reset\":true}\n\n", receive(t, client))
}

func TestServeSSEStreamsUntilDisconnect(t *testing.T) {
	hub := startHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/bank/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		ServeSSE(rec, req, hub, "")
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.BroadcastEvent("ledger-reset", "{}")
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeSSE did not return after disconnect")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: ledger-reset")
}
