package model

import (
	"fmt"
	"time"
)

// EventKind identifies the kind of a ledger event
type EventKind string

const (
	EventKindRegister EventKind = "register"
	EventKindTransact EventKind = "transact"
	EventKindUndo     EventKind = "undo"
)

// LedgerEvent is one immutable entry in the bank's history.
// Amount is nil for a profile update; for an undo it holds the reversal.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	PlayerID   PlayerID  `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Kind       EventKind `json:"kind"`
	Amount     *int64    `json:"amount,omitempty"`
	TargetSeq  int64     `json:"target_seq,omitempty"`
	Message    string    `json:"message"`
}

// EventID returns the idempotency key for a player sequence number
func EventID(id PlayerID, seq int64) string {
	return fmt.Sprintf("%s-%d", id, seq)
}

// RegistrationEventID returns the synthetic id used for registration events
func RegistrationEventID(id PlayerID, at time.Time) string {
	return fmt.Sprintf("reg-%s-%d", id, at.UnixMilli())
}

// Outcome is the result of applying a payload to the ledger.
// Err is nil when Applied is true.
type Outcome struct {
	Applied bool
	Message string
	Event   *LedgerEvent
	Err     error
}

// Accepted builds an applied outcome for an event
func Accepted(event LedgerEvent) Outcome {
	return Outcome{Applied: true, Message: event.Message, Event: &event}
}

// Rejected builds a rejected outcome whose message is the error text
func Rejected(err error) Outcome {
	return Outcome{Message: err.Error(), Err: err}
}
