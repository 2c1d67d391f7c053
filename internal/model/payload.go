package model

// Action is the discriminator carried by every payload
type Action string

const (
	ActionRegister Action = "reg"
	ActionTransact Action = "tx"
	ActionUndo     Action = "undo"
	ActionSync     Action = "sync"
)

// Payload is a decoded barcode payload
type Payload interface {
	Action() Action
	Player() PlayerID
}

// RegisterPayload announces a player (or a profile change) to the bank
type RegisterPayload struct {
	UUID    PlayerID
	Name    string
	Color   string
	Balance int64
}

func (RegisterPayload) Action() Action     { return ActionRegister }
func (p RegisterPayload) Player() PlayerID { return p.UUID }

// TransactPayload moves Amount into (positive) or out of (negative) a balance
type TransactPayload struct {
	UUID   PlayerID
	Amount int64
	Seq    int64
}

func (TransactPayload) Action() Action     { return ActionTransact }
func (p TransactPayload) Player() PlayerID { return p.UUID }

// UndoPayload reverses the transaction the same player issued at TargetSeq
type UndoPayload struct {
	UUID      PlayerID
	TargetSeq int64
	Seq       int64
}

func (UndoPayload) Action() Action     { return ActionUndo }
func (p UndoPayload) Player() PlayerID { return p.UUID }

// SyncPayload is emitted by the bank so a player device can rebuild its state.
// Seq is the next sequence number the device must use.
type SyncPayload struct {
	UUID    PlayerID
	Name    string
	Color   string
	Seq     int64
	Balance int64
	History []HistoryTuple
}

func (SyncPayload) Action() Action     { return ActionSync }
func (p SyncPayload) Player() PlayerID { return p.UUID }

// HistoryKind is the numeric kind used in condensed history tuples
type HistoryKind int64

const (
	HistoryKindTransact HistoryKind = 1
	HistoryKindUndo     HistoryKind = 2
)

// HistoryTuple is one condensed ledger entry inside a sync payload.
// Value is the amount for a transaction and the target seq for an undo.
// Timestamp is in Unix milliseconds.
type HistoryTuple struct {
	Seq       int64
	Kind      HistoryKind
	Value     int64
	Timestamp int64
}
