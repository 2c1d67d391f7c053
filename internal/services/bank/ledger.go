package bank

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
	"github.com/mcoot/tabletop-bank/internal/model"
)

// Ledger is the bank's idempotent state machine. Every check for a payload runs
// before any mutation, and the mutation itself cannot fail part way.
// A Ledger is not safe for concurrent use; Service serializes access.
type Ledger struct {
	state *State
	clock clock.Clock
}

// NewLedger creates a ledger operating on state
func NewLedger(state *State, clk clock.Clock) *Ledger {
	return &Ledger{state: state, clock: clk}
}

// Apply applies a decoded payload and reports what happened.
// Rejections are returned as outcomes, never as panics.
func (l *Ledger) Apply(p model.Payload) model.Outcome {
	switch v := p.(type) {
	case model.RegisterPayload:
		return l.applyRegister(v)
	case model.TransactPayload:
		return l.applyTransact(v)
	case model.UndoPayload:
		return l.applyUndo(v)
	case model.SyncPayload:
		return model.Rejected(model.ErrSyncScannedByBank)
	default:
		return model.Rejected(model.ErrInvalidPayload)
	}
}

// Reset clears all players, processed keys and history
func (l *Ledger) Reset() {
	l.state.clear()
}

// Registration is deliberately outside the idempotency set: re-scanning a
// registration code only refreshes the profile.
func (l *Ledger) applyRegister(p model.RegisterPayload) model.Outcome {
	now := l.clock.Now()
	name := norm.NFC.String(p.Name)

	ev := model.LedgerEvent{
		ID:         model.RegistrationEventID(p.UUID, now),
		Timestamp:  now,
		PlayerID:   p.UUID,
		PlayerName: name,
		Kind:       model.EventKindRegister,
	}

	if player, ok := l.state.Players[p.UUID]; ok {
		ev.Message = fmt.Sprintf("%s profile updated", name)
		player.Name = name
		player.Color = p.Color
		l.state.appendEvent(ev)
		return model.Accepted(ev)
	}

	if !model.ValidAmount(p.Balance) {
		return model.Rejected(model.ErrAmountOutOfRange)
	}

	initial := p.Balance
	ev.Amount = &initial
	ev.Message = fmt.Sprintf("%s registered with initial balance %d", name, initial)

	l.state.Players[p.UUID] = &model.BankPlayer{
		ID:      p.UUID,
		Name:    name,
		Color:   p.Color,
		Balance: initial,
	}
	l.state.appendEvent(ev)
	return model.Accepted(ev)
}

func (l *Ledger) applyTransact(p model.TransactPayload) model.Outcome {
	key := model.EventID(p.UUID, p.Seq)
	if _, seen := l.state.Processed[key]; seen {
		return model.Rejected(model.ErrAlreadyProcessed)
	}

	player, ok := l.state.Players[p.UUID]
	if !ok {
		return model.Rejected(fmt.Errorf("%w, register first", model.ErrPlayerNotFound))
	}

	amount := p.Amount
	if !model.ValidAmount(amount) {
		return model.Rejected(model.ErrAmountOutOfRange)
	}
	balance, ok := model.AddBalance(player.Balance, amount)
	if !ok {
		return model.Rejected(model.ErrBalanceOverflow)
	}

	verb, magnitude := "paid", -amount
	if amount > 0 {
		verb, magnitude = "received", amount
	}

	ev := model.LedgerEvent{
		ID:         key,
		Seq:        p.Seq,
		Timestamp:  l.clock.Now(),
		PlayerID:   p.UUID,
		PlayerName: player.Name,
		Kind:       model.EventKindTransact,
		Amount:     &amount,
		Message:    fmt.Sprintf("%s %s %d", player.Name, verb, magnitude),
	}

	l.commit(player, key, balance, ev)
	return model.Accepted(ev)
}

func (l *Ledger) applyUndo(p model.UndoPayload) model.Outcome {
	key := model.EventID(p.UUID, p.Seq)
	if _, seen := l.state.Processed[key]; seen {
		return model.Rejected(model.ErrAlreadyProcessed)
	}

	player, ok := l.state.Players[p.UUID]
	if !ok {
		return model.Rejected(model.ErrPlayerNotFound)
	}

	target, ok := l.state.event(model.EventID(p.UUID, p.TargetSeq))
	if !ok {
		return model.Rejected(fmt.Errorf("%w (seq:%d)", model.ErrUndoTargetNotFound, p.TargetSeq))
	}
	if target.Kind != model.EventKindTransact || target.Amount == nil {
		return model.Rejected(model.ErrUndoTargetNotTransaction)
	}

	original := *target.Amount
	if !model.ValidAmount(original) {
		return model.Rejected(model.ErrAmountOutOfRange)
	}
	reversal := -original
	balance, ok := model.AddBalance(player.Balance, reversal)
	if !ok {
		return model.Rejected(model.ErrBalanceOverflow)
	}

	ev := model.LedgerEvent{
		ID:         key,
		Seq:        p.Seq,
		Timestamp:  l.clock.Now(),
		PlayerID:   p.UUID,
		PlayerName: player.Name,
		Kind:       model.EventKindUndo,
		Amount:     &reversal,
		TargetSeq:  p.TargetSeq,
		Message:    fmt.Sprintf("%s reversed an earlier transaction (%d)", player.Name, original),
	}

	l.commit(player, key, balance, ev)
	return model.Accepted(ev)
}

// commit sets the new balance, marks key processed and records ev as one step
func (l *Ledger) commit(player *model.BankPlayer, key string, balance int64, ev model.LedgerEvent) {
	player.Balance = balance
	l.state.Processed[key] = struct{}{}
	l.state.appendEvent(ev)
}

// Player returns a copy of the player record
func (l *Ledger) Player(id model.PlayerID) (model.BankPlayer, bool) {
	p, ok := l.state.Players[id]
	if !ok {
		return model.BankPlayer{}, false
	}
	return *p, true
}

// Players returns all players ordered by name, then id
func (l *Ledger) Players() []model.BankPlayer {
	players := make([]model.BankPlayer, 0, len(l.state.Players))
	for _, p := range l.state.Players {
		players = append(players, *p)
	}
	slices.SortFunc(players, func(a, b model.BankPlayer) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return players
}

// History returns a copy of the full history, oldest first
func (l *Ledger) History() []model.LedgerEvent {
	return slices.Clone(l.state.History)
}

// HistoryFor returns one player's events, oldest first
func (l *Ledger) HistoryFor(id model.PlayerID) []model.LedgerEvent {
	var events []model.LedgerEvent
	for _, ev := range l.state.History {
		if ev.PlayerID == id {
			events = append(events, ev)
		}
	}
	return events
}

// IsUndone reports whether any applied undo targets the player's transaction at seq
func (l *Ledger) IsUndone(id model.PlayerID, seq int64) bool {
	return l.undoneSet()[model.EventID(id, seq)]
}

// undoneSet returns the ids of every transaction that has been reversed
func (l *Ledger) undoneSet() map[string]bool {
	undone := make(map[string]bool)
	for _, ev := range l.state.History {
		if ev.Kind == model.EventKindUndo {
			undone[model.EventID(ev.PlayerID, ev.TargetSeq)] = true
		}
	}
	return undone
}
