package recovery

import (
	"time"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// Reconcile rebuilds a player device's state from a bank sync payload.
// The next sequence number is taken from the payload as is, never derived
// from the history, so gaps and truncated history are preserved.
func Reconcile(p model.SyncPayload) *model.WalletState {
	undone := make(map[int64]bool)
	for _, t := range p.History {
		if t.Kind == model.HistoryKindUndo {
			undone[t.Value] = true
		}
	}

	// Tuples arrive oldest first; wallet history is kept newest first.
	// Tuples of an unknown kind are skipped.
	history := make([]model.WalletEntry, 0, len(p.History))
	for _, t := range p.History {
		entry := model.WalletEntry{
			Seq:       t.Seq,
			Timestamp: time.UnixMilli(t.Timestamp).UTC(),
		}
		switch t.Kind {
		case model.HistoryKindTransact:
			entry.Kind = model.WalletEntryTransact
			entry.Amount = t.Value
			entry.IsUndone = undone[t.Seq]
		case model.HistoryKindUndo:
			entry.Kind = model.WalletEntryUndo
			entry.TargetSeq = t.Value
		default:
			continue
		}
		history = append([]model.WalletEntry{entry}, history...)
	}

	return &model.WalletState{
		Profile: &model.PlayerProfile{
			ID:             p.UUID,
			Name:           p.Name,
			Color:          p.Color,
			InitialBalance: p.Balance,
		},
		CurrentSeq: p.Seq,
		History:    history,
	}
}
