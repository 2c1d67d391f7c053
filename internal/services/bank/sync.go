package bank

import (
	"github.com/mcoot/tabletop-bank/internal/model"
)

// DefaultSyncHistoryLimit caps the condensed history carried by a sync payload
// so the barcode stays scannable
const DefaultSyncHistoryLimit = 20

// SyncFor builds the recovery payload for a player. Seq is one past the highest
// sequence number the bank has applied for the player, and History holds the
// most recent limit transactions and undos in chronological order.
func (l *Ledger) SyncFor(id model.PlayerID, limit int) (model.SyncPayload, error) {
	player, ok := l.state.Players[id]
	if !ok {
		return model.SyncPayload{}, model.ErrPlayerNotFound
	}
	if limit <= 0 {
		limit = DefaultSyncHistoryLimit
	}

	var maxSeq int64
	var tuples []model.HistoryTuple
	for _, ev := range l.state.History {
		if ev.PlayerID != id {
			continue
		}

		var t model.HistoryTuple
		switch ev.Kind {
		case model.EventKindTransact:
			t = model.HistoryTuple{Seq: ev.Seq, Kind: model.HistoryKindTransact, Value: *ev.Amount}
		case model.EventKindUndo:
			t = model.HistoryTuple{Seq: ev.Seq, Kind: model.HistoryKindUndo, Value: ev.TargetSeq}
		default:
			continue
		}
		t.Timestamp = ev.Timestamp.UnixMilli()
		tuples = append(tuples, t)
		maxSeq = max(maxSeq, ev.Seq)
	}

	if len(tuples) > limit {
		tuples = tuples[len(tuples)-limit:]
	}

	return model.SyncPayload{
		UUID:    player.ID,
		Name:    player.Name,
		Color:   player.Color,
		Seq:     maxSeq + 1,
		Balance: player.Balance,
		History: tuples,
	}, nil
}
