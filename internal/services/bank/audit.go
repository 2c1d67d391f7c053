package bank

import (
	"cmp"
	"slices"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// BalanceMismatch is a player whose stored balance disagrees with the history
type BalanceMismatch struct {
	PlayerID model.PlayerID `json:"player_id"`
	Name     string         `json:"name"`
	Stored   int64          `json:"stored"`
	Computed int64          `json:"computed"`
}

// AuditReport summarises a consistency check of the ledger
type AuditReport struct {
	Players     int               `json:"players"`
	Events      int               `json:"events"`
	Mismatches  []BalanceMismatch `json:"mismatches"`
	MissingKeys []string          `json:"missing_keys"`
}

// OK reports whether the audit found no problems
func (r AuditReport) OK() bool {
	return len(r.Mismatches) == 0 && len(r.MissingKeys) == 0
}

// Audit recomputes every balance from the initial registration amount plus all
// applied transactions and reversals, and checks every applied event is in the
// processed set
func (l *Ledger) Audit() AuditReport {
	report := AuditReport{
		Players:     len(l.state.Players),
		Events:      len(l.state.History),
		Mismatches:  []BalanceMismatch{},
		MissingKeys: []string{},
	}

	computed := make(map[model.PlayerID]int64, len(l.state.Players))
	for _, ev := range l.state.History {
		if ev.Amount == nil {
			continue
		}
		computed[ev.PlayerID] += *ev.Amount

		if ev.Kind == model.EventKindRegister {
			continue
		}
		if _, ok := l.state.Processed[ev.ID]; !ok {
			report.MissingKeys = append(report.MissingKeys, ev.ID)
		}
	}

	for id, p := range l.state.Players {
		if computed[id] != p.Balance {
			report.Mismatches = append(report.Mismatches, BalanceMismatch{
				PlayerID: id,
				Name:     p.Name,
				Stored:   p.Balance,
				Computed: computed[id],
			})
		}
	}
	slices.SortFunc(report.Mismatches, func(a, b BalanceMismatch) int {
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})

	return report
}
