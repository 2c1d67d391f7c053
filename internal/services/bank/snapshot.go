package bank

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mcoot/tabletop-bank/internal/model"
)

const snapshotVersion = 1

// snapshot is the persisted form of State
type snapshot struct {
	Version   int                 `json:"version"`
	Players   []model.BankPlayer  `json:"players"`
	Processed []string            `json:"processed"`
	History   []model.LedgerEvent `json:"history"`
}

// MarshalState serializes the state. Output is stable for equal states.
func MarshalState(s *State) ([]byte, error) {
	snap := snapshot{
		Version:   snapshotVersion,
		Players:   make([]model.BankPlayer, 0, len(s.Players)),
		Processed: make([]string, 0, len(s.Processed)),
		History:   s.History,
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, *p)
	}
	slices.SortFunc(snap.Players, func(a, b model.BankPlayer) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for key := range s.Processed {
		snap.Processed = append(snap.Processed, key)
	}
	slices.Sort(snap.Processed)
	if snap.History == nil {
		snap.History = []model.LedgerEvent{}
	}

	return json.Marshal(snap)
}

// UnmarshalState restores a state written by MarshalState
func UnmarshalState(data []byte) (*State, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported ledger snapshot version %d", snap.Version)
	}

	s := NewState()
	for _, p := range snap.Players {
		cp := p
		s.Players[p.ID] = &cp
	}
	for _, key := range snap.Processed {
		s.Processed[key] = struct{}{}
	}
	for i, ev := range snap.History {
		if ev.Kind != model.EventKindRegister && ev.Amount == nil {
			return nil, fmt.Errorf("ledger snapshot event %d (%s) has no amount", i, ev.ID)
		}
	}
	if snap.History != nil {
		s.History = snap.History
	}
	s.reindex()
	return s, nil
}
