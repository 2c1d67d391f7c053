package bank

import (
	"maps"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// State is the bank's complete ledger state. It is owned by whoever creates it
// and handed to a Ledger; nothing in this package keeps a global copy.
type State struct {
	Players   map[model.PlayerID]*model.BankPlayer
	Processed map[string]struct{}
	// History is in append order, oldest first
	History []model.LedgerEvent

	// index maps transaction and undo event ids to their History position
	index map[string]int
}

// NewState returns an empty ledger state
func NewState() *State {
	return &State{
		Players:   make(map[model.PlayerID]*model.BankPlayer),
		Processed: make(map[string]struct{}),
		History:   []model.LedgerEvent{},
		index:     make(map[string]int),
	}
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	c := &State{
		Players:   make(map[model.PlayerID]*model.BankPlayer, len(s.Players)),
		Processed: maps.Clone(s.Processed),
		History:   make([]model.LedgerEvent, len(s.History)),
		index:     maps.Clone(s.index),
	}
	for id, p := range s.Players {
		cp := *p
		c.Players[id] = &cp
	}
	// Events are immutable once appended, so sharing Amount pointers is safe
	copy(c.History, s.History)
	if c.Processed == nil {
		c.Processed = make(map[string]struct{})
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	return c
}

// restore replaces the contents of s with those of prev, in place, so that a
// Ledger holding s sees the restored state
func (s *State) restore(prev *State) {
	*s = *prev
}

// checkpoint records everything applying one payload for a player can change
type checkpoint struct {
	player model.PlayerID
	// prev is a copy of the player record, nil when the player did not exist
	prev    *model.BankPlayer
	history int
}

// checkpoint captures the state a single Apply for id may touch
func (s *State) checkpoint(id model.PlayerID) checkpoint {
	cp := checkpoint{player: id, history: len(s.History)}
	if p, ok := s.Players[id]; ok {
		prev := *p
		cp.prev = &prev
	}
	return cp
}

// rollback undoes an Apply taken after cp. Keys of the dropped events cannot
// have been processed before, since duplicates are rejected.
func (s *State) rollback(cp checkpoint) {
	for _, ev := range s.History[cp.history:] {
		if ev.Kind != model.EventKindRegister {
			delete(s.Processed, ev.ID)
			delete(s.index, ev.ID)
		}
	}
	s.History = s.History[:cp.history]

	if cp.prev == nil {
		delete(s.Players, cp.player)
		return
	}
	if p, ok := s.Players[cp.player]; ok {
		*p = *cp.prev
	}
}

// clear empties players, processed keys and history together
func (s *State) clear() {
	*s = *NewState()
}

// event looks up a transaction or undo event by id
func (s *State) event(id string) (model.LedgerEvent, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.LedgerEvent{}, false
	}
	return s.History[i], true
}

// appendEvent adds an event to the history, indexing it when it carries a sequence number
func (s *State) appendEvent(ev model.LedgerEvent) {
	s.History = append(s.History, ev)
	if ev.Kind != model.EventKindRegister {
		s.index[ev.ID] = len(s.History) - 1
	}
}

// reindex rebuilds the event index from History
func (s *State) reindex() {
	s.index = make(map[string]int, len(s.History))
	for i, ev := range s.History {
		if ev.Kind != model.EventKindRegister {
			s.index[ev.ID] = i
		}
	}
}
