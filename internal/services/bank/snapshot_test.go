package bank

import (
	"github.com/mcoot/tabletop-bank/internal/model"
)

func (s *LedgerSuite) TestSnapshotRoundTrip() {
	s.register(alice, "Alice", 1000)
	s.register(bob, "Bob", 500)
	s.tx(alice, -250, 1)
	s.undo(alice, 1, 2)

	data, err := MarshalState(s.state)
	s.Require().NoError(err)

	restored, err := UnmarshalState(data)
	s.Require().NoError(err)

	s.Equal(len(s.state.History), len(restored.History))
	s.Equal(s.state.Processed, restored.Processed)
	s.Equal(*s.state.Players[alice], *restored.Players[alice])
	s.Equal(*s.state.Players[bob], *restored.Players[bob])
	for i := range s.state.History {
		s.Equal(s.state.History[i].ID, restored.History[i].ID)
		s.True(s.state.History[i].Timestamp.Equal(restored.History[i].Timestamp))
	}

	// The rebuilt index lets undo find earlier transactions again
	ledger := NewLedger(restored, s.clock)
	s.ErrorIs(ledger.Apply(model.UndoPayload{UUID: alice, TargetSeq: 2, Seq: 3}).Err, model.ErrUndoTargetNotTransaction)
	s.ErrorIs(ledger.Apply(model.TransactPayload{UUID: alice, Amount: 1, Seq: 1}).Err, model.ErrAlreadyProcessed)
	s.True(ledger.Apply(model.UndoPayload{UUID: alice, TargetSeq: 1, Seq: 3}).Applied)
}

func (s *LedgerSuite) TestSnapshotIsStable() {
	s.register(bob, "Bob", 1)
	s.register(alice, "Alice", 2)
	s.tx(alice, 1, 1)
	s.tx(bob, 1, 1)

	first, err := MarshalState(s.state)
	s.Require().NoError(err)
	second, err := MarshalState(s.state.Clone())
	s.Require().NoError(err)

	s.Equal(string(first), string(second))
}

func (s *LedgerSuite) TestUnmarshalStateRejectsGarbage() {
	_, err := UnmarshalState([]byte("not json"))
	s.Error(err)

	_, err = UnmarshalState([]byte(`{"version":99}`))
	s.ErrorContains(err, "version 99")
}

func (s *LedgerSuite) TestUnmarshalStateRejectsEventWithoutAmount() {
	for _, kind := range []string{"transact", "undo"} {
		data := `{"version":1,"players":[{"id":"alice-uuid","name":"Alice","color":"red","balance":0}],` +
			`"processed":["alice-uuid-1"],"history":[{"id":"alice-uuid-1","seq":1,` +
			`"timestamp":"2024-01-01T12:00:00Z","player_id":"alice-uuid","player_name":"Alice",` +
			`"kind":"` + kind + `","message":"x"}]}`

		_, err := UnmarshalState([]byte(data))
		s.ErrorContains(err, "has no amount", kind)
	}

	// Registration events of a known player carry no amount and load fine
	_, err := UnmarshalState([]byte(`{"version":1,"players":[],"processed":[],"history":[` +
		`{"id":"reg","timestamp":"2024-01-01T12:00:00Z","player_id":"alice-uuid","player_name":"Alice",` +
		`"kind":"register","message":"Alice profile updated"}]}`))
	s.NoError(err)
}

func (s *LedgerSuite) TestUnmarshalEmptyState() {
	data, err := MarshalState(NewState())
	s.Require().NoError(err)
	s.JSONEq(`{"version":1,"players":[],"processed":[],"history":[]}`, string(data))

	restored, err := UnmarshalState(data)
	s.Require().NoError(err)
	s.Empty(restored.Players)
	s.NotNil(restored.History)
}
