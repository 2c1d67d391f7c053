package bank

import (
	"fmt"

	"github.com/mcoot/tabletop-bank/internal/model"
)

func (s *LedgerSuite) TestSyncForUnknownPlayer() {
	_, err := s.ledger.SyncFor(alice, 0)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *LedgerSuite) TestSyncForFreshPlayer() {
	s.register(alice, "Alice", 1500)

	p, err := s.ledger.SyncFor(alice, 0)
	s.Require().NoError(err)

	s.Equal(model.SyncPayload{UUID: alice, Name: "Alice", Color: "red", Seq: 1, Balance: 1500}, p)
}

func (s *LedgerSuite) TestSyncForCondensesHistory() {
	s.register(alice, "Alice", 1000)
	s.register(bob, "Bob", 1000)
	s.tx(alice, 500, 1)
	s.tx(bob, 1, 1)
	s.tx(alice, -200, 2)
	s.undo(alice, 2, 3)

	p, err := s.ledger.SyncFor(alice, 0)
	s.Require().NoError(err)

	s.Equal(int64(4), p.Seq)
	s.Equal(int64(1500), p.Balance)
	s.Require().Len(p.History, 3)
	s.Equal(model.HistoryTuple{Seq: 1, Kind: model.HistoryKindTransact, Value: 500, Timestamp: s.state.History[2].Timestamp.UnixMilli()}, p.History[0])
	s.Equal(model.HistoryKindTransact, p.History[1].Kind)
	s.Equal(int64(-200), p.History[1].Value)
	s.Equal(model.HistoryTuple{Seq: 3, Kind: model.HistoryKindUndo, Value: 2, Timestamp: s.state.History[5].Timestamp.UnixMilli()}, p.History[2])
}

func (s *LedgerSuite) TestSyncForKeepsLatestEntries() {
	s.register(alice, "Alice", 0)
	for seq := int64(1); seq <= 30; seq++ {
		s.Require().True(s.tx(alice, seq, seq).Applied, fmt.Sprintf("seq %d", seq))
	}

	p, err := s.ledger.SyncFor(alice, 0)
	s.Require().NoError(err)

	s.Len(p.History, DefaultSyncHistoryLimit)
	s.Equal(int64(11), p.History[0].Seq)
	s.Equal(int64(30), p.History[DefaultSyncHistoryLimit-1].Seq)
	s.Equal(int64(31), p.Seq)

	small, err := s.ledger.SyncFor(alice, 5)
	s.Require().NoError(err)
	s.Len(small.History, 5)
	s.Equal(int64(26), small.History[0].Seq)
}

func (s *LedgerSuite) TestSyncNextSeqUsesHighestSeqSeen() {
	s.register(alice, "Alice", 0)
	// Seqs 2 and 3 were rolled back on the device and never reached the bank
	s.tx(alice, 10, 1)
	s.tx(alice, 10, 4)

	p, err := s.ledger.SyncFor(alice, 0)
	s.Require().NoError(err)
	s.Equal(int64(5), p.Seq)
}
