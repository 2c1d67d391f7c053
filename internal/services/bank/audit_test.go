package bank

import (
	"github.com/mcoot/tabletop-bank/internal/model"
)

func (s *LedgerSuite) TestAuditCleanLedger() {
	s.register(alice, "Alice", 1000)
	s.register(bob, "Bob", 500)
	s.tx(alice, -250, 1)
	s.tx(bob, 250, 1)
	s.undo(alice, 1, 2)
	s.register(alice, "Ally", 0)

	report := s.ledger.Audit()

	s.True(report.OK())
	s.Equal(2, report.Players)
	s.Equal(6, report.Events)
	s.Empty(report.Mismatches)
	s.Empty(report.MissingKeys)
}

func (s *LedgerSuite) TestAuditDetectsTamperedBalance() {
	s.register(alice, "Alice", 1000)
	s.tx(alice, -250, 1)
	s.state.Players[alice].Balance = 5000

	report := s.ledger.Audit()

	s.False(report.OK())
	s.Require().Len(report.Mismatches, 1)
	s.Equal(BalanceMismatch{PlayerID: alice, Name: "Alice", Stored: 5000, Computed: 750}, report.Mismatches[0])
}

func (s *LedgerSuite) TestAuditDetectsMissingProcessedKey() {
	s.register(alice, "Alice", 1000)
	s.tx(alice, -250, 1)
	delete(s.state.Processed, model.EventID(alice, 1))

	report := s.ledger.Audit()

	s.False(report.OK())
	s.Equal([]string{"alice-uuid-1"}, report.MissingKeys)
}
