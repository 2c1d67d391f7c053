package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/services/wallet"
)

// IntegrationSuite drives a bank device and a player device the way the
// table does: the player shows a code, the bank scans it, the player
// commits or rolls back depending on whether the scan went through.
type IntegrationSuite struct {
	suite.Suite
	bank   *TestApp
	player *TestApp
	ctx    context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.bank = NewTestApp()
	s.player = NewTestApp()
	s.player.MockIDs.Queue("alice-device")
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.bank.Close())
	s.NoError(s.player.Close())
}

func (s *IntegrationSuite) scan(code string) model.Outcome {
	out, err := s.bank.Bank.Scan(s.ctx, code)
	s.Require().NoError(err)
	return out
}

// show reserves a code on the player device, has the bank scan it and
// commits when the bank accepted it
func (s *IntegrationSuite) show(begin func() (*wallet.Reservation, string, error)) model.Outcome {
	r, code, err := begin()
	s.Require().NoError(err)

	out := s.scan(code)
	if out.Applied {
		s.Require().NoError(s.player.Wallet.Commit(s.ctx, r))
	} else {
		s.player.Wallet.Rollback(r)
	}
	return out
}

func (s *IntegrationSuite) pay(amount int64) model.Outcome {
	return s.show(func() (*wallet.Reservation, string, error) {
		return s.player.Wallet.BeginTransaction(s.ctx, -amount)
	})
}

func (s *IntegrationSuite) undo(target int64) model.Outcome {
	return s.show(func() (*wallet.Reservation, string, error) {
		return s.player.Wallet.BeginUndo(s.ctx, target)
	})
}

func (s *IntegrationSuite) balance() int64 {
	p, err := s.bank.Bank.Player("alice-device")
	s.Require().NoError(err)
	return p.Balance
}

func (s *IntegrationSuite) registerAlice() {
	_, code, err := s.player.Wallet.Register(s.ctx, "Alice", "red", 1500)
	s.Require().NoError(err)
	out := s.scan(code)
	s.Require().True(out.Applied)
	s.Equal("Alice registered with initial balance 1500", out.Message)
}

func (s *IntegrationSuite) TestPayReplayAndUndo() {
	s.registerAlice()

	// Pay 300 at seq 1
	r, code, err := s.player.Wallet.BeginTransaction(s.ctx, -300)
	s.Require().NoError(err)
	out := s.scan(code)
	s.True(out.Applied)
	s.Equal("Alice paid 300", out.Message)
	s.Require().NoError(s.player.Wallet.Commit(s.ctx, r))
	s.Equal(int64(1200), s.balance())

	// The same code scanned twice is rejected
	out = s.scan(code)
	s.False(out.Applied)
	s.ErrorIs(out.Err, model.ErrAlreadyProcessed)
	s.Equal(int64(1200), s.balance())

	// Undo seq 1 at seq 2
	out = s.undo(1)
	s.True(out.Applied)
	s.Equal(int64(300), *out.Event.Amount)
	s.Equal(int64(1500), s.balance())
	s.True(s.player.Wallet.History()[1].IsUndone)

	// Undoing the undo is refused by the bank and rolled back on the device
	out = s.undo(2)
	s.False(out.Applied)
	s.ErrorIs(out.Err, model.ErrUndoTargetNotTransaction)
	s.Equal(int64(1500), s.balance())
	s.Len(s.player.Wallet.History(), 2)

	// The rolled back seq 3 is never reused; the bank accepts the gap
	out = s.pay(100)
	s.True(out.Applied)
	s.Equal(int64(4), out.Event.Seq)
	s.Equal(int64(1400), s.balance())

	s.True(s.bank.Bank.Audit().OK())
}

func (s *IntegrationSuite) TestTransactBeforeRegistrationScan() {
	_, _, err := s.player.Wallet.Register(s.ctx, "Alice", "red", 1500)
	s.Require().NoError(err)

	out := s.pay(50)
	s.False(out.Applied)
	s.Equal("player not found, register first", out.Message)
	s.Empty(s.player.Wallet.History())
}

func (s *IntegrationSuite) TestRecoverLostDevice() {
	s.registerAlice()
	s.pay(300)
	s.show(func() (*wallet.Reservation, string, error) {
		return s.player.Wallet.BeginTransaction(s.ctx, 500)
	})
	s.undo(1)
	s.Equal(int64(2000), s.balance())

	// The bank refuses to scan its own sync codes
	_, syncCode, err := s.bank.Bank.Sync("alice-device", 0)
	s.Require().NoError(err)
	out := s.scan(syncCode)
	s.False(out.Applied)
	s.ErrorIs(out.Err, model.ErrSyncScannedByBank)

	// A wiped device restores from the sync code
	fresh := NewTestApp()
	defer func() { s.NoError(fresh.Close()) }()

	profile, err := fresh.Wallet.Recover(s.ctx, syncCode)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("alice-device"), profile.ID)
	s.Equal("Alice", profile.Name)

	history := fresh.Wallet.History()
	s.Require().Len(history, 3)
	s.Equal(model.WalletEntryUndo, history[0].Kind)
	s.True(history[2].IsUndone)
	s.False(history[1].IsUndone)

	// Sequencing continues after the last seq the bank saw
	r, code, err := fresh.Wallet.BeginTransaction(s.ctx, -100)
	s.Require().NoError(err)
	s.Equal(int64(4), r.Seq)
	out = s.scan(code)
	s.True(out.Applied)
	s.Require().NoError(fresh.Wallet.Commit(s.ctx, r))
	s.Equal(int64(1900), s.balance())
}

func (s *IntegrationSuite) TestReRegistrationUpdatesProfile() {
	s.registerAlice()
	s.pay(200)

	_, code, err := s.player.Wallet.Register(s.ctx, "Alice B", "blue", 9999)
	s.Require().NoError(err)
	out := s.scan(code)
	s.True(out.Applied)
	s.Equal("Alice B profile updated", out.Message)

	p, err := s.bank.Bank.Player("alice-device")
	s.Require().NoError(err)
	s.Equal("Alice B", p.Name)
	s.Equal(int64(1300), p.Balance)

	// Re-registration restarts the device at seq 1, which the bank has seen
	out = s.pay(10)
	s.ErrorIs(out.Err, model.ErrAlreadyProcessed)

	// A sync from the bank puts the device back in step
	_, syncCode, err := s.bank.Bank.Sync("alice-device", 0)
	s.Require().NoError(err)
	_, err = s.player.Wallet.Recover(s.ctx, syncCode)
	s.Require().NoError(err)

	out = s.pay(10)
	s.True(out.Applied)
	s.Equal(int64(1290), s.balance())
}

func (s *IntegrationSuite) TestBankStatePersistsAcrossRestart() {
	s.registerAlice()
	s.pay(300)

	s.Require().NoError(s.bank.Bank.Load(s.ctx))
	s.Equal(int64(1200), s.balance())

	history := s.bank.Bank.History("")
	s.Require().Len(history, 2)
	s.Equal(model.EventKindTransact, history[0].Kind)
}
