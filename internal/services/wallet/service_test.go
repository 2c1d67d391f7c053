package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tabletop-bank/internal/dependencies/mocks"
	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/observability"
	"github.com/mcoot/tabletop-bank/internal/payload"
	"github.com/mcoot/tabletop-bank/internal/storage"
	"github.com/mcoot/tabletop-bank/internal/storage/memory"
	tu "github.com/mcoot/tabletop-bank/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	ids     *mocks.MockIDGenerator
	metrics *observability.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewTickingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Second)
	s.ids = mocks.NewMockIDGenerator()
	s.ids.Queue("p1")
	s.metrics = observability.NewMetrics(prometheus.NewRegistry())
	s.service = s.newService()
	s.ctx = context.Background()
}

func (s *ServiceSuite) newService() *Service {
	return New(s.storage, s.clock, s.ids, s.metrics, tu.NopLogger())
}

func (s *ServiceSuite) register() {
	_, _, err := s.service.Register(s.ctx, "Alice", "red", 1500)
	s.Require().NoError(err)
}

func (s *ServiceSuite) pay(amount int64) {
	r, _, err := s.service.BeginTransaction(s.ctx, amount)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Commit(s.ctx, r))
}

func (s *ServiceSuite) TestRegisterReturnsCode() {
	profile, text, err := s.service.Register(s.ctx, "Alice", "red", 1500)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), profile.ID)
	s.Equal(`{"act":"reg","uuid":"p1","name":"Alice","col":"red","bal":1500}`, text)

	again, err := s.service.RegistrationCode()
	s.Require().NoError(err)
	s.Equal(text, again)
}

func (s *ServiceSuite) TestNotRegistered() {
	_, err := s.service.Profile()
	s.ErrorIs(err, model.ErrNotRegistered)

	_, err = s.service.RegistrationCode()
	s.ErrorIs(err, model.ErrNotRegistered)

	_, _, err = s.service.BeginTransaction(s.ctx, 10)
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *ServiceSuite) TestReservationIsPersistedBeforeCommit() {
	s.register()

	r, text, err := s.service.BeginTransaction(s.ctx, -300)
	s.Require().NoError(err)
	s.Equal(`{"act":"tx","uuid":"p1","amt":-300,"seq":1}`, text)

	// A restart between showing the code and committing must not reissue seq 1
	restarted := s.newService()
	s.Require().NoError(restarted.Load(s.ctx))
	s.Equal(int64(2), restarted.State().CurrentSeq)
	s.Empty(restarted.History())

	s.Require().NoError(s.service.Commit(s.ctx, r))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reservations.WithLabelValues("transact", "reserved")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reservations.WithLabelValues("transact", "committed")))
}

func (s *ServiceSuite) TestCommitPersistsHistory() {
	s.register()
	s.pay(-300)

	restarted := s.newService()
	s.Require().NoError(restarted.Load(s.ctx))

	history := restarted.History()
	s.Require().Len(history, 1)
	s.Equal(int64(-300), history[0].Amount)
	s.True(history[0].Timestamp.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func (s *ServiceSuite) TestRollback() {
	s.register()

	r, _, err := s.service.BeginTransaction(s.ctx, 100)
	s.Require().NoError(err)
	s.service.Rollback(r)
	s.service.Rollback(r)

	s.Empty(s.service.History())
	s.Equal(int64(2), s.service.State().CurrentSeq)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reservations.WithLabelValues("transact", "rolled_back")))

	// Committing after rollback does nothing
	s.Require().NoError(s.service.Commit(s.ctx, r))
	s.Empty(s.service.History())
}

func (s *ServiceSuite) TestReserveSaveFailure() {
	s.register()
	s.storage.FailNextSet(errors.New("disk full"))

	_, _, err := s.service.BeginTransaction(s.ctx, 100)
	s.Error(err)
	s.Equal(int64(1), s.service.State().CurrentSeq)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PersistErrors.WithLabelValues(storage.WalletKey)))
}

func (s *ServiceSuite) TestCommitSaveFailureCanBeRetried() {
	s.register()
	r, _, err := s.service.BeginTransaction(s.ctx, 100)
	s.Require().NoError(err)

	s.storage.FailNextSet(errors.New("disk full"))
	s.Error(s.service.Commit(s.ctx, r))
	s.Empty(s.service.History())
	s.False(r.Settled())

	s.Require().NoError(s.service.Commit(s.ctx, r))
	s.Len(s.service.History(), 1)
}

func (s *ServiceSuite) TestUndo() {
	s.register()
	s.pay(500)
	s.pay(-200)

	r, text, err := s.service.BeginUndo(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(`{"act":"undo","uuid":"p1","tgt":2,"seq":3}`, text)
	s.Require().NoError(s.service.Commit(s.ctx, r))

	history := s.service.History()
	s.True(history[1].IsUndone)

	_, _, err = s.service.BeginUndo(s.ctx, 4)
	s.ErrorIs(err, model.ErrInvalidUndoTarget)
}

func (s *ServiceSuite) TestRecover() {
	sync := model.SyncPayload{
		UUID: "p1", Name: "Alice", Color: "red", Seq: 4, Balance: 1500,
		History: []model.HistoryTuple{
			{Seq: 1, Kind: model.HistoryKindTransact, Value: 500, Timestamp: 1700000000000},
			{Seq: 2, Kind: model.HistoryKindTransact, Value: -200, Timestamp: 1700000060000},
			{Seq: 3, Kind: model.HistoryKindUndo, Value: 2, Timestamp: 1700000120000},
		},
	}
	text, err := payload.Encode(sync)
	s.Require().NoError(err)

	profile, err := s.service.Recover(s.ctx, text)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), profile.ID)

	r, _, err := s.service.BeginTransaction(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(int64(4), r.Seq)

	restarted := s.newService()
	s.Require().NoError(restarted.Load(s.ctx))
	s.Len(restarted.History(), 3)
	s.Equal(int64(5), restarted.State().CurrentSeq)
}

func (s *ServiceSuite) TestRecoverRejectsOtherPayloads() {
	s.register()

	_, err := s.service.Recover(s.ctx, `{"act":"tx","uuid":"p1","amt":5,"seq":1}`)
	s.ErrorIs(err, model.ErrNotSyncPayload)

	_, err = s.service.Recover(s.ctx, `garbage`)
	s.ErrorIs(err, model.ErrInvalidFormat)

	p, err := s.service.Profile()
	s.Require().NoError(err)
	s.Equal("Alice", p.Name)
}

func (s *ServiceSuite) TestRecoverSaveFailureKeepsState() {
	s.register()
	s.pay(100)
	s.storage.FailNextSet(errors.New("disk full"))

	_, err := s.service.Recover(s.ctx, `{"act":"sync","uuid":"p2","name":"Bob","col":"blue","seq":9,"bal":0}`)
	s.Error(err)

	p, _ := s.service.Profile()
	s.Equal(model.PlayerID("p1"), p.ID)
	s.Len(s.service.History(), 1)
}

func (s *ServiceSuite) TestReset() {
	s.register()
	s.pay(100)

	s.Require().NoError(s.service.Reset(s.ctx))

	restarted := s.newService()
	s.Require().NoError(restarted.Load(s.ctx))
	_, err := restarted.Profile()
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *ServiceSuite) TestLoadCorruptBlob() {
	_ = s.storage.Set(s.ctx, storage.WalletKey, []byte(`{"version":7,"state":{}}`))
	s.Error(s.service.Load(s.ctx))
}

func (s *ServiceSuite) TestRecoverTakesNextSeqFromBank() {
	// The bank has applied up to seq 8; seqs 4 to 8 fell outside the window
	sync := model.SyncPayload{
		UUID: "p1", Name: "Alice", Color: "red", Seq: 9, Balance: 1500,
		History: []model.HistoryTuple{
			{Seq: 1, Kind: model.HistoryKindTransact, Value: 500, Timestamp: 1700000000000},
			{Seq: 2, Kind: model.HistoryKindTransact, Value: -200, Timestamp: 1700000060000},
			{Seq: 3, Kind: model.HistoryKindUndo, Value: 2, Timestamp: 1700000120000},
		},
	}
	text, err := payload.Encode(sync)
	s.Require().NoError(err)

	_, err = s.service.Recover(s.ctx, text)
	s.Require().NoError(err)
	s.Equal(int64(9), s.service.State().CurrentSeq)

	r, code, err := s.service.BeginTransaction(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(int64(9), r.Seq)
	s.Equal(`{"act":"tx","uuid":"p1","amt":10,"seq":9}`, code)
}

func (s *ServiceSuite) TestCommitAfterResetIsStale() {
	s.register()
	r, _, err := s.service.BeginTransaction(s.ctx, 10)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Reset(s.ctx))

	s.ErrorIs(s.service.Commit(s.ctx, r), model.ErrStaleReservation)
	s.True(r.Settled())
	s.False(r.Committed())
	s.Empty(s.service.History())

	// Once discarded the reservation is settled and further commits are no-ops
	s.NoError(s.service.Commit(s.ctx, r))
}

func (s *ServiceSuite) TestCommitAfterReRegistrationIsStale() {
	s.register()
	r, _, err := s.service.BeginTransaction(s.ctx, 10)
	s.Require().NoError(err)

	s.register()

	s.ErrorIs(s.service.Commit(s.ctx, r), model.ErrStaleReservation)
	s.Empty(s.service.History())
}

func (s *ServiceSuite) TestAmountsOutOfRange() {
	_, _, err := s.service.Register(s.ctx, "Alice", "red", model.MaxAmount+1)
	s.ErrorIs(err, model.ErrAmountOutOfRange)
	_, err = s.service.Profile()
	s.ErrorIs(err, model.ErrNotRegistered)

	s.register()
	_, _, err = s.service.BeginTransaction(s.ctx, -model.MaxAmount-1)
	s.ErrorIs(err, model.ErrAmountOutOfRange)
	s.Equal(int64(1), s.service.State().CurrentSeq)

	r, _, err := s.service.BeginTransaction(s.ctx, -model.MaxAmount)
	s.Require().NoError(err)
	s.Equal(int64(1), r.Seq)
}
