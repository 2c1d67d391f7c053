package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
	"github.com/mcoot/tabletop-bank/internal/dependencies/idgen"
	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/observability"
	"github.com/mcoot/tabletop-bank/internal/payload"
	"github.com/mcoot/tabletop-bank/internal/services/recovery"
	"github.com/mcoot/tabletop-bank/internal/storage"
)

// Service runs the wallet on a player device. Every change to the sequence
// counter or history is saved before the call returns; a failed save leaves
// the in-memory state as it was.
type Service struct {
	mu sync.Mutex

	storage   storage.Storage
	sequencer *Sequencer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a wallet service with an unregistered device. Call Load to
// restore persisted state.
func New(
	store storage.Storage,
	clk clock.Clock,
	ids idgen.Generator,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   store,
		sequencer: NewSequencer(model.NewWalletState(), clk, ids),
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "wallet")),
	}
}

// Load restores device state from storage. A missing blob means an
// unregistered device.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.storage.Get(ctx, storage.WalletKey)
	if err != nil {
		if errors.Is(err, model.ErrBlobNotFound) {
			return nil
		}
		return fmt.Errorf("load wallet: %w", err)
	}

	state, err := UnmarshalState(data)
	if err != nil {
		return err
	}
	s.sequencer.Replace(state)
	return nil
}

// Profile returns the device profile
func (s *Service) Profile() (model.PlayerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sequencer.Profile()
	if !ok {
		return model.PlayerProfile{}, model.ErrNotRegistered
	}
	return p, nil
}

// State returns a copy of the whole device state
func (s *Service) State() model.WalletState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sequencer.state.Clone()
}

// History returns the local history, newest first
func (s *Service) History() []model.WalletEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequencer.History()
}

// Register creates or replaces the device profile and returns the
// registration barcode text
func (s *Service) Register(ctx context.Context, name, color string, initialBalance int64) (model.PlayerProfile, string, error) {
	if !model.ValidAmount(initialBalance) {
		return model.PlayerProfile{}, "", model.ErrAmountOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.sequencer.checkpoint()
	profile := s.sequencer.Register(name, color, initialBalance)
	if err := s.save(ctx); err != nil {
		s.sequencer.restore(cp)
		return model.PlayerProfile{}, "", fmt.Errorf("persist registration: %w", err)
	}

	text, err := s.registrationCode()
	if err != nil {
		return model.PlayerProfile{}, "", err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(profile.ID)),
		slog.String("name", profile.Name))
	return profile, text, nil
}

// RegistrationCode renders the registration barcode text for the current profile
func (s *Service) RegistrationCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrationCode()
}

func (s *Service) registrationCode() (string, error) {
	p, err := s.sequencer.RegisterPayload()
	if err != nil {
		return "", err
	}
	return payload.Encode(p)
}

// BeginTransaction reserves a sequence number for a transfer and returns the
// reservation with its barcode text. The reservation must be passed to
// Commit or Rollback once the bank has scanned it (or not).
func (s *Service) BeginTransaction(ctx context.Context, amount int64) (*Reservation, string, error) {
	return s.begin(ctx, func() (*Reservation, error) {
		return s.sequencer.BeginTransaction(amount)
	})
}

// BeginUndo reserves a sequence number for reversing the transaction at targetSeq
func (s *Service) BeginUndo(ctx context.Context, targetSeq int64) (*Reservation, string, error) {
	return s.begin(ctx, func() (*Reservation, error) {
		return s.sequencer.BeginUndo(targetSeq)
	})
}

func (s *Service) begin(ctx context.Context, reserve func() (*Reservation, error)) (*Reservation, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.sequencer.checkpoint()
	r, err := reserve()
	if err != nil {
		return nil, "", err
	}

	text, err := payload.Encode(r.Payload)
	if err != nil {
		s.sequencer.restore(cp)
		return nil, "", err
	}

	if err := s.save(ctx); err != nil {
		s.sequencer.restore(cp)
		return nil, "", fmt.Errorf("persist reservation: %w", err)
	}

	s.metrics.Reservations.WithLabelValues(string(r.Kind()), "reserved").Inc()
	s.logger.Debug("sequence reserved",
		slog.String("kind", string(r.Kind())),
		slog.Int64("seq", r.Seq))
	return r, text, nil
}

// Commit records a reservation in the local history. Committing an already
// settled reservation is a no-op. A reservation taken before the device was
// re-registered, recovered or reset records nothing and returns
// model.ErrStaleReservation.
func (s *Service) Commit(ctx context.Context, r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Settled() && r.Stale() {
		r.Rollback()
		s.logger.Warn("discarded stale reservation", slog.Int64("seq", r.Seq))
		return model.ErrStaleReservation
	}

	cp := s.sequencer.checkpoint()
	if !r.Commit() {
		s.logger.Debug("ignored commit of settled reservation", slog.Int64("seq", r.Seq))
		return nil
	}

	if err := s.save(ctx); err != nil {
		s.sequencer.restore(cp)
		r.reopen()
		return fmt.Errorf("persist commit: %w", err)
	}

	s.metrics.Reservations.WithLabelValues(string(r.Kind()), "committed").Inc()
	s.logger.Info("reservation committed",
		slog.String("kind", string(r.Kind())),
		slog.Int64("seq", r.Seq))
	return nil
}

// Rollback abandons a reservation. Its sequence number is not reused.
func (s *Service) Rollback(r *Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Rollback() {
		return
	}
	s.metrics.Reservations.WithLabelValues(string(r.Kind()), "rolled_back").Inc()
	s.logger.Info("reservation rolled back",
		slog.String("kind", string(r.Kind())),
		slog.Int64("seq", r.Seq))
}

// Recover replaces the device state with the one carried by a bank sync
// barcode. Any other payload is rejected with model.ErrNotSyncPayload.
func (s *Service) Recover(ctx context.Context, text string) (model.PlayerProfile, error) {
	p, err := payload.Decode(text)
	if err != nil {
		return model.PlayerProfile{}, err
	}
	sp, ok := p.(model.SyncPayload)
	if !ok {
		return model.PlayerProfile{}, fmt.Errorf("%w: got %q", model.ErrNotSyncPayload, p.Action())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.sequencer.checkpoint()
	s.sequencer.Replace(recovery.Reconcile(sp))
	if err := s.save(ctx); err != nil {
		s.sequencer.restore(cp)
		return model.PlayerProfile{}, fmt.Errorf("persist recovery: %w", err)
	}

	profile, _ := s.sequencer.Profile()
	s.logger.Info("wallet recovered",
		slog.String("player_id", string(profile.ID)),
		slog.Int64("next_seq", s.sequencer.CurrentSeq()),
		slog.Int("history", len(sp.History)))
	return profile, nil
}

// Reset wipes the device back to unregistered
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.sequencer.checkpoint()
	s.sequencer.Reset()
	if err := s.save(ctx); err != nil {
		s.sequencer.restore(cp)
		return fmt.Errorf("persist wallet reset: %w", err)
	}
	s.logger.Warn("wallet reset")
	return nil
}

func (s *Service) save(ctx context.Context) error {
	data, err := MarshalState(s.sequencer.state)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.storage.Set(ctx, storage.WalletKey, data)
	s.metrics.PersistDuration.WithLabelValues(storage.WalletKey).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PersistErrors.WithLabelValues(storage.WalletKey).Inc()
		s.logger.Error("failed to save wallet", slog.String("error", err.Error()))
		return err
	}
	return nil
}
