package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/observability"
	"github.com/mcoot/tabletop-bank/internal/payload"
	"github.com/mcoot/tabletop-bank/internal/storage"
)

// Publisher receives ledger changes after they have been persisted
type Publisher interface {
	PublishEvent(event model.LedgerEvent)
	PublishReset()
}

// Config holds configuration for the bank service
type Config struct {
	// SyncHistoryLimit caps history entries in sync payloads (0 uses the default)
	SyncHistoryLimit int
}

// HistoryEntry is a ledger event annotated for display
type HistoryEntry struct {
	model.LedgerEvent
	Undone bool `json:"undone"`
}

// Service runs the ledger on the bank device. It loads state from storage,
// saves after every change and rolls back in memory if the save fails.
type Service struct {
	mu sync.Mutex

	storage   storage.Storage
	state     *State
	ledger    *Ledger
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	syncLimit int
}

// New creates a bank service with an empty ledger. Call Load to restore persisted state.
// publisher may be nil.
func New(
	store storage.Storage,
	clk clock.Clock,
	metrics *observability.Metrics,
	publisher Publisher,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.SyncHistoryLimit <= 0 {
		cfg.SyncHistoryLimit = DefaultSyncHistoryLimit
	}
	state := NewState()
	return &Service{
		storage:   store,
		state:     state,
		ledger:    NewLedger(state, clk),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "bank")),
		syncLimit: cfg.SyncHistoryLimit,
	}
}

// Load restores the ledger from storage. A missing blob means a fresh bank.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.storage.Get(ctx, storage.BankKey)
	if err != nil {
		if errors.Is(err, model.ErrBlobNotFound) {
			s.logger.Info("no saved ledger, starting empty")
			return nil
		}
		return fmt.Errorf("load ledger: %w", err)
	}

	loaded, err := UnmarshalState(data)
	if err != nil {
		return err
	}
	s.state.restore(loaded)
	s.updateGauges()

	s.logger.Info("ledger loaded",
		slog.Int("players", len(s.state.Players)),
		slog.Int("events", len(s.state.History)))
	return nil
}

// Scan decodes scanned barcode text and applies it.
// A decode failure is returned as a *payload.DecodeError.
func (s *Service) Scan(ctx context.Context, text string) (model.Outcome, error) {
	p, err := payload.Decode(text)
	if err != nil {
		var de *payload.DecodeError
		kind := "unknown"
		if errors.As(err, &de) {
			kind = de.Kind.String()
		}
		s.metrics.DecodeFailures.WithLabelValues(kind).Inc()
		s.logger.Info("scan rejected", slog.String("error", err.Error()))
		return model.Outcome{}, err
	}
	s.metrics.PayloadsDecoded.WithLabelValues(string(p.Action())).Inc()

	return s.Apply(ctx, p)
}

// Apply applies a decoded payload and persists the result.
// An error is returned only when persistence fails, in which case the ledger
// is left exactly as it was before the call.
func (s *Service) Apply(ctx context.Context, p model.Payload) (model.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act := actionLabel(p)
	cp := s.state.checkpoint(model.PlayerID(playerOf(p)))
	outcome := s.ledger.Apply(p)

	if !outcome.Applied {
		s.metrics.LedgerRejected.WithLabelValues(act, observability.RejectReason(outcome.Err)).Inc()
		s.logger.Info("payload rejected",
			slog.String("act", act),
			slog.String("player_id", playerOf(p)),
			slog.String("reason", outcome.Message))
		return outcome, nil
	}

	if err := s.save(ctx); err != nil {
		s.state.rollback(cp)
		return model.Outcome{}, fmt.Errorf("persist ledger: %w", err)
	}

	s.metrics.LedgerApplied.WithLabelValues(act).Inc()
	s.updateGauges()
	s.logger.Info("payload applied",
		slog.String("act", act),
		slog.String("event_id", outcome.Event.ID),
		slog.String("player_id", string(outcome.Event.PlayerID)),
		slog.String("message", outcome.Message))

	if s.publisher != nil {
		s.publisher.PublishEvent(*outcome.Event)
	}
	return outcome, nil
}

// Reset wipes the ledger and persists the empty state
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// clear swaps in fresh maps, so a shallow copy keeps the old contents intact
	prev := *s.state
	s.ledger.Reset()

	if err := s.save(ctx); err != nil {
		s.state.restore(&prev)
		return fmt.Errorf("persist ledger reset: %w", err)
	}

	s.metrics.LedgerResets.Inc()
	s.updateGauges()
	s.logger.Warn("ledger reset",
		slog.Int("players_cleared", len(prev.Players)),
		slog.Int("events_cleared", len(prev.History)))

	if s.publisher != nil {
		s.publisher.PublishReset()
	}
	return nil
}

// Player returns one player's record
func (s *Service) Player(id model.PlayerID) (model.BankPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ledger.Player(id)
	if !ok {
		return model.BankPlayer{}, model.ErrPlayerNotFound
	}
	return p, nil
}

// Players returns all players ordered by name
func (s *Service) Players() []model.BankPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Players()
}

// History returns events newest first, optionally filtered to one player
func (s *Service) History(id model.PlayerID) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.ledger.History()
	if id != "" {
		events = s.ledger.HistoryFor(id)
	}
	undone := s.ledger.undoneSet()

	entries := make([]HistoryEntry, 0, len(events))
	for _, ev := range slices.Backward(events) {
		entries = append(entries, HistoryEntry{
			LedgerEvent: ev,
			Undone:      ev.Kind == model.EventKindTransact && undone[ev.ID],
		})
	}
	return entries
}

// Sync builds a recovery payload for a player and its encoded barcode text.
// limit <= 0 uses the configured default.
func (s *Service) Sync(id model.PlayerID, limit int) (model.SyncPayload, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = s.syncLimit
	}
	p, err := s.ledger.SyncFor(id, limit)
	if err != nil {
		return model.SyncPayload{}, "", err
	}

	text, err := payload.Encode(p)
	if err != nil {
		return model.SyncPayload{}, "", err
	}

	s.metrics.SyncIssued.Inc()
	s.logger.Info("sync issued",
		slog.String("player_id", string(id)),
		slog.Int64("next_seq", p.Seq),
		slog.Int("history", len(p.History)))
	return p, text, nil
}

// Audit checks every balance against the history
func (s *Service) Audit() AuditReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.ledger.Audit()
	if !report.OK() {
		s.logger.Error("ledger audit failed",
			slog.Int("mismatches", len(report.Mismatches)),
			slog.Int("missing_keys", len(report.MissingKeys)))
	}
	return report
}

func (s *Service) save(ctx context.Context) error {
	data, err := MarshalState(s.state)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.storage.Set(ctx, storage.BankKey, data)
	s.metrics.PersistDuration.WithLabelValues(storage.BankKey).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PersistErrors.WithLabelValues(storage.BankKey).Inc()
		s.logger.Error("failed to save ledger", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *Service) updateGauges() {
	s.metrics.LedgerPlayers.Set(float64(len(s.state.Players)))
	s.metrics.LedgerEvents.Set(float64(len(s.state.History)))
}

func actionLabel(p model.Payload) string {
	if p == nil {
		return "none"
	}
	return string(p.Action())
}

func playerOf(p model.Payload) string {
	if p == nil {
		return ""
	}
	return string(p.Player())
}
