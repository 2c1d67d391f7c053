package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// Metrics holds the Prometheus metrics for both device roles
type Metrics struct {
	// Codec
	PayloadsDecoded *prometheus.CounterVec
	DecodeFailures  *prometheus.CounterVec

	// Bank ledger
	LedgerApplied  *prometheus.CounterVec
	LedgerRejected *prometheus.CounterVec
	LedgerPlayers  prometheus.Gauge
	LedgerEvents   prometheus.Gauge
	LedgerResets   prometheus.Counter
	SyncIssued     prometheus.Counter

	// Player wallet
	Reservations *prometheus.CounterVec

	// Persistence
	PersistDuration *prometheus.HistogramVec
	PersistErrors   *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to keep registrations isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PayloadsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_payloads_decoded_total",
			Help: "Scanned payloads decoded successfully",
		}, []string{"act"}),

		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_payload_decode_failures_total",
			Help: "Scanned payloads that failed to decode",
		}, []string{"kind"}),

		LedgerApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_ledger_applied_total",
			Help: "Payloads applied to the bank ledger",
		}, []string{"act"}),

		LedgerRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_ledger_rejected_total",
			Help: "Payloads rejected by the bank ledger",
		}, []string{"act", "reason"}),

		LedgerPlayers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tbank_ledger_players",
			Help: "Registered players on the bank",
		}),

		LedgerEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tbank_ledger_history_events",
			Help: "Events in the bank history",
		}),

		LedgerResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "tbank_ledger_resets_total",
			Help: "Full ledger resets",
		}),

		SyncIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tbank_sync_issued_total",
			Help: "Recovery sync payloads issued by the bank",
		}),

		Reservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_wallet_reservations_total",
			Help: "Wallet sequence reservations by outcome",
		}, []string{"kind", "result"}),

		PersistDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tbank_persist_duration_seconds",
			Help:    "Time to save a state blob",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"key"}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbank_persist_errors_total",
			Help: "Failed state blob saves",
		}, []string{"key"}),
	}
}

// RejectReason maps a ledger rejection to a bounded metric label
func RejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrAlreadyProcessed):
		return "duplicate"
	case errors.Is(err, model.ErrPlayerNotFound):
		return "unknown_player"
	case errors.Is(err, model.ErrUndoTargetNotFound):
		return "target_not_found"
	case errors.Is(err, model.ErrUndoTargetNotTransaction):
		return "target_not_transaction"
	case errors.Is(err, model.ErrSyncScannedByBank):
		return "sync_at_bank"
	case errors.Is(err, model.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, model.ErrAmountOutOfRange):
		return "amount_out_of_range"
	case errors.Is(err, model.ErrBalanceOverflow):
		return "balance_overflow"
	default:
		return "other"
	}
}
