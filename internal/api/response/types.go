package response

import (
	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/observability"
	"github.com/mcoot/tabletop-bank/internal/services/bank"
)

// Outcome is the result of a scan
type Outcome struct {
	Applied bool               `json:"applied"`
	Message string             `json:"message"`
	Reason  string             `json:"reason,omitempty"`
	Event   *model.LedgerEvent `json:"event,omitempty"`
}

// OutcomeFromModel converts a ledger outcome for the API
func OutcomeFromModel(o model.Outcome) Outcome {
	out := Outcome{Applied: o.Applied, Message: o.Message, Event: o.Event}
	if !o.Applied {
		out.Reason = observability.RejectReason(o.Err)
	}
	return out
}

// PlayersResponse lists players on the bank
type PlayersResponse struct {
	Players []model.BankPlayer `json:"players"`
}

// HistoryResponse lists ledger events, newest first
type HistoryResponse struct {
	Events []bank.HistoryEntry `json:"events"`
}

// SyncResponse carries an encoded recovery barcode
type SyncResponse struct {
	Code    string `json:"code"`
	NextSeq int64  `json:"next_seq"`
	Balance int64  `json:"balance"`
	History int    `json:"history"`
}

// VerifyResponse reports the ledger audit
type VerifyResponse struct {
	OK bool `json:"ok"`
	bank.AuditReport
}

// StatusResponse is a generic acknowledgement
type StatusResponse struct {
	Status string `json:"status"`
}
