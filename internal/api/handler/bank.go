package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/tabletop-bank/internal/api/request"
	"github.com/mcoot/tabletop-bank/internal/api/response"
	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/services/bank"
)

// BankHandler handles ledger endpoints on the bank device
type BankHandler struct {
	bankService *bank.Service
}

// NewBankHandler creates a new bank handler
func NewBankHandler(bankService *bank.Service) *BankHandler {
	return &BankHandler{
		bankService: bankService,
	}
}

// Scan handles POST /api/v1/bank/scan
func (h *BankHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req request.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	outcome, err := h.bankService.Scan(r.Context(), req.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OutcomeFromModel(outcome))
}

// Players handles GET /api/v1/bank/players
func (h *BankHandler) Players(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.PlayersResponse{Players: h.bankService.Players()})
}

// Player handles GET /api/v1/bank/players/{id}
func (h *BankHandler) Player(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])

	player, err := h.bankService.Player(id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// Sync handles GET /api/v1/bank/players/{id}/sync
func (h *BankHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	p, code, err := h.bankService.Sync(id, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SyncResponse{
		Code:    code,
		NextSeq: p.Seq,
		Balance: p.Balance,
		History: len(p.History),
	})
}

// History handles GET /api/v1/bank/history
func (h *BankHandler) History(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(r.URL.Query().Get("player"))
	if id != "" {
		if _, err := h.bankService.Player(id); err != nil {
			WriteError(w, err)
			return
		}
	}

	response.JSON(w, http.StatusOK, response.HistoryResponse{Events: h.bankService.History(id)})
}

// Verify handles GET /api/v1/bank/verify
func (h *BankHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report := h.bankService.Audit()
	response.JSON(w, http.StatusOK, response.VerifyResponse{OK: report.OK(), AuditReport: report})
}

// Reset handles POST /api/v1/bank/reset
func (h *BankHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.bankService.Reset(r.Context()); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.StatusResponse{Status: "reset"})
}
