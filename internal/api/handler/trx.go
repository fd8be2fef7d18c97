package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TrxHandler struct {
	trxs    *service.TrxService
	wallets *service.WalletService
}

func NewTrxHandler(trxs *service.TrxService, wallets *service.WalletService) *TrxHandler {
	return &TrxHandler{trxs: trxs, wallets: wallets}
}

// PostTransfer moves value between two wallets of the same asset.
func (h *TrxHandler) PostTransfer(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		GroupID          string          `json:"group_id"`
		SenderWalletID   string          `json:"sender_wallet_id"`
		ReceiverWalletID string          `json:"receiver_wallet_id"`
		Amount           decimal.Decimal `json:"amount"`
		Scope            string          `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	senderID, err := uuid.Parse(req.SenderWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid sender_wallet_id")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid receiver_wallet_id")
		return
	}

	groupID := uuid.New()
	if req.GroupID != "" {
		groupID, err = uuid.Parse(req.GroupID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-group-id", "Invalid group_id")
			return
		}
	}

	scope := req.Scope
	if scope == "" {
		scope = domain.ScopeTransfer
	}
	// System-only scopes cannot be posted by ordinary callers.
	if !isAdmin && scope != domain.ScopeTransfer {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	if !isAdmin {
		sender, err := h.wallets.Get(r.Context(), senderID)
		if err != nil {
			respondLedgerError(w, r, err, "wallet/read-failed", "Failed to authorize wallet access")
			return
		}
		if sender.AccountID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	trx, err := h.trxs.Post(r.Context(), service.TrxCmd{
		GroupID:          groupID,
		SenderWalletID:   senderID,
		ReceiverWalletID: receiverID,
		Amount:           req.Amount,
		Scope:            scope,
	})
	if err != nil {
		zap.L().Warn("post transfer failed", zap.Error(err), zap.String("sender_wallet_id", senderID.String()))
		respondLedgerError(w, r, err, "trx/post-failed", "Failed to post transaction")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(trx)
}

// GetGroup returns every trx sharing a group id.
func (h *TrxHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	if _, _, err := requestActor(r); err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-group-id", "Invalid group ID")
		return
	}

	trxs, err := h.trxs.GroupTrxs(r.Context(), groupID)
	if err != nil {
		respondLedgerError(w, r, err, "trx/read-failed", "Failed to get transactions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trxs)
}
