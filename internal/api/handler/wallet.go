package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// CreateWallet gets or creates the wallet for (account, asset). Repeating the
// call returns the existing wallet.
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
		Symbol    string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account_id")
		return
	}
	if !isAdmin && accountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	wallet, err := h.svc.GetOrCreate(r.Context(), accountID, req.Symbol)
	if err != nil {
		zap.L().Error("create wallet failed", zap.Error(err), zap.String("account_id", accountID.String()))
		respondLedgerError(w, r, err, "wallet/create-failed", "Failed to create wallet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wallet)
}

// GetBalance reports the total and available balance of one wallet.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	balances, err := h.svc.AvailableBalance(r.Context(), walletID)
	if err != nil {
		respondLedgerError(w, r, err, "wallet/balance-read-failed", "Failed to get balance")
		return
	}
	if !isAdmin && balances.Wallet.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balances)
}

// GetStatement returns the wallet's trx history, newest first.
func (h *WalletHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	wallet, err := h.svc.Get(r.Context(), walletID)
	if err != nil {
		respondLedgerError(w, r, err, "wallet/read-failed", "Failed to authorize wallet access")
		return
	}
	if !isAdmin && wallet.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.svc.Statement(r.Context(), walletID, int32(page), int32(pageSize))
	if err != nil {
		zap.L().Error("get statement failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/statement-read-failed", "Failed to get statement")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
