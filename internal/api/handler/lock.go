package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LockHandler struct {
	locks   *service.LockService
	wallets *service.WalletService
}

func NewLockHandler(locks *service.LockService, wallets *service.WalletService) *LockHandler {
	return &LockHandler{locks: locks, wallets: wallets}
}

// AcquireLock reserves part of a wallet's available balance until the release
// date.
func (h *LockHandler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		WalletID    string          `json:"wallet_id"`
		Amount      decimal.Decimal `json:"amount"`
		ReleaseDate time.Time       `json:"release_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet_id")
		return
	}

	wallet, err := h.wallets.Get(r.Context(), walletID)
	if err != nil {
		respondLedgerError(w, r, err, "wallet/read-failed", "Failed to authorize wallet access")
		return
	}
	if !isAdmin && wallet.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	lock, err := h.locks.Acquire(r.Context(), walletID, req.Amount, req.ReleaseDate)
	if err != nil {
		zap.L().Warn("acquire lock failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		respondLedgerError(w, r, err, "lock/acquire-failed", "Failed to acquire lock")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lock)
}

// ReleaseLock frees the lock. Releasing an already freed lock is a no-op.
func (h *LockHandler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	lockID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-lock-id", "Invalid lock ID")
		return
	}

	if !isAdmin {
		lock, err := h.locks.Get(r.Context(), lockID)
		if err != nil {
			respondLedgerError(w, r, err, "lock/read-failed", "Failed to authorize lock access")
			return
		}
		wallet, err := h.wallets.Get(r.Context(), lock.WalletID)
		if err != nil {
			respondLedgerError(w, r, err, "wallet/read-failed", "Failed to authorize lock access")
			return
		}
		if wallet.AccountID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	lock, err := h.locks.Release(r.Context(), lockID)
	if err != nil {
		respondLedgerError(w, r, err, "lock/release-failed", "Failed to release lock")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lock)
}

// GetLock returns one balance lock.
func (h *LockHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	lockID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-lock-id", "Invalid lock ID")
		return
	}

	lock, err := h.locks.Get(r.Context(), lockID)
	if err != nil {
		respondLedgerError(w, r, err, "lock/read-failed", "Failed to get lock")
		return
	}
	if !isAdmin {
		wallet, err := h.wallets.Get(r.Context(), lock.WalletID)
		if err != nil {
			respondLedgerError(w, r, err, "wallet/read-failed", "Failed to authorize lock access")
			return
		}
		if wallet.AccountID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lock)
}
