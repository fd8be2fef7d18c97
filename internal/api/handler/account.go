package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccountHandler struct {
	store     *repository.Store
	referrals *service.ReferralService
}

func NewAccountHandler(store *repository.Store, referrals *service.ReferralService) *AccountHandler {
	return &AccountHandler{store: store, referrals: referrals}
}

// CreateAccount registers an ordinary account, optionally linked to a
// referral code at signup.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferralCode string `json:"referral_code"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
			return
		}
	}

	account := &models.Account{
		ID:   uuid.New(),
		Type: domain.AccountTypeOrdinary,
	}
	if req.ReferralCode != "" {
		referral, err := h.referrals.GetByCode(r.Context(), req.ReferralCode)
		if err != nil {
			respondLedgerError(w, r, err, "referral/lookup-failed", "Failed to resolve referral code")
			return
		}
		account.ReferredBy = &referral.ID
	}

	if err := h.store.Queries().CreateAccount(r.Context(), account); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/create-failed", "Failed to create account")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}
	if !isAdmin && accountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	account, err := h.store.Queries().GetAccount(r.Context(), accountID)
	if err != nil {
		respondLedgerError(w, r, err, "account/read-failed", "Failed to get account")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
