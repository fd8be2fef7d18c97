package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	svc *service.ReferralService
}

func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// CreateReferral issues a referral code for the authenticated account.
func (h *ReferralHandler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		OwnerAccountID string `json:"owner_account_id"`
		SharePercent   int32  `json:"share_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	ownerID := actorID
	if req.OwnerAccountID != "" {
		ownerID, err = uuid.Parse(req.OwnerAccountID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid owner_account_id")
			return
		}
	}
	if !isAdmin && ownerID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	referral, err := h.svc.Create(r.Context(), ownerID, req.SharePercent)
	if err != nil {
		zap.L().Warn("create referral failed", zap.Error(err), zap.String("owner_account_id", ownerID.String()))
		respondLedgerError(w, r, err, "referral/create-failed", "Failed to create referral")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(referral)
}

// SetShare updates the owner's percentage of the returned commission pool.
func (h *ReferralHandler) SetShare(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	referralID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-referral-id", "Invalid referral ID")
		return
	}

	var req struct {
		SharePercent int32 `json:"share_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	if !isAdmin {
		current, err := h.svc.Get(r.Context(), referralID)
		if err != nil {
			respondLedgerError(w, r, err, "referral/read-failed", "Failed to authorize referral access")
			return
		}
		if current.OwnerAccountID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	referral, err := h.svc.SetShare(r.Context(), referralID, req.SharePercent)
	if err != nil {
		respondLedgerError(w, r, err, "referral/update-failed", "Failed to update referral share")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(referral)
}

// GetReferral resolves a referral code.
func (h *ReferralHandler) GetReferral(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-referral-code", "Referral code is required")
		return
	}

	referral, err := h.svc.GetByCode(r.Context(), code)
	if err != nil {
		respondLedgerError(w, r, err, "referral/read-failed", "Failed to get referral")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(referral)
}

// ApplyReferral links the authenticated account to a referral code.
func (h *ReferralHandler) ApplyReferral(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	referral, err := h.svc.Apply(r.Context(), actorID, req.Code)
	if err != nil {
		respondLedgerError(w, r, err, "referral/apply-failed", "Failed to apply referral code")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(referral)
}
