package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PrizeHandler struct {
	svc *service.PrizeService
}

func NewPrizeHandler(svc *service.PrizeService) *PrizeHandler {
	return &PrizeHandler{svc: svc}
}

// AwardPrize creates a prize once per (account, scope, variant). Admin only;
// awarding is driven by back-office jobs, not end users.
func (h *PrizeHandler) AwardPrize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string          `json:"account_id"`
		Scope     string          `json:"scope"`
		Variant   string          `json:"variant"`
		Amount    decimal.Decimal `json:"amount"`
		Symbol    string          `json:"symbol"`
		Fake      bool            `json:"fake"`
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

	prize, awarded, err := h.svc.Award(r.Context(), service.AwardCmd{
		AccountID: accountID,
		Scope:     req.Scope,
		Variant:   req.Variant,
		Amount:    req.Amount,
		Symbol:    req.Symbol,
		Fake:      req.Fake,
	})
	if err != nil {
		zap.L().Warn("award prize failed", zap.Error(err), zap.String("account_id", accountID.String()))
		respondLedgerError(w, r, err, "prize/award-failed", "Failed to award prize")
		return
	}

	status := http.StatusOK
	if awarded {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(prize)
}

// RedeemPrize marks a prize as claimed. Redeeming twice is a no-op.
func (h *PrizeHandler) RedeemPrize(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	prizeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-prize-id", "Invalid prize ID")
		return
	}

	if !isAdmin {
		existing, err := h.svc.Get(r.Context(), prizeID)
		if err != nil {
			respondLedgerError(w, r, err, "prize/read-failed", "Failed to authorize prize access")
			return
		}
		if existing.AccountID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	prize, err := h.svc.Redeem(r.Context(), prizeID)
	if err != nil {
		respondLedgerError(w, r, err, "prize/redeem-failed", "Failed to redeem prize")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prize)
}

// GetPrize returns one prize.
func (h *PrizeHandler) GetPrize(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	prizeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-prize-id", "Invalid prize ID")
		return
	}

	prize, err := h.svc.Get(r.Context(), prizeID)
	if err != nil {
		respondLedgerError(w, r, err, "prize/read-failed", "Failed to get prize")
		return
	}
	if !isAdmin && prize.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prize)
}
