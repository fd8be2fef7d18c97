package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/middleware"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AuthHandler struct {
	store *repository.Store
}

func NewAuthHandler(store *repository.Store) *AuthHandler {
	return &AuthHandler{store: store}
}

// Login issues a JWT for a known account. Accounts authenticate upstream; the
// engine only needs a signed account identity.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
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

	account, err := h.store.Queries().GetAccount(r.Context(), accountID)
	if err != nil {
		respondLedgerError(w, r, err, "account/read-failed", "Account not found")
		return
	}

	role := "user"
	if account.Type == domain.AccountTypeSystem {
		role = "admin"
	}

	claims := jwt.MapClaims{
		"account_id": accountID.String(),
		"role":       role,
		"sub":        accountID.String(),
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
	}
	if iss := middleware.JWTIssuer(); iss != "" {
		claims["iss"] = iss
	}
	if aud := middleware.JWTAudience(); aud != "" {
		claims["aud"] = aud
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/sign-failed", "Failed to sign token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token": tokenString,
	})
}
