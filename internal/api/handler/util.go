package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/middleware"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/problem"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		return uuid.Nil, false, errors.New("missing account in auth context")
	}

	actorID, err := uuid.Parse(accountID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid account_id in auth context")
	}

	return actorID, middleware.RoleFromContext(r.Context()) == "admin", nil
}

// mapLedgerError translates service sentinels into problem responses.
func mapLedgerError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "resource/not-found", "resource not found", true
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "ledger/insufficient-balance", "insufficient available balance", true
	case errors.Is(err, models.ErrInvalidAmount):
		return http.StatusBadRequest, "request/invalid-amount", err.Error(), true
	case errors.Is(err, models.ErrSameWallet):
		return http.StatusBadRequest, "ledger/same-wallet", "sender and receiver wallets must differ", true
	case errors.Is(err, models.ErrAssetMismatch):
		return http.StatusBadRequest, "ledger/asset-mismatch", "wallets hold different assets", true
	case errors.Is(err, models.ErrLockAlreadyFreed):
		return http.StatusConflict, "lock/already-freed", "balance lock is already freed", true
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "ledger/conflict", "operation conflicted, retry later", true
	}
	return 0, "", "", false
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// respondLedgerError maps known errors or falls back to a 500 with the given slug.
func respondLedgerError(w http.ResponseWriter, r *http.Request, err error, fallbackType, fallbackMsg string) {
	if status, pType, msg, ok := mapLedgerError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	if status, pType, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	RespondError(w, r, http.StatusInternalServerError, fallbackType, fallbackMsg)
}
