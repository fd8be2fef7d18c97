package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AssetHandler struct {
	registry *asset.Registry
}

func NewAssetHandler(registry *asset.Registry) *AssetHandler {
	return &AssetHandler{registry: registry}
}

// CreateAsset registers a new asset. Admin only.
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol    string `json:"symbol"`
		Precision int32  `json:"precision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	a, err := h.registry.Create(r.Context(), req.Symbol, req.Precision)
	if err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create asset failed", zap.Error(err), zap.String("symbol", req.Symbol))
		respondLedgerError(w, r, err, "asset/create-failed", "Failed to create asset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

// ListAssets returns every registered asset.
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.registry.List(r.Context())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "asset/list-failed", "Failed to list assets")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assets)
}

// GetAsset resolves one asset by symbol.
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	a, err := h.registry.Get(r.Context(), symbol)
	if err != nil {
		respondLedgerError(w, r, err, "asset/read-failed", "Failed to get asset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}
