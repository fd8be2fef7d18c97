package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"go.uber.org/zap"
)

// FillWebhookHandler receives trade-fill events from the matching engine.
type FillWebhookHandler struct {
	svc *service.FillWebhookService
}

func NewFillWebhookHandler(svc *service.FillWebhookService) *FillWebhookHandler {
	return &FillWebhookHandler{svc: svc}
}

// HandleFillWebhook handles POST /v1/webhooks/fill. It verifies the HMAC
// signature and settles the fill's commission split.
func (h *FillWebhookHandler) HandleFillWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	resp, err := h.svc.HandleFillWebhook(r.Context(), body, signature)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
			return
		}
		zap.L().Error("process fill webhook failed", zap.Error(err))
		respondLedgerError(w, r, err, "webhook/fill-failed", "Failed to process fill")
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}
