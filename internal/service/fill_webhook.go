package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
)

var ErrInvalidSignature = errors.New("invalid signature")

// FillWebhookService ingests trade-fill events pushed by the matching engine.
// It verifies the HMAC signature, parses the payload and hands the fill to
// the distribution engine.
type FillWebhookService struct {
	distribution *DistributionService
	hmacKey      []byte
	skipSig      bool
}

func NewFillWebhookService(distribution *DistributionService, hmacKey string, skipSignature bool) *FillWebhookService {
	return &FillWebhookService{
		distribution: distribution,
		hmacKey:      []byte(hmacKey),
		skipSig:      skipSignature,
	}
}

// FillWebhookResponse acknowledges one processed fill.
type FillWebhookResponse struct {
	GroupID uuid.UUID `json:"group_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// HandleFillWebhook verifies and settles one fill. Replays of the same fill
// id return the recorded settlement.
func (s *FillWebhookService) HandleFillWebhook(ctx context.Context, payload []byte, signature string) (*FillWebhookResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var fill Fill
	if err := json.Unmarshal(payload, &fill); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	fill.Symbol = strings.ToUpper(strings.TrimSpace(fill.Symbol))
	if fill.Symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", models.ErrInvalidAmount)
	}

	rt, err := s.distribution.SettleFill(ctx, fill)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return &FillWebhookResponse{
			GroupID: fill.GroupID(),
			Status:  "skipped",
			Message: "taker has no referral, commission retained",
		}, nil
	}
	return &FillWebhookResponse{
		GroupID: rt.GroupID,
		Status:  "settled",
		Message: "commission split recorded",
	}, nil
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *FillWebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
