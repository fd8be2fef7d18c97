package service

import (
	"context"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
)

// QueryStore defines the minimal data access contract required by services.
type QueryStore interface {
	Queries() *repository.Queries
	RunInTx(ctx context.Context, fn func(q *repository.Queries) error) error
}

// Notifier is the fire-and-forget notification sink. Implementations must
// never block the caller for long or surface errors; a failed notification
// cannot roll back a committed trx.
type Notifier interface {
	TrxPosted(ctx context.Context, trx models.Trx)
	PrizeAwarded(ctx context.Context, prize models.Prize)
	FillSettled(ctx context.Context, rt models.ReferralTrx)
}
