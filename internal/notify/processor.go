package notify

import (
	"context"
	"encoding/json"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Processor consumes notification tasks. Delivery here is a structured log
// line per event; external channels plug in behind the same handlers.
type Processor struct {
	server *asynq.Server
}

func NewProcessor(redisAddr string) *Processor {
	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			queueNotifications: 10,
		},
	})
	return &Processor{server: server}
}

// Start runs the consumer in a background goroutine.
func (p *Processor) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTrxPosted, handleTrxPosted)
	mux.HandleFunc(TaskPrizeAwarded, handlePrizeAwarded)
	mux.HandleFunc(TaskFillSettled, handleFillSettled)

	go func() {
		if err := p.server.Run(mux); err != nil {
			zap.L().Error("notification processor stopped", zap.Error(err))
		}
	}()
}

func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func handleTrxPosted(_ context.Context, t *asynq.Task) error {
	var trx models.Trx
	if err := json.Unmarshal(t.Payload(), &trx); err != nil {
		return err
	}
	zap.L().Info("notification: trx posted",
		zap.String("trx_id", trx.ID.String()),
		zap.String("group_id", trx.GroupID.String()),
		zap.String("scope", trx.Scope),
		zap.Int64("amount", trx.Amount),
	)
	return nil
}

func handlePrizeAwarded(_ context.Context, t *asynq.Task) error {
	var prize models.Prize
	if err := json.Unmarshal(t.Payload(), &prize); err != nil {
		return err
	}
	zap.L().Info("notification: prize awarded",
		zap.String("prize_id", prize.ID.String()),
		zap.String("account_id", prize.AccountID.String()),
		zap.String("scope", prize.Scope),
	)
	return nil
}

func handleFillSettled(_ context.Context, t *asynq.Task) error {
	var rt models.ReferralTrx
	if err := json.Unmarshal(t.Payload(), &rt); err != nil {
		return err
	}
	zap.L().Info("notification: fill settled",
		zap.String("group_id", rt.GroupID.String()),
		zap.Int64("referrer_amount", rt.ReferrerAmount),
		zap.Int64("trader_amount", rt.TraderAmount),
	)
	return nil
}
