package notify

import (
	"context"
	"encoding/json"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Notifier enqueues notification tasks after ledger events commit. Enqueue
// failures are logged and swallowed: a lost notification must never fail or
// roll back the mutation that triggered it.
type Notifier struct {
	client *asynq.Client
}

func NewNotifier(redisAddr string) *Notifier {
	return &Notifier{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (n *Notifier) Close() error {
	return n.client.Close()
}

func (n *Notifier) TrxPosted(ctx context.Context, trx models.Trx) {
	n.enqueue(ctx, TaskTrxPosted, trx)
}

func (n *Notifier) PrizeAwarded(ctx context.Context, prize models.Prize) {
	n.enqueue(ctx, TaskPrizeAwarded, prize)
}

func (n *Notifier) FillSettled(ctx context.Context, rt models.ReferralTrx) {
	n.enqueue(ctx, TaskFillSettled, rt)
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("failed to marshal notification payload", zap.String("task", taskType), zap.Error(err))
		return
	}
	task := asynq.NewTask(taskType, b)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(queueNotifications)); err != nil {
		zap.L().Error("failed to enqueue notification", zap.String("task", taskType), zap.Error(err))
	}
}

// NopNotifier drops every notification. Used in tests and when no queue is
// configured.
type NopNotifier struct{}

func (NopNotifier) TrxPosted(context.Context, models.Trx)           {}
func (NopNotifier) PrizeAwarded(context.Context, models.Prize)      {}
func (NopNotifier) FillSettled(context.Context, models.ReferralTrx) {}
