package notify

// Task type names routed through the queue.
const (
	TaskTrxPosted    = "ledger:trx_posted"
	TaskPrizeAwarded = "ledger:prize_awarded"
	TaskFillSettled  = "ledger:fill_settled"
)

const queueNotifications = "notifications"
