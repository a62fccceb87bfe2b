package worker

import (
	"encoding/json"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/BM-ACADEMY/alpha-sub001/internal/accrual"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
)

// ReferralWorker listens for profit credits and pays the referrer's 1%
// bonus for the same period. The bonus ledger write is idempotency-keyed,
// so retrying a message that already succeeded is a no-op.
func (wk *Worker) ReferralWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: referralGroupID,
		Topic:   accrual.TopicProfitAccrued,
	})
	if err != nil {
		wk.Logger.Error("creating referral consumer", "error", err)
		return
	}
	defer consumer.Close()

	for wk.Ctx.Err() == nil {
		event := consumer.Poll(100)
		switch e := event.(type) {
		case *kafka.Message:
			wk.distributeBonus(e.Value)
		case kafka.Error:
			wk.Logger.Error("referral consumer error", "error", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) distributeBonus(message []byte) {
	var event accrual.ProfitAccruedEvent
	if err := json.Unmarshal(message, &event); err != nil {
		wk.Logger.Error("decoding profit.accrued event", "error", err)
		return
	}

	amount, err := money.Parse(event.Amount)
	if err != nil {
		wk.Logger.Error("invalid amount in profit.accrued event", "subscription_id", event.SubscriptionID, "error", err)
		return
	}

	currency, err := money.ParseCurrency(event.Currency)
	if err != nil {
		wk.Logger.Error("invalid currency in profit.accrued event", "subscription_id", event.SubscriptionID, "error", err)
		return
	}

	// A missed bonus must not be dropped silently; retry with backoff
	// before giving up, and log enough to replay the message by hand.
	operation := func() error {
		return wk.Distributor.Distribute(event.UserID, event.SubscriptionID, event.PeriodIndex, amount, currency)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), wk.Ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		wk.Logger.Error("referral distribution failed",
			"subscription_id", event.SubscriptionID,
			"period_index", event.PeriodIndex,
			"amount", event.Amount,
			"currency", event.Currency,
			"error", err,
		)
	}
}
