package worker

import (
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/BM-ACADEMY/alpha-sub001/internal/redeem"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
)

// NotificationWorker emails the payout desk whenever a redemption request
// is approved or rejected. Approved notices carry the fee breakdown and
// settlement reference the desk needs to execute the payout.
func (wk *Worker) NotificationWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: redeemNotificationGroupID,
		Topic:   redeem.TopicRedeemDecided,
	})
	if err != nil {
		wk.Logger.Error("creating notification consumer", "error", err)
		return
	}
	defer consumer.Close()

	for wk.Ctx.Err() == nil {
		event := consumer.Poll(100)
		switch e := event.(type) {
		case *kafka.Message:
			wk.sendDecisionNotice(e.Value)
		case kafka.Error:
			wk.Logger.Error("notification consumer error", "error", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) sendDecisionNotice(message []byte) {
	var event redeem.RedeemDecidedEvent
	if err := json.Unmarshal(message, &event); err != nil {
		wk.Logger.Error("decoding redeem.decided event", "error", err)
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["RequestID"] = event.RequestID
		emailData["UserID"] = event.UserID
		emailData["Status"] = event.Status
		emailData["Amount"] = event.Amount
		emailData["WithdrawalFee"] = event.WithdrawalFee
		emailData["PlatformFee"] = event.PlatformFee
		emailData["NetPayout"] = event.NetPayout
		emailData["Currency"] = event.Currency
		emailData["SettlementReference"] = event.SettlementReference

		if err := wk.Mailer.Send(wk.PayoutDeskEmail, emailData, "redemption-status.tmpl"); err != nil {
			wk.Logger.Error("sending redemption notice", "request_id", event.RequestID, "error", err)
			return err
		}

		return nil
	})
}
