package worker

import (
	"context"
	"log/slog"

	"github.com/BM-ACADEMY/alpha-sub001/internal/helper"
	"github.com/BM-ACADEMY/alpha-sub001/internal/referral"
	"github.com/BM-ACADEMY/alpha-sub001/internal/smtp"
	"github.com/BM-ACADEMY/alpha-sub001/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	Distributor *referral.Distributor
	Mailer      smtp.MailerInterface
	Helper      *helper.HelperRepository
	Logger      *slog.Logger
	Ctx         context.Context

	// PayoutDeskEmail receives redemption decision notices so manual
	// settlement can proceed.
	PayoutDeskEmail string
}

const (
	// referralGroupID is used for workers that distribute referral bonuses
	// whenever a profit credit lands on a subscriber's wallet.
	referralGroupID = "referral-distribution-group"

	// redeemNotificationGroupID is used for workers that notify the payout
	// desk when a redemption request has been decided.
	redeemNotificationGroupID = "redeem-notification-group"
)

// Our workers typically need the kafka event stream plus one domain
// service each; worker-specific dependencies are carried on the struct.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream:     wk.KafkaStream,
		Distributor:     wk.Distributor,
		Mailer:          wk.Mailer,
		Helper:          wk.Helper,
		Logger:          wk.Logger,
		Ctx:             wk.Ctx,
		PayoutDeskEmail: wk.PayoutDeskEmail,
	}
}
