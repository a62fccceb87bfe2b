package accrual

import (
	"log/slog"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/metrics"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/google/uuid"
)

// Sweeper moves fully-accrued subscriptions past their lock-in end to
// expired, then settles them: the capital is released from the wallet
// principal and the subscription reaches its terminal state.
type Sweeper struct {
	SubscriptionRepo repository.SubscriptionRepository
	WalletRepo       repository.WalletRepository
	ActivityRepo     repository.ActivityRepository
	Logger           *slog.Logger
	Now              func() time.Time
}

func NewSweeper(s *Sweeper) *Sweeper {
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

func (s *Sweeper) Run() error {
	now := s.Now().UTC()

	expired, err := s.SubscriptionRepo.ExpireDue(now)
	if err != nil {
		return err
	}

	if expired > 0 {
		s.Logger.Info("subscriptions expired", "count", expired)
	}

	candidates, err := s.SubscriptionRepo.SettlementCandidates()
	if err != nil {
		return err
	}

	for i := range candidates {
		sub := candidates[i]

		wallet, err := s.WalletRepo.GetOrCreate(sub.UserID, sub.Currency)
		if err != nil {
			s.Logger.Error("loading wallet for settlement", "subscription_id", sub.ID, "error", err)
			continue
		}

		settled, err := s.SubscriptionRepo.Settle(&sub, wallet.ID, uuid.NewString())
		if err != nil {
			s.Logger.Error("settling subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		if !settled {
			// Either another sweep got there first or the wallet principal
			// no longer covers the capital; both need eyes, not a retry loop.
			s.Logger.Warn("subscription not settled", "subscription_id", sub.ID, "wallet_id", wallet.ID)
			continue
		}

		metrics.SubscriptionsSettled.WithLabelValues(sub.Currency).Inc()

		_, err = s.ActivityRepo.Insert(&repository.ActivityLog{
			UserID:      sub.UserID,
			Entity:      repository.ActivityLogSubscriptionEntity,
			EntityId:    sub.ID,
			Description: repository.ActivityLogSubscriptionSettledDescription,
		})
		if err != nil {
			s.Logger.Error("logging settlement", "subscription_id", sub.ID, "error", err)
		}
	}

	return nil
}
