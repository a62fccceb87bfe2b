// Package scheduler owns the periodic background jobs: the profit accrual
// run and the expiration/settlement sweep. Jobs run in singleton mode so a
// slow run is rescheduled, never overlapped; within a run the per-
// subscription cursor CAS does the fine-grained serialization.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Manager struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

func New(logger *slog.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: s,
		logger:    logger,
	}, nil
}

// RegisterInterval schedules fn every interval. Errors are logged, not
// fatal; the next tick retries from whatever state the failed run left
// behind, which is safe because all ledger writes are idempotency-keyed.
func (m *Manager) RegisterInterval(name string, interval time.Duration, fn func() error) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			m.logger.Info("job started", "job", name)

			if err := fn(); err != nil {
				m.logger.Error("job failed", "job", name, "error", err)
				return
			}

			m.logger.Info("job finished", "job", name)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)

	return err
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("scheduler started")
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Error("scheduler shutdown failed", "error", err)
		return
	}
	m.logger.Info("scheduler stopped")
}
