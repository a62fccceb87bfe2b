// Package catalog resolves the percentage tables keyed by plan category and
// currency. Lookups are read-heavy and cached in redis; the cache entry is
// invalidated on admin edit. An accrual run never reads the live catalog:
// it takes an immutable snapshot at run start so a mid-run edit cannot split
// a batch across two rate tables.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/fault"
	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/BM-ACADEMY/alpha-sub001/internal/repository"
	"github.com/shopspring/decimal"
)

const cacheTTL = 10 * time.Minute

type Percentages struct {
	Profit        decimal.Decimal `json:"profit"`
	WithdrawalFee decimal.Decimal `json:"withdrawal_fee"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
}

// Store is the subset of the cache the catalog needs.
type Store interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

type Service struct {
	configRepo repository.PercentageConfigRepository
	cache      Store
}

func New(configRepo repository.PercentageConfigRepository, cacheStore Store) *Service {
	return &Service{
		configRepo: configRepo,
		cache:      cacheStore,
	}
}

func cacheKey(category string, currency money.Currency) string {
	return fmt.Sprintf("percentage_config:%s:%s", category, currency)
}

// ResolvePercentage returns the percentage table for a category/currency
// pair, or a not-found fault. The engine fails closed on a missing config:
// no accrual is posted for subscriptions it cannot price.
func (s *Service) ResolvePercentage(category string, currency money.Currency) (*Percentages, error) {
	key := cacheKey(category, currency)

	if s.cache != nil {
		// A cache miss or outage degrades to a repository read; it never
		// blocks resolution.
		cached, err := s.cache.Get(key)
		if err == nil {
			var percentages Percentages
			if err := json.Unmarshal([]byte(cached), &percentages); err == nil {
				return &percentages, nil
			}
		}
	}

	config, found, err := s.configRepo.GetByKey(category, currency.String())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fault.New(fault.KindNotFound, "no percentage config for category %q and currency %q", category, currency)
	}

	percentages := &Percentages{
		Profit:        config.ProfitPercent,
		WithdrawalFee: config.WithdrawalFeePercent,
		PlatformFee:   config.PlatformFeePercent,
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(percentages); err == nil {
			s.cache.Set(key, string(encoded), cacheTTL)
		}
	}

	return percentages, nil
}

// Invalidate drops the cached entry after an admin edit.
func (s *Service) Invalidate(category string, currency money.Currency) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(category, currency))
	}
}

// Snapshot is an immutable in-memory copy of the whole percentage table,
// taken at accrual run start and never refreshed mid-run.
type Snapshot struct {
	configs map[string]Percentages
}

func (s *Service) Snapshot() (*Snapshot, error) {
	configs, err := s.configRepo.GetAll()
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{configs: make(map[string]Percentages, len(configs))}
	for _, config := range configs {
		snapshot.configs[config.Category+":"+config.Currency] = Percentages{
			Profit:        config.ProfitPercent,
			WithdrawalFee: config.WithdrawalFeePercent,
			PlatformFee:   config.PlatformFeePercent,
		}
	}

	return snapshot, nil
}

func (s *Snapshot) Resolve(category string, currency money.Currency) (*Percentages, error) {
	percentages, ok := s.configs[category+":"+currency.String()]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "no percentage config for category %q and currency %q", category, currency)
	}

	return &percentages, nil
}
