package accrual

import (
	"time"

	"github.com/BM-ACADEMY/alpha-sub001/internal/money"
	"github.com/shopspring/decimal"
)

type Cadence string

const (
	CadenceDaily   = Cadence("daily")
	CadenceWeekly  = Cadence("weekly")
	CadenceMonthly = Cadence("monthly")
)

func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly || c == CadenceMonthly
}

// Period is one accrual interval. Each completed period gets exactly one
// ledger credit, keyed by (subscription, Index), so a scheduler that fell
// behind posts one transaction per missed period rather than a lump sum.
type Period struct {
	Index int
	Start time.Time
	End   time.Time
	Days  int
}

// nextBoundary returns the end of the period that starts at cursor.
// Monthly is the same date next month, clamped to the shorter month's last
// day (Jan 31 -> Feb 28/29). This matches the variable-month-length payout
// behavior the platform advertises; it is deliberately not a fixed 30 days.
func nextBoundary(cursor time.Time, cadence Cadence) time.Time {
	switch cadence {
	case CadenceWeekly:
		return cursor.AddDate(0, 0, 7)
	case CadenceMonthly:
		return addCalendarMonth(cursor)
	default:
		return cursor.AddDate(0, 0, 1)
	}
}

func addCalendarMonth(t time.Time) time.Time {
	year, month, day := t.Date()

	// Day 0 of the month after next is the last day of next month.
	lastOfNext := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastOfNext {
		day = lastOfNext
	}

	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DuePeriods enumerates the completed periods between the accrual cursor
// and min(now, lockInEnd). The clamp to lockInEnd means a subscription past
// its lock-in stops accruing even if the expiration sweep has not run yet;
// the final period is truncated at the lock-in boundary.
func DuePeriods(cursor time.Time, cadence Cadence, lockInEnd, now time.Time, startIndex int) []Period {
	horizon := now
	if lockInEnd.Before(horizon) {
		horizon = lockInEnd
	}

	var periods []Period
	index := startIndex

	for cursor.Before(horizon) {
		end := nextBoundary(cursor, cadence)
		if end.After(lockInEnd) {
			end = lockInEnd
		}
		if end.After(horizon) {
			break
		}

		days := int(end.Sub(cursor).Hours() / 24)
		if days < 1 {
			break
		}

		periods = append(periods, Period{
			Index: index,
			Start: cursor,
			End:   end,
			Days:  days,
		})

		cursor = end
		index++
	}

	return periods
}

// PeriodProfit computes one period's profit in minor units:
//
//	capital * lockedPercent / 100 / lockInDays * periodDays
//
// rounded half away from zero, per period. Rounding per period keeps each
// credit individually auditable against the formula.
func PeriodProfit(capital money.Amount, lockedPercent decimal.Decimal, lockInDays, periodDays int) money.Amount {
	if lockInDays <= 0 || periodDays <= 0 {
		return 0
	}

	profit := capital.Decimal().
		Mul(lockedPercent).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(lockInDays))).
		Mul(decimal.NewFromInt(int64(periodDays)))

	return money.FromDecimal(profit)
}
