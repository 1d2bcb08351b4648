package gateway

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tripforge/placescout/internal/store"
)

const budgetWindow = time.Hour

// budget enforces a per-tier sliding one-hour call budget. The window of call
// timestamps is persisted so the budget survives process restarts.
type budget struct {
	store  store.Store
	limits map[string]int
	now    func() time.Time
}

func newBudget(s store.Store, fast, deep int) *budget {
	return &budget{
		store: s,
		limits: map[string]int{
			"fast": fast,
			"deep": deep,
		},
		now: time.Now,
	}
}

// check prunes expired entries and returns a BudgetExceededError when the
// tier's window is full. A zero or negative limit disables the budget.
func (b *budget) check(ctx context.Context, tier string) error {
	limit := b.limits[tier]
	if limit <= 0 {
		return nil
	}

	stamps, err := b.store.GetRateWindow(ctx, tier)
	if err != nil {
		return eris.Wrap(err, "gateway: load rate window")
	}

	cutoff := b.now().Add(-budgetWindow)
	live := stamps[:0]
	for _, s := range stamps {
		if s.After(cutoff) {
			live = append(live, s)
		}
	}

	if len(live) != len(stamps) {
		if err := b.store.SetRateWindow(ctx, tier, live); err != nil {
			return eris.Wrap(err, "gateway: prune rate window")
		}
	}

	if len(live) >= limit {
		oldest := live[0]
		for _, s := range live {
			if s.Before(oldest) {
				oldest = s
			}
		}
		return &BudgetExceededError{
			Tier: tier,
			Wait: oldest.Add(budgetWindow).Sub(b.now()),
		}
	}

	return nil
}

// record appends the current call to the tier's window.
func (b *budget) record(ctx context.Context, tier string) error {
	if b.limits[tier] <= 0 {
		return nil
	}

	stamps, err := b.store.GetRateWindow(ctx, tier)
	if err != nil {
		return eris.Wrap(err, "gateway: load rate window")
	}
	stamps = append(stamps, b.now())

	if err := b.store.SetRateWindow(ctx, tier, stamps); err != nil {
		return eris.Wrap(err, "gateway: save rate window")
	}
	return nil
}
