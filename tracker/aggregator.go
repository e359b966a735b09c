package tracker

import (
	"context"
	"sync"

	"motime/domain"
)

// Aggregator maintains the date-keyed completion summaries backing the
// calendar. Every collection push rebuilds the whole map through
// domain.ComputeSummaries; local mutations only reach it through the store
// echo, so the calendar lags one round-trip behind the ledger's optimistic
// view of the same edit.
type Aggregator struct {
	store Store
	cache summaryCache

	mu        sync.Mutex
	userID    string
	summaries map[string]domain.DaySummary
	unsub     func()
	gen       uint64
}

func newAggregator(store Store, cache summaryCache) *Aggregator {
	return &Aggregator{
		store:     store,
		cache:     cache,
		summaries: map[string]domain.DaySummary{},
	}
}

// bind seeds the summary map from the cache when available, then follows the
// user's full day collection.
func (a *Aggregator) bind(userID string) {
	a.mu.Lock()
	a.userID = userID
	a.gen++
	gen := a.gen
	if a.unsub != nil {
		a.unsub()
	}
	if a.cache != nil {
		if cached, ok := a.cache.Load(context.Background(), userID); ok {
			a.summaries = cached
		}
	}
	a.unsub = a.store.SubscribeDays(context.Background(), userID, func(records map[string]domain.DayRecord) {
		a.apply(gen, userID, records)
	})
	a.mu.Unlock()
}

func (a *Aggregator) apply(gen uint64, userID string, records map[string]domain.DayRecord) {
	computed := domain.ComputeSummaries(records)
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.summaries = computed
	a.mu.Unlock()
	if a.cache != nil {
		a.cache.Store(context.Background(), userID, computed)
	}
}

// reset cancels the subscription and empties the summary map. Safe to call
// repeatedly.
func (a *Aggregator) reset() {
	a.mu.Lock()
	a.gen++
	if a.unsub != nil {
		a.unsub()
		a.unsub = nil
	}
	userID := a.userID
	a.userID = ""
	a.summaries = map[string]domain.DaySummary{}
	a.mu.Unlock()
	if a.cache != nil && userID != "" {
		a.cache.Evict(context.Background(), userID)
	}
}

// SummaryByDate returns the current summary map keyed by YYYY-MM-DD.
func (a *Aggregator) SummaryByDate() map[string]domain.DaySummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaries
}

// Summary returns the summary for one date.
func (a *Aggregator) Summary(date string) (domain.DaySummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.summaries[date]
	return s, ok
}
