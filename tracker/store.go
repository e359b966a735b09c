// Package tracker is the client core of the app: it keeps the active day's
// categorized tasks in memory, derives per-date completion summaries for the
// calendar, and ties both to the authenticated identity's lifecycle. Reads
// flow store -> subscription -> tracker; writes flow tracker -> merge write ->
// store echo, which closes the optimistic-update loop.
package tracker

import (
	"context"

	"motime/domain"
)

// Store is the document service the tracker binds to. Subscriptions push the
// current state once on setup and again after every change; the returned
// handle cancels the subscription.
type Store interface {
	SubscribeDay(ctx context.Context, userID, date string, onChange func(*domain.DayRecord)) func()
	SubscribeDays(ctx context.Context, userID string, onChange func(map[string]domain.DayRecord)) func()
	SubscribeProfile(ctx context.Context, userID string, onChange func(*domain.Profile)) func()
	WriteDay(ctx context.Context, userID, date string, rec domain.DayRecord) error
	WriteProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error
	ListQuotes(ctx context.Context) ([]domain.Quote, error)
	GetDailyPick(ctx context.Context, userID, date string) (*domain.DailyPick, error)
	WriteDailyPick(ctx context.Context, pick domain.DailyPick) error
}

// summaryCache warm-starts and retires the per-user summary map. Implemented
// by storage.SummaryCache; a nil cache disables the behavior.
type summaryCache interface {
	Store(ctx context.Context, userID string, summaries map[string]domain.DaySummary)
	Load(ctx context.Context, userID string) (map[string]domain.DaySummary, bool)
	Evict(ctx context.Context, userID string)
}
