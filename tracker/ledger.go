package tracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"motime/domain"
)

// Ledger holds the day record for the currently selected date. In-memory
// mutations are synchronous; every successful one snapshots the full record
// and persists it in the background, keyed by the date selected at the moment
// the mutation was invoked.
type Ledger struct {
	store  Store
	logger *log.Logger

	mu       sync.Mutex
	userID   string
	selected time.Time
	record   domain.DayRecord
	unsub    func()
	gen      uint64
}

func newLedger(store Store, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Ledger{
		store:    store,
		logger:   logger,
		selected: time.Now(),
		record:   domain.DefaultRecord(),
	}
}

// bind starts following the given user's record for the selected date.
func (l *Ledger) bind(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userID = userID
	l.resubscribeLocked()
}

// reset drops the subscription and restores the default categories. Safe to
// call repeatedly.
func (l *Ledger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	l.userID = ""
	l.record = domain.DefaultRecord()
}

// SelectDate switches the active date, swapping the record subscription. The
// defaults show until the new date's snapshot arrives.
func (l *Ledger) SelectDate(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = t
	l.record = domain.DefaultRecord()
	if l.userID != "" {
		l.resubscribeLocked()
	}
}

// resubscribeLocked replaces the day subscription; l.mu must be held. The
// generation counter fences callbacks from a replaced subscription so a stale
// listener can never overwrite fresh state.
func (l *Ledger) resubscribeLocked() {
	l.gen++
	gen := l.gen
	if l.unsub != nil {
		l.unsub()
	}
	userID := l.userID
	date := domain.DateKey(l.selected)
	l.unsub = l.store.SubscribeDay(context.Background(), userID, date, func(rec *domain.DayRecord) {
		l.apply(gen, userID, date, rec)
	})
}

// apply installs a pushed snapshot. A nil record means the date has never
// been stored: the defaults are shown and eagerly written back so the date
// exists for aggregation.
func (l *Ledger) apply(gen uint64, userID, date string, rec *domain.DayRecord) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	if rec == nil {
		l.record = domain.DefaultRecord()
		snapshot := l.record
		l.mu.Unlock()
		l.persist(userID, date, snapshot)
		return
	}
	l.record = rec.Normalize()
	l.mu.Unlock()
}

// mutate applies a pure record operation and, when it changed anything,
// persists the new snapshot keyed by the date captured right now.
func (l *Ledger) mutate(op func(domain.DayRecord) (domain.DayRecord, bool)) {
	l.mu.Lock()
	next, changed := op(l.record)
	if !changed {
		l.mu.Unlock()
		return
	}
	l.record = next
	userID := l.userID
	date := domain.DateKey(l.selected)
	l.mu.Unlock()
	if userID == "" {
		return
	}
	l.persist(userID, date, next)
}

// persist fires one background merge write. Failures are logged, never
// surfaced: the subscription echo reconciles state on success, and a failed
// write just leaves the remote record stale until the next one.
func (l *Ledger) persist(userID, date string, rec domain.DayRecord) {
	go func() {
		m, ctx := newWriteMetrics(context.Background(), l.logger, "day", date)
		m.SetTaskCount(rec.TotalTasks())
		err := l.store.WriteDay(ctx, userID, date, rec)
		m.Log(err)
	}()
}

// ToggleTask flips done on the task at index within category. Out-of-range
// indexes are a silent no-op.
func (l *Ledger) ToggleTask(category string, index int) {
	l.mutate(func(r domain.DayRecord) (domain.DayRecord, bool) {
		return r.Toggle(category, index)
	})
}

// AddTask appends a task with the trimmed title; blank titles are rejected.
func (l *Ledger) AddTask(category, title string) {
	l.mutate(func(r domain.DayRecord) (domain.DayRecord, bool) {
		return r.Add(category, title)
	})
}

// EditTaskText replaces the task's title, keeping its done state. A blank
// title abandons the edit without persisting.
func (l *Ledger) EditTaskText(category string, index int, title string) {
	l.mutate(func(r domain.DayRecord) (domain.DayRecord, bool) {
		return r.EditTitle(category, index, title)
	})
}

// DeleteTask removes the task at index; later tasks shift down a position.
func (l *Ledger) DeleteTask(category string, index int) {
	l.mutate(func(r domain.DayRecord) (domain.DayRecord, bool) {
		return r.Delete(category, index)
	})
}

// RenameCategory moves the task sequence to the new name, keeping its
// position in the display order.
func (l *Ledger) RenameCategory(oldName, newName string) {
	l.mutate(func(r domain.DayRecord) (domain.DayRecord, bool) {
		return r.Rename(oldName, newName)
	})
}

// SelectedDate returns the active date.
func (l *Ledger) SelectedDate() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected
}

// Tasks returns the current snapshot's task map. Snapshots are immutable;
// every mutation installs a fresh copy.
func (l *Ledger) Tasks() map[string][]domain.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record.Tasks
}

// Categories returns the current snapshot's display order.
func (l *Ledger) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record.Categories
}

// Record returns the full current snapshot.
func (l *Ledger) Record() domain.DayRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record
}
