package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"motime/domain"
)

// fakeStore implements Store in memory with synchronous write echoes: every
// successful write immediately pushes the new state to matching subscribers,
// the way the real store's subscription closes the optimistic-update loop.
// Initial snapshots are delivered from a goroutine like the real feed.
type fakeStore struct {
	mu       sync.Mutex
	days     map[string]map[string]domain.DayRecord
	profiles map[string]domain.Profile
	picks    map[string]domain.DailyPick
	quotes   []domain.Quote

	daySubs  map[int]*daySub
	collSubs map[int]*collSub
	profSubs map[int]*profSub
	nextSub  int

	dayWrites []dayWrite
}

type daySub struct {
	userID   string
	date     string
	onChange func(*domain.DayRecord)
}

type collSub struct {
	userID   string
	onChange func(map[string]domain.DayRecord)
}

type profSub struct {
	userID   string
	onChange func(*domain.Profile)
}

type dayWrite struct {
	userID string
	date   string
	rec    domain.DayRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		days:     map[string]map[string]domain.DayRecord{},
		profiles: map[string]domain.Profile{},
		picks:    map[string]domain.DailyPick{},
		daySubs:  map[int]*daySub{},
		collSubs: map[int]*collSub{},
		profSubs: map[int]*profSub{},
	}
}

func (f *fakeStore) SubscribeDay(ctx context.Context, userID, date string, onChange func(*domain.DayRecord)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.daySubs[id] = &daySub{userID: userID, date: date, onChange: onChange}
	rec := f.dayLocked(userID, date)
	f.mu.Unlock()
	go onChange(rec)
	return func() {
		f.mu.Lock()
		delete(f.daySubs, id)
		f.mu.Unlock()
	}
}

func (f *fakeStore) SubscribeDays(ctx context.Context, userID string, onChange func(map[string]domain.DayRecord)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.collSubs[id] = &collSub{userID: userID, onChange: onChange}
	snapshot := f.collectionLocked(userID)
	f.mu.Unlock()
	go onChange(snapshot)
	return func() {
		f.mu.Lock()
		delete(f.collSubs, id)
		f.mu.Unlock()
	}
}

func (f *fakeStore) SubscribeProfile(ctx context.Context, userID string, onChange func(*domain.Profile)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.profSubs[id] = &profSub{userID: userID, onChange: onChange}
	p := f.profileLocked(userID)
	f.mu.Unlock()
	go onChange(p)
	return func() {
		f.mu.Lock()
		delete(f.profSubs, id)
		f.mu.Unlock()
	}
}

func (f *fakeStore) WriteDay(ctx context.Context, userID, date string, rec domain.DayRecord) error {
	f.mu.Lock()
	if f.days[userID] == nil {
		f.days[userID] = map[string]domain.DayRecord{}
	}
	f.days[userID][date] = rec.Clone()
	f.dayWrites = append(f.dayWrites, dayWrite{userID: userID, date: date, rec: rec.Clone()})
	var dayFns []func(*domain.DayRecord)
	for _, sub := range f.daySubs {
		if sub.userID == userID && sub.date == date {
			dayFns = append(dayFns, sub.onChange)
		}
	}
	var collFns []func(map[string]domain.DayRecord)
	for _, sub := range f.collSubs {
		if sub.userID == userID {
			collFns = append(collFns, sub.onChange)
		}
	}
	echo := f.dayLocked(userID, date)
	snapshot := f.collectionLocked(userID)
	f.mu.Unlock()
	for _, fn := range dayFns {
		fn(echo)
	}
	for _, fn := range collFns {
		fn(snapshot)
	}
	return nil
}

func (f *fakeStore) WriteProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error {
	f.mu.Lock()
	p := f.profiles[userID]
	if patch.PhotoURL != nil {
		p.PhotoURL = *patch.PhotoURL
	}
	if patch.Quote != nil {
		p.Quote = *patch.Quote
	}
	f.profiles[userID] = p
	var fns []func(*domain.Profile)
	for _, sub := range f.profSubs {
		if sub.userID == userID {
			fns = append(fns, sub.onChange)
		}
	}
	echo := f.profileLocked(userID)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(echo)
	}
	return nil
}

func (f *fakeStore) ListQuotes(ctx context.Context) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Quote, len(f.quotes))
	copy(out, f.quotes)
	return out, nil
}

func (f *fakeStore) GetDailyPick(ctx context.Context, userID, date string) (*domain.DailyPick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pick, ok := f.picks[userID+"|"+date]
	if !ok {
		return nil, nil
	}
	return &pick, nil
}

func (f *fakeStore) WriteDailyPick(ctx context.Context, pick domain.DailyPick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.picks[pick.UserID+"|"+pick.Date] = pick
	return nil
}

func (f *fakeStore) dayLocked(userID, date string) *domain.DayRecord {
	rec, ok := f.days[userID][date]
	if !ok {
		return nil
	}
	out := rec.Clone()
	return &out
}

func (f *fakeStore) collectionLocked(userID string) map[string]domain.DayRecord {
	out := map[string]domain.DayRecord{}
	for date, rec := range f.days[userID] {
		out[date] = rec.Clone()
	}
	return out
}

func (f *fakeStore) profileLocked(userID string) *domain.Profile {
	p, ok := f.profiles[userID]
	if !ok {
		return nil
	}
	out := p
	return &out
}

func (f *fakeStore) storedDay(userID, date string) (domain.DayRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.days[userID][date]
	return rec, ok
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dayWrites)
}

// dayCallback exposes a live subscription callback so tests can simulate a
// stale listener firing after it was replaced.
func (f *fakeStore) dayCallback(userID, date string) func(*domain.DayRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.daySubs {
		if sub.userID == userID && sub.date == date {
			return sub.onChange
		}
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
