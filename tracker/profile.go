package tracker

import (
	"context"
	"math/rand/v2"
	"sync"

	log "github.com/sirupsen/logrus"

	"motime/domain"
)

// profileBinding follows the user's profile document and resolves the daily
// quote, one random catalog pick per (user, local date), persisted so the
// pick stays stable for the rest of the day.
type profileBinding struct {
	store  Store
	logger *log.Logger

	mu           sync.Mutex
	userID       string
	defaultPhoto string
	profile      domain.Profile
	daily        *domain.DailyPick
	unsub        func()
	gen          uint64

	pick func(n int) int
}

func newProfileBinding(store Store, logger *log.Logger) *profileBinding {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &profileBinding{
		store:   store,
		logger:  logger,
		profile: domain.DefaultProfile(),
		pick:    rand.IntN,
	}
}

// bind follows the profile document and kicks off the daily quote lookup.
// defaultPhoto is the identity provider's photo, shown until the profile
// document carries its own.
func (p *profileBinding) bind(userID, defaultPhoto, date string) {
	p.mu.Lock()
	p.userID = userID
	p.defaultPhoto = defaultPhoto
	p.profile = domain.DefaultProfile()
	p.profile.PhotoURL = defaultPhoto
	p.gen++
	gen := p.gen
	if p.unsub != nil {
		p.unsub()
	}
	p.unsub = p.store.SubscribeProfile(context.Background(), userID, func(doc *domain.Profile) {
		p.apply(gen, doc)
	})
	p.mu.Unlock()
	go p.ensureDailyPick(gen, userID, date)
}

// apply installs a pushed profile document. An absent document keeps the
// defaults; empty stored fields fall back the same way.
func (p *profileBinding) apply(gen uint64, doc *domain.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || doc == nil {
		return
	}
	next := *doc
	if next.Quote == "" {
		next.Quote = domain.DefaultQuote
	}
	if next.PhotoURL == "" {
		next.PhotoURL = p.defaultPhoto
	}
	p.profile = next
}

// ensureDailyPick reuses today's persisted pick, or chooses a random catalog
// quote and persists the choice. An empty catalog yields no daily quote.
func (p *profileBinding) ensureDailyPick(gen uint64, userID, date string) {
	ctx := context.Background()
	existing, err := p.store.GetDailyPick(ctx, userID, date)
	if err != nil {
		p.logger.WithError(err).WithField("user", userID).Error("fetch daily quote pick")
		return
	}
	if existing == nil {
		quotes, err := p.store.ListQuotes(ctx)
		if err != nil {
			p.logger.WithError(err).WithField("user", userID).Error("list quote catalog")
			return
		}
		if len(quotes) == 0 {
			return
		}
		q := quotes[p.pick(len(quotes))]
		existing = &domain.DailyPick{UserID: userID, Date: date, Text: q.Text, Author: q.Author}
		if err := p.store.WriteDailyPick(ctx, *existing); err != nil {
			p.logger.WithError(err).WithField("user", userID).Error("persist daily quote pick")
		}
	}
	p.mu.Lock()
	if gen == p.gen {
		p.daily = existing
	}
	p.mu.Unlock()
}

// reset restores the defaults and drops the subscription.
func (p *profileBinding) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.userID = ""
	p.defaultPhoto = ""
	p.profile = domain.DefaultProfile()
	p.daily = nil
}

// updateQuote merge-writes a new profile quote in the background.
func (p *profileBinding) updateQuote(quote string) {
	p.writePatch(domain.ProfilePatch{Quote: &quote})
}

// updatePhotoURL merge-writes a new photo URL in the background.
func (p *profileBinding) updatePhotoURL(url string) {
	p.writePatch(domain.ProfilePatch{PhotoURL: &url})
}

func (p *profileBinding) writePatch(patch domain.ProfilePatch) {
	p.mu.Lock()
	userID := p.userID
	p.mu.Unlock()
	if userID == "" {
		return
	}
	go func() {
		m, ctx := newWriteMetrics(context.Background(), p.logger, "profile", "")
		err := p.store.WriteProfile(ctx, userID, patch)
		m.Log(err)
	}()
}

// Profile returns the current profile view.
func (p *profileBinding) Profile() domain.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// DailyQuote returns today's pick, nil while unresolved.
func (p *profileBinding) DailyQuote() *domain.DailyPick {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.daily
}
