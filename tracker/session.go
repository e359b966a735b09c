package tracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"motime/domain"
	"motime/identity"
)

// State is the session binding's lifecycle state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Identity is the slice of the identity service the session binds to.
type Identity interface {
	Signup(ctx context.Context, email, password string) (*identity.User, error)
	Login(ctx context.Context, email, password string) (*identity.User, string, error)
	Logout()
	Current() *identity.User
	OnChange(fn func(*identity.User)) func()
}

// Session is the presentation-facing surface of the core. It owns the ledger,
// aggregator and profile binding and keeps their subscriptions tied to the
// identity lifecycle: login wires everything up, logout resets everything to
// defaults so a later login by a different identity never sees cached state.
type Session struct {
	ids     Identity
	ledger  *Ledger
	agg     *Aggregator
	profile *profileBinding
	logger  *log.Logger
	unwatch func()
	mu      sync.Mutex
	state   State
	userID  string
}

// NewSession builds the core and immediately binds it to the identity's
// current state. cache may be nil. Callers must Close the session to release
// the identity watcher and subscriptions.
func NewSession(store Store, ids Identity, cache summaryCache, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Session{
		ids:     ids,
		ledger:  newLedger(store, logger),
		agg:     newAggregator(store, cache),
		profile: newProfileBinding(store, logger),
		logger:  logger,
	}
	s.unwatch = ids.OnChange(func(u *identity.User) {
		if u != nil {
			s.bindUser(u)
		} else {
			s.resetAll()
		}
	})
	return s
}

// Signup registers the account and logs it straight in. Identity failures
// propagate so the presentation layer can show a message.
func (s *Session) Signup(ctx context.Context, email, password string) error {
	s.setState(StateAuthenticating)
	if _, err := s.ids.Signup(ctx, email, password); err != nil {
		s.setState(StateUnauthenticated)
		return err
	}
	_, _, err := s.ids.Login(ctx, email, password)
	if err != nil {
		s.setState(StateUnauthenticated)
	}
	return err
}

// Login resolves the credentials; on success the identity watcher binds all
// subscriptions. Returns the session token for the presentation layer.
func (s *Session) Login(ctx context.Context, email, password string) (string, error) {
	s.setState(StateAuthenticating)
	_, token, err := s.ids.Login(ctx, email, password)
	if err != nil {
		s.setState(StateUnauthenticated)
		return "", err
	}
	return token, nil
}

// Logout signs out; the identity watcher performs the mandatory reset.
func (s *Session) Logout() {
	s.ids.Logout()
}

// Close releases the identity watcher and all live subscriptions. Safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
	s.resetAll()
}

func (s *Session) bindUser(u *identity.User) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.userID = u.ID
	s.mu.Unlock()
	s.logger.WithField("user", u.ID).Info("session bound")
	s.ledger.bind(u.ID)
	s.agg.bind(u.ID)
	s.profile.bind(u.ID, u.PhotoURL, domain.DateKey(time.Now()))
}

// resetAll is the idempotent logout transition: cancel every subscription and
// restore defaults everywhere.
func (s *Session) resetAll() {
	s.mu.Lock()
	id := s.userID
	s.state = StateUnauthenticated
	s.userID = ""
	s.mu.Unlock()
	s.ledger.reset()
	s.agg.reset()
	s.profile.reset()
	if id != "" {
		s.logger.WithField("user", id).Info("session reset")
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentUser returns the authenticated identity, nil when logged out.
func (s *Session) CurrentUser() *identity.User {
	return s.ids.Current()
}

// SelectDate switches the ledger's active date.
func (s *Session) SelectDate(t time.Time) { s.ledger.SelectDate(t) }

// SelectedDate returns the ledger's active date.
func (s *Session) SelectedDate() time.Time { return s.ledger.SelectedDate() }

// ToggleTask flips done on the task at index within category.
func (s *Session) ToggleTask(category string, index int) { s.ledger.ToggleTask(category, index) }

// AddTask appends a task to the category.
func (s *Session) AddTask(category, title string) { s.ledger.AddTask(category, title) }

// EditTaskText replaces a task's title.
func (s *Session) EditTaskText(category string, index int, title string) {
	s.ledger.EditTaskText(category, index, title)
}

// DeleteTask removes the task at index within category.
func (s *Session) DeleteTask(category string, index int) { s.ledger.DeleteTask(category, index) }

// RenameCategory renames a category in place.
func (s *Session) RenameCategory(oldName, newName string) { s.ledger.RenameCategory(oldName, newName) }

// Tasks returns the active day's task map.
func (s *Session) Tasks() map[string][]domain.Task { return s.ledger.Tasks() }

// Categories returns the active day's category order.
func (s *Session) Categories() []string { return s.ledger.Categories() }

// SummaryByDate returns the calendar summary map.
func (s *Session) SummaryByDate() map[string]domain.DaySummary { return s.agg.SummaryByDate() }

// Profile returns the current profile view.
func (s *Session) Profile() domain.Profile { return s.profile.Profile() }

// DailyQuote returns today's quote pick, nil while unresolved.
func (s *Session) DailyQuote() *domain.DailyPick { return s.profile.DailyQuote() }

// UpdateQuote merge-writes a new profile quote.
func (s *Session) UpdateQuote(quote string) { s.profile.updateQuote(quote) }

// UpdatePhotoURL merge-writes a new profile photo URL.
func (s *Session) UpdatePhotoURL(url string) { s.profile.updatePhotoURL(url) }
