// Package identity provides email/password accounts and the identity
// lifecycle the rest of the core binds to. Accounts live in the table store;
// sessions are stateless HS256 tokens.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"motime/domain"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so login errors never reveal which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailInUse rejects a signup for an already registered email.
	ErrEmailInUse = errors.New("email already in use")
	// ErrInvalidEmail rejects a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword rejects passwords shorter than six characters.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
)

const minPasswordLen = 6

// User is the authenticated identity exposed to the core.
type User struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

// AccountStore persists credential records.
type AccountStore interface {
	GetAccount(ctx context.Context, email string) (*domain.Account, error)
	InsertAccount(ctx context.Context, acct domain.Account) error
}

// Service resolves logins and broadcasts identity changes to watchers.
type Service struct {
	store    AccountStore
	secret   []byte
	tokenTTL time.Duration

	mu          sync.Mutex
	current     *User
	watchers    map[int]func(*User)
	nextWatcher int
}

// NewService creates an identity service signing session tokens with secret.
func NewService(store AccountStore, secret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:    store,
		secret:   secret,
		tokenTTL: tokenTTL,
		watchers: map[int]func(*User){},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new account. It does not log the account in; callers
// follow up with Login, matching the signup-then-login flow of the app.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acct := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.InsertAccount(ctx, acct); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	log.WithField("user", acct.ID).Info("account created")
	return &User{ID: acct.ID, Email: acct.Email}, nil
}

// Login verifies the credentials, issues a session token and notifies
// watchers of the new identity.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)
	acct, err := s.store.GetAccount(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if acct == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	user := &User{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName, PhotoURL: acct.PhotoURL}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.setCurrent(user)
	log.WithField("user", user.ID).Info("user logged in")
	return user, token, nil
}

// Logout clears the current identity and notifies watchers with nil. Calling
// it while logged out is a no-op.
func (s *Service) Logout() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	id := s.current.ID
	s.current = nil
	fns := s.watcherList()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(nil)
	}
	log.WithField("user", id).Info("user logged out")
}

// Current returns the authenticated identity, nil when logged out.
func (s *Service) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange registers a watcher for identity changes. The watcher fires
// immediately with the current identity, then on every login and logout.
// The returned handle removes the watcher.
func (s *Service) OnChange(fn func(*User)) func() {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	current := s.current
	s.mu.Unlock()
	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Service) setCurrent(u *User) {
	s.mu.Lock()
	s.current = u
	fns := s.watcherList()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// watcherList snapshots the watchers; s.mu must be held.
func (s *Service) watcherList() []func(*User) {
	fns := make([]func(*User), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	return fns
}
