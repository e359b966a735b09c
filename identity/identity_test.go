package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"motime/domain"
)

type fakeAccounts struct {
	accounts map[string]domain.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[string]domain.Account{}}
}

func (f *fakeAccounts) GetAccount(ctx context.Context, email string) (*domain.Account, error) {
	acct, ok := f.accounts[email]
	if !ok {
		return nil, nil
	}
	return &acct, nil
}

func (f *fakeAccounts) InsertAccount(ctx context.Context, acct domain.Account) error {
	if _, exists := f.accounts[acct.Email]; exists {
		return domain.ErrAccountExists
	}
	f.accounts[acct.Email] = acct
	return nil
}

func newTestService() (*Service, *fakeAccounts) {
	store := newFakeAccounts()
	return NewService(store, []byte("test-secret"), time.Hour), store
}

func TestSignupThenLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Signup(ctx, "  User@Example.COM ", "hunter22")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if created.Email != "user@example.com" || created.ID == "" {
		t.Fatalf("unexpected user: %+v", created)
	}
	if svc.Current() != nil {
		t.Fatal("signup must not log the user in")
	}

	user, token, err := svc.Login(ctx, "user@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("login resolved a different user: %s vs %s", user.ID, created.ID)
	}
	if svc.Current() == nil || svc.Current().ID != user.ID {
		t.Fatal("current identity not set after login")
	}

	sub, err := svc.UserIDFromToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if sub != user.ID {
		t.Fatalf("token subject mismatch: %s", sub)
	}
}

func TestSignupRejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "not-an-email", "hunter22"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Signup(ctx, "a@b.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Signup(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "a@b.com", "hunter23"); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestLoginCarriesStoredPhoto(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	acct := store.accounts["a@b.com"]
	acct.PhotoURL = "https://img.example/auth.png"
	store.accounts["a@b.com"] = acct

	user, _, err := svc.Login(ctx, "a@b.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.PhotoURL != "https://img.example/auth.png" {
		t.Fatalf("account photo not carried: %q", user.PhotoURL)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "nobody@b.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if svc.Current() != nil {
		t.Fatal("failed login must not set an identity")
	}
}

func TestOnChangeFiresImmediatelyAndOnTransitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	var seen []*User
	remove := svc.OnChange(func(u *User) { seen = append(seen, u) })

	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("expected immediate nil delivery, got %v", seen)
	}
	if _, _, err := svc.Login(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(seen) != 2 || seen[1] == nil {
		t.Fatalf("expected login notification, got %v", seen)
	}
	svc.Logout()
	if len(seen) != 3 || seen[2] != nil {
		t.Fatalf("expected logout notification, got %v", seen)
	}
	svc.Logout() // idempotent
	if len(seen) != 3 {
		t.Fatalf("logout while logged out must not notify, got %d", len(seen))
	}

	remove()
	if _, _, err := svc.Login(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("removed watcher still notified, got %d", len(seen))
	}
}

func TestTokenValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "a@b.com", "hunter22"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, token, err := svc.Login(ctx, "a@b.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewService(newFakeAccounts(), []byte("different-secret"), time.Hour)
	if _, err := other.UserIDFromToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
	if _, err := svc.UserIDFromToken("not.a.token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}

	expired := NewService(svc.store, svc.secret, -time.Hour)
	expired.tokenTTL = -time.Hour
	tok, err := expired.issueToken(&User{ID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.UserIDFromToken(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
