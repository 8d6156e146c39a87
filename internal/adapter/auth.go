package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tourdesk/internal/dataerr"
	"github.com/roach88/tourdesk/internal/ids"
	"github.com/roach88/tourdesk/internal/session"
	"github.com/roach88/tourdesk/internal/sqlstore"
)

// DefaultRole is assigned to accounts created through SignUp.
const DefaultRole = "client"

const minPasswordLength = 6

// accounts stores registered users.
type accounts interface {
	CreateUser(ctx context.Context, u sqlstore.UserRow) error
	UserByEmail(ctx context.Context, email string) (sqlstore.UserRow, bool, error)
}

// memAccounts is the mock variant's credential registry.
type memAccounts struct {
	mu    sync.RWMutex
	users map[string]sqlstore.UserRow
}

func newMemAccounts() *memAccounts {
	return &memAccounts{users: make(map[string]sqlstore.UserRow)}
}

func (m *memAccounts) CreateUser(_ context.Context, u sqlstore.UserRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sqlstore.NormalizeEmail(u.Email)
	if _, taken := m.users[key]; taken {
		return dataerr.Conflict("users", key)
	}
	u.Email = key
	m.users[key] = u
	return nil
}

func (m *memAccounts) UserByEmail(_ context.Context, email string) (sqlstore.UserRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[sqlstore.NormalizeEmail(email)]
	return u, ok, nil
}

// authenticator implements the session half of the contract on top of an
// account store.
type authenticator struct {
	accounts   accounts
	issuer     *session.Issuer
	persister  session.Persister
	ids        ids.Generator
	bcryptCost int
	now        func() time.Time
	logger     *zap.Logger
}

func (a *authenticator) register(ctx context.Context, email, password, role, name string) (sqlstore.UserRow, error) {
	email = sqlstore.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return sqlstore.UserRow{}, dataerr.Auth(fmt.Sprintf("invalid email address %q", email))
	}
	if len(password) < minPasswordLength {
		return sqlstore.UserRow{}, dataerr.Auth(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return sqlstore.UserRow{}, fmt.Errorf("hash password: %w", err)
	}
	if role == "" {
		role = DefaultRole
	}
	u := sqlstore.UserRow{
		ID:           a.ids.Generate(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Name:         name,
		CreatedAt:    a.now().UTC().Truncate(time.Second),
	}
	if err := a.accounts.CreateUser(ctx, u); err != nil {
		if dataerr.IsConflict(err) {
			return sqlstore.UserRow{}, dataerr.Auth("email is already registered")
		}
		return sqlstore.UserRow{}, asBackend("sign up", err)
	}
	return u, nil
}

func (a *authenticator) signUp(ctx context.Context, email, password string) (session.Session, error) {
	u, err := a.register(ctx, email, password, "", "")
	if err != nil {
		return session.Session{}, err
	}
	a.logger.Info("account created", zap.String("user_id", u.ID))
	return a.start(u)
}

func (a *authenticator) signIn(ctx context.Context, email, password string) (session.Session, error) {
	u, ok, err := a.accounts.UserByEmail(ctx, email)
	if err != nil {
		return session.Session{}, asBackend("sign in", err)
	}
	// The same message for unknown email and wrong password.
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return session.Session{}, dataerr.Auth("invalid email or password")
	}
	return a.start(u)
}

func (a *authenticator) start(u sqlstore.UserRow) (session.Session, error) {
	s, err := a.issuer.Issue(session.User{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name})
	if err != nil {
		return session.Session{}, err
	}
	if err := a.persister.Save(s); err != nil {
		return session.Session{}, fmt.Errorf("persist session: %w", err)
	}
	a.logger.Debug("session started", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return s, nil
}

func (a *authenticator) signOut(context.Context) error {
	if err := a.persister.Clear(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (a *authenticator) currentUser(context.Context) (*session.User, error) {
	s, err := session.Current(a.persister, a.now())
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	u, err := a.issuer.Verify(s.AccessToken)
	if err != nil {
		// A token this issuer cannot verify is a stale session.
		a.logger.Debug("discarding unverifiable session", zap.Error(err))
		if err := a.persister.Clear(); err != nil {
			return nil, fmt.Errorf("current user: %w", err)
		}
		return nil, nil
	}
	return &u, nil
}

// asBackend keeps taxonomy errors and context errors intact and wraps
// anything else as a BACKEND failure.
func asBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *dataerr.Error
	if errors.As(err, &de) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dataerr.Backend(op+" failed", err)
}
