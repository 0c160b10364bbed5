package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/security"
	"github.com/geocoder89/profilehub/internal/session"
	"github.com/google/uuid"
)

type Manager struct {
	users      UserStore
	sessions   session.Store
	policy     security.PasswordPolicy
	sessionTTL time.Duration
	log        *slog.Logger
}

type Options struct {
	Policy     security.PasswordPolicy
	SessionTTL time.Duration
}

func NewManager(users UserStore, sessions session.Store, opts Options, log *slog.Logger) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 20 * time.Minute
	}
	if opts.Policy.MinLength <= 0 {
		opts.Policy = security.DefaultPasswordPolicy()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		users:      users,
		sessions:   sessions,
		policy:     opts.Policy,
		sessionTTL: opts.SessionTTL,
		log:        log,
	}
}

var _ Service = (*Manager)(nil)

func (m *Manager) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return m.users.GetByEmail(ctx, email)
}

func (m *Manager) FindByID(ctx context.Context, id string) (user.User, error) {
	return m.users.GetByID(ctx, id)
}

// Create validates the password and uniqueness, then hashes and stores the
// user. On success u carries its new ID and hash.
func (m *Manager) Create(ctx context.Context, u *user.User, password string) (Result, error) {
	var errs []Error

	for _, v := range m.policy.Check(password) {
		errs = append(errs, Error{Code: v.Code, Description: v.Description})
	}

	_, err := m.users.GetByEmail(ctx, u.Email)
	switch {
	case err == nil:
		errs = append(errs, duplicateErrors(u)...)
	case !errors.Is(err, user.ErrNotFound):
		return Result{}, fmt.Errorf("lookup email: %w", err)
	}

	if len(errs) > 0 {
		return Failed(errs...), nil
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	candidate := *u
	candidate.ID = uuid.NewString()
	candidate.PasswordHash = hash
	candidate.NormalizedEmail = user.NormalizeEmail(u.Email)

	err = m.users.Create(ctx, candidate)
	if err != nil {
		// lost the race at the unique index
		if errors.Is(err, user.ErrEmailTaken) {
			return Failed(duplicateErrors(u)...), nil
		}
		return Result{}, fmt.Errorf("insert user: %w", err)
	}

	*u = candidate
	m.log.DebugContext(ctx, "identity created", "user_id", u.ID)
	return Result{}, nil
}

func duplicateErrors(u *user.User) []Error {
	out := []Error{}
	if u.UserName != "" {
		out = append(out, Error{
			Code:        "DuplicateUserName",
			Description: fmt.Sprintf("Username '%s' is already taken.", u.UserName),
		})
	}
	out = append(out, Error{
		Code:        "DuplicateEmail",
		Description: fmt.Sprintf("Email '%s' is already taken.", u.Email),
	})
	return out
}

func (m *Manager) Update(ctx context.Context, u user.User) (Result, error) {
	if u.ID == "" {
		return Failed(Error{Code: "InvalidUser", Description: "User id is required."}), nil
	}

	err := m.users.Update(ctx, u)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Result{}, user.ErrNotFound
		}
		return Result{}, fmt.Errorf("update user: %w", err)
	}
	return Result{}, nil
}

func (m *Manager) AddToRole(ctx context.Context, u user.User, role string) (Result, error) {
	err := m.users.AddToRole(ctx, u.ID, role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrRoleNotFound):
			return Failed(Error{
				Code:        "InvalidRoleName",
				Description: fmt.Sprintf("Role name '%s' is invalid.", role),
			}), nil
		case errors.Is(err, user.ErrNotFound):
			return Result{}, user.ErrNotFound
		default:
			return Result{}, fmt.Errorf("add to role: %w", err)
		}
	}
	return Result{}, nil
}

func (m *Manager) Roles(ctx context.Context, u user.User) ([]string, error) {
	return m.users.Roles(ctx, u.ID)
}

func (m *Manager) CheckPassword(_ context.Context, u user.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return security.CheckPassword(u.PasswordHash, password) == nil
}

// SignIn starts a server-side session. Non-persistent sessions still expire
// server side after the configured TTL; persistence only affects the cookie.
func (m *Manager) SignIn(ctx context.Context, u user.User, persistent bool) (session.Session, error) {
	s := session.New(u.ID, u.Email, persistent, m.sessionTTL)

	if err := m.sessions.Save(ctx, s); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return m.sessions.Delete(ctx, sessionID)
}
