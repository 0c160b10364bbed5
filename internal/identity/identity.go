package identity

import (
	"context"
	"strings"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/session"
)

// Error is one reason an identity operation was refused.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result reports the outcome of Create, Update and AddToRole. A failed
// result is a normal outcome the caller shows to the user; the error
// return of those methods is reserved for infrastructure faults.
type Result struct {
	Errors []Error
}

func (r Result) Succeeded() bool {
	return len(r.Errors) == 0
}

func (r Result) String() string {
	if r.Succeeded() {
		return "Succeeded"
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Code)
	}
	return "Failed: " + strings.Join(parts, ",")
}

func Failed(errs ...Error) Result {
	return Result{Errors: errs}
}

// UserStore is the credential store contract.
type UserStore interface {
	Create(ctx context.Context, u user.User) error
	Update(ctx context.Context, u user.User) error
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	AddToRole(ctx context.Context, userID, role string) error
	Roles(ctx context.Context, userID string) ([]string, error)
}

// Service is what the account lifecycle consumes.
type Service interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u *user.User, password string) (Result, error)
	Update(ctx context.Context, u user.User) (Result, error)
	AddToRole(ctx context.Context, u user.User, role string) (Result, error)
	Roles(ctx context.Context, u user.User) ([]string, error)
	CheckPassword(ctx context.Context, u user.User, password string) bool
	SignIn(ctx context.Context, u user.User, persistent bool) (session.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}
