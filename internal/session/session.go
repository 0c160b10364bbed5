package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side record behind a signed-in browser.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

func New(userID, email string, persistent bool, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Email:      email,
		Persistent: persistent,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}
