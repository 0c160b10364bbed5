package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

type fakeUsers struct {
	users map[string]user.User
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (user.User, error) {
	u, ok := f.users[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func newTestManager(now time.Time) *Manager {
	users := fakeUsers{users: map[string]user.User{
		"a@x.com": {ID: "u-1", UserName: "a@x.com", Email: "a@x.com"},
	}}

	m := NewManager(users, Options{
		Secret:    "test-secret",
		Issuer:    "profilehub",
		Audience:  "profilehub-clients",
		ClockSkew: time.Minute,
	})
	m.now = func() time.Time { return now }
	return m
}

func TestManager_IssueAndVerify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestManager(issuedAt)

	tok, err := m.Issue(context.Background(), "A@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if want := issuedAt.Add(30 * time.Minute); !tok.Expiration.Equal(want) {
		t.Fatalf("expiration = %s, want %s", tok.Expiration, want)
	}

	claims, err := m.Verify(tok.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.Email != "a@x.com" || claims.UserID != "u-1" || claims.UniqueName != "a@x.com" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if claims.Role != user.RoleUser {
		t.Fatalf("role = %q, want %q", claims.Role, user.RoleUser)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Fatalf("lifetime = %s, want 30m", got)
	}
}

func TestManager_IssueUnknownUser(t *testing.T) {
	m := newTestManager(time.Now())

	_, err := m.Issue(context.Background(), "nobody@x.com")
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestManager_VerifyClockSkew(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestManager(issuedAt)

	tok, err := m.Issue(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{name: "fresh", at: issuedAt.Add(time.Minute)},
		{name: "within_skew", at: issuedAt.Add(30*time.Minute + 30*time.Second)},
		{name: "past_skew", at: issuedAt.Add(32 * time.Minute), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.now = func() time.Time { return tt.at }

			_, err := m.Verify(tok.Token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("verify err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestManager_VerifyRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	sign := func(method jwt.SigningMethod, key interface{}, iss, aud string) string {
		claims := Claims{
			Email: "a@x.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    iss,
				Audience:  jwt.ClaimStrings{aud},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong_secret", token: sign(jwt.SigningMethodHS256, []byte("other"), "profilehub", "profilehub-clients")},
		{name: "wrong_issuer", token: sign(jwt.SigningMethodHS256, []byte("test-secret"), "evil", "profilehub-clients")},
		{name: "wrong_audience", token: sign(jwt.SigningMethodHS256, []byte("test-secret"), "profilehub", "evil")},
		{name: "wrong_method", token: sign(jwt.SigningMethodHS512, []byte("test-secret"), "profilehub", "profilehub-clients")},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); err == nil {
				t.Fatalf("expected verification to fail")
			}
		})
	}
}

type blockingUsers struct{}

func (blockingUsers) FindByEmail(ctx context.Context, _ string) (user.User, error) {
	<-ctx.Done()
	return user.User{}, ctx.Err()
}

func TestManager_IssueLookupTimesOut(t *testing.T) {
	m := NewManager(blockingUsers{}, Options{Secret: "test-secret", StoreTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := m.Issue(context.Background(), "a@x.com")

	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want the deadline kept in the chain", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("lookup was not bounded: %s", elapsed)
	}
}
