package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	// ErrStoreUnavailable marks a lookup that ran out of time; callers may retry.
	ErrStoreUnavailable = errors.New("user store unavailable")
)

// Claims mirrors the claim names the identity framework tokens carried.
type Claims struct {
	UniqueName string `json:"unique_name"`
	UserID     string `json:"nameid"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Token is what CreateToken hands back to clients.
type Token struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// UserFinder keeps the issuer decoupled from the identity package.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
}

type Options struct {
	Secret       string
	Issuer       string
	Audience     string
	TTL          time.Duration
	ClockSkew    time.Duration
	StoreTimeout time.Duration
}

type Manager struct {
	users    UserFinder
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	skew     time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewManager(users UserFinder, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.ClockSkew < 0 {
		opts.ClockSkew = 0
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}

	return &Manager{
		users:    users,
		secret:   []byte(opts.Secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		skew:     opts.ClockSkew,
		timeout:  opts.StoreTimeout,
		now:      time.Now,
	}
}

// Issue signs a token for the user with email. An unknown email returns
// user.ErrNotFound; a lookup that times out returns ErrStoreUnavailable.
func (m *Manager) Issue(ctx context.Context, email string) (Token, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, m.timeout)
	u, err := m.users.FindByEmail(lookupCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Token{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return Token{}, err
	}

	now := m.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		UniqueName: u.UserName,
		UserID:     u.ID,
		Email:      u.Email,
		Role:       user.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.UserName,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{Token: signed, Expiration: expiresAt}, nil
}

// Verify checks signature, method, expiry, issuer and audience. No server
// state is consulted.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithLeeway(m.skew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
