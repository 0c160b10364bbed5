package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/session"
	"github.com/gin-gonic/gin"
)

type SignInService interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	CheckPassword(ctx context.Context, u user.User, password string) bool
	SignIn(ctx context.Context, u user.User, persistent bool) (session.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

type LoginRequest struct {
	Email      string `form:"email"`
	Password   string `form:"password"`
	RememberMe bool   `form:"rememberMe"`
}

type LoginHandler struct {
	identity     SignInService
	log          *slog.Logger
	secureCookie bool
	storeTimeout time.Duration
}

// NewLoginHandler bounds every identity call by storeTimeout.
func NewLoginHandler(identity SignInService, log *slog.Logger, secureCookie bool, storeTimeout time.Duration) *LoginHandler {
	if log == nil {
		log = slog.Default()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &LoginHandler{identity: identity, log: log, secureCookie: secureCookie, storeTimeout: storeTimeout}
}

func (h *LoginHandler) LoginForm(ctx *gin.Context) {
	p := newPage(ctx, "Log in")
	p.Form = LoginRequest{}
	ctx.HTML(http.StatusOK, "login.tmpl", p)
}

func (h *LoginHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindForm(ctx, &req) {
		return
	}

	ctx.Set(middlewares.CtxUserRef, req.Email)

	fail := func(status int, msg string) {
		p := newPage(ctx, "Log in")
		p.Form = LoginRequest{Email: req.Email}
		p.Messages = []string{msg}
		ctx.HTML(status, "login.tmpl", p)
	}

	storeCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.storeTimeout)
	defer cancel()

	u, err := h.identity.FindByEmail(storeCtx, req.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		h.log.ErrorContext(ctx.Request.Context(), "login lookup failed", "err", err)
		fail(signInFailureStatus(err), msgUnableToSignIn)
		return
	}
	if err != nil || !h.identity.CheckPassword(storeCtx, u, req.Password) {
		fail(http.StatusUnauthorized, msgInvalidLogin)
		return
	}

	s, err := h.identity.SignIn(storeCtx, u, req.RememberMe)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "sign in failed", "user_id", u.ID, "err", err)
		fail(signInFailureStatus(err), msgUnableToSignIn)
		return
	}

	middlewares.SetSessionCookie(ctx, s, h.secureCookie)
	ctx.Redirect(http.StatusFound, profileURL(u.Email))
}

func (h *LoginHandler) Logout(ctx *gin.Context) {
	if s, ok := middlewares.SessionFromContext(ctx); ok {
		storeCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.storeTimeout)
		defer cancel()
		if err := h.identity.SignOut(storeCtx, s.ID); err != nil {
			h.log.WarnContext(ctx.Request.Context(), "sign out failed", "err", err)
		}
	}

	middlewares.ClearSessionCookie(ctx, h.secureCookie)
	ctx.Redirect(http.StatusFound, indexPath)
}

// signInFailureStatus reports a timed out store as 503 so clients may retry.
func signInFailureStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
