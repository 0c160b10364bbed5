package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, req user.RegistrationRequest) (account.Registration, error)
	GetProfile(ctx context.Context, email string) (user.ProfileView, error)
	UpdateProfile(ctx context.Context, req user.ProfileUpdateRequest) (user.ProfileView, error)
}

type AccountHandler struct {
	accounts     AccountService
	log          *slog.Logger
	secureCookie bool
}

func NewAccountHandler(accounts AccountService, log *slog.Logger, secureCookie bool) *AccountHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AccountHandler{accounts: accounts, log: log, secureCookie: secureCookie}
}

func (h *AccountHandler) Index(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "index.tmpl", newPage(ctx, "Account"))
}

func (h *AccountHandler) CreateForm(ctx *gin.Context) {
	p := newPage(ctx, "Register")
	p.Form = user.RegistrationRequest{}
	ctx.HTML(http.StatusOK, "create.tmpl", p)
}

func (h *AccountHandler) Create(ctx *gin.Context) {
	var req user.RegistrationRequest

	if !BindForm(ctx, &req) {
		return
	}

	img, closeImg, err := formImage(ctx, "image")
	if err != nil {
		RespondBadRequest(ctx, "Invalid image upload", gin.H{"reason": err.Error()})
		return
	}
	defer closeImg()
	req.Image = img

	ctx.Set(middlewares.CtxUserRef, req.Email)

	reg, err := h.accounts.Register(ctx.Request.Context(), req)
	if err != nil {
		// passwords are never echoed back
		echo := req
		echo.Password, echo.ConfirmPassword, echo.Image = "", "", nil

		p := newPage(ctx, "Register")
		p.Form = echo

		var verr *account.ValidationError
		if errors.As(err, &verr) {
			ctx.HTML(http.StatusBadRequest, "create.tmpl", p.withError(err))
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "registration failed",
			"state", reg.State,
			"trail", reg.Trail,
			"err", err,
		)
		p.Messages = []string{msgUnableToRegister}
		ctx.HTML(http.StatusInternalServerError, "create.tmpl", p)
		return
	}

	middlewares.SetSessionCookie(ctx, reg.Session, h.secureCookie)
	ctx.Redirect(http.StatusFound, profileURL(reg.Profile.Email))
}

func (h *AccountHandler) UserProfile(ctx *gin.Context) {
	email := ctx.Query("email")

	view, err := h.accounts.GetProfile(ctx.Request.Context(), email)
	if err != nil {
		if !errors.Is(err, account.ErrEmailRequired) && !errors.Is(err, user.ErrNotFound) {
			h.log.ErrorContext(ctx.Request.Context(), "profile lookup failed", "err", err)
		}
		ctx.Redirect(http.StatusFound, loginPath)
		return
	}

	ctx.Set(middlewares.CtxUserRef, view.ID)

	p := newPage(ctx, "Profile")
	p.Profile = &view
	p.Form = user.ProfileUpdateRequest{
		ID:            view.ID,
		Email:         view.Email,
		Name:          deref(view.Name),
		Gender:        deref(view.Gender),
		MaritalStatus: deref(view.MaritalStatus),
		DateOfBirth:   view.DateOfBirthValue(),
	}
	ctx.HTML(http.StatusOK, "profile.tmpl", p)
}

func (h *AccountHandler) UpdateUser(ctx *gin.Context) {
	var req user.ProfileUpdateRequest

	if !BindForm(ctx, &req) {
		return
	}

	img, closeImg, err := formImage(ctx, "image")
	if err != nil {
		RespondBadRequest(ctx, "Invalid image upload", gin.H{"reason": err.Error()})
		return
	}
	defer closeImg()
	req.Image = img

	ctx.Set(middlewares.CtxUserRef, req.ID)

	view, err := h.accounts.UpdateProfile(ctx.Request.Context(), req)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		echo := req
		echo.Image = nil
		p := newPage(ctx, "Profile")
		p.Form = echo

		var verr *account.ValidationError
		if errors.As(err, &verr) {
			ctx.HTML(http.StatusBadRequest, "profile.tmpl", p.withError(err))
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "profile update failed", "err", err)
		p.Messages = []string{msgUnableToUpdate}
		ctx.HTML(http.StatusInternalServerError, "profile.tmpl", p)
		return
	}

	ctx.Redirect(http.StatusFound, profileURL(view.Email))
}

// Details, Edit and Delete exist for route compatibility; they never mutate.

func (h *AccountHandler) Details(ctx *gin.Context) {
	p := newPage(ctx, "Account details")
	p.ID = ctx.Param("id")
	ctx.HTML(http.StatusOK, "details.tmpl", p)
}

func (h *AccountHandler) DeleteForm(ctx *gin.Context) {
	p := newPage(ctx, "Delete account")
	p.ID = ctx.Param("id")
	ctx.HTML(http.StatusOK, "delete.tmpl", p)
}

func (h *AccountHandler) Delete(ctx *gin.Context) {
	ctx.Redirect(http.StatusFound, indexPath)
}

func (h *AccountHandler) Edit(ctx *gin.Context) {
	ctx.Redirect(http.StatusFound, indexPath)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
