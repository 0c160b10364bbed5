package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TokenIssuer interface {
	Issue(ctx context.Context, email string) (auth.Token, error)
}

type TokenRecorder interface {
	ObserveTokenIssued()
}

type TokenHandler struct {
	tokens TokenIssuer
	rec    TokenRecorder
	log    *slog.Logger
}

func NewTokenHandler(tokens TokenIssuer, rec TokenRecorder, log *slog.Logger) *TokenHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TokenHandler{tokens: tokens, rec: rec, log: log}
}

func (h *TokenHandler) CreateToken(ctx *gin.Context) {
	email := strings.TrimSpace(ctx.Query("email"))
	if email == "" {
		RespondBadRequest(ctx, "email is required", nil)
		return
	}

	ctx.Set(middlewares.CtxUserRef, email)

	tok, err := h.tokens.Issue(ctx.Request.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		if errors.Is(err, auth.ErrStoreUnavailable) {
			h.log.WarnContext(ctx.Request.Context(), "token issue timed out", "err", err)
			RespondUnavailable(ctx, "User store is temporarily unavailable")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "token issue failed", "err", err)
		RespondInternal(ctx, "Could not generate token")
		return
	}

	if h.rec != nil {
		h.rec.ObserveTokenIssued()
	}

	ctx.JSON(http.StatusOK, tok)
}
