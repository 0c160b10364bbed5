package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ProfileReader interface {
	GetProfile(ctx context.Context, email string) (user.ProfileView, error)
}

// ProfileAPIHandler serves the bearer-token view of the caller's profile.
type ProfileAPIHandler struct {
	profiles ProfileReader
}

func NewProfileAPIHandler(profiles ProfileReader) *ProfileAPIHandler {
	return &ProfileAPIHandler{profiles: profiles}
}

func (h *ProfileAPIHandler) Me(ctx *gin.Context) {
	email, ok := middlewares.EmailFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return
	}

	view, err := h.profiles.GetProfile(ctx.Request.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not load profile")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, view)
}
