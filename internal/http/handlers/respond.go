package handlers

import (
	"net/http"

	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every JSON failure: {"error": APIError}.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondUnavailable(ctx *gin.Context, message string) {
	ctx.Header("Retry-After", "1")
	RespondError(ctx, http.StatusServiceUnavailable, "store_unavailable", message, nil)
}

func RespondTooLarge(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusRequestEntityTooLarge, "request_too_large", message, nil)
}
