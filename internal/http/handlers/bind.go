package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// BindForm maps form values onto out. Rule validation happens in the
// account service; only unreadable bodies fail here.
func BindForm(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBind(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondTooLarge(ctx, "Request body is too large")
		return false
	}

	RespondBadRequest(ctx, "Invalid form submission", gin.H{"reason": err.Error()})
	return false
}

// formImage returns the uploaded file under field, or nil when none was
// chosen. The caller must run the returned close func.
func formImage(ctx *gin.Context, field string) (*user.ImageUpload, func(), error) {
	noop := func() {}

	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	if fh.Size == 0 {
		return nil, noop, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}

	return &user.ImageUpload{
		FileName: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	}, func() { _ = f.Close() }, nil
}
