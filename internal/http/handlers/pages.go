package handlers

import (
	"errors"
	"net/url"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	loginPath   = "/Account/Login"
	indexPath   = "/Account"
	profilePath = "/Account/UserProfile"

	msgUnableToRegister = "Unable to register. Please try again later."
	msgUnableToUpdate   = "Unable to update the profile. Please try again later."
	msgInvalidLogin     = "Invalid login attempt."
	msgUnableToSignIn   = "Unable to sign in. Please try again later."
)

// page is the data every account view renders from.
type page struct {
	Title      string
	CSRF       string
	SignedInAs string
	Messages   []string
	Errors     map[string]string
	Form       interface{}
	Profile    *user.ProfileView
	ID         string
}

func newPage(ctx *gin.Context, title string) page {
	p := page{
		Title:  title,
		CSRF:   middlewares.CSRFToken(ctx),
		Errors: map[string]string{},
	}
	if s, ok := middlewares.SessionFromContext(ctx); ok {
		p.SignedInAs = s.Email
	}
	return p
}

// withError spreads a service error over the page: field errors next to
// their inputs, identity errors in the summary list.
func (p page) withError(err error) page {
	var verr *account.ValidationError
	if !errors.As(err, &verr) {
		return p
	}

	for _, f := range verr.Fields {
		if _, exists := p.Errors[f.Field]; !exists {
			p.Errors[f.Field] = f.Field + " " + f.Message
		}
	}
	p.Messages = append(p.Messages, verr.Messages()...)
	return p
}

func profileURL(email string) string {
	return profilePath + "?email=" + url.QueryEscape(email)
}
