package user

import (
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// RoleUser is granted to every account at registration.
const RoleUser = "User"

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already in use")
	ErrRoleNotFound = errors.New("role not found")
)

type User struct {
	ID              string     `json:"id"`
	UserName        string     `json:"userName"`
	Email           string     `json:"email"`
	NormalizedEmail string     `json:"-"`
	PasswordHash    string     `json:"-"` // never expose hash in JSON
	FullName        *string    `json:"fullName"`
	Gender          *string    `json:"gender"`
	MaritalStatus   *string    `json:"maritalStatus"`
	DateOfBirth     *time.Time `json:"dateOfBirth"`
	ImageURL        *string    `json:"imageUrl"`

	// Declared bookkeeping columns. Nothing writes them yet.
	CreatedDate          *time.Time `json:"createdDate,omitempty"`
	PasswordModifiedDate *time.Time `json:"passwordModifiedDate,omitempty"`
}

// ImageUpload is an avatar file attached to a registration or profile update.
type ImageUpload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

func (u *ImageUpload) Present() bool {
	return u != nil && u.Content != nil && u.Size > 0
}

type RegistrationRequest struct {
	Email           string       `form:"email" validate:"required,email"`
	Password        string       `form:"password" validate:"required"`
	ConfirmPassword string       `form:"confirmPassword" validate:"required,eqfield=Password"`
	Name            string       `form:"name" validate:"omitempty,max=256"`
	Gender          string       `form:"gender" validate:"omitempty,max=64"`
	MaritalStatus   string       `form:"maritalStatus" validate:"omitempty,max=64"`
	DateOfBirth     string       `form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Image           *ImageUpload `form:"-" validate:"-"`
}

// ProfileUpdateRequest carries Email for form round-trips only; it is never
// written back to the stored user.
type ProfileUpdateRequest struct {
	ID            string       `form:"id" validate:"required"`
	Email         string       `form:"email" validate:"omitempty,email"`
	Name          string       `form:"name" validate:"omitempty,max=256"`
	Gender        string       `form:"gender" validate:"omitempty,max=64"`
	MaritalStatus string       `form:"maritalStatus" validate:"omitempty,max=64"`
	DateOfBirth   string       `form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Image         *ImageUpload `form:"-" validate:"-"`
}

type ProfileView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          *string    `json:"name"`
	Gender        *string    `json:"gender"`
	MaritalStatus *string    `json:"maritalStatus"`
	DateOfBirth   *time.Time `json:"dateOfBirth"`
	Image         *string    `json:"image"`
}

// DateOfBirthValue renders the date for form inputs.
func (p ProfileView) DateOfBirthValue() string {
	if p.DateOfBirth == nil {
		return ""
	}
	return p.DateOfBirth.Format(DateLayout)
}

const DateLayout = "2006-01-02"

// NormalizeEmail is the uniqueness key used by every user store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewProfileView maps a stored user to its outward view. A stored image is
// reduced to its file name and served from publicRoot.
func NewProfileView(u User, publicRoot string) ProfileView {
	view := ProfileView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.FullName,
		Gender:        u.Gender,
		MaritalStatus: u.MaritalStatus,
		DateOfBirth:   u.DateOfBirth,
	}

	if u.ImageURL != nil && *u.ImageURL != "" {
		name := path.Base(strings.ReplaceAll(*u.ImageURL, "\\", "/"))
		served := path.Join("/", publicRoot, name)
		view.Image = &served
	}

	return view
}

// OptionalString maps an empty form value to nil.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ParseDateOfBirth parses an already validated YYYY-MM-DD value; empty means nil.
func ParseDateOfBirth(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
