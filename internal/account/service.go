package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/images"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ImageStore persists avatars. Inspect runs before the identity is created
// so a bad file is reported as a field error instead of a partial signup.
type ImageStore interface {
	Inspect(r io.Reader, size int64) (io.Reader, error)
	Save(ctx context.Context, r io.Reader, originalName string) (string, error)
	Remove(ctx context.Context, webPath string) error
}

type Recorder interface {
	ObserveAccount(op, outcome string)
	ObservePartialRegistration(state string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAccount(string, string)     {}
func (nopRecorder) ObservePartialRegistration(string) {}

type Options struct {
	StoreTimeout time.Duration
	PublicRoot   string
	Recorder     Recorder
}

type Service struct {
	identity   identity.Service
	images     ImageStore
	validate   *validator.Validate
	timeout    time.Duration
	publicRoot string
	rec        Recorder
	log        *slog.Logger
	tracer     trace.Tracer
}

func NewService(id identity.Service, imgs ImageStore, opts Options, log *slog.Logger) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.PublicRoot == "" {
		opts.PublicRoot = "/UserImages"
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		identity:   id,
		images:     imgs,
		validate:   newValidator(),
		timeout:    opts.StoreTimeout,
		publicRoot: opts.PublicRoot,
		rec:        opts.Recorder,
		log:        log.With("component", "account"),
		tracer:     observability.Tracer("account"),
	}
}

// call runs fn under the store timeout. Domain errors pass through, anything
// else becomes a *StorageError.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, user.ErrNotFound) {
		return err
	}
	return storageError(op, err)
}

// Register creates the account and signs the new user in. The returned
// Registration is meaningful on every path: its State says how far the
// attempt got.
func (s *Service) Register(ctx context.Context, req user.RegistrationRequest) (reg Registration, err error) {
	ctx, span := s.tracer.Start(ctx, "account.Register")
	defer func() {
		span.SetAttributes(attribute.String("registration.state", string(reg.State)))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	reg.advance(StateSubmitted)

	fields, err := fieldErrors(s.validate, req)
	if err != nil {
		reg.advance(StateRejected)
		s.rec.ObserveAccount("register", "error")
		return reg, fmt.Errorf("%w: %w", ErrUnableToRegister, err)
	}

	if req.Image.Present() {
		content, imgErr := s.images.Inspect(req.Image.Content, req.Image.Size)
		switch {
		case imgErr == nil:
			req.Image.Content = content
		case isImageRejection(imgErr):
			fields = append(fields, imageFieldError(imgErr))
		default:
			reg.advance(StateRejected)
			s.rec.ObserveAccount("register", "error")
			return reg, fmt.Errorf("%w: %w", ErrUnableToRegister, storageError("inspect image", imgErr))
		}
	}

	if len(fields) > 0 {
		reg.advance(StateRejected)
		s.rec.ObserveAccount("register", "invalid")
		return reg, &ValidationError{Fields: fields}
	}
	reg.advance(StateValidated)

	u, err := newUser(req)
	if err != nil {
		reg.advance(StateRejected)
		s.rec.ObserveAccount("register", "invalid")
		return reg, &ValidationError{Fields: []FieldError{{
			Field: "dateOfBirth", Rule: "datetime", Message: validationMessage("datetime", ""),
		}}}
	}

	var res identity.Result
	err = s.call(ctx, "create identity", func(ctx context.Context) error {
		var createErr error
		res, createErr = s.identity.Create(ctx, &u, req.Password)
		return createErr
	})
	if err != nil {
		reg.advance(StateRejected)
		s.rec.ObserveAccount("register", "error")
		s.log.ErrorContext(ctx, "register: create identity failed", "err", err)
		return reg, fmt.Errorf("%w: %w", ErrUnableToRegister, err)
	}
	if !res.Succeeded() {
		reg.advance(StateRejected)
		s.rec.ObserveAccount("register", "invalid")
		s.log.InfoContext(ctx, "register: identity refused", "result", res.String())
		return reg, &ValidationError{Identity: res.Errors}
	}
	reg.advance(StateIdentityCreated)

	partial := func(cause error) (Registration, error) {
		perr := &PartialRegistrationError{State: reg.lastGood(), UserID: u.ID, Err: cause}
		reg.advance(StateRejectedPartial)
		s.rec.ObserveAccount("register", "partial")
		s.rec.ObservePartialRegistration(string(perr.State))
		s.log.ErrorContext(ctx, "register: partial registration",
			"user_id", u.ID,
			"state", perr.State,
			"err", cause,
		)
		return reg, perr
	}

	if req.Image.Present() {
		if err := s.storeImage(ctx, &u, req.Image); err != nil {
			return partial(err)
		}
		reg.advance(StateImageStored)
	}

	err = s.call(ctx, "assign role", func(ctx context.Context) error {
		var roleErr error
		res, roleErr = s.identity.AddToRole(ctx, u, user.RoleUser)
		return roleErr
	})
	if err == nil && !res.Succeeded() {
		err = fmt.Errorf("assign role %s: %s", user.RoleUser, res)
	}
	if err != nil {
		return partial(err)
	}
	reg.advance(StateRoleAssigned)

	err = s.call(ctx, "sign in", func(ctx context.Context) error {
		var signErr error
		reg.Session, signErr = s.identity.SignIn(ctx, u, false)
		return signErr
	})
	if err != nil {
		return partial(err)
	}
	reg.advance(StateSignedIn)

	reg.Profile = user.NewProfileView(u, s.publicRoot)
	reg.advance(StateCompleted)

	s.rec.ObserveAccount("register", "ok")
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return reg, nil
}

// storeImage saves the upload and records its web path on the user.
func (s *Service) storeImage(ctx context.Context, u *user.User, img *user.ImageUpload) error {
	var webPath string
	err := s.call(ctx, "save image", func(ctx context.Context) error {
		var saveErr error
		webPath, saveErr = s.images.Save(ctx, img.Content, img.FileName)
		return saveErr
	})
	if err != nil {
		return err
	}

	u.ImageURL = &webPath

	var res identity.Result
	err = s.call(ctx, "update user", func(ctx context.Context) error {
		var updateErr error
		res, updateErr = s.identity.Update(ctx, *u)
		return updateErr
	})
	if err == nil && !res.Succeeded() {
		err = fmt.Errorf("record image: %s", res)
	}
	if err != nil {
		u.ImageURL = nil
		s.discardImage(ctx, webPath)
		return err
	}
	return nil
}

// discardImage removes a stored file no user row points to. It runs on a
// fresh deadline since ctx may be the one that expired. A failed removal is
// logged with the path for manual cleanup.
func (s *Service) discardImage(ctx context.Context, webPath string) {
	err := s.call(context.WithoutCancel(ctx), "remove image", func(ctx context.Context) error {
		return s.images.Remove(ctx, webPath)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "orphaned image left on disk", "image", webPath, "err", err)
	}
}

// GetProfile returns user.ErrNotFound for an unknown email and
// ErrEmailRequired for a blank one.
func (s *Service) GetProfile(ctx context.Context, email string) (user.ProfileView, error) {
	ctx, span := s.tracer.Start(ctx, "account.GetProfile")
	defer span.End()

	if user.NormalizeEmail(email) == "" {
		return user.ProfileView{}, ErrEmailRequired
	}

	var u user.User
	err := s.call(ctx, "find user", func(ctx context.Context) error {
		var findErr error
		u, findErr = s.identity.FindByEmail(ctx, email)
		return findErr
	})
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
			s.rec.ObserveAccount("get_profile", "error")
			s.log.ErrorContext(ctx, "get profile failed", "err", err)
		} else {
			s.rec.ObserveAccount("get_profile", "not_found")
		}
		return user.ProfileView{}, err
	}

	s.rec.ObserveAccount("get_profile", "ok")
	return user.NewProfileView(u, s.publicRoot), nil
}

// UpdateProfile overwrites the profile attributes of the user with req.ID.
// Email on the request is not applied.
func (s *Service) UpdateProfile(ctx context.Context, req user.ProfileUpdateRequest) (user.ProfileView, error) {
	ctx, span := s.tracer.Start(ctx, "account.UpdateProfile")
	defer span.End()

	fields, err := fieldErrors(s.validate, req)
	if err != nil {
		return user.ProfileView{}, err
	}

	if req.Image.Present() {
		content, imgErr := s.images.Inspect(req.Image.Content, req.Image.Size)
		switch {
		case imgErr == nil:
			req.Image.Content = content
		case isImageRejection(imgErr):
			fields = append(fields, imageFieldError(imgErr))
		default:
			return user.ProfileView{}, storageError("inspect image", imgErr)
		}
	}

	dob, dobErr := user.ParseDateOfBirth(req.DateOfBirth)
	if dobErr != nil && len(fields) == 0 {
		fields = append(fields, FieldError{Field: "dateOfBirth", Rule: "datetime", Message: validationMessage("datetime", "")})
	}

	if len(fields) > 0 {
		s.rec.ObserveAccount("update_profile", "invalid")
		return user.ProfileView{}, &ValidationError{Fields: fields}
	}

	var u user.User
	err = s.call(ctx, "find user", func(ctx context.Context) error {
		var findErr error
		u, findErr = s.identity.FindByID(ctx, req.ID)
		return findErr
	})
	if err != nil {
		return user.ProfileView{}, s.updateFailed(ctx, span, err)
	}

	u.FullName = user.OptionalString(req.Name)
	u.Gender = user.OptionalString(req.Gender)
	u.MaritalStatus = user.OptionalString(req.MaritalStatus)
	u.DateOfBirth = dob

	var newImage string
	if req.Image.Present() {
		err = s.call(ctx, "save image", func(ctx context.Context) error {
			var saveErr error
			newImage, saveErr = s.images.Save(ctx, req.Image.Content, req.Image.FileName)
			return saveErr
		})
		if err != nil {
			return user.ProfileView{}, s.updateFailed(ctx, span, err)
		}
		u.ImageURL = &newImage
	}

	var res identity.Result
	err = s.call(ctx, "update user", func(ctx context.Context) error {
		var updateErr error
		res, updateErr = s.identity.Update(ctx, u)
		return updateErr
	})
	if (err != nil || !res.Succeeded()) && newImage != "" {
		s.discardImage(ctx, newImage)
	}
	if err != nil {
		return user.ProfileView{}, s.updateFailed(ctx, span, err)
	}
	if !res.Succeeded() {
		s.rec.ObserveAccount("update_profile", "invalid")
		return user.ProfileView{}, &ValidationError{Identity: res.Errors}
	}

	s.rec.ObserveAccount("update_profile", "ok")
	s.log.InfoContext(ctx, "profile updated", "user_id", u.ID)
	return user.NewProfileView(u, s.publicRoot), nil
}

func (s *Service) updateFailed(ctx context.Context, span trace.Span, err error) error {
	if errors.Is(err, user.ErrNotFound) {
		s.rec.ObserveAccount("update_profile", "not_found")
		return err
	}
	span.SetStatus(codes.Error, err.Error())
	s.rec.ObserveAccount("update_profile", "error")
	s.log.ErrorContext(ctx, "update profile failed", "err", err)
	return err
}

func newUser(req user.RegistrationRequest) (user.User, error) {
	dob, err := user.ParseDateOfBirth(req.DateOfBirth)
	if err != nil {
		return user.User{}, err
	}

	email := req.Email
	return user.User{
		UserName:      email,
		Email:         email,
		FullName:      user.OptionalString(req.Name),
		Gender:        user.OptionalString(req.Gender),
		MaritalStatus: user.OptionalString(req.MaritalStatus),
		DateOfBirth:   dob,
	}, nil
}

func isImageRejection(err error) bool {
	return errors.Is(err, images.ErrEmpty) ||
		errors.Is(err, images.ErrTooLarge) ||
		errors.Is(err, images.ErrUnsupportedType)
}

func imageFieldError(err error) FieldError {
	switch {
	case errors.Is(err, images.ErrTooLarge):
		return FieldError{Field: "image", Rule: "max", Message: "is too large"}
	case errors.Is(err, images.ErrUnsupportedType):
		return FieldError{Field: "image", Rule: "image", Message: "must be an image file"}
	default:
		return FieldError{Field: "image", Rule: "required", Message: "is empty"}
	}
}
