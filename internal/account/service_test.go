package account

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/images"
	"github.com/geocoder89/profilehub/internal/repo/memory"
	"github.com/geocoder89/profilehub/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89"), bytes.Repeat([]byte{0x7f}, 128)...)

// countingIdentity records calls and lets a test fail individual steps.
type countingIdentity struct {
	identity.Service
	creates   atomic.Int32
	failRole   error
	failLogin  error
	failUpdate error
}

func (c *countingIdentity) Update(ctx context.Context, u user.User) (identity.Result, error) {
	if c.failUpdate != nil {
		return identity.Result{}, c.failUpdate
	}
	return c.Service.Update(ctx, u)
}

func (c *countingIdentity) Create(ctx context.Context, u *user.User, password string) (identity.Result, error) {
	c.creates.Add(1)
	return c.Service.Create(ctx, u, password)
}

func (c *countingIdentity) AddToRole(ctx context.Context, u user.User, role string) (identity.Result, error) {
	if c.failRole != nil {
		return identity.Result{}, c.failRole
	}
	return c.Service.AddToRole(ctx, u, role)
}

func (c *countingIdentity) SignIn(ctx context.Context, u user.User, persistent bool) (session.Session, error) {
	if c.failLogin != nil {
		return session.Session{}, c.failLogin
	}
	return c.Service.SignIn(ctx, u, persistent)
}

type spyRecorder struct {
	mu       sync.Mutex
	outcomes []string
	partials []string
}

func (r *spyRecorder) ObserveAccount(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, op+":"+outcome)
}

func (r *spyRecorder) ObservePartialRegistration(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partials = append(r.partials, state)
}

type fixture struct {
	svc      *Service
	users    *memory.UsersRepo
	identity *countingIdentity
	images   *images.Store
	rec      *spyRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := memory.NewUsersRepo(user.RoleUser)
	mgr := identity.NewManager(users, session.NewMemoryStore(), identity.Options{SessionTTL: time.Minute}, log)
	id := &countingIdentity{Service: mgr}
	imgs := images.NewStore(filepath.Join(t.TempDir(), "UserImages"), "UserImages", 1<<20)

	rec := &spyRecorder{}

	svc := NewService(id, imgs, Options{StoreTimeout: time.Second, PublicRoot: "/UserImages", Recorder: rec}, log)
	return &fixture{svc: svc, users: users, identity: id, images: imgs, rec: rec}
}

func validRequest(email string) user.RegistrationRequest {
	return user.RegistrationRequest{
		Email:           email,
		Password:        "P@ssw0rd!",
		ConfirmPassword: "P@ssw0rd!",
	}
}

func TestRegister_ScenarioNoImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, validRequest("a@x.com"))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, reg.State)
	assert.Equal(t, []State{
		StateSubmitted, StateValidated, StateIdentityCreated,
		StateRoleAssigned, StateSignedIn, StateCompleted,
	}, reg.Trail)

	assert.Equal(t, "a@x.com", reg.Profile.Email)
	assert.NotEmpty(t, reg.Profile.ID)
	assert.Nil(t, reg.Profile.Image)
	assert.NotEmpty(t, reg.Session.ID)

	roles, err := f.users.Roles(ctx, reg.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleUser}, roles)

	stored, err := f.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.UserName, "username mirrors email")
}

func TestRegister_ProfileMatchesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := validRequest("b@x.com")
	req.Name = "Bea"
	req.Gender = "F"
	req.MaritalStatus = "Single"
	req.DateOfBirth = "1991-02-03"

	_, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	view, err := f.svc.GetProfile(ctx, "b@x.com")
	require.NoError(t, err)

	require.NotNil(t, view.Name)
	assert.Equal(t, "Bea", *view.Name)
	require.NotNil(t, view.Gender)
	assert.Equal(t, "F", *view.Gender)
	require.NotNil(t, view.MaritalStatus)
	assert.Equal(t, "Single", *view.MaritalStatus)
	assert.Equal(t, "1991-02-03", view.DateOfBirthValue())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, validRequest("a@x.com"))
	require.NoError(t, err)

	reg, err := f.svc.Register(ctx, validRequest("a@x.com"))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasCode("DuplicateEmail"))
	assert.Equal(t, StateRejected, reg.State)
	assert.Equal(t, 1, f.users.Count())
}

func TestRegister_PasswordMismatchNeverReachesIdentity(t *testing.T) {
	f := newFixture(t)

	req := validRequest("a@x.com")
	req.ConfirmPassword = "Other0ne!"

	reg, err := f.svc.Register(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "confirmPassword", verr.Fields[0].Field)
	assert.Equal(t, "eqfield", verr.Fields[0].Rule)
	assert.Equal(t, "must match password", verr.Fields[0].Message)

	assert.Equal(t, []State{StateSubmitted, StateRejected}, reg.Trail)
	assert.Zero(t, f.identity.creates.Load())
}

func TestRegister_FieldValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *user.RegistrationRequest)
		wantField string
		wantRule  string
	}{
		{name: "missing_email", mutate: func(r *user.RegistrationRequest) { r.Email = "" }, wantField: "email", wantRule: "required"},
		{name: "bad_email", mutate: func(r *user.RegistrationRequest) { r.Email = "not-an-email" }, wantField: "email", wantRule: "email"},
		{name: "bad_date", mutate: func(r *user.RegistrationRequest) { r.DateOfBirth = "03/02/1991" }, wantField: "dateOfBirth", wantRule: "datetime"},
		{name: "missing_password", mutate: func(r *user.RegistrationRequest) { r.Password = ""; r.ConfirmPassword = "" }, wantField: "password", wantRule: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest("a@x.com")
			tt.mutate(&req)

			_, err := f.svc.Register(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			assert.Equal(t, tt.wantRule, verr.Fields[0].Rule)
			assert.Zero(t, f.identity.creates.Load())
		})
	}
}

func TestRegister_WeakPasswordReportsIdentityErrors(t *testing.T) {
	f := newFixture(t)

	req := validRequest("a@x.com")
	req.Password = "password"
	req.ConfirmPassword = "password"

	_, err := f.svc.Register(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasCode("PasswordRequiresDigit"))
	assert.True(t, verr.HasCode("PasswordRequiresUpper"))
	assert.Len(t, verr.Messages(), len(verr.Identity))
	assert.Equal(t, 0, f.users.Count())
}

func TestRegister_ImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := validRequest("img@x.com")
	req.Image = &user.ImageUpload{FileName: "me.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)}

	reg, err := f.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, reg.Trail, StateImageStored)

	view, err := f.svc.GetProfile(ctx, "img@x.com")
	require.NoError(t, err)
	require.NotNil(t, view.Image)
	assert.Regexp(t, `^/UserImages/[0-9a-f-]{36}\.png$`, *view.Image)

	got, err := os.ReadFile(f.images.Path(*view.Image))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}

func TestRegister_BadImageIsAFieldError(t *testing.T) {
	f := newFixture(t)

	req := validRequest("a@x.com")
	data := []byte("just some text")
	req.Image = &user.ImageUpload{FileName: "me.png", Size: int64(len(data)), Content: bytes.NewReader(data)}

	_, err := f.svc.Register(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Fields[0].Field)
	assert.Zero(t, f.identity.creates.Load())
}

func TestRegister_FaultAfterIdentityIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.failLogin = errors.New("session backend down")

	reg, err := f.svc.Register(ctx, validRequest("a@x.com"))

	var perr *PartialRegistrationError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrUnableToRegister)
	assert.Equal(t, StateRoleAssigned, perr.State)
	assert.NotEmpty(t, perr.UserID)
	assert.Equal(t, StateRejectedPartial, reg.State)
	assert.Equal(t, []string{"register:partial"}, f.rec.outcomes)
	assert.Equal(t, []string{string(StateRoleAssigned)}, f.rec.partials)

	// no rollback: the identity and its role stay behind
	assert.Equal(t, 1, f.users.Count())
	roles, err := f.users.Roles(ctx, perr.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleUser}, roles)
}

func TestRegister_RoleFailureLeavesUserWithoutRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.failRole = context.DeadlineExceeded

	_, err := f.svc.Register(ctx, validRequest("a@x.com"))

	var perr *PartialRegistrationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateIdentityCreated, perr.State)

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Transient)

	roles, err := f.users.Roles(ctx, perr.UserID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), validRequest("race@x.com"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasCode("DuplicateEmail"))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.users.Count())
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetProfile(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = f.svc.GetProfile(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, validRequest("a@x.com"))
	require.NoError(t, err)

	view, err := f.svc.UpdateProfile(ctx, user.ProfileUpdateRequest{
		ID:          reg.Profile.ID,
		Email:       "ignored@x.com",
		Name:        "Ann",
		DateOfBirth: "1980-01-01",
		Image:       &user.ImageUpload{FileName: "new.PNG", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)},
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", view.Email)
	require.NotNil(t, view.Name)
	assert.Equal(t, "Ann", *view.Name)
	assert.Nil(t, view.Gender)
	require.NotNil(t, view.Image)
	assert.Regexp(t, `^/UserImages/.+\.png$`, *view.Image)

	stored, err := f.users.GetByID(ctx, reg.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.Email, "email is not applied")
	require.NotNil(t, stored.ImageURL)
	assert.Equal(t, *view.Image, *stored.ImageURL, "stored and served paths share one form")
}

func storedImages(t *testing.T, f *fixture) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.images.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestUpdateProfile_FailedUpdateRemovesNewImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, validRequest("a@x.com"))
	require.NoError(t, err)

	f.identity.failUpdate = errors.New("database unavailable")
	_, err = f.svc.UpdateProfile(ctx, user.ProfileUpdateRequest{
		ID:    reg.Profile.ID,
		Name:  "Ann",
		Image: &user.ImageUpload{FileName: "new.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)},
	})

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, storedImages(t, f), "no file may outlive a failed update")

	stored, err := f.users.GetByID(ctx, reg.Profile.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ImageURL)
}

func TestRegister_FailedImageRecordRemovesFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.failUpdate = context.DeadlineExceeded

	req := validRequest("a@x.com")
	req.Image = &user.ImageUpload{FileName: "me.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)}

	_, err := f.svc.Register(ctx, req)

	var perr *PartialRegistrationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateIdentityCreated, perr.State)
	assert.Empty(t, storedImages(t, f))
}

func TestUpdateProfile_UnknownID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, validRequest("a@x.com"))
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, user.ProfileUpdateRequest{ID: "does-not-exist", Name: "X"})
	assert.ErrorIs(t, err, user.ErrNotFound)

	stored, err := f.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.FullName)
}

func TestUpdateProfile_MissingID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), user.ProfileUpdateRequest{Name: "X"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Fields[0].Field)
}
