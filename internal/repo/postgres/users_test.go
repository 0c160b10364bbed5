package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{
	"id", "user_name", "email", "normalized_email", "password_hash",
	"full_name", "gender", "marital_status", "date_of_birth", "image_url",
	"created_date", "password_modified_date",
}

func newMockRepo(t *testing.T) (*UsersRepo, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewUsersRepo(mock, nil), mock
}

func TestUsersRepo_GetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	name := "Ann"
	image := "/UserImages/a.png"
	dob := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE normalized_email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(mock.NewRows(userCols).AddRow(
			"u-1", "A@x.com", "A@x.com", "a@x.com", "hash",
			&name, nil, nil, &dob, &image,
			nil, nil,
		))

	u, err := repo.GetByEmail(context.Background(), "  A@X.com ")
	require.NoError(t, err)

	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	require.NotNil(t, u.FullName)
	assert.Equal(t, "Ann", *u.FullName)
	assert.Nil(t, u.Gender)
	require.NotNil(t, u.DateOfBirth)
	assert.True(t, dob.Equal(*u.DateOfBirth))
	assert.Nil(t, u.CreatedDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_GetByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE id = \$1::uuid`).
		WithArgs("7f1d6c7e-0000-4000-8000-000000000001").
		WillReturnRows(mock.NewRows(userCols))

	_, err := repo.GetByID(context.Background(), "7f1d6c7e-0000-4000-8000-000000000001")
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_MalformedIDIsNotFound(t *testing.T) {
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}

	t.Run("get_by_id", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE id = \$1::uuid`).
			WithArgs("nope").
			WillReturnError(badUUID)

		_, err := repo.GetByID(context.Background(), "nope")
		assert.ErrorIs(t, err, user.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`(?s)UPDATE users .+ WHERE id = \$1::uuid`).
			WillReturnError(badUUID)

		err := repo.Update(context.Background(), user.User{ID: "nope"})
		assert.ErrorIs(t, err, user.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("roles", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`(?s)SELECT r.name .+ WHERE ur.user_id = \$1::uuid`).
			WithArgs("nope").
			WillReturnError(badUUID)

		roles, err := repo.Roles(context.Background(), "nope")
		require.NoError(t, err)
		assert.Empty(t, roles)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsersRepo_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_normalized_email_key"})

	err := repo.Create(context.Background(), user.User{ID: "u-2", UserName: "a@x.com", Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRepo_Update(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "updated", rows: 1},
		{name: "missing", rows: 0, wantErr: user.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)

			mock.ExpectExec(`UPDATE users`).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			err := repo.Update(context.Background(), user.User{ID: "u-1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUsersRepo_AddToRole(t *testing.T) {
	t.Run("unknown_role", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT id::text FROM roles`).
			WithArgs("Ghost").
			WillReturnRows(mock.NewRows([]string{"id"}))

		err := repo.AddToRole(context.Background(), "u-1", "Ghost")
		assert.ErrorIs(t, err, user.ErrRoleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("assigned", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT id::text FROM roles`).
			WithArgs(user.RoleUser).
			WillReturnRows(mock.NewRows([]string{"id"}).AddRow("r-1"))
		mock.ExpectExec(`INSERT INTO user_roles`).
			WithArgs("u-1", "r-1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.AddToRole(context.Background(), "u-1", user.RoleUser))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_user", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT id::text FROM roles`).
			WithArgs(user.RoleUser).
			WillReturnRows(mock.NewRows([]string{"id"}).AddRow("r-1"))
		mock.ExpectExec(`INSERT INTO user_roles`).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err := repo.AddToRole(context.Background(), "ghost", user.RoleUser)
		assert.ErrorIs(t, err, user.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsersRepo_Roles(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT r.name`).
		WithArgs("u-1").
		WillReturnRows(mock.NewRows([]string{"name"}).AddRow("User"))

	roles, err := repo.Roles(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.False(t, IsUniqueViolation(nil))
}
