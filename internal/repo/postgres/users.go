package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, user_name, email, normalized_email, password_hash,
	full_name, gender, marital_status, date_of_birth, image_url,
	created_date, password_modified_date`

type UsersRepo struct {
	db   DBTX
	prom *observability.Prom
}

func NewUsersRepo(db DBTX, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.UserName,
		&u.Email,
		&u.NormalizedEmail,
		&u.PasswordHash,
		&u.FullName,
		&u.Gender,
		&u.MaritalStatus,
		&u.DateOfBirth,
		&u.ImageURL,
		&u.CreatedDate,
		&u.PasswordModifiedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email",
		`SELECT `+userColumns+` FROM users WHERE normalized_email = $1`,
		user.NormalizeEmail(email),
	)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id",
		`SELECT `+userColumns+` FROM users WHERE id = $1::uuid`,
		id,
	)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg string) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx, query, arg))
		if errors.Is(scanErr, user.ErrNotFound) || IsInvalidID(scanErr) {
			return pgx.ErrNoRows
		}
		return scanErr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.observe("users.create", func() error {
		_, e := r.db.Exec(ctx,
			`INSERT INTO users (id, user_name, email, normalized_email, password_hash,
				full_name, gender, marital_status, date_of_birth, image_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.ID, u.UserName, u.Email, user.NormalizeEmail(u.Email), u.PasswordHash,
			u.FullName, u.Gender, u.MaritalStatus, u.DateOfBirth, u.ImageURL,
		)
		return e
	})

	if IsUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	return err
}

// Update writes the mutable profile columns in one statement.
func (r *UsersRepo) Update(ctx context.Context, u user.User) error {
	return r.observe("users.update", func() error {
		tag, err := r.db.Exec(ctx,
			`UPDATE users
			SET full_name = $2, gender = $3, marital_status = $4, date_of_birth = $5, image_url = $6
			WHERE id = $1::uuid`,
			u.ID, u.FullName, u.Gender, u.MaritalStatus, u.DateOfBirth, u.ImageURL,
		)
		if IsInvalidID(err) {
			return user.ErrNotFound
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) AddToRole(ctx context.Context, userID, role string) error {
	return r.observe("users.add_to_role", func() error {
		var roleID string

		err := r.db.QueryRow(ctx,
			`SELECT id::text FROM roles WHERE normalized_name = upper($1)`,
			role,
		).Scan(&roleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return user.ErrRoleNotFound
			}
			return err
		}

		_, err = r.db.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id)
			VALUES ($1::uuid, $2::uuid)
			ON CONFLICT DO NOTHING`,
			userID, roleID,
		)
		if IsForeignKeyViolation(err) || IsInvalidID(err) {
			return user.ErrNotFound
		}
		return err
	})
}

func (r *UsersRepo) Roles(ctx context.Context, userID string) ([]string, error) {
	out := []string{}

	err := r.observe("users.roles", func() error {
		rows, err := r.db.Query(ctx,
			`SELECT r.name
			FROM roles r
			JOIN user_roles ur ON ur.role_id = r.id
			WHERE ur.user_id = $1::uuid
			ORDER BY r.name`,
			userID,
		)
		if IsInvalidID(err) {
			// no user has this id
			return nil
		}
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, name)
		}
		return rows.Err()
	})

	return out, err
}
